package product

import (
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductDTO is the catalog payload returned to clients. Prices are fixed
// two-decimal strings.
type ProductDTO struct {
	ID          uuid.UUID    `json:"id"`
	CreatorID   uuid.UUID    `json:"creatorId"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Gender      string       `json:"gender"`
	Status      string       `json:"status"`
	Tags        []string     `json:"tags"`
	MinPrice    *string      `json:"minPrice,omitempty"`
	MaxPrice    *string      `json:"maxPrice,omitempty"`
	Image       string       `json:"image,omitempty"`
	Variants    []VariantDTO `json:"variants"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// VariantDTO exposes a purchasable variant.
type VariantDTO struct {
	ID       uuid.UUID `json:"id"`
	Size     *string   `json:"size,omitempty"`
	Color    *string   `json:"color,omitempty"`
	Stock    int       `json:"stock"`
	Price    string    `json:"price"`
	Images   []string  `json:"images"`
	Position int       `json:"position"`
}

// NewProductDTO builds a DTO from the persisted model.
func NewProductDTO(product *models.Product) ProductDTO {
	dto := ProductDTO{
		ID:          product.ID,
		CreatorID:   product.CreatorID,
		Name:        product.Name,
		Description: product.Description,
		Gender:      string(product.Gender),
		Status:      string(product.Status),
		Tags:        append([]string{}, product.Tags...),
		Image:       product.FirstImage(),
		Variants:    make([]VariantDTO, 0, len(product.Variants)),
		CreatedAt:   product.CreatedAt,
		UpdatedAt:   product.UpdatedAt,
	}
	if minCents, maxCents, ok := product.PriceRange(); ok {
		minPrice, maxPrice := FormatCents(minCents), FormatCents(maxCents)
		dto.MinPrice = &minPrice
		dto.MaxPrice = &maxPrice
	}
	for _, v := range product.Variants {
		dto.Variants = append(dto.Variants, VariantDTO{
			ID:       v.ID,
			Size:     v.Size,
			Color:    v.Color,
			Stock:    v.Stock,
			Price:    FormatCents(v.PriceCents),
			Images:   append([]string{}, v.Images...),
			Position: v.Position,
		})
	}
	return dto
}

func newProductDTOs(rows []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewProductDTO(&rows[i]))
	}
	return out
}

// FormatCents renders minor units as a two-decimal string ("4990" -> "49.90").
func FormatCents(cents int64) string {
	return decimal.New(cents, -2).StringFixed(2)
}

// ParsePrice converts a decimal string into cents. More than two fractional
// digits is rejected rather than rounded, as is anything past int64 cents.
func ParsePrice(value string) (int64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, err
	}
	scaled := d.Shift(2)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, errTooPrecise
	}
	if !scaled.BigInt().IsInt64() {
		return 0, errPriceOutOfRange
	}
	return scaled.IntPart(), nil
}
