package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// Product is a creator listing; price and stock live on its variants.
type Product struct {
	ID          uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	CreatorID   uuid.UUID           `gorm:"column:creator_id;type:uuid;not null;index:idx_products_creator"`
	Name        string              `gorm:"column:name;not null"`
	Description string              `gorm:"column:description;not null;default:''"`
	Gender      enums.ProductGender `gorm:"column:gender;type:text;not null"`
	Status      enums.ProductStatus `gorm:"column:status;type:text;not null;default:'out_of_stock'"`
	Tags        []string            `gorm:"column:tags;type:jsonb;serializer:json"`
	Variants    []ProductVariant    `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// ProductVariant is a purchasable size/color combination of a product.
type ProductVariant struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index:idx_product_variants_product"`
	Size       *string   `gorm:"column:size"`
	Color      *string   `gorm:"column:color"`
	Stock      int       `gorm:"column:stock;not null;default:0"`
	PriceCents int64     `gorm:"column:price_cents;not null"`
	Images     []string  `gorm:"column:images;type:jsonb;serializer:json"`
	Position   int       `gorm:"column:position;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *ProductVariant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

func (p *Product) IsUnisex() bool {
	return p.Gender == enums.ProductGenderUnisex
}

// HasStock reports whether any variant can currently be sold.
func (p *Product) HasStock() bool {
	for _, v := range p.Variants {
		if v.Stock > 0 {
			return true
		}
	}
	return false
}

func (p *Product) IsAvailable() bool {
	return p.Status == enums.ProductStatusAvailable && p.HasStock()
}

// StockStatus derives the status implied by variant stock. Archived products
// stay archived.
func (p *Product) StockStatus() enums.ProductStatus {
	if p.Status == enums.ProductStatusArchived {
		return enums.ProductStatusArchived
	}
	if p.HasStock() {
		return enums.ProductStatusAvailable
	}
	return enums.ProductStatusOutOfStock
}

// PriceRange returns the lowest and highest variant price. ok is false when
// the product has no variants.
func (p *Product) PriceRange() (minCents, maxCents int64, ok bool) {
	for i, v := range p.Variants {
		if i == 0 || v.PriceCents < minCents {
			minCents = v.PriceCents
		}
		if i == 0 || v.PriceCents > maxCents {
			maxCents = v.PriceCents
		}
	}
	return minCents, maxCents, len(p.Variants) > 0
}

// AllImages flattens variant images in variant order, dropping duplicates.
func (p *Product) AllImages() []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, v := range p.Variants {
		for _, img := range v.Images {
			if _, dup := seen[img]; dup {
				continue
			}
			seen[img] = struct{}{}
			out = append(out, img)
		}
	}
	return out
}

func (p *Product) FirstImage() string {
	if images := p.AllImages(); len(images) > 0 {
		return images[0]
	}
	return ""
}

// Variant returns the variant with the given id, or nil.
func (p *Product) Variant(id uuid.UUID) *ProductVariant {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i]
		}
	}
	return nil
}
