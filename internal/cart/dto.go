package cart

import (
	"time"

	"github.com/google/uuid"

	product "github.com/angelmondragon/marketplace-backend/internal/products"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// CartView is the cart payload returned to callers. Exactly one of UserID
// and SessionID is set for an owned cart; an anonymous cart carries neither.
type CartView struct {
	ID            *uuid.UUID `json:"id"`
	UserID        *string    `json:"userId,omitempty"`
	SessionID     *string    `json:"sessionId,omitempty"`
	Items         []ItemView `json:"items"`
	Subtotal      string     `json:"subtotal"`
	SubtotalCents int64      `json:"subtotalCents"`
	TotalItems    int        `json:"totalItems"`
	IsEmpty       bool       `json:"isEmpty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// ItemView is one cart line.
type ItemView struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	VariantID uuid.UUID `json:"variantId"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unitPrice"`
	LineTotal string    `json:"lineTotal"`
	AddedAt   time.Time `json:"addedAt"`
}

// NewCartView renders the aggregate for the API.
func NewCartView(c Cart) *CartView {
	view := &CartView{
		Items:         make([]ItemView, 0, len(c.Items)),
		Subtotal:      product.FormatCents(c.Subtotal()),
		SubtotalCents: c.Subtotal(),
		TotalItems:    c.TotalItems(),
		IsEmpty:       c.IsEmpty(),
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if c.IsPersisted() {
		id := c.ID
		view.ID = &id
	}
	if !c.Owner.IsZero() {
		ownerID := c.Owner.ID
		switch c.Owner.Kind {
		case enums.CartOwnerUser:
			view.UserID = &ownerID
		case enums.CartOwnerSession:
			view.SessionID = &ownerID
		}
	}
	for _, item := range c.Items {
		view.Items = append(view.Items, ItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Quantity:  item.Quantity,
			UnitPrice: product.FormatCents(item.UnitPriceCents),
			LineTotal: product.FormatCents(item.LineTotalCents()),
			AddedAt:   item.AddedAt,
		})
	}
	return view
}
