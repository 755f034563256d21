package cart

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
)

// Item is one cart line. UnitPriceCents is the price captured when the line
// was created and never changes afterwards.
type Item struct {
	ID             uuid.UUID
	ProductID      uuid.UUID
	VariantID      uuid.UUID
	Quantity       int
	UnitPriceCents int64
	AddedAt        time.Time
}

func (i Item) LineTotalCents() int64 {
	return i.UnitPriceCents * int64(i.Quantity)
}

// Cart is the cart aggregate. Every mutating method returns an updated copy
// and leaves the receiver untouched. ID is uuid.Nil until the cart is stored.
type Cart struct {
	ID        uuid.UUID
	Owner     identity.Owner
	Items     []Item
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New returns an empty, unsaved cart for owner.
func New(owner identity.Owner, now time.Time) Cart {
	return Cart{Owner: owner, Items: []Item{}, CreatedAt: now, UpdatedAt: now}
}

func (c Cart) IsPersisted() bool {
	return c.ID != uuid.Nil
}

func (c Cart) clone() Cart {
	out := c
	out.Items = make([]Item, len(c.Items))
	copy(out.Items, c.Items)
	return out
}

// AddItem merges into the existing (productID, variantID) line, keeping its
// price snapshot, or appends a new line priced at unitPriceCents. A
// non-positive quantity only refreshes UpdatedAt.
func (c Cart) AddItem(productID, variantID uuid.UUID, quantity int, unitPriceCents int64, now time.Time) Cart {
	out := c.clone()
	out.UpdatedAt = now
	if quantity <= 0 {
		return out
	}
	for i := range out.Items {
		if out.Items[i].ProductID == productID && out.Items[i].VariantID == variantID {
			out.Items[i].Quantity += quantity
			return out
		}
	}
	out.Items = append(out.Items, Item{
		ID:             uuid.New(),
		ProductID:      productID,
		VariantID:      variantID,
		Quantity:       quantity,
		UnitPriceCents: unitPriceCents,
		AddedAt:        now,
	})
	return out
}

// UpdateItemQuantity sets a line's quantity; zero or less removes the line.
// Unknown ids leave the items unchanged.
func (c Cart) UpdateItemQuantity(itemID uuid.UUID, quantity int, now time.Time) Cart {
	if quantity <= 0 {
		return c.RemoveItem(itemID, now)
	}
	out := c.clone()
	out.UpdatedAt = now
	for i := range out.Items {
		if out.Items[i].ID == itemID {
			out.Items[i].Quantity = quantity
			break
		}
	}
	return out
}

func (c Cart) RemoveItem(itemID uuid.UUID, now time.Time) Cart {
	out := c
	out.Items = make([]Item, 0, len(c.Items))
	for _, item := range c.Items {
		if item.ID != itemID {
			out.Items = append(out.Items, item)
		}
	}
	out.UpdatedAt = now
	return out
}

func (c Cart) Clear(now time.Time) Cart {
	out := c
	out.Items = []Item{}
	out.UpdatedAt = now
	return out
}

// Subtotal is the sum of unit price times quantity, in cents.
func (c Cart) Subtotal() int64 {
	var total int64
	for _, item := range c.Items {
		total += item.LineTotalCents()
	}
	return total
}

func (c Cart) TotalItems() int {
	total := 0
	for _, item := range c.Items {
		total += item.Quantity
	}
	return total
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) Item(itemID uuid.UUID) (Item, bool) {
	for _, item := range c.Items {
		if item.ID == itemID {
			return item, true
		}
	}
	return Item{}, false
}

// Line finds the line for a product variant.
func (c Cart) Line(productID, variantID uuid.UUID) (Item, bool) {
	for _, item := range c.Items {
		if item.ProductID == productID && item.VariantID == variantID {
			return item, true
		}
	}
	return Item{}, false
}
