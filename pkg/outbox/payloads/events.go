package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// CartChangedEvent describes a cart after a line-level mutation.
type CartChangedEvent struct {
	CartID         uuid.UUID           `json:"cart_id"`
	OwnerKind      enums.CartOwnerKind `json:"owner_kind"`
	OwnerID        string              `json:"owner_id"`
	ItemID         uuid.UUID           `json:"item_id"`
	ProductID      uuid.UUID           `json:"product_id"`
	VariantID      uuid.UUID           `json:"variant_id"`
	Quantity       int                 `json:"quantity"`
	UnitPriceCents int64               `json:"unit_price_cents"`
	TotalItems     int                 `json:"total_items"`
	SubtotalCents  int64               `json:"subtotal_cents"`
}

// CartClearedEvent is emitted when every line is dropped at once.
type CartClearedEvent struct {
	CartID       uuid.UUID           `json:"cart_id"`
	OwnerKind    enums.CartOwnerKind `json:"owner_kind"`
	OwnerID      string              `json:"owner_id"`
	RemovedItems int                 `json:"removed_items"`
}

// VariantStockUpdatedEvent carries the absolute stock after a catalog write.
type VariantStockUpdatedEvent struct {
	ProductID     uuid.UUID           `json:"product_id"`
	VariantID     uuid.UUID           `json:"variant_id"`
	Stock         int                 `json:"stock"`
	ProductStatus enums.ProductStatus `json:"product_status"`
}
