package cart

import (
	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

func fromRecord(record *models.Cart) Cart {
	c := Cart{
		ID:        record.ID,
		Owner:     identity.Owner{Kind: record.OwnerKind, ID: record.OwnerID},
		Items:     make([]Item, 0, len(record.Items)),
		Version:   record.Version,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	for _, row := range record.Items {
		c.Items = append(c.Items, Item{
			ID:             row.ID,
			ProductID:      row.ProductID,
			VariantID:      row.VariantID,
			Quantity:       row.Quantity,
			UnitPriceCents: row.UnitPriceCents,
			AddedAt:        row.AddedAt,
		})
	}
	return c
}

func toRecord(c Cart) *models.Cart {
	record := &models.Cart{
		ID:        c.ID,
		OwnerKind: c.Owner.Kind,
		OwnerID:   c.Owner.ID,
		Version:   c.Version,
		Items:     make([]models.CartItem, 0, len(c.Items)),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
	for i, item := range c.Items {
		record.Items = append(record.Items, models.CartItem{
			ID:             item.ID,
			CartID:         c.ID,
			ProductID:      item.ProductID,
			VariantID:      item.VariantID,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			Position:       i,
			AddedAt:        item.AddedAt,
		})
	}
	return record
}
