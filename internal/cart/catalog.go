package cart

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// productSnapshot is what an add needs to know about a catalog variant.
type productSnapshot struct {
	archived     bool
	variantFound bool
	stock        int
	priceCents   int64
}

func snapshotOf(p *models.Product, variantID uuid.UUID) *productSnapshot {
	snap := &productSnapshot{archived: p.Status == enums.ProductStatusArchived}
	if v := p.Variant(variantID); v != nil {
		snap.variantFound = true
		snap.stock = v.Stock
		snap.priceCents = v.PriceCents
	}
	return snap
}
