package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartRepository defines the persistence surface required by the cart service.
type CartRepository interface {
	WithTx(tx *gorm.DB) CartRepository
	FindByOwner(ctx context.Context, owner identity.Owner) (*models.Cart, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error)
	Create(ctx context.Context, record *models.Cart) error
	Save(ctx context.Context, record *models.Cart, expectedVersion int64) error
	Clear(ctx context.Context, cartID uuid.UUID, expectedVersion int64, now time.Time) error
}

// CatalogReader is the read-only view of the catalog used to validate adds.
type CatalogReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// txRunner opens the transaction a cart write runs in.
type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}
