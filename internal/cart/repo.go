package cart

import (
	"context"
	"time"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const ownerConstraint = "ux_carts_owner"

var (
	// ErrVersionConflict means the cart changed between load and save.
	ErrVersionConflict = pkgerrors.New(pkgerrors.CodeConflict, "cart was modified concurrently")
	// ErrOwnerConflict means another writer created the owner's cart first.
	ErrOwnerConflict = pkgerrors.New(pkgerrors.CodeConflict, "cart already exists for owner")
)

// Repository is the cart store. Writes are compare-and-set on carts.version.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a cart repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) CartRepository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func preloadItems(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Items", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC").Order("added_at ASC")
	})
}

// FindByOwner loads the owner's cart with items in insertion order.
func (r *Repository) FindByOwner(ctx context.Context, owner identity.Owner) (*models.Cart, error) {
	if owner.IsZero() {
		return nil, gorm.ErrRecordNotFound
	}
	var record models.Cart
	err := preloadItems(r.db.WithContext(ctx)).
		Where("owner_kind = ? AND owner_id = ?", owner.Kind, owner.ID).
		First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Cart, error) {
	var record models.Cart
	if err := preloadItems(r.db.WithContext(ctx)).First(&record, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Create inserts a new cart and its items. A concurrent create for the same
// owner surfaces as ErrOwnerConflict.
func (r *Repository) Create(ctx context.Context, record *models.Cart) error {
	items := record.Items
	record.Items = nil
	defer func() { record.Items = items }()

	tx := r.db.WithContext(ctx)
	if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
		if db.IsUniqueViolation(err, ownerConstraint) {
			return ErrOwnerConflict
		}
		return err
	}
	return r.insertItems(tx, record.ID, items)
}

// Save bumps the version when it still equals expectedVersion and replaces
// the items. record.Version is updated on success.
func (r *Repository) Save(ctx context.Context, record *models.Cart, expectedVersion int64) error {
	tx := r.db.WithContext(ctx)
	res := tx.Model(&models.Cart{}).
		Where("id = ? AND version = ?", record.ID, expectedVersion).
		Updates(map[string]any{
			"version":    expectedVersion + 1,
			"updated_at": record.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	record.Version = expectedVersion + 1

	if err := tx.Where("cart_id = ?", record.ID).Delete(&models.CartItem{}).Error; err != nil {
		return err
	}
	return r.insertItems(tx, record.ID, record.Items)
}

// Clear drops every item of the cart, keeping the cart row.
func (r *Repository) Clear(ctx context.Context, cartID uuid.UUID, expectedVersion int64, now time.Time) error {
	tx := r.db.WithContext(ctx)
	res := tx.Model(&models.Cart{}).
		Where("id = ? AND version = ?", cartID, expectedVersion).
		Updates(map[string]any{"version": expectedVersion + 1, "updated_at": now})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrVersionConflict
	}
	return tx.Where("cart_id = ?", cartID).Delete(&models.CartItem{}).Error
}

// FindAbandoned lists carts untouched since cutoff, oldest first. Items are
// not loaded.
func (r *Repository) FindAbandoned(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error) {
	q := r.db.WithContext(ctx).
		Where("updated_at < ?", cutoff).
		Order("updated_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []models.Cart
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteExpired removes up to limit abandoned carts and their items. The
// cutoff is checked again on delete, so a cart written after it was listed
// survives. It returns the number of carts removed.
func (r *Repository) DeleteExpired(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	var deleted int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rows, err := (&Repository{db: tx}).FindAbandoned(ctx, cutoff, limit)
		if err != nil || len(rows) == 0 {
			return err
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		res := tx.Where("id IN ? AND updated_at < ?", ids, cutoff).Delete(&models.Cart{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected
		return tx.Where("cart_id IN ?", ids).
			Where("NOT EXISTS (SELECT 1 FROM carts c WHERE c.id = cart_items.cart_id)").
			Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

func (r *Repository) insertItems(tx *gorm.DB, cartID uuid.UUID, items []models.CartItem) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].CartID = cartID
		items[i].Position = i
	}
	return tx.Create(&items).Error
}
