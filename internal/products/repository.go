package product

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNegativeStock is returned when an absolute stock write is below zero.
var ErrNegativeStock = errors.New("stock cannot be negative")

// Repository is the catalog store: products and their ordered variants.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

func preloadVariants(tx *gorm.DB) *gorm.DB {
	return tx.Preload("Variants", func(q *gorm.DB) *gorm.DB {
		return q.Order("position ASC").Order("created_at ASC")
	})
}

// FindByID loads the product with its variants in display order.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := preloadVariants(r.db.WithContext(ctx)).First(&product, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByCreator lists every product a creator owns, newest first.
func (r *Repository) FindByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.Product, error) {
	var rows []models.Product
	err := preloadVariants(r.db.WithContext(ctx)).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).
		Error
	return rows, err
}

// FindPaginated counts and reads one page of filtered products inside a single
// read transaction so Total and Products describe the same snapshot.
func (r *Repository) FindPaginated(ctx context.Context, filter Filter, page pagination.Page) (*PageRows, error) {
	out := &PageRows{Products: []models.Product{}}
	err := db.ReadTx(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Model(&models.Product{}).Scopes(filterScope(filter)).Count(&out.Total).Error; err != nil {
			return err
		}
		if int64(page.Offset()) >= out.Total {
			return nil
		}
		return preloadVariants(tx).
			Scopes(filterScope(filter)).
			Order("products.created_at DESC").
			Order("products.id ASC").
			Offset(page.Offset()).
			Limit(page.Size).
			Find(&out.Products).
			Error
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Search matches name or description case-insensitively across all statuses
// except archived.
func (r *Repository) Search(ctx context.Context, text string, limit int) ([]models.Product, error) {
	archived := enums.ProductStatusArchived
	var rows []models.Product
	err := preloadVariants(r.db.WithContext(ctx)).
		Scopes(filterScope(Filter{SearchText: text})).
		Where("products.status <> ?", archived).
		Order("products.created_at DESC").
		Order("products.id ASC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}

// FindRecent returns the newest available products.
func (r *Repository) FindRecent(ctx context.Context, limit int) ([]models.Product, error) {
	available := enums.ProductStatusAvailable
	var rows []models.Product
	err := preloadVariants(r.db.WithContext(ctx)).
		Scopes(filterScope(Filter{Status: &available})).
		Order("products.created_at DESC").
		Order("products.id ASC").
		Limit(limit).
		Find(&rows).
		Error
	return rows, err
}

// FindBestSelling ranks by recency; there is no sales history to rank by.
func (r *Repository) FindBestSelling(ctx context.Context, limit int) ([]models.Product, error) {
	return r.FindRecent(ctx, limit)
}

// Save inserts or updates the product and replaces its variants.
func (r *Repository) Save(ctx context.Context, product *models.Product) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		variants := product.Variants
		product.Variants = nil
		defer func() { product.Variants = variants }()

		if err := tx.Omit(clause.Associations).Save(product).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		if len(variants) == 0 {
			return nil
		}
		for i := range variants {
			variants[i].ProductID = product.ID
			if variants[i].Position == 0 {
				variants[i].Position = i
			}
		}
		return tx.Create(&variants).Error
	})
}

// Delete removes the product and its variants.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", id).Delete(&models.ProductVariant{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", id).Delete(&models.Product{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// stockStatusExpr resolves to the status implied by the product's variant
// stock at the moment the statement runs.
func stockStatusExpr() clause.Expr {
	return gorm.Expr(
		"CASE WHEN EXISTS (SELECT 1 FROM product_variants pv WHERE pv.product_id = products.id AND pv.stock > 0) THEN ? ELSE ? END",
		enums.ProductStatusAvailable, enums.ProductStatusOutOfStock,
	)
}

// Archive hides the product and returns it as persisted.
func (r *Repository) Archive(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return r.writeStatus(ctx, id, enums.ProductStatusArchived)
}

// Restore sets the status from current stock in a single statement, so a
// concurrent stock write cannot leave a stale status behind. Products that
// are not archived get the same recompute.
func (r *Repository) Restore(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return r.writeStatus(ctx, id, stockStatusExpr())
}

func (r *Repository) writeStatus(ctx context.Context, id uuid.UUID, status any) (*models.Product, error) {
	var product *models.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Product{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": status, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		loaded, err := r.WithTx(tx).FindByID(ctx, id)
		if err != nil {
			return err
		}
		product = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

// UpdateVariantStock sets a variant's stock and recomputes the product status
// in the same transaction. It returns the product as persisted afterwards.
func (r *Repository) UpdateVariantStock(ctx context.Context, productID, variantID uuid.UUID, newStock int) (*models.Product, error) {
	if newStock < 0 {
		return nil, ErrNegativeStock
	}
	return r.mutateStock(ctx, productID, variantID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND product_id = ?", variantID, productID).
			Updates(map[string]any{"stock": newStock, "updated_at": time.Now().UTC()})
	})
}

// AdjustVariantStock applies delta atomically. A decrement that would leave
// the variant below zero updates nothing and returns INSUFFICIENT_STOCK.
func (r *Repository) AdjustVariantStock(ctx context.Context, productID, variantID uuid.UUID, delta int) (*models.Product, error) {
	return r.mutateStock(ctx, productID, variantID, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("id = ? AND product_id = ? AND stock + ? >= 0", variantID, productID, delta).
			Updates(map[string]any{"stock": gorm.Expr("stock + ?", delta), "updated_at": time.Now().UTC()})
	})
}

func (r *Repository) mutateStock(ctx context.Context, productID, variantID uuid.UUID, update func(tx *gorm.DB) *gorm.DB) (*models.Product, error) {
	var product *models.Product
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := update(tx.Model(&models.ProductVariant{}))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&models.ProductVariant{}).
				Where("id = ? AND product_id = ?", variantID, productID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return gorm.ErrRecordNotFound
			}
			return pkgerrors.New(pkgerrors.CodeInsufficientStock, "stock would drop below zero").
				WithDetails(map[string]any{"variantId": variantID.String()})
		}

		// Status follows stock unless the product is archived.
		if err := tx.Model(&models.Product{}).
			Where("id = ? AND status <> ?", productID, enums.ProductStatusArchived).
			Updates(map[string]any{"status": stockStatusExpr(), "updated_at": time.Now().UTC()}).Error; err != nil {
			return err
		}

		loaded, err := r.WithTx(tx).FindByID(ctx, productID)
		if err != nil {
			return err
		}
		product = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func filterScope(filter Filter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if filter.Status != nil {
			q = q.Where("products.status = ?", *filter.Status)
		}
		if filter.Gender != nil {
			q = q.Where("products.gender IN ?", []enums.ProductGender{*filter.Gender, enums.ProductGenderUnisex})
		}
		if filter.CreatorID != nil {
			q = q.Where("products.creator_id = ?", *filter.CreatorID)
		}
		// A product with no variants has NULL bounds and never overlaps.
		if filter.MinPriceCents != nil {
			q = q.Where("(SELECT MAX(v.price_cents) FROM product_variants v WHERE v.product_id = products.id) >= ?", *filter.MinPriceCents)
		}
		if filter.MaxPriceCents != nil {
			q = q.Where("(SELECT MIN(v.price_cents) FROM product_variants v WHERE v.product_id = products.id) <= ?", *filter.MaxPriceCents)
		}
		if search := strings.TrimSpace(filter.SearchText); search != "" {
			pattern := "%" + escapeLike(strings.ToLower(search)) + "%"
			q = q.Where(`(LOWER(products.name) LIKE ? ESCAPE '\' OR LOWER(products.description) LIKE ? ESCAPE '\')`, pattern, pattern)
		}
		return q
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(value string) string {
	return likeEscaper.Replace(value)
}
