package product

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/marketplace-backend/pkg/breaker"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/marketplace-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	errTooPrecise      = errors.New("price has more than two decimal places")
	errPriceOutOfRange = errors.New("price is out of range")
)

// Service exposes catalog reads and the creator-side catalog writes.
type Service interface {
	Query(ctx context.Context, input QueryInput) (*QueryResult, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]ProductDTO, error)
	Recent(ctx context.Context, limit int) ([]ProductDTO, error)
	BestSelling(ctx context.Context, limit int) ([]ProductDTO, error)
	Search(ctx context.Context, text string, limit int) ([]ProductDTO, error)

	CreateProduct(ctx context.Context, creatorID uuid.UUID, input CreateProductInput) (*ProductDTO, error)
	UpdateVariantStock(ctx context.Context, creatorID, productID, variantID uuid.UUID, stock int) (*ProductDTO, error)
	ArchiveProduct(ctx context.Context, creatorID, productID uuid.UUID) (*ProductDTO, error)
	RestoreProduct(ctx context.Context, creatorID, productID uuid.UUID) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, creatorID, productID uuid.UUID) error
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Description string
	Gender      enums.ProductGender
	Tags        []string
	Variants    []VariantInput
}

// VariantInput describes one variant of a new product.
type VariantInput struct {
	Size       *string
	Color      *string
	Stock      int
	PriceCents int64
	Images     []string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// creatorLookup resolves the profile a product is published under.
type creatorLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Creator, error)
}

// ServiceParams groups the collaborators of the catalog service.
type ServiceParams struct {
	Repo     *Repository
	Creators creatorLookup
	Tx       txRunner
	Outbox   outbox.Emitter
	Breaker  *breaker.Breaker
	Metrics  *metrics.CatalogMetrics
	Config   config.CatalogConfig
	Logger   *logger.Logger
}

type service struct {
	repo     *Repository
	creators creatorLookup
	tx       txRunner
	outbox   outbox.Emitter
	breaker  *breaker.Breaker
	metrics  *metrics.CatalogMetrics
	cfg      config.CatalogConfig
	logg     *logger.Logger
}

// NewService constructs a catalog service instance.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if p.Creators == nil {
		return nil, fmt.Errorf("creator lookup required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	cfg := p.Config
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = pagination.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 {
		cfg.MaxPageSize = pagination.MaxPageSize
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 8
	}
	return &service{
		repo:     p.Repo,
		creators: p.Creators,
		tx:       p.Tx,
		outbox:   p.Outbox,
		breaker:  p.Breaker,
		metrics:  p.Metrics,
		cfg:      cfg,
		logg:     p.Logger,
	}, nil
}

// Query runs a filtered, paginated catalog read.
func (s *service) Query(ctx context.Context, input QueryInput) (result *QueryResult, err error) {
	defer s.observe("query", time.Now(), &err)

	filter, page, err := s.validateQuery(input)
	if err != nil {
		return nil, err
	}

	var rows *PageRows
	if err := s.breaker.Do("catalog.query", func() error {
		var qerr error
		rows, qerr = s.repo.FindPaginated(ctx, filter, page)
		return qerr
	}); err != nil {
		return nil, err
	}
	s.metrics.ObserveMatches(rows.Total)

	return &QueryResult{
		Items:      newProductDTOs(rows.Products),
		Total:      rows.Total,
		Page:       page.Number,
		PageSize:   page.Size,
		TotalPages: pagination.TotalPages(rows.Total, page.Size),
	}, nil
}

func (s *service) validateQuery(input QueryInput) (Filter, pagination.Page, error) {
	filter := input.Filter
	invalid := func(field, msg string) (Filter, pagination.Page, error) {
		return Filter{}, pagination.Page{}, pkgerrors.New(pkgerrors.CodeInvalidQuery, msg).
			WithDetails(map[string]any{"field": field})
	}

	if filter.Gender != nil && !filter.Gender.IsValid() {
		return invalid("gender", fmt.Sprintf("unknown gender %q", *filter.Gender))
	}
	if filter.Status == nil {
		available := enums.ProductStatusAvailable
		filter.Status = &available
	} else if !filter.Status.IsValid() {
		return invalid("status", fmt.Sprintf("unknown status %q", *filter.Status))
	}
	if filter.MinPriceCents != nil && *filter.MinPriceCents < 0 {
		return invalid("minPrice", "minPrice cannot be negative")
	}
	if filter.MaxPriceCents != nil && *filter.MaxPriceCents < 0 {
		return invalid("maxPrice", "maxPrice cannot be negative")
	}
	if filter.MinPriceCents != nil && filter.MaxPriceCents != nil && *filter.MinPriceCents > *filter.MaxPriceCents {
		return invalid("minPrice", "minPrice cannot exceed maxPrice")
	}
	if input.Page != nil && *input.Page < 1 {
		return invalid("page", "page must be at least 1")
	}
	if input.PageSize != nil && (*input.PageSize < 1 || *input.PageSize > s.cfg.MaxPageSize) {
		return invalid("pageSize", fmt.Sprintf("pageSize must be between 1 and %d", s.cfg.MaxPageSize))
	}
	filter.SearchText = strings.TrimSpace(filter.SearchText)

	return filter, pagination.Resolve(input.Page, input.PageSize, s.cfg.DefaultPageSize), nil
}

// GetProduct loads a single product regardless of status.
func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (dto *ProductDTO, err error) {
	defer s.observe("get", time.Now(), &err)

	product, err := s.loadProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	out := NewProductDTO(product)
	return &out, nil
}

// ListByCreator lists every product of a known creator, archived ones
// included.
func (s *service) ListByCreator(ctx context.Context, creatorID uuid.UUID) (items []ProductDTO, err error) {
	defer s.observe("list_by_creator", time.Now(), &err)

	if _, err := s.loadCreator(ctx, creatorID); err != nil {
		return nil, err
	}

	var rows []models.Product
	if err := s.breaker.Do("catalog.by_creator", func() error {
		var qerr error
		rows, qerr = s.repo.FindByCreator(ctx, creatorID)
		return qerr
	}); err != nil {
		return nil, err
	}
	return newProductDTOs(rows), nil
}

func (s *service) Recent(ctx context.Context, limit int) (items []ProductDTO, err error) {
	defer s.observe("recent", time.Now(), &err)
	return s.list(ctx, "catalog.recent", limit, s.repo.FindRecent)
}

func (s *service) BestSelling(ctx context.Context, limit int) (items []ProductDTO, err error) {
	defer s.observe("best_selling", time.Now(), &err)
	return s.list(ctx, "catalog.best_selling", limit, s.repo.FindBestSelling)
}

func (s *service) list(ctx context.Context, op string, limit int, find func(context.Context, int) ([]models.Product, error)) ([]ProductDTO, error) {
	limit = pagination.NormalizeLimit(limit, s.cfg.RecentLimit, s.cfg.MaxPageSize)
	var rows []models.Product
	if err := s.breaker.Do(op, func() error {
		var qerr error
		rows, qerr = find(ctx, limit)
		return qerr
	}); err != nil {
		return nil, err
	}
	return newProductDTOs(rows), nil
}

// Search is the free-text lookup without the other query filters. Blank text
// matches nothing.
func (s *service) Search(ctx context.Context, text string, limit int) (items []ProductDTO, err error) {
	defer s.observe("search", time.Now(), &err)

	text = strings.TrimSpace(text)
	if text == "" {
		return []ProductDTO{}, nil
	}
	limit = pagination.NormalizeLimit(limit, s.cfg.DefaultPageSize, s.cfg.MaxPageSize)

	var rows []models.Product
	if err := s.breaker.Do("catalog.search", func() error {
		var qerr error
		rows, qerr = s.repo.Search(ctx, text, limit)
		return qerr
	}); err != nil {
		return nil, err
	}
	return newProductDTOs(rows), nil
}

// CreateProduct stores a new product; its status follows variant stock.
func (s *service) CreateProduct(ctx context.Context, creatorID uuid.UUID, input CreateProductInput) (dto *ProductDTO, err error) {
	defer s.observe("create", time.Now(), &err)

	if err := validateCreateInput(creatorID, input); err != nil {
		return nil, err
	}
	creator, err := s.loadCreator(ctx, creatorID)
	if err != nil {
		return nil, err
	}
	if !creator.CanPublish() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "creator cannot publish products")
	}

	product := &models.Product{
		CreatorID:   creatorID,
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		Gender:      input.Gender,
		Tags:        dedupeTags(input.Tags),
		Variants:    make([]models.ProductVariant, 0, len(input.Variants)),
	}
	for i, v := range input.Variants {
		product.Variants = append(product.Variants, models.ProductVariant{
			Size:       v.Size,
			Color:      v.Color,
			Stock:      v.Stock,
			PriceCents: v.PriceCents,
			Images:     append([]string{}, v.Images...),
			Position:   i,
		})
	}
	product.Status = product.StockStatus()

	if err := s.breaker.Do("catalog.create", func() error {
		return s.repo.Save(ctx, product)
	}); err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id": product.ID.String(),
			"creator_id": creatorID.String(),
			"status":     product.Status,
		})
		s.logg.Info(logCtx, "product created")
	}

	return s.GetProduct(ctx, product.ID)
}

// UpdateVariantStock sets absolute stock for one variant and queues a
// variant_stock_updated event in the same transaction.
func (s *service) UpdateVariantStock(ctx context.Context, creatorID, productID, variantID uuid.UUID, stock int) (dto *ProductDTO, err error) {
	defer s.observe("update_stock", time.Now(), &err)

	if stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock cannot be negative")
	}
	product, err := s.loadOwnedProduct(ctx, creatorID, productID)
	if err != nil {
		return nil, err
	}
	if product.Variant(variantID) == nil {
		return nil, pkgerrors.New(pkgerrors.CodeVariantNotFound, "variant not found")
	}

	var updated *models.Product
	err = s.breaker.Do("catalog.update_stock", func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var uerr error
			updated, uerr = s.repo.WithTx(tx).UpdateVariantStock(ctx, productID, variantID, stock)
			if uerr != nil {
				return uerr
			}
			return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventVariantStockUpdated,
				AggregateType: enums.AggregateProduct,
				AggregateID:   productID,
				Data: payloads.VariantStockUpdatedEvent{
					ProductID:     productID,
					VariantID:     variantID,
					Stock:         stock,
					ProductStatus: updated.Status,
				},
			})
		})
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeVariantNotFound, "variant not found")
		}
		return nil, err
	}

	out := NewProductDTO(updated)
	return &out, nil
}

// ArchiveProduct hides a product from the catalog until it is restored.
func (s *service) ArchiveProduct(ctx context.Context, creatorID, productID uuid.UUID) (dto *ProductDTO, err error) {
	defer s.observe("archive", time.Now(), &err)
	return s.writeStatus(ctx, "catalog.archive", creatorID, productID, s.repo.Archive)
}

// RestoreProduct moves an archived product back to the status its stock implies.
func (s *service) RestoreProduct(ctx context.Context, creatorID, productID uuid.UUID) (dto *ProductDTO, err error) {
	defer s.observe("restore", time.Now(), &err)
	return s.writeStatus(ctx, "catalog.restore", creatorID, productID, s.repo.Restore)
}

func (s *service) writeStatus(
	ctx context.Context,
	op string,
	creatorID, productID uuid.UUID,
	write func(context.Context, uuid.UUID) (*models.Product, error),
) (*ProductDTO, error) {
	if _, err := s.loadOwnedProduct(ctx, creatorID, productID); err != nil {
		return nil, err
	}
	var product *models.Product
	if err := s.breaker.Do(op, func() error {
		var werr error
		product, werr = write(ctx, productID)
		return werr
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		return nil, err
	}
	out := NewProductDTO(product)
	return &out, nil
}

func (s *service) DeleteProduct(ctx context.Context, creatorID, productID uuid.UUID) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if _, err := s.loadOwnedProduct(ctx, creatorID, productID); err != nil {
		return err
	}
	if err := s.breaker.Do("catalog.delete", func() error {
		return s.repo.Delete(ctx, productID)
	}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		return err
	}
	return nil
}

func (s *service) loadCreator(ctx context.Context, id uuid.UUID) (*models.Creator, error) {
	var creator *models.Creator
	err := s.breaker.Do("catalog.find_creator", func() error {
		var ferr error
		creator, ferr = s.creators.FindByID(ctx, id)
		return ferr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "creator not found")
		}
		return nil, err
	}
	return creator, nil
}

func (s *service) loadProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product *models.Product
	err := s.breaker.Do("catalog.find", func() error {
		var ferr error
		product, ferr = s.repo.FindByID(ctx, id)
		return ferr
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		return nil, err
	}
	return product, nil
}

// loadOwnedProduct reports products owned by someone else as missing.
func (s *service) loadOwnedProduct(ctx context.Context, creatorID, productID uuid.UUID) (*models.Product, error) {
	product, err := s.loadProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if product.CreatorID != creatorID {
		return nil, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
	}
	return product, nil
}

func (s *service) observe(op string, start time.Time, errp *error) {
	outcome := "ok"
	if errp != nil && *errp != nil {
		outcome = string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(*errp); typed != nil {
			outcome = string(typed.Code())
		}
	}
	s.metrics.Observe(op, outcome, time.Since(start))
}

func validateCreateInput(creatorID uuid.UUID, input CreateProductInput) error {
	invalid := func(field, msg string) error {
		return pkgerrors.New(pkgerrors.CodeValidation, msg).WithDetails(map[string]any{"field": field})
	}
	if creatorID == uuid.Nil {
		return invalid("creatorId", "creator is required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return invalid("name", "name is required")
	}
	if !input.Gender.IsValid() {
		return invalid("gender", fmt.Sprintf("unknown gender %q", input.Gender))
	}
	for i, v := range input.Variants {
		if v.Stock < 0 {
			return invalid(fmt.Sprintf("variants[%d].stock", i), "stock cannot be negative")
		}
		if v.PriceCents < 0 {
			return invalid(fmt.Sprintf("variants[%d].price", i), "price cannot be negative")
		}
	}
	return nil
}

func dedupeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
