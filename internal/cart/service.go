package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/breaker"
	"github.com/angelmondragon/marketplace-backend/pkg/config"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
	"github.com/angelmondragon/marketplace-backend/pkg/logger"
	"github.com/angelmondragon/marketplace-backend/pkg/metrics"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox/payloads"
)

// Service exposes the cart operations. Every error it returns is a typed
// *errors.Error.
type Service interface {
	GetCart(ctx context.Context, owner identity.Owner) (*CartView, error)
	AddToCart(ctx context.Context, input AddToCartInput) (*CartView, error)
	UpdateCartItem(ctx context.Context, input UpdateCartItemInput) (*CartView, error)
	RemoveFromCart(ctx context.Context, input RemoveFromCartInput) (*CartView, error)
	ClearCart(ctx context.Context, owner identity.Owner) (*CartView, error)
}

type AddToCartInput struct {
	Owner     identity.Owner
	ProductID uuid.UUID
	VariantID uuid.UUID
	Quantity  int
}

type UpdateCartItemInput struct {
	Owner    identity.Owner
	ItemID   uuid.UUID
	Quantity int
}

type RemoveFromCartInput struct {
	Owner  identity.Owner
	ItemID uuid.UUID
}

// ServiceParams groups the collaborators of the cart service.
type ServiceParams struct {
	Repo    CartRepository
	Catalog CatalogReader
	Tx      txRunner
	Locker  KeyedLocker
	Outbox  outbox.Emitter
	Breaker *breaker.Breaker
	Metrics *metrics.CartMetrics
	Config  config.CartConfig
	Logger  *logger.Logger
	Clock   func() time.Time
}

type service struct {
	repo       CartRepository
	catalog    CatalogReader
	tx         txRunner
	locker     KeyedLocker
	outbox     outbox.Emitter
	breaker    *breaker.Breaker
	metrics    *metrics.CartMetrics
	maxRetries int
	logg       *logger.Logger
	now        func() time.Time
}

// NewService builds a cart service backed by the provided stack.
func NewService(p ServiceParams) (Service, error) {
	if p.Repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if p.Catalog == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	if p.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if p.Locker == nil {
		return nil, fmt.Errorf("cart locker required")
	}
	if p.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	clock := p.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	retries := p.Config.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	return &service{
		repo:       p.Repo,
		catalog:    p.Catalog,
		tx:         p.Tx,
		locker:     p.Locker,
		outbox:     p.Outbox,
		breaker:    p.Breaker,
		metrics:    p.Metrics,
		maxRetries: retries,
		logg:       p.Logger,
		now:        clock,
	}, nil
}

// GetCart returns the owner's cart, or an empty unsaved cart carrying the
// owner when none exists yet.
func (s *service) GetCart(ctx context.Context, owner identity.Owner) (view *CartView, err error) {
	defer s.observe(opGet, time.Now(), &err)

	if owner.IsZero() {
		return NewCartView(New(owner, s.now())), nil
	}
	c, found, err := s.load(ctx, owner)
	if err != nil {
		return nil, err
	}
	if !found {
		return NewCartView(New(owner, s.now())), nil
	}
	return NewCartView(c), nil
}

// AddToCart validates the variant against the catalog and merges the line
// into the owner's cart, creating the cart on first add. Stock is checked,
// never reserved.
func (s *service) AddToCart(ctx context.Context, input AddToCartInput) (view *CartView, err error) {
	defer s.observe(opAdd, time.Now(), &err)

	if input.Owner.IsZero() {
		return nil, invalidRequest("owner", "a user or session id is required")
	}
	if input.ProductID == uuid.Nil {
		return nil, invalidRequest("productId", "productId is required")
	}
	if input.VariantID == uuid.Nil {
		return nil, invalidRequest("variantId", "variantId is required")
	}
	if input.Quantity <= 0 {
		return nil, invalidRequest("quantity", "quantity must be greater than zero")
	}

	priceCents, err := s.validateStock(ctx, input)
	if err != nil {
		return nil, err
	}

	c, err := s.mutate(ctx, input.Owner, opAdd, true, func(current Cart, now time.Time) (Cart, eventFunc, error) {
		next := current.AddItem(input.ProductID, input.VariantID, input.Quantity, priceCents, now)
		return next, func(saved Cart) outbox.DomainEvent {
			line, _ := saved.Line(input.ProductID, input.VariantID)
			return lineEvent(enums.EventCartItemAdded, saved, line)
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return NewCartView(c), nil
}

func (s *service) validateStock(ctx context.Context, input AddToCartInput) (int64, error) {
	var p *productSnapshot
	err := s.breaker.Do("cart.catalog_lookup", func() error {
		found, ferr := s.catalog.FindByID(ctx, input.ProductID)
		if ferr != nil {
			return ferr
		}
		p = snapshotOf(found, input.VariantID)
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
		}
		return 0, err
	}
	if p.archived {
		return 0, pkgerrors.New(pkgerrors.CodeProductNotFound, "product not found")
	}
	if !p.variantFound {
		return 0, pkgerrors.New(pkgerrors.CodeVariantNotFound, "variant not found")
	}
	if p.stock < input.Quantity {
		return 0, pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock").
			WithDetails(map[string]any{
				"variantId": input.VariantID.String(),
				"available": p.stock,
				"requested": input.Quantity,
			})
	}
	return p.priceCents, nil
}

// UpdateCartItem sets a line's quantity; zero or less removes it.
func (s *service) UpdateCartItem(ctx context.Context, input UpdateCartItemInput) (view *CartView, err error) {
	defer s.observe(opUpdate, time.Now(), &err)

	if input.Owner.IsZero() {
		return nil, invalidRequest("owner", "a user or session id is required")
	}
	if input.ItemID == uuid.Nil {
		return nil, invalidRequest("itemId", "itemId is required")
	}

	c, err := s.mutate(ctx, input.Owner, opUpdate, false, func(current Cart, now time.Time) (Cart, eventFunc, error) {
		item, ok := current.Item(input.ItemID)
		if !ok {
			return Cart{}, nil, itemNotFound()
		}
		next := current.UpdateItemQuantity(input.ItemID, input.Quantity, now)
		eventType := enums.EventCartItemUpdated
		if input.Quantity <= 0 {
			eventType = enums.EventCartItemRemoved
		}
		item.Quantity = max(input.Quantity, 0)
		return next, func(saved Cart) outbox.DomainEvent {
			return lineEvent(eventType, saved, item)
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return NewCartView(c), nil
}

func (s *service) RemoveFromCart(ctx context.Context, input RemoveFromCartInput) (view *CartView, err error) {
	defer s.observe(opRemove, time.Now(), &err)

	if input.Owner.IsZero() {
		return nil, invalidRequest("owner", "a user or session id is required")
	}
	if input.ItemID == uuid.Nil {
		return nil, invalidRequest("itemId", "itemId is required")
	}

	c, err := s.mutate(ctx, input.Owner, opRemove, false, func(current Cart, now time.Time) (Cart, eventFunc, error) {
		item, ok := current.Item(input.ItemID)
		if !ok {
			return Cart{}, nil, itemNotFound()
		}
		next := current.RemoveItem(input.ItemID, now)
		item.Quantity = 0
		return next, func(saved Cart) outbox.DomainEvent {
			return lineEvent(enums.EventCartItemRemoved, saved, item)
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return NewCartView(c), nil
}

// ClearCart empties the owner's cart. It always answers with an empty cart,
// including when nothing was stored.
func (s *service) ClearCart(ctx context.Context, owner identity.Owner) (view *CartView, err error) {
	defer s.observe(opClear, time.Now(), &err)

	if owner.IsZero() {
		return NewCartView(New(owner, s.now())), nil
	}

	c, err := s.mutate(ctx, owner, opClear, false, func(current Cart, now time.Time) (Cart, eventFunc, error) {
		removed := len(current.Items)
		next := current.Clear(now)
		return next, func(saved Cart) outbox.DomainEvent {
			return outbox.DomainEvent{
				EventType:     enums.EventCartCleared,
				AggregateType: enums.AggregateCart,
				AggregateID:   saved.ID,
				Actor:         actorOf(saved.Owner),
				Data: payloads.CartClearedEvent{
					CartID:       saved.ID,
					OwnerKind:    saved.Owner.Kind,
					OwnerID:      saved.Owner.ID,
					RemovedItems: removed,
				},
			}
		}, nil
	})
	if pkgerrors.HasCode(err, pkgerrors.CodeCartNotFound) {
		return NewCartView(New(owner, s.now())), nil
	}
	if err != nil {
		return nil, err
	}
	return NewCartView(c), nil
}

const (
	opGet    = "get"
	opAdd    = "add"
	opUpdate = "update"
	opRemove = "remove"
	opClear  = "clear"
)

// eventFunc builds the outbox event once the saved cart (with its id) is known.
type eventFunc func(saved Cart) outbox.DomainEvent

type mutation func(current Cart, now time.Time) (Cart, eventFunc, error)

// mutate runs load, apply and persist under the owner's lock. A lost
// version or create race reruns the whole sequence a bounded number of times.
func (s *service) mutate(ctx context.Context, owner identity.Owner, op string, create bool, apply mutation) (Cart, error) {
	waitStart := time.Now()
	unlock, err := s.locker.Lock(ctx, owner)
	if err != nil {
		return Cart{}, err
	}
	defer unlock()
	s.metrics.ObserveLockWait(s.locker.Backend(), time.Since(waitStart))

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		saved, err := s.attempt(ctx, owner, op, create, apply)
		if errors.Is(err, ErrVersionConflict) || errors.Is(err, ErrOwnerConflict) {
			s.metrics.IncConflict(op)
			if s.logg != nil {
				logCtx := s.logg.WithFields(ctx, map[string]any{"owner": owner.String(), "attempt": attempt + 1, "op": op})
				s.logg.Warn(logCtx, "cart write conflict, retrying")
			}
			continue
		}
		return saved, err
	}
	return Cart{}, pkgerrors.New(pkgerrors.CodeStorageUnavailable, "cart write kept conflicting").
		WithDetails(map[string]any{"attempts": s.maxRetries + 1})
}

func (s *service) attempt(ctx context.Context, owner identity.Owner, op string, create bool, apply mutation) (Cart, error) {
	var saved Cart
	err := s.breaker.Do("cart."+op, func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			now := s.now()

			var current Cart
			record, err := repo.FindByOwner(ctx, owner)
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				if !create {
					return pkgerrors.New(pkgerrors.CodeCartNotFound, "cart not found")
				}
				current = New(owner, now)
			case err != nil:
				return err
			default:
				current = fromRecord(record)
			}

			next, event, err := apply(current, now)
			if err != nil {
				return err
			}

			row := toRecord(next)
			if current.IsPersisted() {
				if op == opClear {
					err = repo.Clear(ctx, current.ID, current.Version, now)
					row.Version = current.Version + 1
				} else {
					err = repo.Save(ctx, row, current.Version)
				}
			} else {
				err = repo.Create(ctx, row)
			}
			if err != nil {
				return err
			}

			saved = fromRecord(row)
			if event != nil {
				if err := s.outbox.Emit(ctx, tx, event(saved)); err != nil {
					return err
				}
			}
			return nil
		})
	})
	if err != nil {
		return Cart{}, err
	}
	return saved, nil
}

// load reads the owner's cart outside any write lock.
func (s *service) load(ctx context.Context, owner identity.Owner) (Cart, bool, error) {
	var record *models.Cart
	err := s.breaker.Do("cart.get", func() error {
		var ferr error
		record, ferr = s.repo.FindByOwner(ctx, owner)
		return ferr
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Cart{}, false, nil
	}
	if err != nil {
		return Cart{}, false, err
	}
	return fromRecord(record), true, nil
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

func invalidRequest(field, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvalidRequest, msg).WithDetails(map[string]any{"field": field})
}

func itemNotFound() error {
	return pkgerrors.New(pkgerrors.CodeItemNotFound, "item not found in cart")
}

func actorOf(owner identity.Owner) *outbox.ActorRef {
	return &outbox.ActorRef{OwnerKind: string(owner.Kind), OwnerID: owner.ID}
}

func lineEvent(eventType enums.OutboxEventType, saved Cart, line Item) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateCart,
		AggregateID:   saved.ID,
		Actor:         actorOf(saved.Owner),
		Data: payloads.CartChangedEvent{
			CartID:         saved.ID,
			OwnerKind:      saved.Owner.Kind,
			OwnerID:        saved.Owner.ID,
			ItemID:         line.ID,
			ProductID:      line.ProductID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			TotalItems:     saved.TotalItems(),
			SubtotalCents:  saved.Subtotal(),
		},
	}
}
