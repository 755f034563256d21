package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/marketplace-backend/pkg/errors"
)

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, code, typed.Code(), "unexpected error %v", err)
}

func TestGetCartReturnsEmptyCartForNewOwner(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)

	view, err := svc.GetCart(t.Context(), identity.User("u1"))
	require.NoError(t, err)
	require.NotNil(t, view.UserID)
	assert.Equal(t, "u1", *view.UserID)
	assert.Nil(t, view.SessionID)
	assert.Nil(t, view.ID)
	assert.Empty(t, view.Items)
	assert.True(t, view.IsEmpty)
	assert.Zero(t, view.TotalItems)
	assert.Zero(t, env.countCarts(t))
}

func TestGetCartWithoutOwnerIsEmpty(t *testing.T) {
	env := newTestEnv(t)
	view, err := env.service(t).GetCart(t.Context(), identity.Owner{})
	require.NoError(t, err)
	assert.True(t, view.IsEmpty)
	assert.Nil(t, view.UserID)
	assert.Nil(t, view.SessionID)
}

func TestAddToCartCreatesCartAndMergesLines(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{4990}, []int{10})
	owner := identity.Session("sess-1")

	view, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 2})
	require.NoError(t, err)
	require.NotNil(t, view.ID)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "49.90", view.Items[0].UnitPrice)

	// Later catalog price changes must not reprice the line.
	require.NoError(t, env.conn.Model(&models.ProductVariant{}).Where("id = ?", p.Variants[0].ID).Update("price_cents", 9990).Error)

	view, err = svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 3})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 5, view.Items[0].Quantity)
	assert.Equal(t, "49.90", view.Items[0].UnitPrice)
	assert.Equal(t, "249.50", view.Subtotal)
	assert.Equal(t, 5, view.TotalItems)
	assert.Equal(t, int64(1), env.countCarts(t))

	reloaded, err := svc.GetCart(t.Context(), owner)
	require.NoError(t, err)
	assert.Equal(t, view.Items, reloaded.Items)
	require.NotNil(t, reloaded.SessionID)
	assert.Equal(t, "sess-1", *reloaded.SessionID)
}

func TestAddToCartValidatesInput(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000}, []int{5})

	cases := []struct {
		name  string
		input AddToCartInput
		field string
	}{
		{"no owner", AddToCartInput{ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1}, "owner"},
		{"no product", AddToCartInput{Owner: identity.User("u1"), VariantID: p.Variants[0].ID, Quantity: 1}, "productId"},
		{"no variant", AddToCartInput{Owner: identity.User("u1"), ProductID: p.ID, Quantity: 1}, "variantId"},
		{"zero quantity", AddToCartInput{Owner: identity.User("u1"), ProductID: p.ID, VariantID: p.Variants[0].ID}, "quantity"},
		{"negative quantity", AddToCartInput{Owner: identity.User("u1"), ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: -2}, "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.AddToCart(t.Context(), tc.input)
			requireCode(t, err, pkgerrors.CodeInvalidRequest)
			assert.Equal(t, map[string]any{"field": tc.field}, pkgerrors.As(err).Details())
		})
	}
	assert.Zero(t, env.countCarts(t))
}

func TestAddToCartCatalogFailures(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000}, []int{5})
	owner := identity.User("u1")

	_, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: uuid.New(), VariantID: p.Variants[0].ID, Quantity: 1})
	requireCode(t, err, pkgerrors.CodeProductNotFound)

	_, err = svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: uuid.New(), Quantity: 1})
	requireCode(t, err, pkgerrors.CodeVariantNotFound)

	_, err = svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 6})
	requireCode(t, err, pkgerrors.CodeInsufficientStock)
	assert.Equal(t, 5, pkgerrors.As(err).Details().(map[string]any)["available"])

	_, err = env.products.Archive(t.Context(), p.ID)
	require.NoError(t, err)
	_, err = svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	requireCode(t, err, pkgerrors.CodeProductNotFound)

	assert.Zero(t, env.countCarts(t), "failed adds must not create a cart")
	assert.Empty(t, env.outboxEvents(t))
}

func TestUpdateCartItem(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000, 2500}, []int{5, 5})
	owner := identity.User("u1")

	_, err := svc.UpdateCartItem(t.Context(), UpdateCartItemInput{Owner: owner, ItemID: uuid.New(), Quantity: 2})
	requireCode(t, err, pkgerrors.CodeCartNotFound)

	_, err = svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	require.NoError(t, err)
	view, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[1].ID, Quantity: 1})
	require.NoError(t, err)
	require.Len(t, view.Items, 2)
	first, second := view.Items[0].ID, view.Items[1].ID

	_, err = svc.UpdateCartItem(t.Context(), UpdateCartItemInput{Owner: owner, ItemID: uuid.New(), Quantity: 2})
	requireCode(t, err, pkgerrors.CodeItemNotFound)

	view, err = svc.UpdateCartItem(t.Context(), UpdateCartItemInput{Owner: owner, ItemID: second, Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, view.Items[1].Quantity)
	assert.Equal(t, "110.00", view.Subtotal)

	view, err = svc.UpdateCartItem(t.Context(), UpdateCartItemInput{Owner: owner, ItemID: first, Quantity: 0})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, second, view.Items[0].ID)
}

func TestRemoveFromCart(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000}, []int{5})
	owner := identity.User("u1")

	_, err := svc.RemoveFromCart(t.Context(), RemoveFromCartInput{Owner: owner, ItemID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeCartNotFound)

	view, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 2})
	require.NoError(t, err)

	_, err = svc.RemoveFromCart(t.Context(), RemoveFromCartInput{Owner: owner, ItemID: uuid.New()})
	requireCode(t, err, pkgerrors.CodeItemNotFound)

	view, err = svc.RemoveFromCart(t.Context(), RemoveFromCartInput{Owner: owner, ItemID: view.Items[0].ID})
	require.NoError(t, err)
	assert.True(t, view.IsEmpty)
	assert.NotNil(t, view.ID, "the cart row survives an emptying removal")
}

func TestClearCart(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000}, []int{5})
	owner := identity.Session("s1")

	view, err := svc.ClearCart(t.Context(), owner)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty)
	assert.Zero(t, env.countCarts(t))

	_, err = svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 3})
	require.NoError(t, err)

	view, err = svc.ClearCart(t.Context(), owner)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty)
	assert.Equal(t, "0.00", view.Subtotal)

	var items int64
	require.NoError(t, env.conn.Model(&models.CartItem{}).Count(&items).Error)
	assert.Zero(t, items)

	view, err = svc.GetCart(t.Context(), owner)
	require.NoError(t, err)
	assert.True(t, view.IsEmpty)
}

func TestCartsAreIsolatedPerOwner(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000}, []int{5})

	_, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: identity.User("abc"), ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	require.NoError(t, err)

	// Same raw id, different owner kind.
	view, err := svc.GetCart(t.Context(), identity.Session("abc"))
	require.NoError(t, err)
	assert.True(t, view.IsEmpty)
}

func TestMutationsQueueOutboxEvents(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000}, []int{5})
	owner := identity.User("u1")

	view, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.UpdateCartItem(t.Context(), UpdateCartItemInput{Owner: owner, ItemID: view.Items[0].ID, Quantity: 2})
	require.NoError(t, err)
	_, err = svc.RemoveFromCart(t.Context(), RemoveFromCartInput{Owner: owner, ItemID: view.Items[0].ID})
	require.NoError(t, err)
	_, err = svc.ClearCart(t.Context(), owner)
	require.NoError(t, err)

	rows := env.outboxEvents(t)
	require.Len(t, rows, 4)
	got := []enums.OutboxEventType{}
	for _, row := range rows {
		got = append(got, row.EventType)
		assert.Equal(t, *view.ID, row.AggregateID)
	}
	assert.ElementsMatch(t, []enums.OutboxEventType{
		enums.EventCartItemAdded,
		enums.EventCartItemUpdated,
		enums.EventCartItemRemoved,
		enums.EventCartCleared,
	}, got)
}

func TestConcurrentAddsForOneOwnerAreSerialized(t *testing.T) {
	env := newTestEnv(t)
	svc := env.service(t)
	p := env.seedProduct(t, []int64{1000}, []int{100})
	owner := identity.Session("busy")

	const writers = 16
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddToCart(context.Background(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := svc.GetCart(t.Context(), owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, writers, view.Items[0].Quantity)
	assert.Equal(t, int64(1), env.countCarts(t))
}

func TestInstancesWithSeparateLockersShareOneCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, []int64{1000}, []int{100})
	owner := identity.User("multi")

	// Each instance has its own in-process locker, as two replicas would.
	raise := func(params *ServiceParams) { params.Config.MaxRetries = 20 }
	instances := []Service{env.service(t, raise), env.service(t, raise)}

	const perInstance = 8
	var wg sync.WaitGroup
	errs := make(chan error, perInstance*len(instances))
	for _, svc := range instances {
		for range perInstance {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.AddToCart(context.Background(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, int64(1), env.countCarts(t))
	for _, svc := range instances {
		view, err := svc.GetCart(t.Context(), owner)
		require.NoError(t, err)
		require.Len(t, view.Items, 1)
		assert.Equal(t, perInstance*len(instances), view.Items[0].Quantity)
	}
}

// staleReadRepo misses the owner's cart on its first lookup, as an instance
// does when another replica commits between its read and its insert.
type staleReadRepo struct {
	*Repository
	missed *bool
}

func (r staleReadRepo) WithTx(tx *gorm.DB) CartRepository {
	return staleReadRepo{Repository: NewRepository(tx), missed: r.missed}
}

func (r staleReadRepo) FindByOwner(ctx context.Context, owner identity.Owner) (*models.Cart, error) {
	if !*r.missed {
		*r.missed = true
		return nil, gorm.ErrRecordNotFound
	}
	return r.Repository.FindByOwner(ctx, owner)
}

func TestCreateRaceAcrossInstancesMergesIntoExistingCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, []int64{1000}, []int{10})
	owner := identity.Session("raced")

	first := env.service(t)
	_, err := first.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	require.NoError(t, err)

	missed := false
	second := env.service(t, func(params *ServiceParams) {
		params.Repo = staleReadRepo{Repository: env.repo, missed: &missed}
	})
	view, err := second.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 2})
	require.NoError(t, err)
	assert.True(t, missed)
	require.Len(t, view.Items, 1)
	assert.Equal(t, 3, view.Items[0].Quantity)
	assert.Equal(t, int64(1), env.countCarts(t))
}

// flakyRepo fails the first N saves with a version conflict.
type flakyRepo struct {
	*Repository
	mu        *sync.Mutex
	conflicts *int
}

func (f flakyRepo) WithTx(tx *gorm.DB) CartRepository {
	return flakyRepo{Repository: NewRepository(tx), mu: f.mu, conflicts: f.conflicts}
}

func (f flakyRepo) Save(ctx context.Context, record *models.Cart, expectedVersion int64) error {
	f.mu.Lock()
	if *f.conflicts > 0 {
		*f.conflicts--
		f.mu.Unlock()
		return ErrVersionConflict
	}
	f.mu.Unlock()
	return f.Repository.Save(ctx, record, expectedVersion)
}

func TestVersionConflictsAreRetried(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, []int64{1000}, []int{10})
	owner := identity.User("u1")

	conflicts := 2
	repo := flakyRepo{Repository: env.repo, mu: &sync.Mutex{}, conflicts: &conflicts}
	svc := env.service(t, func(params *ServiceParams) {
		params.Repo = repo
		params.Config.MaxRetries = 3
	})

	_, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	require.NoError(t, err)
	view, err := svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity)
	assert.Zero(t, conflicts)

	conflicts = 10
	_, err = svc.AddToCart(t.Context(), AddToCartInput{Owner: owner, ProductID: p.ID, VariantID: p.Variants[0].ID, Quantity: 1})
	requireCode(t, err, pkgerrors.CodeStorageUnavailable)

	view, err = svc.GetCart(t.Context(), owner)
	require.NoError(t, err)
	assert.Equal(t, 2, view.Items[0].Quantity, "exhausted retries leave the cart untouched")
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	env := newTestEnv(t)
	_, err := NewService(ServiceParams{})
	require.Error(t, err)
	_, err = NewService(ServiceParams{Repo: env.repo, Catalog: env.products})
	require.Error(t, err)
}
