package cart

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	product "github.com/angelmondragon/marketplace-backend/internal/products"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

type testEnv struct {
	conn     *gorm.DB
	repo     *Repository
	products *product.Repository
	outbox   *outbox.Repository
	clock    *testClock
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.AutoMigrate(conn))
	return &testEnv{
		conn:     conn,
		repo:     NewRepository(conn),
		products: product.NewRepository(conn),
		outbox:   outbox.NewRepository(conn),
		clock:    &testClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}
}

func (e *testEnv) service(t *testing.T, mutate ...func(*ServiceParams)) Service {
	t.Helper()
	params := ServiceParams{
		Repo:    e.repo,
		Catalog: e.products,
		Tx:      db.FromConn(e.conn),
		Locker:  NewMemoryLocker(),
		Outbox:  outbox.NewService(e.outbox, nil),
		Clock:   e.clock.Now,
	}
	for _, fn := range mutate {
		fn(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)
	return svc
}

// seedProduct stores a product with one variant per (price, stock) pair.
func (e *testEnv) seedProduct(t *testing.T, prices []int64, stocks []int) *models.Product {
	t.Helper()
	require.Equal(t, len(prices), len(stocks))

	p := &models.Product{
		CreatorID:   uuid.New(),
		Name:        "Linen Shirt",
		Description: "Relaxed fit",
		Gender:      enums.ProductGenderUnisex,
		Tags:        []string{},
	}
	for i := range prices {
		p.Variants = append(p.Variants, models.ProductVariant{
			PriceCents: prices[i],
			Stock:      stocks[i],
			Images:     []string{},
		})
	}
	p.Status = p.StockStatus()
	require.NoError(t, e.products.Save(t.Context(), p))
	return p
}

func (e *testEnv) countCarts(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.conn.Model(&models.Cart{}).Count(&n).Error)
	return n
}

func (e *testEnv) outboxEvents(t *testing.T) []models.OutboxEvent {
	t.Helper()
	rows, err := e.outbox.FetchUnpublishedForPublish(e.conn, 100, 10)
	require.NoError(t, err)
	return rows
}
