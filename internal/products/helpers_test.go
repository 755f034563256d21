package product

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	creator "github.com/angelmondragon/marketplace-backend/internal/creators"
	"github.com/angelmondragon/marketplace-backend/pkg/db"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
	"github.com/angelmondragon/marketplace-backend/pkg/outbox"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:products_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	// One connection serializes writers the way row locks would on Postgres.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.AutoMigrate(conn))
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		Creators: creator.NewRepository(conn),
		Tx:       db.FromConn(conn),
		Outbox:   outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	return svc
}

// mustSeedCreator registers a creator profile with the given status.
func mustSeedCreator(t *testing.T, conn *gorm.DB, status enums.CreatorStatus) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, conn.Create(&models.Creator{
		ID:     id,
		Name:   "Creator " + id.String()[:8],
		Email:  id.String() + "@example.com",
		Status: status,
	}).Error)
	return id
}

// variant builds an in-stock-or-not variant priced in cents.
func variant(priceCents int64, stock int) models.ProductVariant {
	return models.ProductVariant{PriceCents: priceCents, Stock: stock, Images: []string{}}
}

var seedClock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// mustSeedProduct persists a product whose status follows its stock. Each call
// is one minute newer than the previous one on the same test clock.
func mustSeedProduct(t *testing.T, repo *Repository, creatorID uuid.UUID, name string, gender enums.ProductGender, variants ...models.ProductVariant) *models.Product {
	t.Helper()
	seedClock = seedClock.Add(time.Minute)
	product := &models.Product{
		CreatorID:   creatorID,
		Name:        name,
		Description: name + " description",
		Gender:      gender,
		Tags:        []string{},
		Variants:    variants,
		CreatedAt:   seedClock,
		UpdatedAt:   seedClock,
	}
	product.Status = product.StockStatus()
	require.NoError(t, repo.Save(t.Context(), product))
	return product
}

func ptr[T any](v T) *T {
	return &v
}
