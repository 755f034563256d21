package creator

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
	"github.com/angelmondragon/marketplace-backend/pkg/enums"
	"github.com/angelmondragon/marketplace-backend/pkg/migrate"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:creators_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, migrate.AutoMigrate(conn))
	return conn
}

func mustSeedCreator(t *testing.T, repo *Repository, name string, status enums.CreatorStatus) *models.Creator {
	t.Helper()
	record := &models.Creator{
		ID:     uuid.New(),
		Name:   name,
		Email:  uuid.NewString() + "@example.com",
		Status: status,
	}
	require.NoError(t, repo.Create(t.Context(), record))
	return record
}

func ptr[T any](v T) *T { return &v }
