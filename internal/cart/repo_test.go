package cart

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
	"github.com/angelmondragon/marketplace-backend/pkg/db/models"
)

func seedCart(t *testing.T, env *testEnv, owner identity.Owner, touched time.Time, items int) *models.Cart {
	t.Helper()
	record := &models.Cart{
		OwnerKind: owner.Kind,
		OwnerID:   owner.ID,
		CreatedAt: touched,
		UpdatedAt: touched,
	}
	for range items {
		record.Items = append(record.Items, models.CartItem{Quantity: 1, UnitPriceCents: 100, AddedAt: touched})
	}
	require.NoError(t, env.repo.Create(t.Context(), record))
	return record
}

func TestFindAbandonedListsOldestFirst(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-7 * 24 * time.Hour)

	oldest := seedCart(t, env, identity.Session("a"), now.Add(-30*24*time.Hour), 1)
	older := seedCart(t, env, identity.Session("b"), now.Add(-8*24*time.Hour), 0)
	seedCart(t, env, identity.User("c"), now.Add(-time.Hour), 2)

	rows, err := env.repo.FindAbandoned(t.Context(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, oldest.ID, rows[0].ID)
	assert.Equal(t, older.ID, rows[1].ID)
	assert.Empty(t, rows[0].Items)

	rows, err = env.repo.FindAbandoned(t.Context(), cutoff, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDeleteExpiredRemovesCartsAndItems(t *testing.T) {
	env := newTestEnv(t)
	now := time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
	cutoff := now.Add(-7 * 24 * time.Hour)

	seedCart(t, env, identity.Session("a"), now.Add(-30*24*time.Hour), 2)
	seedCart(t, env, identity.Session("b"), now.Add(-10*24*time.Hour), 1)
	live := seedCart(t, env, identity.User("c"), now.Add(-time.Hour), 1)

	deleted, err := env.repo.DeleteExpired(t.Context(), cutoff, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = env.repo.DeleteExpired(t.Context(), cutoff, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = env.repo.DeleteExpired(t.Context(), cutoff, 10)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	assert.Equal(t, int64(1), env.countCarts(t))
	var items int64
	require.NoError(t, env.conn.Model(&models.CartItem{}).Count(&items).Error)
	assert.Equal(t, int64(1), items)

	kept, err := env.repo.FindByID(t.Context(), live.ID)
	require.NoError(t, err)
	assert.Len(t, kept.Items, 1)
}
