package cart

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/marketplace-backend/internal/identity"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestAddItemMergesAndKeepsFirstPrice(t *testing.T) {
	productID, variantID := uuid.New(), uuid.New()

	c := New(identity.User("u1"), t0)
	c = c.AddItem(productID, variantID, 2, 4990, t0.Add(time.Minute))
	c = c.AddItem(productID, variantID, 3, 5990, t0.Add(2*time.Minute))

	require.Len(t, c.Items, 1)
	assert.Equal(t, 5, c.Items[0].Quantity)
	assert.Equal(t, int64(4990), c.Items[0].UnitPriceCents)
	assert.Equal(t, t0.Add(time.Minute), c.Items[0].AddedAt)
	assert.Equal(t, t0.Add(2*time.Minute), c.UpdatedAt)
	assert.Equal(t, int64(5*4990), c.Subtotal())
	assert.Equal(t, 5, c.TotalItems())
}

func TestAddItemDistinctVariantsAppend(t *testing.T) {
	productID := uuid.New()

	c := New(identity.Session("s1"), t0).
		AddItem(productID, uuid.New(), 1, 1000, t0).
		AddItem(productID, uuid.New(), 2, 1500, t0)

	require.Len(t, c.Items, 2)
	assert.NotEqual(t, c.Items[0].ID, c.Items[1].ID)
	assert.Equal(t, int64(4000), c.Subtotal())
	assert.Equal(t, 3, c.TotalItems())
}

func TestAggregateMethodsDoNotMutateReceiver(t *testing.T) {
	base := New(identity.User("u1"), t0).AddItem(uuid.New(), uuid.New(), 1, 100, t0)
	itemID := base.Items[0].ID

	_ = base.AddItem(base.Items[0].ProductID, base.Items[0].VariantID, 4, 100, t0)
	_ = base.UpdateItemQuantity(itemID, 9, t0)
	_ = base.RemoveItem(itemID, t0)
	_ = base.Clear(t0)

	require.Len(t, base.Items, 1)
	assert.Equal(t, 1, base.Items[0].Quantity)
}

func TestUpdateToZeroEqualsRemove(t *testing.T) {
	c := New(identity.User("u1"), t0).
		AddItem(uuid.New(), uuid.New(), 2, 100, t0).
		AddItem(uuid.New(), uuid.New(), 1, 300, t0)
	itemID := c.Items[0].ID
	later := t0.Add(time.Hour)

	assert.Equal(t, c.RemoveItem(itemID, later), c.UpdateItemQuantity(itemID, 0, later))
	assert.Equal(t, c.RemoveItem(itemID, later), c.UpdateItemQuantity(itemID, -4, later))
}

func TestUpdateItemQuantitySetsValueAndIgnoresUnknownIDs(t *testing.T) {
	c := New(identity.User("u1"), t0).AddItem(uuid.New(), uuid.New(), 2, 100, t0)

	updated := c.UpdateItemQuantity(c.Items[0].ID, 7, t0)
	assert.Equal(t, 7, updated.Items[0].Quantity)

	same := c.UpdateItemQuantity(uuid.New(), 7, t0)
	assert.Equal(t, c.Items, same.Items)
}

func TestRemoveItemIsIdempotent(t *testing.T) {
	c := New(identity.User("u1"), t0).AddItem(uuid.New(), uuid.New(), 2, 100, t0)
	itemID := c.Items[0].ID

	once := c.RemoveItem(itemID, t0)
	twice := once.RemoveItem(itemID, t0)
	assert.Equal(t, once, twice)
	assert.True(t, twice.IsEmpty())
}

func TestClearAlwaysEmpties(t *testing.T) {
	for _, c := range []Cart{
		New(identity.User("u1"), t0),
		New(identity.User("u1"), t0).AddItem(uuid.New(), uuid.New(), 3, 100, t0),
	} {
		cleared := c.Clear(t0)
		assert.Empty(t, cleared.Items)
		assert.Zero(t, cleared.TotalItems())
		assert.Zero(t, cleared.Subtotal())
		assert.True(t, cleared.IsEmpty())
	}
}

func TestAddItemIgnoresNonPositiveQuantity(t *testing.T) {
	c := New(identity.User("u1"), t0).AddItem(uuid.New(), uuid.New(), 0, 100, t0)
	assert.True(t, c.IsEmpty())
}

func TestCartViewCarriesOwner(t *testing.T) {
	view := NewCartView(New(identity.User("u1"), t0))
	require.NotNil(t, view.UserID)
	assert.Equal(t, "u1", *view.UserID)
	assert.Nil(t, view.SessionID)
	assert.Nil(t, view.ID)
	assert.Empty(t, view.Items)
	assert.True(t, view.IsEmpty)
	assert.Equal(t, "0.00", view.Subtotal)

	view = NewCartView(New(identity.Session("s9"), t0).AddItem(uuid.New(), uuid.New(), 2, 1250, t0))
	require.NotNil(t, view.SessionID)
	assert.Equal(t, "25.00", view.Subtotal)
	assert.Equal(t, "12.50", view.Items[0].UnitPrice)
	assert.Equal(t, "25.00", view.Items[0].LineTotal)
}
