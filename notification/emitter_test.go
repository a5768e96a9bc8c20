package notification

import (
	"context"
	"testing"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/dbtest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowStockIsStoredUnread(t *testing.T) {
	db := dbtest.Open(t)
	clock := dbtest.NewClock()
	e := NewEmitter(db, clock.Now)
	ctx := context.Background()

	n, err := e.LowStock(ctx, LowStockEvent{ProductID: 7, ProductName: "Yerba", Stock: 4, Threshold: 5})
	require.NoError(t, err)
	assert.Equal(t, "/products/7", n.Link)
	assert.Contains(t, n.Title, "Yerba")
	assert.Equal(t, "2024-03-15 12:00:00", n.CreatedAt)

	count, err := e.UnreadCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMarkReadKeepsFirstReadAt(t *testing.T) {
	db := dbtest.Open(t)
	clock := dbtest.NewClock()
	e := NewEmitter(db, clock.Now)
	ctx := context.Background()

	n, err := e.LowStock(ctx, LowStockEvent{ProductID: 1, ProductName: "Azúcar", Stock: 0, Threshold: 2})
	require.NoError(t, err)

	clock.Advance(time.Hour)
	first, err := e.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, first.IsRead)
	require.NotNil(t, first.ReadAt)
	assert.Equal(t, "2024-03-15 13:00:00", *first.ReadAt)

	clock.Advance(time.Hour)
	second, err := e.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, *first.ReadAt, *second.ReadAt)

	unread, err := e.List(ctx, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestMarkReadUnknownID(t *testing.T) {
	db := dbtest.Open(t)
	e := NewEmitter(db, dbtest.NewClock().Now)

	_, err := e.MarkRead(context.Background(), 99)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestUnpaidAgingDedupesOnUnread(t *testing.T) {
	db := dbtest.Open(t)
	e := NewEmitter(db, dbtest.NewClock().Now)
	ctx := context.Background()
	ev := UnpaidAgingEvent{CustomerID: 3, CustomerName: "Don José", Debt: decimal.NewFromInt(1000), SaleCount: 2, Oldest: "2024-01-01 10:00:00"}

	n, err := e.UnpaidAging(ctx, ev)
	require.NoError(t, err)
	require.NotNil(t, n)

	again, err := e.UnpaidAging(ctx, ev)
	require.NoError(t, err)
	assert.Nil(t, again)

	_, err = e.MarkRead(ctx, n.ID)
	require.NoError(t, err)
	third, err := e.UnpaidAging(ctx, ev)
	require.NoError(t, err)
	assert.NotNil(t, third)
}

func TestAmountsUseConfiguredLocale(t *testing.T) {
	db := dbtest.Open(t)
	dbtest.UseConfig(t, func(c *config.Config) { c.Locale = "en-US" })
	e := NewEmitter(db, dbtest.NewClock().Now)

	n, err := e.UnpaidAging(context.Background(), UnpaidAgingEvent{
		CustomerID: 1, CustomerName: "Ana", Debt: decimal.RequireFromString("1234.5"), SaleCount: 1, Oldest: "2024-01-01 00:00:00",
	})
	require.NoError(t, err)
	assert.Contains(t, n.Message, "1,234.50")
	assert.Equal(t, "Overdue balance: Ana", n.Title)
}

func TestTitlesFollowDefaultLocale(t *testing.T) {
	db := dbtest.Open(t)
	e := NewEmitter(db, dbtest.NewClock().Now)

	n, err := e.LowStock(context.Background(), LowStockEvent{ProductID: 2, ProductName: "Yerba", Stock: 1, Threshold: 3})
	require.NoError(t, err)
	assert.Equal(t, "Stock bajo: Yerba", n.Title)
	assert.Equal(t, "Yerba quedó con 1 unidades (mínimo 3).", n.Message)
}

func TestEmitSwallowsFailures(t *testing.T) {
	db := dbtest.Open(t)
	e := NewEmitter(db, dbtest.NewClock().Now)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NotPanics(t, func() {
		emitted := e.Emit(ctx, LowStockEvent{ProductID: 1, ProductName: "x", Stock: 0, Threshold: 1})
		assert.Equal(t, 0, emitted)
	})
	assert.Equal(t, 0, dbtest.Count(t, db, "notifications"))

	emitted := e.Emit(context.Background(), LowStockEvent{ProductID: 1, ProductName: "x", Stock: 0, Threshold: 1})
	assert.Equal(t, 1, emitted)
}
