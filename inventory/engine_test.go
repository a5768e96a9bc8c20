package inventory

import (
	"context"
	"testing"

	"almacen/apperr"
	"almacen/database"
	"almacen/dbtest"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPurchaseIncreasesStock(t *testing.T) {
	db := dbtest.Open(t)
	p := dbtest.MustProduct(t, db, "Fideos", "850", 3, 0)
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		updated, err := ApplyPurchase(ctx, tx, p.ID, 12)
		if err == nil {
			assert.Equal(t, int64(15), updated.Stock)
		}
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(15), dbtest.Stock(t, db, p.ID))
}

func TestApplyPurchaseRejectsBadInput(t *testing.T) {
	db := dbtest.Open(t)
	p := dbtest.MustProduct(t, db, "Arroz", "900", 1, 0)
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := ApplyPurchase(ctx, tx, p.ID, 0)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := ApplyPurchase(ctx, tx, 404, 1)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int64(1), dbtest.Stock(t, db, p.ID))
}

func TestApplyPurchaseReportsSkippedUpdate(t *testing.T) {
	db := dbtest.Open(t)
	p := dbtest.MustProduct(t, db, "Harina", "700", 2, 0)
	ctx := context.Background()
	_, err := db.Exec(`CREATE TRIGGER freeze_stock BEFORE UPDATE OF stock ON products
		BEGIN SELECT RAISE(IGNORE); END`)
	require.NoError(t, err)

	err = database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := ApplyPurchase(ctx, tx, p.ID, 5)
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, int64(2), dbtest.Stock(t, db, p.ID))
}

func TestApplySaleReportsEveryShortItem(t *testing.T) {
	db := dbtest.Open(t)
	a := dbtest.MustProduct(t, db, "Leche", "1200", 2, 0)
	b := dbtest.MustProduct(t, db, "Pan", "700", 10, 0)
	c := dbtest.MustProduct(t, db, "Queso", "5000", 1, 0)
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := ApplySale(ctx, tx, []Item{
			{ProductID: a.ID, Quantity: 3},
			{ProductID: b.ID, Quantity: 4},
			{ProductID: c.ID, Quantity: 2},
		})
		return err
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	var ae *apperr.Error
	require.ErrorAs(t, err, &ae)
	shortages, ok := ae.Details["items"].([]Shortage)
	require.True(t, ok)
	assert.Equal(t, []Shortage{
		{ProductID: a.ID, Name: "Leche", Requested: 3, Available: 2},
		{ProductID: c.ID, Name: "Queso", Requested: 2, Available: 1},
	}, shortages)

	assert.Equal(t, int64(2), dbtest.Stock(t, db, a.ID))
	assert.Equal(t, int64(10), dbtest.Stock(t, db, b.ID))
	assert.Equal(t, int64(1), dbtest.Stock(t, db, c.ID))
}

func TestApplySaleDetectsThresholdCrossing(t *testing.T) {
	db := dbtest.Open(t)
	p := dbtest.MustProduct(t, db, "Café", "3000", 10, 5)
	already := dbtest.MustProduct(t, db, "Té", "1500", 3, 5)
	ctx := context.Background()

	var res *SaleResult
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		var err error
		res, err = ApplySale(ctx, tx, []Item{{ProductID: p.ID, Quantity: 6}, {ProductID: already.ID, Quantity: 1}})
		return err
	})
	require.NoError(t, err)
	require.Len(t, res.Crossings, 1)
	assert.Equal(t, Crossing{ProductID: p.ID, Name: "Café", Stock: 4, Threshold: 5}, res.Crossings[0])
	assert.Equal(t, int64(10), res.Products[p.ID].Stock)
	assert.Equal(t, int64(4), dbtest.Stock(t, db, p.ID))
	assert.Equal(t, int64(2), dbtest.Stock(t, db, already.ID))
}

func TestApplySaleMergesDuplicateItems(t *testing.T) {
	db := dbtest.Open(t)
	p := dbtest.MustProduct(t, db, "Harina", "600", 5, 0)
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		_, err := ApplySale(ctx, tx, []Item{{ProductID: p.ID, Quantity: 3}, {ProductID: p.ID, Quantity: 3}})
		return err
	})
	assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, int64(5), dbtest.Stock(t, db, p.ID))
}

func TestRestockAndAdjustThreshold(t *testing.T) {
	db := dbtest.Open(t)
	p := dbtest.MustProduct(t, db, "Aceite", "2500", 1, 0)
	ctx := context.Background()

	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		return Restock(ctx, tx, []Item{{ProductID: p.ID, Quantity: 4}})
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), dbtest.Stock(t, db, p.ID))

	updated, err := AdjustThreshold(ctx, db, p.ID, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), updated.LowStockThreshold)
	assert.True(t, updated.IsLowStock())

	_, err = AdjustThreshold(ctx, db, p.ID, -1)
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = AdjustThreshold(ctx, db, 999, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
