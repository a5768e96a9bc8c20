package journal

import (
	"context"
	"sync"
	"testing"
	"time"

	"almacen/apperr"
	"almacen/database"
	"almacen/dbtest"
	"almacen/inventory"
	"almacen/model"
	"almacen/notification"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJournal(t *testing.T) (*Journal, *sqlx.DB, *dbtest.Clock) {
	t.Helper()
	db := dbtest.Open(t)
	clock := dbtest.NewClock()
	return New(db, notification.NewEmitter(db, clock.Now), clock.Now), db, clock
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLowStockScenario(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "P", "100", 10, 5)

	sale, err := j.RecordSale(ctx, SaleInput{
		Items:         []inventory.Item{{ProductID: p.ID, Quantity: 6}},
		PaymentMethod: model.PaymentCash,
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(dec("600")))
	assert.Equal(t, int64(4), dbtest.Stock(t, db, p.ID))

	notes, err := database.ListNotifications(ctx, db, true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.ProductLink(p.ID), notes[0].Link)

	_, err = j.RecordSale(ctx, SaleInput{
		Items:         []inventory.Item{{ProductID: p.ID, Quantity: 5}},
		PaymentMethod: model.PaymentCash,
	})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)
	assert.Equal(t, int64(4), dbtest.Stock(t, db, p.ID))
	assert.Equal(t, 1, dbtest.Count(t, db, "sales"))
	assert.Equal(t, 1, dbtest.Count(t, db, "sale_items"))
	assert.Equal(t, 1, dbtest.Count(t, db, "notifications"))
}

func TestRecordSaleRejectsMismatchedTotal(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	a := dbtest.MustProduct(t, db, "A", "10.50", 10, 0)
	b := dbtest.MustProduct(t, db, "B", "3", 10, 0)

	wrong := dec("30")
	_, err := j.RecordSale(ctx, SaleInput{
		Items:         []inventory.Item{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 3}},
		PaymentMethod: model.PaymentCard,
		Total:         &wrong,
	})
	require.ErrorIs(t, err, apperr.ErrInvalidSaleTotal)
	assert.Equal(t, int64(10), dbtest.Stock(t, db, a.ID))
	assert.Equal(t, 0, dbtest.Count(t, db, "sales"))

	right := dec("30.00")
	sale, err := j.RecordSale(ctx, SaleInput{
		Items:         []inventory.Item{{ProductID: a.ID, Quantity: 2}, {ProductID: b.ID, Quantity: 3}},
		PaymentMethod: model.PaymentCard,
		Total:         &right,
	})
	require.NoError(t, err)
	assert.True(t, sale.Total.Equal(right))
}

func TestRecordSaleValidatesInput(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "A", "1", 10, 0)

	tests := []struct {
		name string
		in   SaleInput
		want error
	}{
		{"no items", SaleInput{PaymentMethod: model.PaymentCash}, apperr.ErrInvalid},
		{"duplicate product", SaleInput{
			Items:         []inventory.Item{{ProductID: p.ID, Quantity: 1}, {ProductID: p.ID, Quantity: 2}},
			PaymentMethod: model.PaymentCash,
		}, apperr.ErrInvalid},
		{"zero quantity", SaleInput{
			Items:         []inventory.Item{{ProductID: p.ID, Quantity: 0}},
			PaymentMethod: model.PaymentCash,
		}, apperr.ErrInvalid},
		{"bad payment method", SaleInput{
			Items:         []inventory.Item{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: "cheque",
		}, apperr.ErrInvalid},
		{"unknown product", SaleInput{
			Items:         []inventory.Item{{ProductID: 999, Quantity: 1}},
			PaymentMethod: model.PaymentCash,
		}, apperr.ErrNotFound},
		{"unknown customer", SaleInput{
			CustomerID:    func() *int64 { v := int64(77); return &v }(),
			Items:         []inventory.Item{{ProductID: p.ID, Quantity: 1}},
			PaymentMethod: model.PaymentCash,
		}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := j.RecordSale(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
	assert.Equal(t, int64(10), dbtest.Stock(t, db, p.ID))
	assert.Equal(t, 0, dbtest.Count(t, db, "sales"))
}

func TestSaleKeepsHistoricalPrice(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "Vino", "2000", 10, 0)

	sale, err := j.RecordSale(ctx, SaleInput{Items: []inventory.Item{{ProductID: p.ID, Quantity: 2}}, PaymentMethod: model.PaymentCash})
	require.NoError(t, err)

	p.Price = dec("2500")
	require.NoError(t, database.UpdateProductDetails(ctx, db, p))

	got, err := j.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].Price.Equal(dec("2000")))
	assert.True(t, got.Total.Equal(dec("4000")))
	assert.Equal(t, "Vino", got.Items[0].ProductName)
}

func TestStockReplayMatchesJournal(t *testing.T) {
	j, db, clock := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "Galletas", "500", 7, 0)
	s := dbtest.MustSupplier(t, db, "Mayorista")

	purchased, sold := int64(0), int64(0)
	for i, qty := range []int64{5, 3, 8} {
		_, err := j.RecordPurchase(ctx, PurchaseInput{
			ProductID: p.ID, SupplierID: &s.ID, Quantity: qty, UnitCost: dec("320"), PaymentMethod: model.PaymentTransfer,
		})
		require.NoError(t, err)
		purchased += qty

		_, err = j.RecordSale(ctx, SaleInput{
			Items: []inventory.Item{{ProductID: p.ID, Quantity: int64(i + 4)}}, PaymentMethod: model.PaymentCash,
		})
		require.NoError(t, err)
		sold += int64(i + 4)
		clock.Advance(time.Minute)
	}
	_, err := j.RecordSale(ctx, SaleInput{Items: []inventory.Item{{ProductID: p.ID, Quantity: 100}}, PaymentMethod: model.PaymentCash})
	require.ErrorIs(t, err, apperr.ErrInsufficientStock)

	assert.Equal(t, 7+purchased-sold, dbtest.Stock(t, db, p.ID))

	purchases, err := j.ListPurchases(ctx, database.PurchaseFilter{SupplierID: s.ID})
	require.NoError(t, err)
	require.Len(t, purchases, 3)
	assert.True(t, purchases[0].Total.Equal(dec("2560")))
}

func TestRecordPurchaseChecksReferences(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "Sal", "300", 0, 0)
	missing := int64(55)

	_, err := j.RecordPurchase(ctx, PurchaseInput{ProductID: p.ID, SupplierID: &missing, Quantity: 1, UnitCost: dec("1"), PaymentMethod: model.PaymentCash})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = j.RecordPurchase(ctx, PurchaseInput{ProductID: 404, Quantity: 1, UnitCost: dec("1"), PaymentMethod: model.PaymentCash})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = j.RecordPurchase(ctx, PurchaseInput{ProductID: p.ID, Quantity: -2, UnitCost: dec("1"), PaymentMethod: model.PaymentCash})
	assert.ErrorIs(t, err, apperr.ErrInvalid)

	assert.Equal(t, int64(0), dbtest.Stock(t, db, p.ID))
	assert.Equal(t, 0, dbtest.Count(t, db, "purchases"))
}

func TestRecordExpenseWithShares(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	a := dbtest.MustOwner(t, db, "A")
	b := dbtest.MustOwner(t, db, "B")

	e, err := j.RecordExpense(ctx, ExpenseInput{
		Category:      "alquiler",
		Amount:        dec("300"),
		PaymentMethod: model.PaymentTransfer,
		Shares: []model.Share{
			{OwnerID: a.ID, Percentage: dec("60")},
			{OwnerID: b.ID, Percentage: dec("40")},
		},
	})
	require.NoError(t, err)
	require.Len(t, e.Shares, 2)
	assert.Equal(t, "A", e.Shares[0].OwnerName)

	_, err = j.RecordExpense(ctx, ExpenseInput{
		Category:      "luz",
		Amount:        dec("100"),
		PaymentMethod: model.PaymentCash,
		Shares: []model.Share{
			{OwnerID: a.ID, Percentage: dec("60")},
			{OwnerID: b.ID, Percentage: dec("30")},
		},
	})
	assert.ErrorIs(t, err, apperr.ErrInvalidShareSum)

	_, err = j.RecordExpense(ctx, ExpenseInput{
		Category:      "luz",
		Amount:        dec("100"),
		PaymentMethod: model.PaymentCash,
		Shares:        []model.Share{{OwnerID: 999, Percentage: dec("100")}},
	})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 1, dbtest.Count(t, db, "expenses"))

	list, err := j.ListExpenses(ctx, database.ExpenseFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Len(t, list[0].Shares, 2)

	require.NoError(t, j.DeleteExpense(ctx, e.ID))
	assert.Equal(t, 0, dbtest.Count(t, db, "expense_owners"))
	assert.ErrorIs(t, j.DeleteExpense(ctx, e.ID), apperr.ErrNotFound)
}

func TestVoidSaleRestocksOnce(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "Mate", "4000", 5, 0)

	sale, err := j.RecordSale(ctx, SaleInput{Items: []inventory.Item{{ProductID: p.ID, Quantity: 3}}, PaymentMethod: model.PaymentCash})
	require.NoError(t, err)
	require.Equal(t, int64(2), dbtest.Stock(t, db, p.ID))

	v, err := j.VoidSale(ctx, sale.ID, "cliente devolvió")
	require.NoError(t, err)
	assert.Equal(t, sale.ID, v.SaleID)
	assert.Equal(t, int64(5), dbtest.Stock(t, db, p.ID))

	_, err = j.VoidSale(ctx, sale.ID, "otra vez")
	assert.ErrorIs(t, err, apperr.ErrConstraintViolation)
	assert.Equal(t, int64(5), dbtest.Stock(t, db, p.ID))

	got, err := j.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.True(t, got.Voided)

	visible, err := j.ListSales(ctx, database.SaleFilter{})
	require.NoError(t, err)
	assert.Empty(t, visible)
	all, err := j.ListSales(ctx, database.SaleFilter{IncludeVoided: true})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestVoidSaleRejectsPaid(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "Mate", "4000", 5, 0)

	sale, err := j.RecordSale(ctx, SaleInput{Items: []inventory.Item{{ProductID: p.ID, Quantity: 1}}, PaymentMethod: model.PaymentCash})
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE sales SET is_paid = 1, paid_at = '2024-03-15 12:00:00' WHERE id = ?`, sale.ID)
	require.NoError(t, err)

	_, err = j.VoidSale(ctx, sale.ID, "")
	assert.ErrorIs(t, err, apperr.ErrAlreadyPaid)
	assert.Equal(t, int64(4), dbtest.Stock(t, db, p.ID))

	_, err = j.VoidSale(ctx, 12345, "")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	j, db, _ := newJournal(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, db, "Último", "100", 10, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := j.RecordSale(ctx, SaleInput{Items: []inventory.Item{{ProductID: p.ID, Quantity: 2}}, PaymentMethod: model.PaymentCash})
			if err == nil {
				mu.Lock()
				success++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInsufficientStock)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, success)
	assert.Equal(t, int64(0), dbtest.Stock(t, db, p.ID))
	assert.Equal(t, 5, dbtest.Count(t, db, "sales"))
}
