package payment

import (
	"context"
	"testing"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/database"
	"almacen/dbtest"
	"almacen/inventory"
	"almacen/journal"
	"almacen/model"
	"almacen/notification"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	db      *sqlx.DB
	clock   *dbtest.Clock
	journal *journal.Journal
	tracker *Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	clock := dbtest.NewClock()
	emitter := notification.NewEmitter(db, clock.Now)
	return &fixture{
		db:      db,
		clock:   clock,
		journal: journal.New(db, emitter, clock.Now),
		tracker: NewTracker(db, emitter, clock.Now),
	}
}

func (f *fixture) sale(t *testing.T, customerID *int64, productID, qty int64) *model.Sale {
	t.Helper()
	s, err := f.journal.RecordSale(context.Background(), journal.SaleInput{
		CustomerID:    customerID,
		Items:         []inventory.Item{{ProductID: productID, Quantity: qty}},
		PaymentMethod: model.PaymentCash,
	})
	require.NoError(t, err)
	return s
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestMarkPaidOnlyOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, f.db, "Yerba", "100", 10, 0)
	s := f.sale(t, nil, p.ID, 2)

	f.clock.Advance(time.Hour)
	card := model.PaymentCard
	paid, err := f.tracker.MarkPaid(ctx, s.ID, Settlement{PaymentMethod: &card, Surcharge: dec("10")})
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	assert.Equal(t, model.PaymentCard, paid.PaymentMethod)
	require.True(t, paid.PaidAmount.Valid)
	assert.True(t, paid.PaidAmount.Decimal.Equal(dec("220")))
	require.NotNil(t, paid.PaidAt)
	assert.Equal(t, "2024-03-15 13:00:00", *paid.PaidAt)

	f.clock.Advance(time.Hour)
	_, err = f.tracker.MarkPaid(ctx, s.ID, Settlement{})
	require.ErrorIs(t, err, apperr.ErrAlreadyPaid)

	stored, err := database.GetSale(ctx, f.db, s.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PaidAt)
	assert.Equal(t, "2024-03-15 13:00:00", *stored.PaidAt)
	assert.True(t, stored.Surcharge.Equal(dec("10")))
}

func TestMarkPaidErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, f.db, "Mate", "50", 10, 0)
	s := f.sale(t, nil, p.ID, 1)

	_, err := f.tracker.MarkPaid(ctx, 999, Settlement{})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.tracker.MarkPaid(ctx, s.ID, Settlement{Surcharge: dec("-1")})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	bogus := model.PaymentMethod("cheque")
	_, err = f.tracker.MarkPaid(ctx, s.ID, Settlement{PaymentMethod: &bogus})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = f.journal.VoidSale(ctx, s.ID, "error de carga")
	require.NoError(t, err)
	_, err = f.tracker.MarkPaid(ctx, s.ID, Settlement{})
	require.ErrorIs(t, err, apperr.ErrConstraintViolation)
}

func TestPaidAmountRounding(t *testing.T) {
	tests := []struct {
		total, surcharge, want string
	}{
		{"100", "0", "100"},
		{"100", "10", "110"},
		{"33.33", "3.5", "34.50"},
		{"0.05", "50", "0.08"},
	}
	for _, tt := range tests {
		got := PaidAmount(dec(tt.total), dec(tt.surcharge))
		assert.True(t, got.Equal(dec(tt.want)), "%s + %s%%: got %s", tt.total, tt.surcharge, got)
	}
}

func TestPayBillSettlesOnlyThatMonth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, f.db, "Azucar", "10", 100, 0)
	ana := dbtest.MustCustomer(t, f.db, "Ana")
	beto := dbtest.MustCustomer(t, f.db, "Beto")

	march1 := f.sale(t, &ana.ID, p.ID, 1)
	march2 := f.sale(t, &ana.ID, p.ID, 2)
	other := f.sale(t, &beto.ID, p.ID, 3)
	f.clock.Advance(20 * 24 * time.Hour)
	april := f.sale(t, &ana.ID, p.ID, 4)

	res, err := f.tracker.PayBill(ctx, ana.ID, "2024-03", Settlement{})
	require.NoError(t, err)
	assert.Equal(t, []int64{march1.ID, march2.ID}, res.SaleIDs)
	assert.True(t, res.Collected.Equal(dec("30")))

	for id, wantPaid := range map[int64]bool{march1.ID: true, march2.ID: true, other.ID: false, april.ID: false} {
		s, err := database.GetSale(ctx, f.db, id)
		require.NoError(t, err)
		assert.Equal(t, wantPaid, s.IsPaid, "sale %d", id)
	}

	_, err = f.tracker.PayBill(ctx, ana.ID, "2024-03", Settlement{})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = f.tracker.PayBill(ctx, ana.ID, "03/2024", Settlement{})
	require.ErrorIs(t, err, apperr.ErrInvalid)

	_, err = f.tracker.PayBill(ctx, 999, "2024-03", Settlement{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPayBillRecordsOnePayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, f.db, "Aceite", "10", 100, 0)
	ana := dbtest.MustCustomer(t, f.db, "Ana")
	beto := dbtest.MustCustomer(t, f.db, "Beto")
	f.sale(t, &ana.ID, p.ID, 1)
	f.sale(t, &ana.ID, p.ID, 2)
	f.sale(t, &beto.ID, p.ID, 1)

	card := model.PaymentCard
	res, err := f.tracker.PayBill(ctx, ana.ID, "2024-03", Settlement{PaymentMethod: &card, Surcharge: dec("10")})
	require.NoError(t, err)
	assert.True(t, res.Collected.Equal(dec("33")))
	assert.NotZero(t, res.PaymentID)

	payments, err := f.tracker.ListPayments(ctx, ana.ID, "")
	require.NoError(t, err)
	require.Len(t, payments, 1)
	pay := payments[0]
	assert.Equal(t, res.PaymentID, pay.ID)
	assert.Equal(t, ana.ID, *pay.CustomerID)
	assert.Equal(t, "Ana", *pay.CustomerName)
	assert.Equal(t, "2024-03", pay.Period)
	assert.Equal(t, "2024-03-15 12:00:00", pay.CreatedAt)
	require.NotNil(t, pay.Method)
	assert.Equal(t, model.PaymentCard, *pay.Method)
	assert.True(t, pay.Surcharge.Equal(dec("10")))
	assert.True(t, pay.Amount.Equal(dec("33")))
	assert.Equal(t, 2, pay.SaleCount)

	_, err = f.tracker.PayBill(ctx, ana.ID, "2024-03", Settlement{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.tracker.PayBill(ctx, beto.ID, "2024-03", Settlement{Surcharge: dec("-1")})
	require.ErrorIs(t, err, apperr.ErrInvalid)
	_, err = f.tracker.PayBill(ctx, beto.ID, "2024-02", Settlement{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 1, dbtest.Count(t, f.db, "payments"))

	res, err = f.tracker.PayBill(ctx, beto.ID, "2024-03", Settlement{})
	require.NoError(t, err)
	all, err := f.tracker.ListPayments(ctx, 0, "2024-03")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, res.PaymentID, all[0].ID)
	assert.Nil(t, all[0].Method)

	none, err := f.tracker.ListPayments(ctx, 0, "2024-04")
	require.NoError(t, err)
	assert.Empty(t, none)
	_, err = f.tracker.ListPayments(ctx, 0, "abril")
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestMonthlyUnpaidGroupsByLocalMonth(t *testing.T) {
	dbtest.UseConfig(t, func(c *config.Config) { c.Timezone = "America/Argentina/Buenos_Aires" })
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, f.db, "Harina", "5", 100, 0)
	ana := dbtest.MustCustomer(t, f.db, "Ana")

	// 2024-04-01 01:00 UTC はブエノスアイレスでは 3 月 31 日です。
	f.clock.T = time.Date(2024, 4, 1, 1, 0, 0, 0, time.UTC)
	late := f.sale(t, &ana.ID, p.ID, 2)
	f.clock.T = time.Date(2024, 4, 2, 15, 0, 0, 0, time.UTC)
	april := f.sale(t, &ana.ID, p.ID, 3)
	paid := f.sale(t, &ana.ID, p.ID, 1)
	_, err := f.tracker.MarkPaid(ctx, paid.ID, Settlement{})
	require.NoError(t, err)

	debts, err := f.tracker.MonthlyUnpaid(ctx, ana.ID)
	require.NoError(t, err)
	require.Len(t, debts, 2)
	assert.Equal(t, "2024-03", debts[0].Period)
	assert.True(t, debts[0].Debt.Equal(dec("10")))
	require.Len(t, debts[0].Sales, 1)
	assert.Equal(t, late.ID, debts[0].Sales[0].SaleID)
	assert.Equal(t, "2024-04", debts[1].Period)
	assert.True(t, debts[1].Debt.Equal(dec("15")))
	assert.Equal(t, april.ID, debts[1].Sales[0].SaleID)

	_, err = f.tracker.MonthlyUnpaid(ctx, 999)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCheckAgingEmitsOncePerCustomer(t *testing.T) {
	dbtest.UseConfig(t, func(c *config.Config) {
		c.UnpaidAgingDays = 30
		c.UnpaidAlertAmount = dec("100")
	})
	f := newFixture(t)
	ctx := context.Background()
	p := dbtest.MustProduct(t, f.db, "Aceite", "60", 100, 0)
	ana := dbtest.MustCustomer(t, f.db, "Ana")
	beto := dbtest.MustCustomer(t, f.db, "Beto")

	f.sale(t, &ana.ID, p.ID, 2)
	f.sale(t, &beto.ID, p.ID, 1)
	f.sale(t, nil, p.ID, 5)

	n, err := f.tracker.CheckAging(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(31 * 24 * time.Hour)
	n, err = f.tracker.CheckAging(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	notes, err := database.ListNotifications(ctx, f.db, true)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, notification.CustomerBillLink(ana.ID), notes[0].Link)

	n, err = f.tracker.CheckAging(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(time.Minute)
	_, err = f.tracker.emitter.MarkRead(ctx, notes[0].ID)
	require.NoError(t, err)
	n, err = f.tracker.CheckAging(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
