// Package payment は販売の支払状態を管理します。未払い → 支払済 の一方向だけです。
package payment

import (
	"context"
	"sort"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/database"
	"almacen/model"
	"almacen/notification"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const periodLayout = "2006-01"

var hundred = decimal.NewFromInt(100)

// Settlement は支払時に確定する項目です。PaymentMethod が nil なら販売時の支払方法のままです。
type Settlement struct {
	PaymentMethod *model.PaymentMethod `json:"paymentMethod,omitempty" validate:"omitempty,payment_method"`
	Surcharge     decimal.Decimal      `json:"surcharge" validate:"gte=0,lte=100"`
}

func (s Settlement) validate() error {
	if s.PaymentMethod != nil && !s.PaymentMethod.Valid() {
		return apperr.Invalid("unknown payment method %q", *s.PaymentMethod).WithDetail("paymentMethod", *s.PaymentMethod)
	}
	if s.Surcharge.IsNegative() || s.Surcharge.GreaterThan(hundred) {
		return apperr.Invalid("surcharge must be between 0 and 100").WithDetail("surcharge", s.Surcharge)
	}
	return nil
}

// PaidAmount は 合計 × (1 + 手数料/100) を 1 セント単位に丸めた金額です。
func PaidAmount(total, surcharge decimal.Decimal) decimal.Decimal {
	return total.Mul(hundred.Add(surcharge)).Div(hundred).RoundBank(2)
}

// BillResult は PayBill でまとめて精算した結果です。
type BillResult struct {
	PaymentID  int64           `json:"paymentId"`
	CustomerID int64           `json:"customerId"`
	Period     string          `json:"period"`
	SaleIDs    []int64         `json:"saleIds"`
	Collected  decimal.Decimal `json:"collected"`
}

type Tracker struct {
	db      *sqlx.DB
	emitter *notification.Emitter
	now     func() time.Time
	log     *logrus.Logger
}

func NewTracker(db *sqlx.DB, emitter *notification.Emitter, now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{db: db, emitter: emitter, now: now, log: config.GetLogger()}
}

// MarkPaid は販売を支払済みにします。2回目の呼び出しは AlreadyPaid になります。
func (t *Tracker) MarkPaid(ctx context.Context, saleID int64, st Settlement) (*model.Sale, error) {
	if err := st.validate(); err != nil {
		return nil, err
	}
	paidAt := database.FormatTime(t.now())

	var sale *model.Sale
	err := database.WithTx(ctx, t.db, func(tx *sqlx.Tx) error {
		s, err := database.GetSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if err := settle(ctx, tx, s, st, paidAt); err != nil {
			return err
		}
		sale = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.log.WithFields(logrus.Fields{"saleId": saleID, "paidAmount": sale.PaidAmount.Decimal.String()}).Info("sale marked as paid")
	return sale, nil
}

func settle(ctx context.Context, tx *sqlx.Tx, s *model.Sale, st Settlement, paidAt string) error {
	if s.Voided {
		return apperr.Conflict("sale %d is voided and cannot be settled", s.ID).WithDetail("saleId", s.ID)
	}
	if s.IsPaid {
		return alreadyPaid(s.ID)
	}

	s.IsPaid = true
	s.PaidAt = &paidAt
	s.Surcharge = st.Surcharge.RoundBank(2)
	s.PaidAmount = decimal.NullDecimal{Decimal: PaidAmount(s.Total, s.Surcharge), Valid: true}
	if st.PaymentMethod != nil {
		s.PaymentMethod = *st.PaymentMethod
	}

	ok, err := database.SettleSaleInTx(ctx, tx, s)
	if err != nil {
		return err
	}
	if !ok {
		return alreadyPaid(s.ID)
	}
	return nil
}

func alreadyPaid(saleID int64) error {
	return apperr.New(apperr.KindAlreadyPaid, "sale %d is already paid", saleID).WithDetail("saleId", saleID)
}

// monthBounds は "YYYY-MM" のローカル月を保存形式 (UTC) の範囲にします。
func monthBounds(period string, loc *time.Location) (database.PeriodFilter, error) {
	start, err := time.ParseInLocation(periodLayout, period, loc)
	if err != nil {
		return database.PeriodFilter{}, apperr.Invalid("period must be YYYY-MM").WithDetail("period", period)
	}
	return database.PeriodFilter{
		From: database.FormatTime(start),
		To:   database.FormatTime(start.AddDate(0, 1, 0)),
	}, nil
}

// PayBill は得意先の指定月の未払い販売をすべて1つのトランザクションで精算します。
func (t *Tracker) PayBill(ctx context.Context, customerID int64, period string, st Settlement) (*BillResult, error) {
	if err := st.validate(); err != nil {
		return nil, err
	}
	bounds, err := monthBounds(period, config.GetConfig().Location())
	if err != nil {
		return nil, err
	}
	paidAt := database.FormatTime(t.now())

	result := &BillResult{CustomerID: customerID, Period: period}
	err = database.WithTx(ctx, t.db, func(tx *sqlx.Tx) error {
		if _, err := database.GetCustomer(ctx, tx, customerID); err != nil {
			return err
		}
		pending, err := database.ListSales(ctx, tx, database.SaleFilter{
			PeriodFilter: bounds,
			CustomerID:   customerID,
			UnpaidOnly:   true,
		})
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return apperr.New(apperr.KindNotFound, "no unpaid sales for customer %d in %s", customerID, period).
				WithDetail("customerId", customerID).
				WithDetail("period", period)
		}

		result.SaleIDs = make([]int64, 0, len(pending))
		result.Collected = decimal.Zero
		for i := range pending {
			s := &pending[i]
			if err := settle(ctx, tx, s, st, paidAt); err != nil {
				return err
			}
			result.SaleIDs = append(result.SaleIDs, s.ID)
			result.Collected = result.Collected.Add(s.PaidAmount.Decimal)
		}

		payment := &model.Payment{
			CustomerID: &customerID,
			CreatedAt:  paidAt,
			Period:     period,
			Method:     st.PaymentMethod,
			Surcharge:  st.Surcharge.RoundBank(2),
			Amount:     result.Collected,
			SaleCount:  len(result.SaleIDs),
		}
		if err := database.InsertPayment(ctx, tx, payment); err != nil {
			return err
		}
		result.PaymentID = payment.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(result.SaleIDs, func(i, j int) bool { return result.SaleIDs[i] < result.SaleIDs[j] })

	t.log.WithFields(logrus.Fields{
		"paymentId":  result.PaymentID,
		"customerId": customerID,
		"period":     period,
		"sales":      len(result.SaleIDs),
		"collected":  result.Collected.String(),
	}).Info("bill paid")
	return result, nil
}

// ListPayments は精算記録を新しい順に返します。customerID が 0 なら全得意先です。
func (t *Tracker) ListPayments(ctx context.Context, customerID int64, period string) ([]model.Payment, error) {
	f := database.PaymentFilter{CustomerID: customerID}
	if period != "" {
		if _, err := time.Parse(periodLayout, period); err != nil {
			return nil, apperr.Invalid("period must be YYYY-MM").WithDetail("period", period)
		}
		f.Period = period
	}
	return database.ListPayments(ctx, t.db, f)
}

// MonthlyUnpaid は得意先の未払い額をローカル月ごとにまとめます (古い月から)。
func (t *Tracker) MonthlyUnpaid(ctx context.Context, customerID int64) ([]model.MonthlyDebt, error) {
	if _, err := database.GetCustomer(ctx, t.db, customerID); err != nil {
		return nil, err
	}
	sales, err := database.ListSales(ctx, t.db, database.SaleFilter{CustomerID: customerID, UnpaidOnly: true})
	if err != nil {
		return nil, err
	}

	loc := config.GetConfig().Location()
	byPeriod := make(map[string]*model.MonthlyDebt)
	for _, s := range sales {
		created, err := time.ParseInLocation(model.TimeLayout, s.CreatedAt, time.UTC)
		if err != nil {
			t.log.WithFields(logrus.Fields{"saleId": s.ID, "createdAt": s.CreatedAt}).Warn("unparseable sale timestamp")
			continue
		}
		period := created.In(loc).Format(periodLayout)
		d, ok := byPeriod[period]
		if !ok {
			d = &model.MonthlyDebt{CustomerID: customerID, Period: period, Debt: decimal.Zero}
			byPeriod[period] = d
		}
		d.Sales = append(d.Sales, model.SaleSummary{SaleID: s.ID, CreatedAt: s.CreatedAt, Total: s.Total})
		d.Debt = d.Debt.Add(s.Total)
	}

	debts := make([]model.MonthlyDebt, 0, len(byPeriod))
	for _, d := range byPeriod {
		sort.Slice(d.Sales, func(i, j int) bool { return d.Sales[i].SaleID < d.Sales[j].SaleID })
		d.Debt = d.Debt.RoundBank(2)
		debts = append(debts, *d)
	}
	sort.Slice(debts, func(i, j int) bool { return debts[i].Period < debts[j].Period })
	return debts, nil
}

// CheckAging は UnpaidAgingDays より古い未払いの合計が UnpaidAlertAmount 以上の得意先に通知を出します。
// 同じ得意先の未読通知が残っている場合は出しません。出した件数を返します。
func (t *Tracker) CheckAging(ctx context.Context) (int, error) {
	cfg := config.GetConfig()
	cutoff := database.FormatTime(t.now().AddDate(0, 0, -cfg.UnpaidAgingDays))

	debts, err := database.ListUnpaidDebtsBefore(ctx, t.db, cutoff)
	if err != nil {
		return 0, err
	}

	var events []notification.Event
	for _, d := range debts {
		if d.Total.LessThan(cfg.UnpaidAlertAmount) {
			continue
		}
		events = append(events, notification.UnpaidAgingEvent{
			CustomerID:   d.CustomerID,
			CustomerName: d.CustomerName,
			Debt:         d.Total.RoundBank(2),
			SaleCount:    d.SaleCount,
			Oldest:       d.Oldest,
		})
	}
	if len(events) == 0 || t.emitter == nil {
		return 0, nil
	}
	return t.emitter.Emit(ctx, events...), nil
}
