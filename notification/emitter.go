package notification

import (
	"context"
	"fmt"
	"time"

	"almacen/config"
	"almacen/database"
	"almacen/locale"
	"almacen/model"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/message"
)

// Event は通知1件の元になる状態変化です。
type Event interface {
	build(p *message.Printer) model.Notification
}

// LowStockEvent は在庫が閾値を上から下回ったことを表します。
type LowStockEvent struct {
	ProductID   int64
	ProductName string
	Stock       int64
	Threshold   int64
}

func (e LowStockEvent) build(p *message.Printer) model.Notification {
	return model.Notification{
		Title:   p.Sprintf("在庫僅少: %s", e.ProductName),
		Message: p.Sprintf("%s の在庫が %d になりました (閾値 %d)。", e.ProductName, e.Stock, e.Threshold),
		Link:    ProductLink(e.ProductID),
	}
}

// UnpaidAgingEvent は得意先の未払いが期限と金額を超えたことを表します。
type UnpaidAgingEvent struct {
	CustomerID   int64
	CustomerName string
	Debt         decimal.Decimal
	SaleCount    int
	Oldest       string
}

func (e UnpaidAgingEvent) build(p *message.Printer) model.Notification {
	debt, _ := e.Debt.RoundBank(2).Float64()
	return model.Notification{
		Title:   p.Sprintf("未払い超過: %s", e.CustomerName),
		Message: p.Sprintf("%s の未払いが %d 件、合計 $%.2f あります (最古 %s)。", e.CustomerName, e.SaleCount, debt, e.Oldest),
		Link:    CustomerBillLink(e.CustomerID),
	}
}

func ProductLink(id int64) string {
	return fmt.Sprintf("/products/%d", id)
}

func CustomerBillLink(id int64) string {
	return fmt.Sprintf("/customers/%d/bills", id)
}

// Emitter は通知を保存します。
type Emitter struct {
	db  *sqlx.DB
	now func() time.Time
	log *logrus.Logger
}

func NewEmitter(db *sqlx.DB, now func() time.Time) *Emitter {
	if now == nil {
		now = time.Now
	}
	return &Emitter{db: db, now: now, log: config.GetLogger()}
}

func (e *Emitter) insert(ctx context.Context, ev Event) (*model.Notification, error) {
	n := ev.build(locale.Printer())
	n.CreatedAt = database.FormatTime(e.now())
	err := database.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		return database.InsertNotification(ctx, tx, &n)
	})
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (e *Emitter) LowStock(ctx context.Context, ev LowStockEvent) (*model.Notification, error) {
	return e.insert(ctx, ev)
}

// UnpaidAging は同じ得意先の未読通知が残っている場合は何もせず nil を返します。
func (e *Emitter) UnpaidAging(ctx context.Context, ev UnpaidAgingEvent) (*model.Notification, error) {
	exists, err := database.HasUnreadNotificationForLink(ctx, e.db, CustomerBillLink(ev.CustomerID))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, nil
	}
	return e.insert(ctx, ev)
}

// Emit は通知を保存します。失敗はログに残すだけで、呼び出し元の処理結果には影響しません。
func (e *Emitter) Emit(ctx context.Context, events ...Event) int {
	emitted := 0
	for _, ev := range events {
		var (
			n   *model.Notification
			err error
		)
		switch v := ev.(type) {
		case UnpaidAgingEvent:
			n, err = e.UnpaidAging(ctx, v)
		case LowStockEvent:
			n, err = e.LowStock(ctx, v)
		default:
			n, err = e.insert(ctx, ev)
		}
		if err != nil {
			config.LogError(e.log, "notification", "Emit", "emit notification", fmt.Sprintf("%T", ev), err)
			continue
		}
		if n != nil {
			emitted++
		}
	}
	return emitted
}

// MarkRead は通知を既読にします。既読済みなら最初の read_at を保ったまま返します。
func (e *Emitter) MarkRead(ctx context.Context, id int64) (*model.Notification, error) {
	var n *model.Notification
	err := database.WithTx(ctx, e.db, func(tx *sqlx.Tx) error {
		if _, err := database.MarkNotificationRead(ctx, tx, id, database.FormatTime(e.now())); err != nil {
			return err
		}
		var err error
		n, err = database.GetNotification(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func (e *Emitter) List(ctx context.Context, unreadOnly bool) ([]model.Notification, error) {
	return database.ListNotifications(ctx, e.db, unreadOnly)
}

func (e *Emitter) UnreadCount(ctx context.Context) (int, error) {
	return database.CountUnreadNotifications(ctx, e.db)
}
