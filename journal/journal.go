// Package journal は仕入・販売・経費を記録します。各記録は1つのトランザクションで
// 在庫と持分の更新を伴って確定するか、何も残しません。
package journal

import (
	"context"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/database"
	"almacen/inventory"
	"almacen/model"
	"almacen/notification"
	"almacen/ownership"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type Journal struct {
	db      *sqlx.DB
	emitter *notification.Emitter
	now     func() time.Time
	log     *logrus.Logger
}

func New(db *sqlx.DB, emitter *notification.Emitter, now func() time.Time) *Journal {
	if now == nil {
		now = time.Now
	}
	return &Journal{db: db, emitter: emitter, now: now, log: config.GetLogger()}
}

type PurchaseInput struct {
	ProductID     int64               `json:"productId" validate:"required,gt=0"`
	SupplierID    *int64              `json:"supplierId" validate:"omitempty,gt=0"`
	Quantity      int64               `json:"quantity" validate:"required,gt=0"`
	UnitCost      decimal.Decimal     `json:"unitCost" validate:"gte=0"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod" validate:"required,payment_method"`
}

type SaleInput struct {
	CustomerID    *int64              `json:"customerId" validate:"omitempty,gt=0"`
	Items         []inventory.Item    `json:"items" validate:"required,min=1,dive"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod" validate:"required,payment_method"`
	// Total は呼び出し側が計算した合計です。指定された場合は現在の単価から再計算した値と一致する必要があります。
	Total *decimal.Decimal `json:"total,omitempty"`
}

type ExpenseInput struct {
	Category      string              `json:"category" validate:"required"`
	Amount        decimal.Decimal     `json:"amount" validate:"gt=0"`
	Description   *string             `json:"description"`
	PaymentMethod model.PaymentMethod `json:"paymentMethod" validate:"required,payment_method"`
	Shares        []model.Share       `json:"shares"`
}

func checkPaymentMethod(m model.PaymentMethod) error {
	if !m.Valid() {
		return apperr.Invalid("unknown payment method %q", m).WithDetail("paymentMethod", m)
	}
	return nil
}

// RecordPurchase は仕入を記録し在庫を増やします。
func (j *Journal) RecordPurchase(ctx context.Context, in PurchaseInput) (*model.Purchase, error) {
	if in.Quantity <= 0 {
		return nil, apperr.Invalid("quantity must be positive").WithDetail("quantity", in.Quantity)
	}
	if in.UnitCost.IsNegative() {
		return nil, apperr.Invalid("unit cost must not be negative").WithDetail("unitCost", in.UnitCost)
	}
	if err := checkPaymentMethod(in.PaymentMethod); err != nil {
		return nil, err
	}

	p := &model.Purchase{
		ProductID:     in.ProductID,
		SupplierID:    in.SupplierID,
		CreatedAt:     database.FormatTime(j.now()),
		Quantity:      in.Quantity,
		Total:         in.UnitCost.Mul(decimal.NewFromInt(in.Quantity)).RoundBank(2),
		PaymentMethod: in.PaymentMethod,
	}

	err := database.WithTx(ctx, j.db, func(tx *sqlx.Tx) error {
		if in.SupplierID != nil {
			if _, err := database.GetSupplier(ctx, tx, *in.SupplierID); err != nil {
				return err
			}
		}
		if _, err := inventory.ApplyPurchase(ctx, tx, in.ProductID, in.Quantity); err != nil {
			return err
		}
		return database.InsertPurchase(ctx, tx, p)
	})
	if err != nil {
		return nil, err
	}

	j.log.WithFields(logrus.Fields{"purchaseId": p.ID, "productId": p.ProductID, "quantity": p.Quantity}).Info("purchase recorded")
	return p, nil
}

// RecordSale は販売を記録します。単価は記録時点の商品価格で確定し、在庫が閾値を
// 下回った商品についてはコミット後に通知を出します。
func (j *Journal) RecordSale(ctx context.Context, in SaleInput) (*model.Sale, error) {
	if len(in.Items) == 0 {
		return nil, apperr.Invalid("a sale needs at least one item")
	}
	seen := make(map[int64]bool, len(in.Items))
	ids := make([]int64, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity <= 0 {
			return nil, apperr.Invalid("quantity must be positive").
				WithDetail("productId", it.ProductID).
				WithDetail("quantity", it.Quantity)
		}
		if seen[it.ProductID] {
			return nil, apperr.Invalid("product %d appears more than once", it.ProductID).WithDetail("productId", it.ProductID)
		}
		seen[it.ProductID] = true
		ids = append(ids, it.ProductID)
	}
	if err := checkPaymentMethod(in.PaymentMethod); err != nil {
		return nil, err
	}

	sale := &model.Sale{
		CustomerID:    in.CustomerID,
		CreatedAt:     database.FormatTime(j.now()),
		PaymentMethod: in.PaymentMethod,
		Surcharge:     decimal.Zero,
	}
	var crossings []inventory.Crossing

	err := database.WithTx(ctx, j.db, func(tx *sqlx.Tx) error {
		if in.CustomerID != nil {
			if _, err := database.GetCustomer(ctx, tx, *in.CustomerID); err != nil {
				return err
			}
		}

		products, err := database.GetProductsByIDsMap(ctx, tx, ids)
		if err != nil {
			return err
		}
		total := decimal.Zero
		items := make([]model.SaleItem, 0, len(in.Items))
		for _, it := range in.Items {
			p, ok := products[it.ProductID]
			if !ok {
				return apperr.NotFound("product", it.ProductID)
			}
			item := model.SaleItem{ProductID: p.ID, ProductName: p.Name, Price: p.Price.RoundBank(2), Quantity: it.Quantity}
			total = total.Add(item.Subtotal())
			items = append(items, item)
		}
		total = total.RoundBank(2)
		if in.Total != nil && !in.Total.RoundBank(2).Equal(total) {
			return apperr.New(apperr.KindInvalidSaleTotal, "sale total %s does not match computed %s", in.Total.String(), total.String()).
				WithDetail("expected", total).
				WithDetail("given", *in.Total)
		}

		res, err := inventory.ApplySale(ctx, tx, in.Items)
		if err != nil {
			return err
		}
		crossings = res.Crossings

		sale.Total = total
		if err := database.InsertSale(ctx, tx, sale); err != nil {
			return err
		}
		for i := range items {
			items[i].SaleID = sale.ID
		}
		sale.Items = items
		return database.InsertSaleItemsInTx(ctx, tx, sale.ID, items)
	})
	if err != nil {
		return nil, err
	}

	j.log.WithFields(logrus.Fields{"saleId": sale.ID, "total": sale.Total.String(), "items": len(sale.Items)}).Info("sale recorded")
	j.emitLowStock(ctx, crossings)
	return sale, nil
}

func (j *Journal) emitLowStock(ctx context.Context, crossings []inventory.Crossing) {
	if j.emitter == nil || len(crossings) == 0 {
		return
	}
	events := make([]notification.Event, len(crossings))
	for i, c := range crossings {
		events[i] = c.Event()
	}
	j.emitter.Emit(ctx, events...)
}

// RecordExpense は経費を記録します。持分が指定された場合は合計 100 である必要があります。
func (j *Journal) RecordExpense(ctx context.Context, in ExpenseInput) (*model.Expense, error) {
	if in.Category == "" {
		return nil, apperr.Invalid("category is required")
	}
	if !in.Amount.IsPositive() {
		return nil, apperr.Invalid("amount must be positive").WithDetail("amount", in.Amount)
	}
	if err := checkPaymentMethod(in.PaymentMethod); err != nil {
		return nil, err
	}
	if len(in.Shares) > 0 {
		if err := ownership.ValidateShares(in.Shares, true); err != nil {
			return nil, err
		}
	}

	e := &model.Expense{
		CreatedAt:     database.FormatTime(j.now()),
		Category:      in.Category,
		Amount:        in.Amount.RoundBank(2),
		Description:   in.Description,
		PaymentMethod: in.PaymentMethod,
	}
	err := database.WithTx(ctx, j.db, func(tx *sqlx.Tx) error {
		if err := database.InsertExpense(ctx, tx, e); err != nil {
			return err
		}
		if len(in.Shares) == 0 {
			return nil
		}
		ref := model.EntityRef{Kind: model.EntityExpense, ID: e.ID}
		if err := ownership.AssignSharesTx(ctx, tx, ref, in.Shares, true); err != nil {
			return err
		}
		var err error
		e.Shares, err = database.GetShares(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// VoidSale は未払いの販売を取り消し、明細の数量を在庫に戻します。元の販売行は残ります。
func (j *Journal) VoidSale(ctx context.Context, saleID int64, reason string) (*model.SaleVoid, error) {
	v := &model.SaleVoid{SaleID: saleID, CreatedAt: database.FormatTime(j.now()), Reason: reason}
	err := database.WithTx(ctx, j.db, func(tx *sqlx.Tx) error {
		sale, err := database.GetSale(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if sale.IsPaid {
			return apperr.New(apperr.KindAlreadyPaid, "sale %d is paid and cannot be voided", saleID).WithDetail("saleId", saleID)
		}
		if sale.Voided {
			return apperr.Conflict("sale %d is already voided", saleID).WithDetail("saleId", saleID)
		}

		items, err := database.GetSaleItems(ctx, tx, saleID)
		if err != nil {
			return err
		}
		if err := database.InsertSaleVoidInTx(ctx, tx, v); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		restock := make([]inventory.Item, len(items))
		for i, it := range items {
			restock[i] = inventory.Item{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		return inventory.Restock(ctx, tx, restock)
	})
	if err != nil {
		return nil, err
	}
	j.log.WithFields(logrus.Fields{"saleId": saleID, "reason": reason}).Info("sale voided")
	return v, nil
}

func (j *Journal) DeleteExpense(ctx context.Context, id int64) error {
	return database.WithTx(ctx, j.db, func(tx *sqlx.Tx) error {
		return database.DeleteExpense(ctx, tx, id)
	})
}

// GetSale は明細と取消状態を含む販売を返します。
func (j *Journal) GetSale(ctx context.Context, id int64) (*model.Sale, error) {
	sale, err := database.GetSale(ctx, j.db, id)
	if err != nil {
		return nil, err
	}
	sale.Items, err = database.GetSaleItems(ctx, j.db, id)
	if err != nil {
		return nil, err
	}
	return sale, nil
}

func (j *Journal) ListSales(ctx context.Context, f database.SaleFilter) ([]model.Sale, error) {
	return database.ListSales(ctx, j.db, f)
}

func (j *Journal) ListPurchases(ctx context.Context, f database.PurchaseFilter) ([]model.Purchase, error) {
	return database.ListPurchases(ctx, j.db, f)
}

// ListExpenses は経費を持分付きで返します。
func (j *Journal) ListExpenses(ctx context.Context, f database.ExpenseFilter) ([]model.Expense, error) {
	expenses, err := database.ListExpenses(ctx, j.db, f)
	if err != nil {
		return nil, err
	}
	shares, err := database.GetAllShares(ctx, j.db, model.EntityExpense)
	if err != nil {
		return nil, err
	}
	for i := range expenses {
		expenses[i].Shares = shares[expenses[i].ID]
	}
	return expenses, nil
}
