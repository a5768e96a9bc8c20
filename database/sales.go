package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"almacen/apperr"
	"almacen/model"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

const saleColumns = `
    s.id, s.customer_id, s.created_at, s.total, s.payment_method, s.is_paid, s.paid_at,
    s.surcharge, s.paid_amount,
    EXISTS (SELECT 1 FROM sale_voids v WHERE v.sale_id = s.id) AS voided`

// notVoided は取消済みの販売を除外する条件です。
const notVoided = `NOT EXISTS (SELECT 1 FROM sale_voids v WHERE v.sale_id = s.id)`

type SaleFilter struct {
	PeriodFilter
	CustomerID    int64
	UnpaidOnly    bool
	IncludeVoided bool
}

const insertSaleQuery = `
INSERT INTO sales (customer_id, created_at, total, surcharge, payment_method, is_paid)
VALUES (:customer_id, :created_at, :total, :surcharge, :payment_method, 0)`

func InsertSale(ctx context.Context, dbtx DBTX, s *model.Sale) error {
	res, err := dbtx.NamedExecContext(ctx, insertSaleQuery, s)
	if err != nil {
		return fmt.Errorf("failed to insert sale: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get sale id: %w", err)
	}
	s.ID = id
	return nil
}

func InsertSaleItemsInTx(ctx context.Context, tx *sqlx.Tx, saleID int64, items []model.SaleItem) error {
	stmt, err := tx.PreparexContext(ctx, `INSERT INTO sale_items (sale_id, product_id, price, quantity) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare sale item insert: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, saleID, it.ProductID, it.Price.RoundBank(2), it.Quantity); err != nil {
			return fmt.Errorf("failed to insert sale item (sale %d, product %d): %w", saleID, it.ProductID, err)
		}
	}
	return nil
}

func GetSale(ctx context.Context, dbtx DBTX, id int64) (*model.Sale, error) {
	var s model.Sale
	if err := dbtx.GetContext(ctx, &s, `SELECT `+saleColumns+` FROM sales s WHERE s.id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("sale", id)
		}
		return nil, fmt.Errorf("failed to get sale %d: %w", id, err)
	}
	return &s, nil
}

func GetSaleItems(ctx context.Context, dbtx DBTX, saleID int64) ([]model.SaleItem, error) {
	const q = `
		SELECT i.sale_id, i.product_id, p.name AS product_name, i.price, i.quantity
		FROM sale_items i JOIN products p ON p.id = i.product_id
		WHERE i.sale_id = ? ORDER BY p.name`
	items := []model.SaleItem{}
	if err := dbtx.SelectContext(ctx, &items, q, saleID); err != nil {
		return nil, fmt.Errorf("failed to get items for sale %d: %w", saleID, err)
	}
	return items, nil
}

func ListSales(ctx context.Context, dbtx DBTX, f SaleFilter) ([]model.Sale, error) {
	var conds []string
	var args []interface{}
	conds, args = f.apply("s.created_at", conds, args)
	if f.CustomerID != 0 {
		conds = append(conds, "s.customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.UnpaidOnly {
		conds = append(conds, "s.is_paid = 0")
	}
	if !f.IncludeVoided {
		conds = append(conds, notVoided)
	}

	q := `SELECT ` + saleColumns + ` FROM sales s`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY s.created_at DESC, s.id DESC"

	sales := []model.Sale{}
	if err := dbtx.SelectContext(ctx, &sales, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	return sales, nil
}

// SettleSaleInTx は未払いの販売を支払済みにします。既に支払済みなら false を返します。
func SettleSaleInTx(ctx context.Context, tx *sqlx.Tx, s *model.Sale) (bool, error) {
	const q = `
		UPDATE sales SET is_paid = 1, paid_at = ?, payment_method = ?, surcharge = ?, paid_amount = ?
		WHERE id = ? AND is_paid = 0`
	res, err := tx.ExecContext(ctx, q, s.PaidAt, s.PaymentMethod, s.Surcharge, s.PaidAmount, s.ID)
	if err != nil {
		return false, fmt.Errorf("failed to settle sale %d: %w", s.ID, err)
	}
	return checkAffected(res)
}

func InsertSaleVoidInTx(ctx context.Context, tx *sqlx.Tx, v *model.SaleVoid) error {
	_, err := tx.NamedExecContext(ctx, `INSERT INTO sale_voids (sale_id, created_at, reason) VALUES (:sale_id, :created_at, :reason)`, v)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("sale %d is already voided", v.SaleID).WithDetail("saleId", v.SaleID)
		}
		return fmt.Errorf("failed to insert void for sale %d: %w", v.SaleID, err)
	}
	return nil
}

func GetSaleVoid(ctx context.Context, dbtx DBTX, saleID int64) (*model.SaleVoid, error) {
	var v model.SaleVoid
	err := dbtx.GetContext(ctx, &v, `SELECT sale_id, created_at, reason FROM sale_voids WHERE sale_id = ?`, saleID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get void for sale %d: %w", saleID, err)
	}
	return &v, nil
}

// UnpaidDebt は得意先ごとの期限超過の未払い集計です。
type UnpaidDebt struct {
	CustomerID   int64           `db:"customer_id"`
	CustomerName string          `db:"customer_name"`
	SaleCount    int             `db:"sale_count"`
	Oldest       string          `db:"oldest"`
	Total        decimal.Decimal `db:"total"`
}

// ListUnpaidDebtsBefore は cutoff より前に作成された未払い・未取消の販売を得意先ごとに集計します。
func ListUnpaidDebtsBefore(ctx context.Context, dbtx DBTX, cutoff string) ([]UnpaidDebt, error) {
	const q = `
		SELECT s.customer_id, c.name AS customer_name, COUNT(*) AS sale_count,
		       MIN(s.created_at) AS oldest, COALESCE(SUM(s.total), 0) AS total
		FROM sales s JOIN customers c ON c.id = s.customer_id
		WHERE s.is_paid = 0 AND s.created_at < ? AND ` + notVoided + `
		GROUP BY s.customer_id, c.name
		ORDER BY s.customer_id`
	debts := []UnpaidDebt{}
	if err := dbtx.SelectContext(ctx, &debts, q, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list unpaid debts before %s: %w", cutoff, err)
	}
	return debts, nil
}
