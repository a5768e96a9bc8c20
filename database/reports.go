package database

import (
	"context"
	"fmt"

	"almacen/model"

	"github.com/shopspring/decimal"
)

// BalanceTotals は全期間の合計です。取消済みの販売は含みません。
type BalanceTotals struct {
	Sales     decimal.Decimal `db:"sales"`
	Purchases decimal.Decimal `db:"purchases"`
	Expenses  decimal.Decimal `db:"expenses"`
}

func GetBalanceTotals(ctx context.Context, dbtx DBTX) (*BalanceTotals, error) {
	const q = `
		SELECT
		    (SELECT COALESCE(SUM(s.total), 0) FROM sales s WHERE ` + notVoided + `) AS sales,
		    (SELECT COALESCE(SUM(total), 0) FROM purchases) AS purchases,
		    (SELECT COALESCE(SUM(amount), 0) FROM expenses) AS expenses`
	var t BalanceTotals
	if err := dbtx.GetContext(ctx, &t, q); err != nil {
		return nil, fmt.Errorf("failed to get balance totals: %w", err)
	}
	return &t, nil
}

// GetFinancialReport は期間内の売上・仕入・経費を format (strftime 書式) 単位で集計します。
// modifier はローカル時刻に変換する SQLite の日時修飾子 (例: "-180 minutes") です。
func GetFinancialReport(ctx context.Context, dbtx DBTX, format, modifier string, f PeriodFilter) ([]model.FinancialReport, error) {
	const q = `
		SELECT period, SUM(sales) AS sales, SUM(purchases) AS purchases, SUM(expenses) AS expenses
		FROM (
		    SELECT strftime(?, s.created_at, ?) AS period, s.total AS sales, 0 AS purchases, 0 AS expenses
		    FROM sales s WHERE s.created_at >= ? AND s.created_at < ? AND ` + notVoided + `
		    UNION ALL
		    SELECT strftime(?, created_at, ?), 0, total, 0
		    FROM purchases WHERE created_at >= ? AND created_at < ?
		    UNION ALL
		    SELECT strftime(?, created_at, ?), 0, 0, amount
		    FROM expenses WHERE created_at >= ? AND created_at < ?
		)
		GROUP BY period
		ORDER BY period`

	args := make([]interface{}, 0, 12)
	for i := 0; i < 3; i++ {
		args = append(args, format, modifier, f.From, f.To)
	}

	reports := []model.FinancialReport{}
	if err := dbtx.SelectContext(ctx, &reports, q, args...); err != nil {
		return nil, fmt.Errorf("failed to get financial report: %w", err)
	}
	return reports, nil
}

func ListValuationRows(ctx context.Context, dbtx DBTX) ([]model.ValuationDetailRow, error) {
	rows := []model.ValuationDetailRow{}
	err := dbtx.SelectContext(ctx, &rows,
		`SELECT id, name, category, stock, price, low_stock_threshold FROM products ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list valuation rows: %w", err)
	}
	return rows, nil
}

// SaleLine は販売明細1行分の金額です。
type SaleLine struct {
	ProductID int64           `db:"product_id"`
	Price     decimal.Decimal `db:"price"`
	Quantity  int64           `db:"quantity"`
}

// ListSaleLines は期間内の取消されていない販売の明細を返します。
func ListSaleLines(ctx context.Context, dbtx DBTX, f PeriodFilter) ([]SaleLine, error) {
	var conds []string
	var args []interface{}
	conds, args = f.apply("s.created_at", conds, args)
	conds = append(conds, notVoided)

	q := `SELECT i.product_id, i.price, i.quantity FROM sale_items i JOIN sales s ON s.id = i.sale_id WHERE `
	for i, c := range conds {
		if i > 0 {
			q += " AND "
		}
		q += c
	}

	lines := []SaleLine{}
	if err := dbtx.SelectContext(ctx, &lines, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list sale lines: %w", err)
	}
	return lines, nil
}
