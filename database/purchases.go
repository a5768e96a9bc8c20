package database

import (
	"context"
	"fmt"
	"strings"

	"almacen/model"
)

// PeriodFilter は created_at の範囲指定です。From は含み To は含みません (どちらも空なら無制限)。
type PeriodFilter struct {
	From string
	To   string
}

func (f PeriodFilter) apply(column string, conds []string, args []interface{}) ([]string, []interface{}) {
	if f.From != "" {
		conds = append(conds, column+" >= ?")
		args = append(args, f.From)
	}
	if f.To != "" {
		conds = append(conds, column+" < ?")
		args = append(args, f.To)
	}
	return conds, args
}

type PurchaseFilter struct {
	PeriodFilter
	ProductID  int64
	SupplierID int64
}

const insertPurchaseQuery = `
INSERT INTO purchases (product_id, supplier_id, created_at, quantity, total, payment_method)
VALUES (:product_id, :supplier_id, :created_at, :quantity, :total, :payment_method)`

func InsertPurchase(ctx context.Context, dbtx DBTX, p *model.Purchase) error {
	res, err := dbtx.NamedExecContext(ctx, insertPurchaseQuery, p)
	if err != nil {
		return fmt.Errorf("failed to insert purchase (product %d): %w", p.ProductID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get purchase id: %w", err)
	}
	p.ID = id
	return nil
}

func ListPurchases(ctx context.Context, dbtx DBTX, f PurchaseFilter) ([]model.Purchase, error) {
	var conds []string
	var args []interface{}
	conds, args = f.apply("created_at", conds, args)
	if f.ProductID != 0 {
		conds = append(conds, "product_id = ?")
		args = append(args, f.ProductID)
	}
	if f.SupplierID != 0 {
		conds = append(conds, "supplier_id = ?")
		args = append(args, f.SupplierID)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT id, product_id, supplier_id, created_at, quantity, total, payment_method FROM purchases`)
	if len(conds) > 0 {
		sb.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC, id DESC")

	purchases := []model.Purchase{}
	if err := dbtx.SelectContext(ctx, &purchases, sb.String(), args...); err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	return purchases, nil
}
