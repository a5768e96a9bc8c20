package database

import (
	"context"
	"fmt"
	"strings"

	"almacen/model"
)

type PaymentFilter struct {
	PeriodFilter
	CustomerID int64
	Period     string
}

const insertPaymentQuery = `
INSERT INTO payments (customer_id, created_at, period, method, surcharge, amount, sale_count)
VALUES (:customer_id, :created_at, :period, :method, :surcharge, :amount, :sale_count)`

// InsertPayment は精算記録を追加します。請求の精算と同じトランザクションで呼びます。
func InsertPayment(ctx context.Context, dbtx DBTX, p *model.Payment) error {
	res, err := dbtx.NamedExecContext(ctx, insertPaymentQuery, p)
	if err != nil {
		return fmt.Errorf("failed to insert payment (period %s): %w", p.Period, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get payment id: %w", err)
	}
	p.ID = id
	return nil
}

func ListPayments(ctx context.Context, dbtx DBTX, f PaymentFilter) ([]model.Payment, error) {
	var conds []string
	var args []interface{}
	conds, args = f.apply("p.created_at", conds, args)
	if f.CustomerID > 0 {
		conds = append(conds, "p.customer_id = ?")
		args = append(args, f.CustomerID)
	}
	if f.Period != "" {
		conds = append(conds, "p.period = ?")
		args = append(args, f.Period)
	}

	q := `SELECT p.id, p.customer_id, c.name AS customer_name, p.created_at, p.period,
		         p.method, p.surcharge, p.amount, p.sale_count
		  FROM payments p LEFT JOIN customers c ON c.id = p.customer_id`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY p.created_at DESC, p.id DESC"

	payments := []model.Payment{}
	if err := dbtx.SelectContext(ctx, &payments, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
