package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"almacen/apperr"
	"almacen/model"
)

type ExpenseFilter struct {
	PeriodFilter
	Category string
}

const insertExpenseQuery = `
INSERT INTO expenses (created_at, category, amount, description, payment_method)
VALUES (:created_at, :category, :amount, :description, :payment_method)`

func InsertExpense(ctx context.Context, dbtx DBTX, e *model.Expense) error {
	res, err := dbtx.NamedExecContext(ctx, insertExpenseQuery, e)
	if err != nil {
		return fmt.Errorf("failed to insert expense (category %s): %w", e.Category, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get expense id: %w", err)
	}
	e.ID = id
	return nil
}

const expenseColumns = `id, created_at, category, amount, description, payment_method`

func GetExpense(ctx context.Context, dbtx DBTX, id int64) (*model.Expense, error) {
	var e model.Expense
	if err := dbtx.GetContext(ctx, &e, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("expense", id)
		}
		return nil, fmt.Errorf("failed to get expense %d: %w", id, err)
	}
	return &e, nil
}

func ListExpenses(ctx context.Context, dbtx DBTX, f ExpenseFilter) ([]model.Expense, error) {
	var conds []string
	var args []interface{}
	conds, args = f.apply("created_at", conds, args)
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}

	q := `SELECT ` + expenseColumns + ` FROM expenses`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC"

	expenses := []model.Expense{}
	if err := dbtx.SelectContext(ctx, &expenses, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	return expenses, nil
}

// DeleteExpense は経費を削除します。expense_owners は外部キーで連鎖削除されます。
func DeleteExpense(ctx context.Context, dbtx DBTX, id int64) error {
	res, err := dbtx.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete expense with id %d: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("expense", id)
	}
	return nil
}
