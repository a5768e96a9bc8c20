package database

import (
	"context"
	"database/sql"
	"fmt"

	"almacen/apperr"
	"almacen/model"
)

func GetAllCustomers(ctx context.Context, dbtx DBTX) ([]model.Customer, error) {
	customers := []model.Customer{}
	err := dbtx.SelectContext(ctx, &customers, "SELECT id, name, reference, phone FROM customers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get all customers: %w", err)
	}
	return customers, nil
}

func GetCustomer(ctx context.Context, dbtx DBTX, id int64) (*model.Customer, error) {
	var c model.Customer
	err := dbtx.GetContext(ctx, &c, "SELECT id, name, reference, phone FROM customers WHERE id = ?", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("customer", id)
		}
		return nil, fmt.Errorf("failed to get customer %d: %w", id, err)
	}
	return &c, nil
}

func CheckCustomerExistsByName(ctx context.Context, dbtx DBTX, name string) (bool, error) {
	var exists int
	err := dbtx.GetContext(ctx, &exists, `SELECT 1 FROM customers WHERE name = ? LIMIT 1`, name)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("CheckCustomerExistsByName failed: %w", err)
	}
	return true, nil
}

func CreateCustomer(ctx context.Context, dbtx DBTX, c *model.Customer) error {
	const q = `INSERT INTO customers (name, reference, phone) VALUES (?, ?, ?)`
	res, err := dbtx.ExecContext(ctx, q, c.Name, nullIfEmpty(c.Reference), nullIfEmpty(c.Phone))
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("customer name %q already exists", c.Name).WithDetail("name", c.Name)
		}
		return fmt.Errorf("CreateCustomer failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get customer id: %w", err)
	}
	c.ID = id
	return nil
}

func UpdateCustomer(ctx context.Context, dbtx DBTX, c *model.Customer) error {
	const q = `UPDATE customers SET name = ?, reference = ?, phone = ? WHERE id = ?`
	res, err := dbtx.ExecContext(ctx, q, c.Name, nullIfEmpty(c.Reference), nullIfEmpty(c.Phone), c.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("customer name %q already exists", c.Name).WithDetail("name", c.Name)
		}
		return fmt.Errorf("UpdateCustomer (ID: %d, Name: %s) failed: %w", c.ID, c.Name, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("customer", c.ID)
	}
	return nil
}

// DeleteCustomer は得意先を削除します。販売の customer_id は NULL になり履歴は残ります。
func DeleteCustomer(ctx context.Context, dbtx DBTX, id int64) error {
	res, err := dbtx.ExecContext(ctx, `DELETE FROM customers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete customer with id %d: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("customer", id)
	}
	return nil
}
