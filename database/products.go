package database

import (
	"context"
	"database/sql"
	"fmt"

	"almacen/apperr"
	"almacen/model"

	"github.com/jmoiron/sqlx"
)

const productColumns = `id, name, category, price, stock, low_stock_threshold`

func GetProduct(ctx context.Context, dbtx DBTX, id int64) (*model.Product, error) {
	var p model.Product
	err := dbtx.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("product", id)
		}
		return nil, fmt.Errorf("failed to get product %d: %w", id, err)
	}
	return &p, nil
}

// GetProductsByIDsMap は ID をキーにした商品マップを返します。存在しない ID は含まれません。
func GetProductsByIDsMap(ctx context.Context, dbtx DBTX, ids []int64) (map[int64]*model.Product, error) {
	products := make(map[int64]*model.Product)
	if len(ids) == 0 {
		return products, nil
	}

	q, args, err := sqlx.In(`SELECT `+productColumns+` FROM products WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build products query: %w", err)
	}

	var rows []model.Product
	if err := dbtx.SelectContext(ctx, &rows, dbtx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query for products by ids failed: %w", err)
	}
	for i := range rows {
		products[rows[i].ID] = &rows[i]
	}
	return products, nil
}

func ListProducts(ctx context.Context, dbtx DBTX, category string) ([]model.Product, error) {
	q := `SELECT ` + productColumns + ` FROM products`
	var args []interface{}
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY name`

	products := []model.Product{}
	if err := dbtx.SelectContext(ctx, &products, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ListLowStockProducts は在庫が閾値以下の商品を返します。
func ListLowStockProducts(ctx context.Context, dbtx DBTX) ([]model.Product, error) {
	products := []model.Product{}
	err := dbtx.SelectContext(ctx, &products,
		`SELECT `+productColumns+` FROM products WHERE stock <= low_stock_threshold ORDER BY stock, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list low stock products: %w", err)
	}
	return products, nil
}

func CreateProduct(ctx context.Context, dbtx DBTX, p *model.Product) error {
	const q = `INSERT INTO products (name, category, price, stock, low_stock_threshold) VALUES (?, ?, ?, ?, ?)`
	res, err := dbtx.ExecContext(ctx, q, p.Name, p.Category, p.Price.RoundBank(2), p.Stock, p.LowStockThreshold)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("product name %q already exists", p.Name).WithDetail("name", p.Name)
		}
		return fmt.Errorf("CreateProduct (Name: %s) failed: %w", p.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get product id: %w", err)
	}
	p.ID = id
	return nil
}

// UpdateProductDetails は在庫以外の項目を更新します。
func UpdateProductDetails(ctx context.Context, dbtx DBTX, p *model.Product) error {
	const q = `UPDATE products SET name = ?, category = ?, price = ?, low_stock_threshold = ? WHERE id = ?`
	res, err := dbtx.ExecContext(ctx, q, p.Name, p.Category, p.Price.RoundBank(2), p.LowStockThreshold, p.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("product name %q already exists", p.Name).WithDetail("name", p.Name)
		}
		return fmt.Errorf("UpdateProductDetails (ID: %d) failed: %w", p.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("product", p.ID)
	}
	return nil
}

func SetLowStockThreshold(ctx context.Context, dbtx DBTX, id, threshold int64) error {
	res, err := dbtx.ExecContext(ctx, `UPDATE products SET low_stock_threshold = ? WHERE id = ?`, threshold, id)
	if err != nil {
		return fmt.Errorf("failed to set threshold for product %d: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("product", id)
	}
	return nil
}

// AddStockInTx は在庫を delta だけ増減します。結果が負になる場合は更新せず false を返します。
func AddStockInTx(ctx context.Context, tx *sqlx.Tx, id, delta int64) (bool, error) {
	const q = `UPDATE products SET stock = stock + ? WHERE id = ? AND stock + ? >= 0`
	res, err := tx.ExecContext(ctx, q, delta, id, delta)
	if err != nil {
		return false, fmt.Errorf("failed to update stock for product %d: %w", id, err)
	}
	return checkAffected(res)
}

func CountPurchasesForProduct(ctx context.Context, dbtx DBTX, id int64) (int, error) {
	var n int
	if err := dbtx.GetContext(ctx, &n, `SELECT COUNT(*) FROM purchases WHERE product_id = ?`, id); err != nil {
		return 0, fmt.Errorf("failed to count purchases for product %d: %w", id, err)
	}
	return n, nil
}

// DeleteProductInTx は商品とその販売明細・持分を削除します。仕入が残っている場合は Conflict です。
func DeleteProductInTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	for _, q := range []string{
		`DELETE FROM sale_items WHERE product_id = ?`,
		`DELETE FROM product_owners WHERE product_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete dependents of product %d: %w", id, err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return apperr.Conflict("product %d is still referenced", id).WithDetail("productId", id)
		}
		return fmt.Errorf("failed to delete product with id %d: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("product", id)
	}
	return nil
}
