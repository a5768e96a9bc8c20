package database

import (
	"context"
	"database/sql"
	"fmt"

	"almacen/apperr"
	"almacen/model"
)

func GetAllSuppliers(ctx context.Context, dbtx DBTX) ([]model.Supplier, error) {
	suppliers := []model.Supplier{}
	err := dbtx.SelectContext(ctx, &suppliers, "SELECT id, name, phone, address FROM suppliers ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to get all suppliers: %w", err)
	}
	return suppliers, nil
}

// GetSupplierMap は仕入先IDと仕入先名のマップを返します。
func GetSupplierMap(ctx context.Context, dbtx DBTX) (map[int64]string, error) {
	suppliers, err := GetAllSuppliers(ctx, dbtx)
	if err != nil {
		return nil, fmt.Errorf("failed to get supplier list for map: %w", err)
	}

	supplierMap := make(map[int64]string)
	for _, s := range suppliers {
		supplierMap[s.ID] = s.Name
	}
	return supplierMap, nil
}

func GetSupplier(ctx context.Context, dbtx DBTX, id int64) (*model.Supplier, error) {
	var s model.Supplier
	err := dbtx.GetContext(ctx, &s, "SELECT id, name, phone, address FROM suppliers WHERE id = ?", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("supplier", id)
		}
		return nil, fmt.Errorf("failed to get supplier %d: %w", id, err)
	}
	return &s, nil
}

func CreateSupplier(ctx context.Context, dbtx DBTX, s *model.Supplier) error {
	const q = `INSERT INTO suppliers (name, phone, address) VALUES (?, ?, ?)`
	res, err := dbtx.ExecContext(ctx, q, s.Name, nullIfEmpty(s.Phone), nullIfEmpty(s.Address))
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("supplier name %q already exists", s.Name).WithDetail("name", s.Name)
		}
		return fmt.Errorf("CreateSupplier failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get supplier id: %w", err)
	}
	s.ID = id
	return nil
}

func UpdateSupplier(ctx context.Context, dbtx DBTX, s *model.Supplier) error {
	const q = `UPDATE suppliers SET name = ?, phone = ?, address = ? WHERE id = ?`
	res, err := dbtx.ExecContext(ctx, q, s.Name, nullIfEmpty(s.Phone), nullIfEmpty(s.Address), s.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("supplier name %q already exists", s.Name).WithDetail("name", s.Name)
		}
		return fmt.Errorf("UpdateSupplier (ID: %d, Name: %s) failed: %w", s.ID, s.Name, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("supplier", s.ID)
	}
	return nil
}

// DeleteSupplier は仕入先を削除します。参照していた仕入の supplier_id は NULL になります。
func DeleteSupplier(ctx context.Context, dbtx DBTX, id int64) error {
	res, err := dbtx.ExecContext(ctx, `DELETE FROM suppliers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete supplier with id %d: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("supplier", id)
	}
	return nil
}
