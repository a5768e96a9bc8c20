package database

import (
	"context"
	"database/sql"
	"fmt"

	"almacen/apperr"
	"almacen/model"

	"github.com/jmoiron/sqlx"
)

func GetAllOwners(ctx context.Context, dbtx DBTX) ([]model.Owner, error) {
	owners := []model.Owner{}
	if err := dbtx.SelectContext(ctx, &owners, "SELECT id, name, alias FROM owners ORDER BY name"); err != nil {
		return nil, fmt.Errorf("failed to get all owners: %w", err)
	}
	return owners, nil
}

func GetOwner(ctx context.Context, dbtx DBTX, id int64) (*model.Owner, error) {
	var o model.Owner
	err := dbtx.GetContext(ctx, &o, "SELECT id, name, alias FROM owners WHERE id = ?", id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("owner", id)
		}
		return nil, fmt.Errorf("failed to get owner %d: %w", id, err)
	}
	return &o, nil
}

// MissingOwnerIDs は ids のうち owners に存在しないものを返します。
func MissingOwnerIDs(ctx context.Context, dbtx DBTX, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT id FROM owners WHERE id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build owners query: %w", err)
	}
	var found []int64
	if err := dbtx.SelectContext(ctx, &found, dbtx.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("query for owners by ids failed: %w", err)
	}

	exists := make(map[int64]bool, len(found))
	for _, id := range found {
		exists[id] = true
	}
	var missing []int64
	for _, id := range ids {
		if !exists[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

func CreateOwner(ctx context.Context, dbtx DBTX, o *model.Owner) error {
	res, err := dbtx.ExecContext(ctx, `INSERT INTO owners (name, alias) VALUES (?, ?)`, o.Name, nullIfEmpty(o.Alias))
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("owner name %q already exists", o.Name).WithDetail("name", o.Name)
		}
		return fmt.Errorf("CreateOwner failed: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get owner id: %w", err)
	}
	o.ID = id
	return nil
}

func UpdateOwner(ctx context.Context, dbtx DBTX, o *model.Owner) error {
	res, err := dbtx.ExecContext(ctx, `UPDATE owners SET name = ?, alias = ? WHERE id = ?`, o.Name, nullIfEmpty(o.Alias), o.ID)
	if err != nil {
		if IsUniqueViolation(err) {
			return apperr.Conflict("owner name %q already exists", o.Name).WithDetail("name", o.Name)
		}
		return fmt.Errorf("UpdateOwner (ID: %d) failed: %w", o.ID, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("owner", o.ID)
	}
	return nil
}

// DeleteOwnerInTx はオーナーを削除します。持分が残っている場合は外部キー (RESTRICT) で失敗します。
func DeleteOwnerInTx(ctx context.Context, tx *sqlx.Tx, id int64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM owners WHERE id = ?`, id)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return apperr.Conflict("owner %d still holds ownership shares", id).WithDetail("ownerId", id)
		}
		return fmt.Errorf("failed to delete owner with id %d: %w", id, err)
	}
	ok, err := checkAffected(res)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("owner", id)
	}
	return nil
}
