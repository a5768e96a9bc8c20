package database

import (
	"context"
	"fmt"

	"almacen/model"

	"github.com/jmoiron/sqlx"
)

// shareTable は持分の種別ごとのテーブル名とキー列を返します。
func shareTable(kind model.EntityKind) (table, key string, err error) {
	switch kind {
	case model.EntityProduct:
		return "product_owners", "product_id", nil
	case model.EntityExpense:
		return "expense_owners", "expense_id", nil
	}
	return "", "", fmt.Errorf("unknown entity kind %q", kind)
}

// GetShares は対象の持分をオーナー名付きで返します。
func GetShares(ctx context.Context, dbtx DBTX, ref model.EntityRef) ([]model.Share, error) {
	table, key, err := shareTable(ref.Kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT s.owner_id, o.name AS owner_name, s.percentage
		  FROM ` + table + ` s JOIN owners o ON o.id = s.owner_id
		  WHERE s.` + key + ` = ? ORDER BY s.owner_id`

	shares := []model.Share{}
	if err := dbtx.SelectContext(ctx, &shares, q, ref.ID); err != nil {
		return nil, fmt.Errorf("failed to get shares for %s %d: %w", ref.Kind, ref.ID, err)
	}
	return shares, nil
}

// ReplaceSharesInTx は対象の持分を全て削除してから shares を挿入します。
func ReplaceSharesInTx(ctx context.Context, tx *sqlx.Tx, ref model.EntityRef, shares []model.Share) error {
	table, key, err := shareTable(ref.Kind)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE `+key+` = ?`, ref.ID); err != nil {
		return fmt.Errorf("failed to clear shares for %s %d: %w", ref.Kind, ref.ID, err)
	}

	stmt, err := tx.PreparexContext(ctx, `INSERT INTO `+table+` (`+key+`, owner_id, percentage) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare share insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range shares {
		if _, err := stmt.ExecContext(ctx, ref.ID, s.OwnerID, s.Percentage.RoundBank(2)); err != nil {
			return fmt.Errorf("failed to insert share (owner %d) for %s %d: %w", s.OwnerID, ref.Kind, ref.ID, err)
		}
	}
	return nil
}

// GetAllShares は種別の全持分を対象IDごとにまとめて返します。
func GetAllShares(ctx context.Context, dbtx DBTX, kind model.EntityKind) (map[int64][]model.Share, error) {
	table, key, err := shareTable(kind)
	if err != nil {
		return nil, err
	}
	q := `SELECT s.` + key + ` AS entity_id, s.owner_id, o.name AS owner_name, s.percentage
		  FROM ` + table + ` s JOIN owners o ON o.id = s.owner_id
		  ORDER BY s.` + key + `, s.owner_id`

	rows, err := dbtx.QueryxContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to query all %s shares: %w", kind, err)
	}
	defer rows.Close()

	result := make(map[int64][]model.Share)
	for rows.Next() {
		var r struct {
			EntityID int64 `db:"entity_id"`
			model.Share
		}
		if err := rows.StructScan(&r); err != nil {
			return nil, fmt.Errorf("failed to scan %s share: %w", kind, err)
		}
		result[r.EntityID] = append(result[r.EntityID], r.Share)
	}
	return result, rows.Err()
}

func CountSharesForOwner(ctx context.Context, dbtx DBTX, ownerID int64) (int, error) {
	var n int
	const q = `SELECT (SELECT COUNT(*) FROM product_owners WHERE owner_id = ?) + (SELECT COUNT(*) FROM expense_owners WHERE owner_id = ?)`
	if err := dbtx.GetContext(ctx, &n, q, ownerID, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count shares for owner %d: %w", ownerID, err)
	}
	return n, nil
}
