package loader

import (
	"context"
	"fmt"
	"net/url"

	"almacen/config"
	"almacen/database"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// DSN は SQLite ファイルへの接続文字列を返します。
// 書き込みトランザクションは BEGIN IMMEDIATE で開始され、外部キーは常に有効です。
func DSN(path string) string {
	q := url.Values{}
	q.Set("_journal_mode", "WAL")
	q.Set("_busy_timeout", "5000")
	q.Set("_foreign_keys", "on")
	q.Set("_txlock", "immediate")
	return "file:" + path + "?" + q.Encode()
}

// Open はデータベースに接続し、未適用のマイグレーションを適用します。
func Open(ctx context.Context, path string) (*sqlx.DB, error) {
	log := config.GetLogger()

	log.WithField("path", path).Info("Connecting to database...")
	db, err := sqlx.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	log.Info("Database connection successful.")

	if err := InitDatabase(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// InitDatabase はマイグレーション管理表を用意し、未適用のマイグレーションを順に適用します。
func InitDatabase(ctx context.Context, db *sqlx.DB) error {
	log := config.GetLogger()

	log.Info("Applying database migrations...")
	const ddl = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
		    version INTEGER PRIMARY KEY,
		    description TEXT NOT NULL,
		    applied_at TEXT NOT NULL
		)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	applied, err := AppliedVersions(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}
		err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
			if err := m.Up(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, CURRENT_TIMESTAMP)`,
				m.Version, m.Description)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
		log.WithFields(logrus.Fields{
			"version":     m.Version,
			"description": m.Description,
		}).Info("Migration applied.")
	}

	log.Info("Database initialization complete.")
	return nil
}

// AppliedVersions は適用済みのバージョンを返します。
func AppliedVersions(ctx context.Context, db database.DBTX) (map[int]bool, error) {
	var versions []int
	if err := db.SelectContext(ctx, &versions, `SELECT version FROM schema_migrations`); err != nil {
		return nil, fmt.Errorf("failed to read schema_migrations: %w", err)
	}
	applied := make(map[int]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// MigrationRecord は schema_migrations の1行です。
type MigrationRecord struct {
	Version     int    `db:"version" json:"version"`
	Description string `db:"description" json:"description"`
	AppliedAt   string `db:"applied_at" json:"appliedAt"`
}

func ListMigrations(ctx context.Context, db database.DBTX) ([]MigrationRecord, error) {
	records := []MigrationRecord{}
	if err := db.SelectContext(ctx, &records, `SELECT version, description, applied_at FROM schema_migrations ORDER BY version`); err != nil {
		return nil, fmt.Errorf("failed to list migrations: %w", err)
	}
	return records, nil
}

// LatestVersion は定義済みマイグレーションの最新バージョンです。
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}
