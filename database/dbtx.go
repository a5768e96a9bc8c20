package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/model"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// DBTX は *sqlx.DB と *sqlx.Tx の共通部分です。
type DBTX interface {
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	NamedExecContext(ctx context.Context, query string, arg interface{}) (sql.Result, error)
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)
	Rebind(query string) string
}

// WithTx は fn を1つの書き込みトランザクションで実行します。
// SQLITE_BUSY / SQLITE_LOCKED は指数バックオフで config.StorageRetries 回まで再試行し、
// 使い切った場合は StorageUnavailable を返します。業務エラーは再試行しません。
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	retries := config.GetConfig().StorageRetries
	if retries < 0 {
		retries = 0
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 20 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	eb.MaxElapsedTime = 5 * time.Second

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := runTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if IsTransient(err) {
			config.GetLogger().WithFields(logrus.Fields{
				"attempt": attempt,
				"error":   err.Error(),
			}).Warn("storage busy, retrying transaction")
			return err
		}
		return backoff.Permanent(err)
	}, b)

	if err != nil && IsTransient(err) {
		return apperr.StorageUnavailable(err)
	}
	return err
}

func runTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
			if err != nil {
				err = fmt.Errorf("failed to commit transaction: %w", err)
			}
		}
	}()

	return fn(tx)
}

// IsTransient はロック競合による一時的な失敗かどうかを返します。
func IsTransient(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	}
	return false
}

func IsUniqueViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func IsForeignKeyViolation(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// checkAffected は UPDATE/DELETE の対象が存在したかを返します。
func checkAffected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}

// nullIfEmpty は空文字を NULL として書き込むための変換です。
func nullIfEmpty(s *string) interface{} {
	if s == nil || *s == "" {
		return nil
	}
	return *s
}

// FormatTime は行に刻むタイムスタンプを UTC の TEXT 形式にします。
func FormatTime(t time.Time) string {
	return t.UTC().Format(model.TimeLayout)
}
