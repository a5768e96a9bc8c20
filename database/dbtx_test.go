package database_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/database"
	"almacen/dbtest"
	"almacen/loader"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lockedStore は移行済みのDBと、別接続で BEGIN IMMEDIATE を保持したままの書き込みロックを返します。
// 返す DB はビジー待ちを短くしてあります。
func lockedStore(t *testing.T) (db *sqlx.DB, release func()) {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "busy.db")

	holder, err := loader.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { holder.Close() })

	db, err = sqlx.Open("sqlite3", strings.Replace(loader.DSN(path), "_busy_timeout=5000", "_busy_timeout=20", 1))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	conn, err := holder.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE")
	require.NoError(t, err)

	var once sync.Once
	release = func() {
		once.Do(func() {
			_, _ = conn.ExecContext(ctx, "ROLLBACK")
			conn.Close()
		})
	}
	t.Cleanup(release)
	return db, release
}

func insertOwner(name string) func(tx *sqlx.Tx) error {
	return func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO owners (name) VALUES (?)`, name)
		return err
	}
}

func TestWithTxGivesUpWhenStoreStaysLocked(t *testing.T) {
	dbtest.UseConfig(t, func(c *config.Config) { c.StorageRetries = 1 })
	db, release := lockedStore(t)

	err := database.WithTx(context.Background(), db, insertOwner("Ana"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStorageUnavailable)
	assert.True(t, database.IsTransient(err))

	release()
	assert.Equal(t, 0, dbtest.Count(t, db, "owners"))
}

func TestWithTxRetriesUntilLockIsReleased(t *testing.T) {
	dbtest.UseConfig(t, func(c *config.Config) { c.StorageRetries = 20 })
	db, release := lockedStore(t)

	timer := time.AfterFunc(100*time.Millisecond, release)
	defer timer.Stop()

	require.NoError(t, database.WithTx(context.Background(), db, insertOwner("Beto")))
	assert.Equal(t, 1, dbtest.Count(t, db, "owners"))
}

func TestWithTxDoesNotRetryBusinessErrors(t *testing.T) {
	db := dbtest.Open(t)
	calls := 0
	err := database.WithTx(context.Background(), db, func(tx *sqlx.Tx) error {
		calls++
		if err := insertOwner("Carla")(tx); err != nil {
			return err
		}
		return apperr.Invalid("rejected")
	})
	assert.ErrorIs(t, err, apperr.ErrInvalid)
	assert.False(t, errors.Is(err, apperr.ErrStorageUnavailable))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, dbtest.Count(t, db, "owners"))
}
