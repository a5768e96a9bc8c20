// Package dbtest はテスト用にマイグレーション済みの一時データベースを用意します。
package dbtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"almacen/config"
	"almacen/database"
	"almacen/loader"
	"almacen/model"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Epoch はテストで使う固定時刻です。
var Epoch = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

// Open は t.TempDir() に SQLite ファイルを作成し、全マイグレーションを適用して返します。
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "almacen_test.db")
	db, err := loader.Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Clock は呼び出し側から進められる固定時計です。
type Clock struct {
	T time.Time
}

func NewClock() *Clock {
	return &Clock{T: Epoch}
}

func (c *Clock) Now() time.Time { return c.T }

func (c *Clock) Advance(d time.Duration) { c.T = c.T.Add(d) }

// UseConfig は一時ファイルに設定を保存し、テスト終了時に既定値へ戻します。
func UseConfig(t testing.TB, mutate func(c *config.Config)) {
	t.Helper()
	dir := t.TempDir()
	config.SetFilePath(filepath.Join(dir, "almacen_config.json"))
	c := config.GetConfig()
	mutate(&c)
	require.NoError(t, config.SaveConfig(c))
	t.Cleanup(func() {
		config.SetFilePath(filepath.Join(dir, "missing.json"))
		_, _ = config.LoadConfig()
	})
}

func MustProduct(t testing.TB, db *sqlx.DB, name string, price string, stock, threshold int64) *model.Product {
	t.Helper()
	p := &model.Product{
		Name:              name,
		Category:          "general",
		Price:             decimal.RequireFromString(price),
		Stock:             stock,
		LowStockThreshold: threshold,
	}
	require.NoError(t, database.CreateProduct(context.Background(), db, p))
	return p
}

func MustOwner(t testing.TB, db *sqlx.DB, name string) *model.Owner {
	t.Helper()
	o := &model.Owner{Name: name}
	require.NoError(t, database.CreateOwner(context.Background(), db, o))
	return o
}

func MustCustomer(t testing.TB, db *sqlx.DB, name string) *model.Customer {
	t.Helper()
	c := &model.Customer{Name: name}
	require.NoError(t, database.CreateCustomer(context.Background(), db, c))
	return c
}

func MustSupplier(t testing.TB, db *sqlx.DB, name string) *model.Supplier {
	t.Helper()
	s := &model.Supplier{Name: name}
	require.NoError(t, database.CreateSupplier(context.Background(), db, s))
	return s
}

// Stock は商品の現在在庫を返します。
func Stock(t testing.TB, db *sqlx.DB, productID int64) int64 {
	t.Helper()
	p, err := database.GetProduct(context.Background(), db, productID)
	require.NoError(t, err)
	return p.Stock
}

// Count はテーブルの行数を返します。
func Count(t testing.TB, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}
