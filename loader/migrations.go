package loader

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Migration は前進のみのスキーマ変更です。Up は途中まで適用済みの状態から再実行しても安全である必要があります。
type Migration struct {
	Version     int
	Description string
	Up          func(ctx context.Context, tx *sqlx.Tx) error
}

var migrations = []Migration{
	{Version: 1, Description: "create_initial_tables", Up: createInitialTables},
	{Version: 2, Description: "rename_date_to_created_at_in_tables", Up: renameDateColumns},
	{Version: 3, Description: "add_alias_and_unique_name_to_owners", Up: ownersAliasAndUniqueName},
	{Version: 4, Description: "unique_customer_name_and_expense_payment_method", Up: customersAndExpensePayment},
	{Version: 5, Description: "add_sale_voids_and_paid_amount", Up: saleVoidsAndPaidAmount},
	{Version: 6, Description: "create_payments", Up: createPayments},
}

const initialSchema = `
CREATE TABLE IF NOT EXISTS suppliers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    phone TEXT,
    address TEXT
);

CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    category TEXT NOT NULL,
    price REAL NOT NULL,
    stock INTEGER NOT NULL CHECK (stock >= 0),
    low_stock_threshold INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS purchases (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    product_id INTEGER NOT NULL,
    supplier_id INTEGER,
    date TEXT DEFAULT CURRENT_TIMESTAMP,
    quantity INTEGER NOT NULL,
    total REAL NOT NULL,
    payment_method TEXT NOT NULL,
    FOREIGN KEY (product_id) REFERENCES products(id),
    FOREIGN KEY (supplier_id) REFERENCES suppliers(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS owners (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS product_owners (
    product_id INTEGER NOT NULL,
    owner_id INTEGER NOT NULL,
    percentage REAL NOT NULL CHECK (percentage >= 0 AND percentage <= 100),
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
    FOREIGN KEY (owner_id) REFERENCES owners(id) ON DELETE RESTRICT,
    PRIMARY KEY (product_id, owner_id)
);

CREATE TABLE IF NOT EXISTS customers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    reference TEXT,
    phone TEXT
);

CREATE TABLE IF NOT EXISTS sales (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    customer_id INTEGER,
    date TEXT DEFAULT CURRENT_TIMESTAMP,
    total REAL NOT NULL,
    surcharge REAL NOT NULL DEFAULT 0,
    payment_method TEXT NOT NULL,
    is_paid INTEGER DEFAULT 0 CHECK (is_paid IN (0, 1)),
    paid_at TEXT,
    FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE SET NULL
);

CREATE TABLE IF NOT EXISTS sale_items (
    sale_id INTEGER NOT NULL,
    product_id INTEGER NOT NULL,
    price REAL NOT NULL,
    quantity INTEGER NOT NULL CHECK (quantity > 0),
    FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE,
    FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE,
    PRIMARY KEY (sale_id, product_id)
);

CREATE TABLE IF NOT EXISTS expenses (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT DEFAULT CURRENT_TIMESTAMP,
    category TEXT NOT NULL,
    amount REAL NOT NULL,
    description TEXT
);

CREATE TABLE IF NOT EXISTS expense_owners (
    expense_id INTEGER NOT NULL,
    owner_id INTEGER NOT NULL,
    percentage REAL NOT NULL CHECK (percentage >= 0 AND percentage <= 100),
    FOREIGN KEY (expense_id) REFERENCES expenses(id) ON DELETE CASCADE,
    FOREIGN KEY (owner_id) REFERENCES owners(id) ON DELETE RESTRICT,
    PRIMARY KEY (expense_id, owner_id)
);

CREATE TABLE IF NOT EXISTS notifications (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    date TEXT DEFAULT CURRENT_TIMESTAMP,
    title TEXT NOT NULL,
    message TEXT NOT NULL,
    link TEXT NOT NULL,
    is_read INTEGER DEFAULT 0 CHECK (is_read IN (0, 1)),
    read_at TEXT
);`

func createInitialTables(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, initialSchema); err != nil {
		return fmt.Errorf("failed to create initial tables: %w", err)
	}
	return nil
}

func renameDateColumns(ctx context.Context, tx *sqlx.Tx) error {
	for _, table := range []string{"purchases", "sales", "expenses", "notifications"} {
		hasDate, err := hasColumn(ctx, tx, table, "date")
		if err != nil {
			return err
		}
		hasCreatedAt, err := hasColumn(ctx, tx, table, "created_at")
		if err != nil {
			return err
		}
		if !hasDate || hasCreatedAt {
			continue
		}
		if _, err := tx.ExecContext(ctx, `ALTER TABLE `+table+` RENAME COLUMN date TO created_at`); err != nil {
			return fmt.Errorf("failed to rename date column on %s: %w", table, err)
		}
	}
	return nil
}

func ownersAliasAndUniqueName(ctx context.Context, tx *sqlx.Tx) error {
	if err := addColumnIfMissing(ctx, tx, "owners", "alias", "TEXT"); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_owners_name ON owners(name)`); err != nil {
		return fmt.Errorf("failed to create unique index on owners.name: %w", err)
	}
	return nil
}

func customersAndExpensePayment(ctx context.Context, tx *sqlx.Tx) error {
	if _, err := tx.ExecContext(ctx, `CREATE UNIQUE INDEX IF NOT EXISTS idx_customers_name ON customers(name)`); err != nil {
		return fmt.Errorf("failed to create unique index on customers.name: %w", err)
	}
	return addColumnIfMissing(ctx, tx, "expenses", "payment_method", "TEXT NOT NULL DEFAULT 'cash'")
}

func saleVoidsAndPaidAmount(ctx context.Context, tx *sqlx.Tx) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS sale_voids (
		    sale_id INTEGER PRIMARY KEY,
		    created_at TEXT NOT NULL,
		    reason TEXT NOT NULL DEFAULT '',
		    FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE
		);
		CREATE INDEX IF NOT EXISTS idx_sales_customer_unpaid ON sales(customer_id, is_paid);
		CREATE INDEX IF NOT EXISTS idx_purchases_product ON purchases(product_id);`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create sale_voids: %w", err)
	}
	return addColumnIfMissing(ctx, tx, "sales", "paid_amount", "REAL")
}

// payments は追記のみです。得意先の削除で customer_id が NULL になる以外の変更を拒否します。
func createPayments(ctx context.Context, tx *sqlx.Tx) error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS payments (
		    id INTEGER PRIMARY KEY AUTOINCREMENT,
		    customer_id INTEGER,
		    created_at TEXT NOT NULL,
		    period TEXT NOT NULL,
		    method TEXT,
		    surcharge REAL NOT NULL DEFAULT 0,
		    amount REAL NOT NULL,
		    sale_count INTEGER NOT NULL CHECK (sale_count > 0),
		    FOREIGN KEY (customer_id) REFERENCES customers(id) ON DELETE SET NULL
		);
		CREATE INDEX IF NOT EXISTS idx_payments_customer ON payments(customer_id, period);
		CREATE TRIGGER IF NOT EXISTS payments_no_update
		BEFORE UPDATE OF created_at, period, method, surcharge, amount, sale_count ON payments
		BEGIN SELECT RAISE(ABORT, 'payments are append-only'); END;
		CREATE TRIGGER IF NOT EXISTS payments_no_delete
		BEFORE DELETE ON payments
		BEGIN SELECT RAISE(ABORT, 'payments are append-only'); END;`
	if _, err := tx.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("failed to create payments: %w", err)
	}
	return nil
}

func hasColumn(ctx context.Context, tx *sqlx.Tx, table, column string) (bool, error) {
	var n int
	err := tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, column)
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s.%s: %w", table, column, err)
	}
	return n > 0, nil
}

func addColumnIfMissing(ctx context.Context, tx *sqlx.Tx, table, column, def string) error {
	exists, err := hasColumn(ctx, tx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, def)); err != nil {
		return fmt.Errorf("failed to add column %s.%s: %w", table, column, err)
	}
	return nil
}
