package model

import "github.com/shopspring/decimal"

// Product は products テーブルのレコードです。
// Stock は在庫エンジン経由でのみ更新されます。
type Product struct {
	ID                int64           `db:"id" json:"id"`
	Name              string          `db:"name" json:"name"`
	Category          string          `db:"category" json:"category"`
	Price             decimal.Decimal `db:"price" json:"price"`
	Stock             int64           `db:"stock" json:"stock"`
	LowStockThreshold int64           `db:"low_stock_threshold" json:"lowStockThreshold"`
}

// IsLowStock は在庫が閾値以下かどうかを返します。
func (p Product) IsLowStock() bool {
	return p.Stock <= p.LowStockThreshold
}

type Supplier struct {
	ID      int64   `db:"id" json:"id"`
	Name    string  `db:"name" json:"name"`
	Phone   *string `db:"phone" json:"phone,omitempty"`
	Address *string `db:"address" json:"address,omitempty"`
}

type Customer struct {
	ID        int64   `db:"id" json:"id"`
	Name      string  `db:"name" json:"name"`
	Reference *string `db:"reference" json:"reference,omitempty"`
	Phone     *string `db:"phone" json:"phone,omitempty"`
}

type Owner struct {
	ID    int64   `db:"id" json:"id"`
	Name  string  `db:"name" json:"name"`
	Alias *string `db:"alias" json:"alias,omitempty"`
}
