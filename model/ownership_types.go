package model

import "github.com/shopspring/decimal"

// EntityKind は持分を持てるエンティティの種別です。
type EntityKind string

const (
	EntityProduct EntityKind = "product"
	EntityExpense EntityKind = "expense"
)

// EntityRef は持分の対象 (商品または経費) を指します。
type EntityRef struct {
	Kind EntityKind `json:"kind"`
	ID   int64      `json:"id"`
}

// Share は product_owners / expense_owners の1行です。
type Share struct {
	OwnerID    int64           `db:"owner_id" json:"ownerId"`
	OwnerName  string          `db:"owner_name" json:"ownerName,omitempty"`
	Percentage decimal.Decimal `db:"percentage" json:"percentage"`
}

// Allocation は金額を持分で按分した結果の1行です。
type Allocation struct {
	OwnerID    int64           `json:"ownerId"`
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// OwnerRevenue は期間内のオーナー別の売上・費用です。
type OwnerRevenue struct {
	OwnerID   int64           `json:"ownerId"`
	OwnerName string          `json:"ownerName"`
	Revenue   decimal.Decimal `json:"revenue"`
	Cost      decimal.Decimal `json:"cost"`
	Net       decimal.Decimal `json:"net"`
}
