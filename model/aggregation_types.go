package model

import "github.com/shopspring/decimal"

// FinancialReport は日次・月次の収支です。Period は "YYYY-MM-DD" または "YYYY-MM"。
type FinancialReport struct {
	Period    string          `db:"period" json:"period"`
	Sales     decimal.Decimal `db:"sales" json:"sales"`
	Purchases decimal.Decimal `db:"purchases" json:"purchases"`
	Expenses  decimal.Decimal `db:"expenses" json:"expenses"`
	NetProfit decimal.Decimal `db:"-" json:"netProfit"`
}

// MonthlyDebt は得意先の月別未払い額です。
type MonthlyDebt struct {
	CustomerID int64           `json:"customerId"`
	Period     string          `json:"period"`
	Sales      []SaleSummary   `json:"sales"`
	Debt       decimal.Decimal `json:"debt"`
}

type SaleSummary struct {
	SaleID    int64           `db:"id" json:"saleId"`
	CreatedAt string          `db:"created_at" json:"createdAt"`
	Total     decimal.Decimal `db:"total" json:"total"`
}

// ValuationDetailRow は在庫評価の明細行データです。
type ValuationDetailRow struct {
	ProductID  int64           `db:"id" json:"productId"`
	Name       string          `db:"name" json:"name"`
	Category   string          `db:"category" json:"category"`
	Stock      int64           `db:"stock" json:"stock"`
	Price      decimal.Decimal `db:"price" json:"price"`
	Threshold  int64           `db:"low_stock_threshold" json:"threshold"`
	TotalValue decimal.Decimal `db:"-" json:"totalValue"`
	ShowAlert  bool            `db:"-" json:"showAlert"`
}

// ValuationGroup はカテゴリ単位の在庫評価です。
type ValuationGroup struct {
	Category   string               `json:"category"`
	DetailRows []ValuationDetailRow `json:"detailRows"`
	TotalValue decimal.Decimal      `json:"totalValue"`
}
