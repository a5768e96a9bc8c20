// Package report は収支・日次/月次集計・在庫評価を作ります。
package report

import (
	"context"
	"sort"

	"almacen/database"
	"almacen/model"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// Balance は全期間の 売上 − 仕入 − 経費 です。
type Balance struct {
	Sales     decimal.Decimal `json:"sales"`
	Purchases decimal.Decimal `json:"purchases"`
	Expenses  decimal.Decimal `json:"expenses"`
	Balance   decimal.Decimal `json:"balance"`
}

// Valuation は在庫評価の結果です。
type Valuation struct {
	Groups     []model.ValuationGroup     `json:"groups"`
	TotalValue decimal.Decimal            `json:"totalValue"`
	LowStock   []model.ValuationDetailRow `json:"lowStock"`
}

type Service struct {
	db *sqlx.DB
}

func NewService(db *sqlx.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Balance(ctx context.Context) (*Balance, error) {
	t, err := database.GetBalanceTotals(ctx, s.db)
	if err != nil {
		return nil, err
	}
	b := &Balance{
		Sales:     t.Sales.RoundBank(2),
		Purchases: t.Purchases.RoundBank(2),
		Expenses:  t.Expenses.RoundBank(2),
	}
	b.Balance = b.Sales.Sub(b.Purchases).Sub(b.Expenses)
	return b, nil
}

func (s *Service) Daily(ctx context.Context, rg Range) ([]model.FinancialReport, error) {
	return s.financial(ctx, "%Y-%m-%d", rg)
}

func (s *Service) Monthly(ctx context.Context, rg Range) ([]model.FinancialReport, error) {
	return s.financial(ctx, "%Y-%m", rg)
}

func (s *Service) financial(ctx context.Context, format string, rg Range) ([]model.FinancialReport, error) {
	rows, err := database.GetFinancialReport(ctx, s.db, format, rg.Modifier(), rg.Filter())
	if err != nil {
		return nil, err
	}
	for i := range rows {
		r := &rows[i]
		r.Sales = r.Sales.RoundBank(2)
		r.Purchases = r.Purchases.RoundBank(2)
		r.Expenses = r.Expenses.RoundBank(2)
		r.NetProfit = r.Sales.Sub(r.Purchases).Sub(r.Expenses)
	}
	return rows, nil
}

// StockValuation は 在庫 × 単価 をカテゴリごとにまとめます。
func (s *Service) StockValuation(ctx context.Context) (*Valuation, error) {
	rows, err := database.ListValuationRows(ctx, s.db)
	if err != nil {
		return nil, err
	}

	groups := make(map[string]*model.ValuationGroup)
	v := &Valuation{TotalValue: decimal.Zero, LowStock: []model.ValuationDetailRow{}}
	for _, row := range rows {
		row.TotalValue = row.Price.Mul(decimal.NewFromInt(row.Stock)).RoundBank(2)
		row.ShowAlert = row.Stock <= row.Threshold

		g, ok := groups[row.Category]
		if !ok {
			g = &model.ValuationGroup{Category: row.Category, TotalValue: decimal.Zero}
			groups[row.Category] = g
		}
		g.DetailRows = append(g.DetailRows, row)
		g.TotalValue = g.TotalValue.Add(row.TotalValue)
		v.TotalValue = v.TotalValue.Add(row.TotalValue)
		if row.ShowAlert {
			v.LowStock = append(v.LowStock, row)
		}
	}

	v.Groups = make([]model.ValuationGroup, 0, len(groups))
	for _, g := range groups {
		v.Groups = append(v.Groups, *g)
	}
	sort.Slice(v.Groups, func(i, j int) bool { return v.Groups[i].Category < v.Groups[j].Category })
	return v, nil
}
