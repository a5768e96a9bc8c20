package ownership

import (
	"context"
	"sort"

	"almacen/database"
	"almacen/model"

	"github.com/shopspring/decimal"
)

// RevenueReport はオーナー別の売上・費用と、持分が確定していない金額です。
type RevenueReport struct {
	Owners             []model.OwnerRevenue `json:"owners"`
	UnallocatedRevenue decimal.Decimal      `json:"unallocatedRevenue"`
	UnallocatedCost    decimal.Decimal      `json:"unallocatedCost"`
}

// OwnerRevenue は期間内の取消されていない販売明細を商品の持分で、持分付きの経費を経費の持分で按分します。
func (l *Ledger) OwnerRevenue(ctx context.Context, period database.PeriodFilter) (*RevenueReport, error) {
	lines, err := database.ListSaleLines(ctx, l.db, period)
	if err != nil {
		return nil, err
	}
	productShares, err := database.GetAllShares(ctx, l.db, model.EntityProduct)
	if err != nil {
		return nil, err
	}
	expenses, err := database.ListExpenses(ctx, l.db, database.ExpenseFilter{PeriodFilter: period})
	if err != nil {
		return nil, err
	}
	expenseShares, err := database.GetAllShares(ctx, l.db, model.EntityExpense)
	if err != nil {
		return nil, err
	}

	report := &RevenueReport{UnallocatedRevenue: decimal.Zero, UnallocatedCost: decimal.Zero}
	byOwner := make(map[int64]*model.OwnerRevenue)
	entry := func(s model.Share) *model.OwnerRevenue {
		r, ok := byOwner[s.OwnerID]
		if !ok {
			r = &model.OwnerRevenue{OwnerID: s.OwnerID, OwnerName: s.OwnerName, Revenue: decimal.Zero, Cost: decimal.Zero}
			byOwner[s.OwnerID] = r
		}
		return r
	}

	for _, line := range lines {
		amount := line.Price.Mul(decimal.NewFromInt(line.Quantity)).RoundBank(2)
		shares := productShares[line.ProductID]
		allocs, err := Distribute(amount, shares)
		if err != nil {
			report.UnallocatedRevenue = report.UnallocatedRevenue.Add(amount)
			continue
		}
		for i, a := range allocs {
			r := entry(shareFor(shares, a.OwnerID, i))
			r.Revenue = r.Revenue.Add(a.Amount)
		}
	}

	for _, e := range expenses {
		shares := expenseShares[e.ID]
		amount := e.Amount.RoundBank(2)
		allocs, err := Distribute(amount, shares)
		if err != nil {
			report.UnallocatedCost = report.UnallocatedCost.Add(amount)
			continue
		}
		for i, a := range allocs {
			r := entry(shareFor(shares, a.OwnerID, i))
			r.Cost = r.Cost.Add(a.Amount)
		}
	}

	report.Owners = make([]model.OwnerRevenue, 0, len(byOwner))
	for _, r := range byOwner {
		r.Net = r.Revenue.Sub(r.Cost)
		report.Owners = append(report.Owners, *r)
	}
	sort.Slice(report.Owners, func(i, j int) bool { return report.Owners[i].OwnerID < report.Owners[j].OwnerID })
	return report, nil
}

func shareFor(shares []model.Share, ownerID int64, hint int) model.Share {
	if hint < len(shares) && shares[hint].OwnerID == ownerID {
		return shares[hint]
	}
	for _, s := range shares {
		if s.OwnerID == ownerID {
			return s
		}
	}
	return model.Share{OwnerID: ownerID}
}
