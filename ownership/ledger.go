// Package ownership は商品と経費のオーナー持分を管理し、金額を持分で按分します。
package ownership

import (
	"context"
	"fmt"
	"sort"

	"almacen/apperr"
	"almacen/database"
	"almacen/model"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Ledger struct {
	db *sqlx.DB
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// AssignShares は対象の持分を丸ごと置き換えます。finalize が true の場合のみ合計 100 を要求します。
func (l *Ledger) AssignShares(ctx context.Context, ref model.EntityRef, shares []model.Share, finalize bool) ([]model.Share, error) {
	var saved []model.Share
	err := database.WithTx(ctx, l.db, func(tx *sqlx.Tx) error {
		if err := AssignSharesTx(ctx, tx, ref, shares, finalize); err != nil {
			return err
		}
		var err error
		saved, err = database.GetShares(ctx, tx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// AssignSharesTx は呼び出し側のトランザクション内で AssignShares と同じ処理を行います。
func AssignSharesTx(ctx context.Context, tx *sqlx.Tx, ref model.EntityRef, shares []model.Share, finalize bool) error {
	if err := ValidateShares(shares, finalize); err != nil {
		return err
	}
	if err := ensureEntity(ctx, tx, ref); err != nil {
		return err
	}

	ids := make([]int64, len(shares))
	for i, s := range shares {
		ids[i] = s.OwnerID
	}
	missing, err := database.MissingOwnerIDs(ctx, tx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return apperr.NotFound("owner", missing[0]).WithDetail("missingOwnerIds", missing)
	}

	return database.ReplaceSharesInTx(ctx, tx, ref, shares)
}

// ValidateShares は持分の形式を検証します。
func ValidateShares(shares []model.Share, finalize bool) error {
	seen := make(map[int64]bool, len(shares))
	for _, s := range shares {
		if s.OwnerID <= 0 {
			return apperr.Invalid("owner id must be positive").WithDetail("ownerId", s.OwnerID)
		}
		if seen[s.OwnerID] {
			return apperr.Invalid("owner %d appears more than once", s.OwnerID).WithDetail("ownerId", s.OwnerID)
		}
		seen[s.OwnerID] = true
		if s.Percentage.IsNegative() || s.Percentage.GreaterThan(hundred) {
			return apperr.Invalid("percentage must be between 0 and 100").
				WithDetail("ownerId", s.OwnerID).
				WithDetail("percentage", s.Percentage)
		}
		if !s.Percentage.Equal(s.Percentage.Round(2)) {
			return apperr.Invalid("percentage allows at most 2 decimal places").
				WithDetail("ownerId", s.OwnerID).
				WithDetail("percentage", s.Percentage)
		}
	}
	if finalize {
		if sum := Sum(shares); !sum.Equal(hundred) {
			return apperr.New(apperr.KindInvalidShareSum, "shares sum to %s, expected 100", sum.String()).
				WithDetail("sum", sum)
		}
	}
	return nil
}

func Sum(shares []model.Share) decimal.Decimal {
	sum := decimal.Zero
	for _, s := range shares {
		sum = sum.Add(s.Percentage)
	}
	return sum
}

func ensureEntity(ctx context.Context, dbtx database.DBTX, ref model.EntityRef) error {
	switch ref.Kind {
	case model.EntityProduct:
		_, err := database.GetProduct(ctx, dbtx, ref.ID)
		return err
	case model.EntityExpense:
		_, err := database.GetExpense(ctx, dbtx, ref.ID)
		return err
	}
	return apperr.Invalid("unknown entity kind %q", ref.Kind)
}

func (l *Ledger) GetShares(ctx context.Context, ref model.EntityRef) ([]model.Share, error) {
	if err := ensureEntity(ctx, l.db, ref); err != nil {
		return nil, err
	}
	return database.GetShares(ctx, l.db, ref)
}

// IsFullyAllocated は持分の合計がちょうど 100 かどうかを返します。
func (l *Ledger) IsFullyAllocated(ctx context.Context, ref model.EntityRef) (bool, error) {
	shares, err := l.GetShares(ctx, ref)
	if err != nil {
		return false, err
	}
	return len(shares) > 0 && Sum(shares).Equal(hundred), nil
}

// ComputeDistribution は amount を対象の持分で按分します。
func (l *Ledger) ComputeDistribution(ctx context.Context, ref model.EntityRef, amount decimal.Decimal) ([]model.Allocation, error) {
	shares, err := l.GetShares(ctx, ref)
	if err != nil {
		return nil, err
	}
	allocs, err := Distribute(amount, shares)
	if err != nil {
		return nil, fmt.Errorf("distribution for %s %d: %w", ref.Kind, ref.ID, err)
	}
	return allocs, nil
}

// Distribute は amount × 持分 / 100 を銀行丸めで 1 セント単位にし、端数を最大持分
// (同率ならオーナーIDの小さい方) に寄せます。結果の合計は amount と一致します。
// 1 セント未満の端数を含む amount は Invalid です。
func Distribute(amount decimal.Decimal, shares []model.Share) ([]model.Allocation, error) {
	if !amount.Equal(amount.Round(2)) {
		return nil, apperr.Invalid("amount allows at most 2 decimal places").WithDetail("amount", amount)
	}
	if len(shares) == 0 || !Sum(shares).Equal(hundred) {
		return nil, apperr.New(apperr.KindInvalidShareSum, "distribution requires shares summing to 100").
			WithDetail("sum", Sum(shares))
	}

	allocs := make([]model.Allocation, len(shares))
	allocated := decimal.Zero
	largest := 0
	for i, s := range shares {
		part := amount.Mul(s.Percentage).Div(hundred).RoundBank(2)
		allocs[i] = model.Allocation{OwnerID: s.OwnerID, Percentage: s.Percentage, Amount: part}
		allocated = allocated.Add(part)

		lg := shares[largest]
		if s.Percentage.GreaterThan(lg.Percentage) || (s.Percentage.Equal(lg.Percentage) && s.OwnerID < lg.OwnerID) {
			largest = i
		}
	}
	if residual := amount.Sub(allocated); !residual.IsZero() {
		allocs[largest].Amount = allocs[largest].Amount.Add(residual)
	}

	sort.Slice(allocs, func(i, j int) bool { return allocs[i].OwnerID < allocs[j].OwnerID })
	return allocs, nil
}
