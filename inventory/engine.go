// Package inventory は products.stock を変更する唯一の経路です。
package inventory

import (
	"context"
	"fmt"
	"sort"

	"almacen/apperr"
	"almacen/database"
	"almacen/model"
	"almacen/notification"

	"github.com/jmoiron/sqlx"
)

// Item は在庫を動かす1品目です。
type Item struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

// Shortage は在庫不足の品目です。InsufficientStock の details に入ります。
type Shortage struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Requested int64  `json:"requested"`
	Available int64  `json:"available"`
}

// Crossing は在庫が閾値を上から下回った (前 > 閾値、後 <= 閾値) 商品です。
type Crossing struct {
	ProductID int64
	Name      string
	Stock     int64
	Threshold int64
}

func (c Crossing) Event() notification.LowStockEvent {
	return notification.LowStockEvent{
		ProductID:   c.ProductID,
		ProductName: c.Name,
		Stock:       c.Stock,
		Threshold:   c.Threshold,
	}
}

// SaleResult は ApplySale の結果です。Products は減算前の商品 (販売時点の単価を含む) です。
type SaleResult struct {
	Products  map[int64]*model.Product
	Crossings []Crossing
}

// ApplyPurchase は仕入数量だけ在庫を増やします。
func ApplyPurchase(ctx context.Context, tx *sqlx.Tx, productID, qty int64) (*model.Product, error) {
	if qty <= 0 {
		return nil, apperr.Invalid("purchase quantity must be positive").WithDetail("quantity", qty)
	}
	p, err := database.GetProduct(ctx, tx, productID)
	if err != nil {
		return nil, err
	}
	ok, err := database.AddStockInTx(ctx, tx, productID, qty)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.NotFound("product", productID)
	}
	p.Stock += qty
	return p, nil
}

// ApplySale は全品目の在庫を書き込み前に検証し、1つでも不足があれば何も変更せずに
// 不足品目をすべて含む InsufficientStock を返します。
func ApplySale(ctx context.Context, tx *sqlx.Tx, items []Item) (*SaleResult, error) {
	qty, ids, err := merge(items)
	if err != nil {
		return nil, err
	}

	products, err := database.GetProductsByIDsMap(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	var shortages []Shortage
	for _, id := range ids {
		p, ok := products[id]
		if !ok {
			return nil, apperr.NotFound("product", id)
		}
		if p.Stock < qty[id] {
			shortages = append(shortages, Shortage{ProductID: id, Name: p.Name, Requested: qty[id], Available: p.Stock})
		}
	}
	if len(shortages) > 0 {
		return nil, insufficient(shortages)
	}

	result := &SaleResult{Products: products}
	for _, id := range ids {
		p := products[id]
		ok, err := database.AddStockInTx(ctx, tx, id, -qty[id])
		if err != nil {
			return nil, err
		}
		if !ok {
			// 同一トランザクション内で読んだ在庫と食い違った場合
			cur, err := database.GetProduct(ctx, tx, id)
			if err != nil {
				return nil, err
			}
			return nil, insufficient([]Shortage{{ProductID: id, Name: cur.Name, Requested: qty[id], Available: cur.Stock}})
		}

		after := p.Stock - qty[id]
		if p.Stock > p.LowStockThreshold && after <= p.LowStockThreshold {
			result.Crossings = append(result.Crossings, Crossing{
				ProductID: id,
				Name:      p.Name,
				Stock:     after,
				Threshold: p.LowStockThreshold,
			})
		}
	}
	return result, nil
}

// Restock は取消などで戻す数量だけ在庫を増やします。
func Restock(ctx context.Context, tx *sqlx.Tx, items []Item) error {
	qty, ids, err := merge(items)
	if err != nil {
		return err
	}
	for _, id := range ids {
		ok, err := database.AddStockInTx(ctx, tx, id, qty[id])
		if err != nil {
			return err
		}
		if !ok {
			return apperr.NotFound("product", id)
		}
	}
	return nil
}

// AdjustThreshold は在庫僅少の閾値を変更します。
func AdjustThreshold(ctx context.Context, db *sqlx.DB, productID, threshold int64) (*model.Product, error) {
	if threshold < 0 {
		return nil, apperr.Invalid("threshold must not be negative").WithDetail("threshold", threshold)
	}
	var p *model.Product
	err := database.WithTx(ctx, db, func(tx *sqlx.Tx) error {
		if err := database.SetLowStockThreshold(ctx, tx, productID, threshold); err != nil {
			return err
		}
		var err error
		p, err = database.GetProduct(ctx, tx, productID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("AdjustThreshold (product %d): %w", productID, err)
	}
	return p, nil
}

// merge は品目を商品IDごとに合算し、ID の昇順で返します。
func merge(items []Item) (map[int64]int64, []int64, error) {
	if len(items) == 0 {
		return nil, nil, apperr.Invalid("at least one item is required")
	}
	qty := make(map[int64]int64, len(items))
	for _, it := range items {
		if it.Quantity <= 0 {
			return nil, nil, apperr.Invalid("quantity must be positive").
				WithDetail("productId", it.ProductID).
				WithDetail("quantity", it.Quantity)
		}
		qty[it.ProductID] += it.Quantity
	}
	ids := make([]int64, 0, len(qty))
	for id := range qty {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return qty, ids, nil
}

func insufficient(shortages []Shortage) error {
	return apperr.New(apperr.KindInsufficientStock, "insufficient stock for %d item(s)", len(shortages)).
		WithDetail("items", shortages)
}
