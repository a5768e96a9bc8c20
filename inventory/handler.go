package inventory

import (
	"net/http"

	"almacen/config"
	"almacen/database"
	"almacen/render"

	"github.com/jmoiron/sqlx"
)

type thresholdRequest struct {
	ProductID int64 `json:"productId" validate:"required,gt=0"`
	Threshold int64 `json:"threshold" validate:"gte=0"`
}

// AdjustThresholdHandler は在庫僅少の閾値を変更します。
func AdjustThresholdHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render.MethodNotAllowed(w, http.MethodPost)
			return
		}
		var req thresholdRequest
		if err := render.DecodeJSON(r, &req); err != nil {
			render.Error(w, err)
			return
		}
		p, err := AdjustThreshold(r.Context(), db, req.ProductID, req.Threshold)
		if err != nil {
			config.LogError(config.GetLogger(), "inventory", "AdjustThresholdHandler", "adjust threshold", req, err)
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, p)
	}
}

// LowStockHandler は在庫が閾値以下の商品一覧を返します。
func LowStockHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := database.ListLowStockProducts(r.Context(), db)
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, products)
	}
}
