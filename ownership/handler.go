package ownership

import (
	"net/http"
	"time"

	"almacen/apperr"
	"almacen/config"
	"almacen/model"
	"almacen/render"
	"almacen/report"

	"github.com/shopspring/decimal"
)

func entityRef(r *http.Request) (model.EntityRef, error) {
	kind := model.EntityKind(r.URL.Query().Get("kind"))
	if kind != model.EntityProduct && kind != model.EntityExpense {
		return model.EntityRef{}, apperr.Invalid("kind must be product or expense").WithDetail("kind", kind)
	}
	id, err := render.QueryID(r, "id")
	if err != nil {
		return model.EntityRef{}, err
	}
	return model.EntityRef{Kind: kind, ID: id}, nil
}

type assignRequest struct {
	Kind     model.EntityKind `json:"kind" validate:"required,oneof=product expense"`
	ID       int64            `json:"id" validate:"required,gt=0"`
	Shares   []model.Share    `json:"shares" validate:"dive"`
	Finalize bool             `json:"finalize"`
}

type sharesResponse struct {
	Shares         []model.Share   `json:"shares"`
	Sum            decimal.Decimal `json:"sum"`
	FullyAllocated bool            `json:"fullyAllocated"`
}

func newSharesResponse(shares []model.Share) sharesResponse {
	sum := Sum(shares)
	return sharesResponse{Shares: shares, Sum: sum, FullyAllocated: len(shares) > 0 && sum.Equal(hundred)}
}

// SharesHandler は GET ?kind=&id= で持分を返し、POST で持分を置き換えます。
func SharesHandler(l *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			ref, err := entityRef(r)
			if err != nil {
				render.Error(w, err)
				return
			}
			shares, err := l.GetShares(r.Context(), ref)
			if err != nil {
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusOK, newSharesResponse(shares))
		case http.MethodPost:
			var req assignRequest
			if err := render.DecodeJSON(r, &req); err != nil {
				render.Error(w, err)
				return
			}
			ref := model.EntityRef{Kind: req.Kind, ID: req.ID}
			shares, err := l.AssignShares(r.Context(), ref, req.Shares, req.Finalize)
			if err != nil {
				config.LogError(config.GetLogger(), "ownership", "SharesHandler", "assign shares", req, err)
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusOK, newSharesResponse(shares))
		default:
			render.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

// DistributionHandler は ?kind=&id=&amount= の金額を持分で按分します。
func DistributionHandler(l *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ref, err := entityRef(r)
		if err != nil {
			render.Error(w, err)
			return
		}
		raw := r.URL.Query().Get("amount")
		amount, err := decimal.NewFromString(raw)
		if err != nil || amount.IsNegative() {
			render.Error(w, apperr.Invalid("amount must be a non-negative number").WithDetail("amount", raw))
			return
		}
		allocs, err := l.ComputeDistribution(r.Context(), ref, amount)
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, allocs)
	}
}

// OwnerRevenueHandler は ?from=&to= の期間のオーナー別収支を返します。
func OwnerRevenueHandler(l *Ledger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rg, err := report.ParseRange(r, time.Now(), config.GetConfig().Location())
		if err != nil {
			render.Error(w, err)
			return
		}
		rep, err := l.OwnerRevenue(r.Context(), rg.Filter())
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, rep)
	}
}
