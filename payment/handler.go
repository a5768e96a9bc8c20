package payment

import (
	"net/http"

	"almacen/config"
	"almacen/render"
)

type markPaidRequest struct {
	SaleID int64 `json:"saleId" validate:"required,gt=0"`
	Settlement
}

// MarkPaidHandler は販売1件を支払済みにします。
func MarkPaidHandler(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render.MethodNotAllowed(w, http.MethodPost)
			return
		}
		var req markPaidRequest
		if err := render.DecodeJSON(r, &req); err != nil {
			render.Error(w, err)
			return
		}
		sale, err := t.MarkPaid(r.Context(), req.SaleID, req.Settlement)
		if err != nil {
			config.LogError(config.GetLogger(), "payment", "MarkPaidHandler", "mark paid", req, err)
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, sale)
	}
}

type payBillRequest struct {
	CustomerID int64  `json:"customerId" validate:"required,gt=0"`
	Period     string `json:"period" validate:"required,len=7"`
	Settlement
}

// PayBillHandler は得意先の月別請求をまとめて精算します。
func PayBillHandler(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render.MethodNotAllowed(w, http.MethodPost)
			return
		}
		var req payBillRequest
		if err := render.DecodeJSON(r, &req); err != nil {
			render.Error(w, err)
			return
		}
		res, err := t.PayBill(r.Context(), req.CustomerID, req.Period, req.Settlement)
		if err != nil {
			config.LogError(config.GetLogger(), "payment", "PayBillHandler", "pay bill", req, err)
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, res)
	}
}

// MonthlyUnpaidHandler は ?customerId= の月別未払い額を返します。
func MonthlyUnpaidHandler(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		customerID, err := render.QueryID(r, "customerId")
		if err != nil {
			render.Error(w, err)
			return
		}
		debts, err := t.MonthlyUnpaid(r.Context(), customerID)
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, debts)
	}
}

// CheckAgingHandler は未払い超過の確認を即時に実行します。
func CheckAgingHandler(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render.MethodNotAllowed(w, http.MethodPost)
			return
		}
		n, err := t.CheckAging(r.Context())
		if err != nil {
			config.LogError(config.GetLogger(), "payment", "CheckAgingHandler", "check aging", nil, err)
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, map[string]int{"emitted": n})
	}
}

// PaymentsHandler は精算記録の一覧です。?customerId= と ?period= で絞り込めます。
func PaymentsHandler(t *Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			render.MethodNotAllowed(w, http.MethodGet)
			return
		}
		var customerID int64
		if r.URL.Query().Get("customerId") != "" {
			id, err := render.QueryID(r, "customerId")
			if err != nil {
				render.Error(w, err)
				return
			}
			customerID = id
		}
		payments, err := t.ListPayments(r.Context(), customerID, r.URL.Query().Get("period"))
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, payments)
	}
}
