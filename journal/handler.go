package journal

import (
	"net/http"
	"time"

	"almacen/config"
	"almacen/database"
	"almacen/locale"
	"almacen/render"
	"almacen/report"
)

func periodFilter(r *http.Request, now time.Time) (database.PeriodFilter, error) {
	q := r.URL.Query()
	if q.Get("from") == "" && q.Get("to") == "" {
		return database.PeriodFilter{}, nil
	}
	cfg := config.GetConfig()
	rg, err := report.ParseRange(r, now, cfg.Location())
	if err != nil {
		return database.PeriodFilter{}, err
	}
	return rg.Filter(), nil
}

func optionalID(r *http.Request, key string) (int64, error) {
	if r.URL.Query().Get(key) == "" {
		return 0, nil
	}
	return render.QueryID(r, key)
}

// PurchasesHandler は GET で一覧、POST で仕入を記録します。
func PurchasesHandler(j *Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			period, err := periodFilter(r, j.now())
			if err != nil {
				render.Error(w, err)
				return
			}
			productID, err := optionalID(r, "productId")
			if err != nil {
				render.Error(w, err)
				return
			}
			supplierID, err := optionalID(r, "supplierId")
			if err != nil {
				render.Error(w, err)
				return
			}
			list, err := j.ListPurchases(r.Context(), database.PurchaseFilter{PeriodFilter: period, ProductID: productID, SupplierID: supplierID})
			if err != nil {
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusOK, list)
		case http.MethodPost:
			var in PurchaseInput
			if err := render.DecodeJSON(r, &in); err != nil {
				render.Error(w, err)
				return
			}
			p, err := j.RecordPurchase(r.Context(), in)
			if err != nil {
				config.LogError(config.GetLogger(), "journal", "PurchasesHandler", "record purchase", in, err)
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusCreated, p)
		default:
			render.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

// SalesHandler は GET で一覧 (?id= で1件)、POST で販売を記録します。
func SalesHandler(j *Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			if r.URL.Query().Get("id") != "" {
				id, err := render.QueryID(r, "id")
				if err != nil {
					render.Error(w, err)
					return
				}
				sale, err := j.GetSale(r.Context(), id)
				if err != nil {
					render.Error(w, err)
					return
				}
				render.JSON(w, http.StatusOK, sale)
				return
			}
			f, err := saleFilter(r, j.now())
			if err != nil {
				render.Error(w, err)
				return
			}
			list, err := j.ListSales(r.Context(), f)
			if err != nil {
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusOK, list)
		case http.MethodPost:
			var in SaleInput
			if err := render.DecodeJSON(r, &in); err != nil {
				render.Error(w, err)
				return
			}
			sale, err := j.RecordSale(r.Context(), in)
			if err != nil {
				config.LogError(config.GetLogger(), "journal", "SalesHandler", "record sale", in, err)
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusCreated, sale)
		default:
			render.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}

func saleFilter(r *http.Request, now time.Time) (database.SaleFilter, error) {
	period, err := periodFilter(r, now)
	if err != nil {
		return database.SaleFilter{}, err
	}
	customerID, err := optionalID(r, "customerId")
	if err != nil {
		return database.SaleFilter{}, err
	}
	q := r.URL.Query()
	return database.SaleFilter{
		PeriodFilter:  period,
		CustomerID:    customerID,
		UnpaidOnly:    q.Get("unpaid") == "1",
		IncludeVoided: q.Get("voided") == "1",
	}, nil
}

// SalesTableHandler は販売一覧を HTML テーブルで返します。
func SalesTableHandler(j *Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := saleFilter(r, j.now())
		if err != nil {
			render.Error(w, err)
			return
		}
		list, err := j.ListSales(r.Context(), f)
		if err != nil {
			render.Error(w, err)
			return
		}
		customers, err := database.GetAllCustomers(r.Context(), j.db)
		if err != nil {
			render.Error(w, err)
			return
		}
		customerMap := make(map[int64]string, len(customers))
		for _, c := range customers {
			customerMap[c.ID] = c.Name
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(render.RenderSalesTableHTML(list, customerMap)))
	}
}

type voidRequest struct {
	SaleID int64  `json:"saleId" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=500"`
}

func VoidSaleHandler(j *Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render.MethodNotAllowed(w, http.MethodPost)
			return
		}
		var req voidRequest
		if err := render.DecodeJSON(r, &req); err != nil {
			render.Error(w, err)
			return
		}
		v, err := j.VoidSale(r.Context(), req.SaleID, req.Reason)
		if err != nil {
			config.LogError(config.GetLogger(), "journal", "VoidSaleHandler", "void sale", req, err)
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, v)
	}
}

// ExpensesHandler は GET で一覧、POST で経費を記録、DELETE ?id= で削除します。
func ExpensesHandler(j *Journal) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			period, err := periodFilter(r, j.now())
			if err != nil {
				render.Error(w, err)
				return
			}
			list, err := j.ListExpenses(r.Context(), database.ExpenseFilter{PeriodFilter: period, Category: r.URL.Query().Get("category")})
			if err != nil {
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusOK, list)
		case http.MethodPost:
			var in ExpenseInput
			if err := render.DecodeJSON(r, &in); err != nil {
				render.Error(w, err)
				return
			}
			e, err := j.RecordExpense(r.Context(), in)
			if err != nil {
				config.LogError(config.GetLogger(), "journal", "ExpensesHandler", "record expense", in, err)
				render.Error(w, err)
				return
			}
			render.JSON(w, http.StatusCreated, e)
		case http.MethodDelete:
			id, err := render.QueryID(r, "id")
			if err != nil {
				render.Error(w, err)
				return
			}
			if err := j.DeleteExpense(r.Context(), id); err != nil {
				render.Error(w, err)
				return
			}
			render.Message(w, http.StatusOK, "%s %d を削除しました。", locale.Sprintf("経費"), id)
		default:
			render.MethodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
		}
	}
}
