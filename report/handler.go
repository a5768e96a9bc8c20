package report

import (
	"context"
	"net/http"
	"time"

	"almacen/config"
	"almacen/model"
	"almacen/render"
)

func BalanceHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := s.Balance(r.Context())
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, b)
	}
}

func periodHandler(fetch func(ctx context.Context, rg Range) ([]model.FinancialReport, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rg, err := ParseRange(r, time.Now(), config.GetConfig().Location())
		if err != nil {
			render.Error(w, err)
			return
		}
		rows, err := fetch(r.Context(), rg)
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, rows)
	}
}

// DailyHandler は ?from=&to= の日次収支を返します。
func DailyHandler(s *Service) http.HandlerFunc {
	return periodHandler(s.Daily)
}

// MonthlyHandler は ?from=&to= の月次収支を返します。
func MonthlyHandler(s *Service) http.HandlerFunc {
	return periodHandler(s.Monthly)
}

func ValuationHandler(s *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.StockValuation(r.Context())
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, v)
	}
}
