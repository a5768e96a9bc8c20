package automation

import (
	"net/http"

	"almacen/render"
)

// AgingHandler は GET で定期確認の状態を返し、POST で即時に確認します。
func AgingHandler(s *Scheduler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			render.JSON(w, http.StatusOK, s.Status())
		case http.MethodPost:
			st := s.RunOnce(r.Context())
			if st.LastError != "" {
				render.JSON(w, http.StatusInternalServerError, st)
				return
			}
			render.JSON(w, http.StatusOK, st)
		default:
			render.MethodNotAllowed(w, http.MethodGet, http.MethodPost)
		}
	}
}
