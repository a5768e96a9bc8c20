package notification

import (
	"net/http"

	"almacen/config"
	"almacen/render"
)

// ListHandler は通知一覧と未読件数を返します。?unread=1 で未読のみ。
func ListHandler(e *Emitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		unreadOnly := r.URL.Query().Get("unread") == "1"
		list, err := e.List(r.Context(), unreadOnly)
		if err != nil {
			config.LogError(config.GetLogger(), "notification", "ListHandler", "list notifications", nil, err)
			render.Error(w, err)
			return
		}
		count, err := e.UnreadCount(r.Context())
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, map[string]interface{}{
			"notifications": list,
			"unreadCount":   count,
		})
	}
}

type markReadRequest struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

func MarkReadHandler(e *Emitter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render.MethodNotAllowed(w, http.MethodPost)
			return
		}
		var req markReadRequest
		if err := render.DecodeJSON(r, &req); err != nil {
			render.Error(w, err)
			return
		}
		n, err := e.MarkRead(r.Context(), req.ID)
		if err != nil {
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, n)
	}
}
