package loader

import (
	"net/http"

	"almacen/config"
	"almacen/render"

	"github.com/jmoiron/sqlx"
)

// SchemaStatusHandler は適用済みマイグレーションの一覧を返します。
func SchemaStatusHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := ListMigrations(r.Context(), db)
		if err != nil {
			config.LogError(config.GetLogger(), "loader", "SchemaStatusHandler", "list migrations", nil, err)
			render.Error(w, err)
			return
		}
		render.JSON(w, http.StatusOK, map[string]interface{}{
			"latest":     LatestVersion(),
			"migrations": records,
		})
	}
}

// MigrateHandler は未適用のマイグレーションを適用します。
func MigrateHandler(db *sqlx.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			render.MethodNotAllowed(w, http.MethodPost)
			return
		}
		config.GetLogger().Info("HTTP request received: applying pending migrations...")
		if err := InitDatabase(r.Context(), db); err != nil {
			config.LogError(config.GetLogger(), "loader", "MigrateHandler", "apply migrations", nil, err)
			render.Error(w, err)
			return
		}
		render.Message(w, http.StatusOK, "マイグレーションを適用しました。")
	}
}
