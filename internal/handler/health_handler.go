package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/6ixhq/creator/internal/database"
)

const healthPingTimeout = 2 * time.Second

// HealthHandler はDB接続を確認するヘルスチェックハンドラー。
// GET /health
func HealthHandler(db database.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := database.Ping(r.Context(), db, healthPingTimeout); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
