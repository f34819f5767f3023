package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// DBPinger はデータベース疎通確認のインターフェース。*sql.DB が実装する。
type DBPinger interface {
	PingContext(ctx context.Context) error
}

const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
}

// NewHealthHandler はサービスとデータベースの状態を返すハンドラーを生成する。
// データベースに接続できない場合は503を返す。
// GET /api/health
func NewHealthHandler(db DBPinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{
			Status:    "OK",
			Timestamp: time.Now().UTC(),
			Database:  "connected",
		}
		status := http.StatusOK

		if db == nil {
			resp.Database = "unconfigured"
		} else {
			ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				slog.Warn("health check database ping failed", slog.String("error", err.Error()))
				resp.Status = "ERROR"
				resp.Database = "disconnected"
				status = http.StatusServiceUnavailable
			}
		}

		writeJSON(w, status, resp)
	}
}
