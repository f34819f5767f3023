package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/devdash/internal/metrics"
	"github.com/hitoshi/devdash/internal/model"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	Get(ctx context.Context, userID string) (*model.Dashboard, error)
	Save(ctx context.Context, userID string, update model.DashboardUpdate) (*model.Dashboard, error)
	UpdateTheme(ctx context.Context, userID string, theme model.Theme) (model.Theme, error)
}

// DashboardHandler はダッシュボードと設定のHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
	metrics metrics.MetricsCollector
}

// NewDashboardHandler はDashboardHandlerを生成する。collector は nil でもよい。
func NewDashboardHandler(service DashboardServiceInterface, collector metrics.MetricsCollector) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		metrics: collector,
	}
}

type settingsRequest struct {
	Theme model.Theme `json:"theme"`
}

type settingsResponse struct {
	Message string      `json:"message"`
	Theme   model.Theme `json:"theme"`
}

// GetDashboard は認証ユーザーのダッシュボードを返す。
// GET /api/dashboard
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	d, err := h.service.Get(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// SaveDashboard はダッシュボードを作成または置き換える。
// PUT /api/dashboard
func (h *DashboardHandler) SaveDashboard(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var update model.DashboardUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	d, err := h.service.Save(r.Context(), userID, update)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordDashboardSave()
	}
	writeJSON(w, http.StatusOK, d)
}

// UpdateSettings はテーマ設定を更新する。
// PUT /api/settings
func (h *DashboardHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req settingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	theme, err := h.service.UpdateTheme(r.Context(), userID, req.Theme)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settingsResponse{
		Message: "Settings updated successfully",
		Theme:   theme,
	})
}
