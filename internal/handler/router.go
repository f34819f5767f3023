package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/devdash/internal/metrics"
	"github.com/hitoshi/devdash/internal/middleware"
	"github.com/hitoshi/devdash/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	BodyLimit         int64

	// 可観測性。Logger が nil の場合は slog.Default() に出力する。
	// MetricsHandler が nil の場合 /metrics は公開しない。
	Logger         *slog.Logger
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	AuthService      AuthServiceInterface
	DashboardService DashboardServiceInterface
	DB               DBPinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → Metrics → SecurityHeaders → CORS → BodyLimit
//	  /api/*: RateLimit → (保護ルートのみ) Auth
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewRecoveryMiddleware())
	if deps.Metrics != nil {
		r.Use(metrics.NewHTTPMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewBodyLimitMiddleware(deps.BodyLimit))

	authHandler := NewAuthHandler(deps.AuthService, deps.Metrics)
	dashboardHandler := NewDashboardHandler(deps.DashboardService, deps.Metrics)

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		// --- 認証不要のルート ---
		r.Get("/health", NewHealthHandler(deps.DB))
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))

			r.Get("/dashboard", dashboardHandler.GetDashboard)
			r.Put("/dashboard", dashboardHandler.SaveDashboard)
			r.Put("/settings", dashboardHandler.UpdateSettings)
		})
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// 未定義のパスとメソッドはどちらも404として扱う
	notFound := func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
	}
	r.NotFound(notFound)
	r.MethodNotAllowed(notFound)

	return r
}
