package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newswire/internal/metrics"
	"github.com/hitoshi/newswire/internal/middleware"
)

// RouterDeps はルーター構築に必要な依存をまとめる。
type RouterDeps struct {
	ItemHandler   *ItemHandler
	AdminHandler  *AdminHandler
	WSHandler     *WSHandler
	HealthHandler *HealthHandler

	RateLimiter *middleware.RateLimiter
	Logger      *slog.Logger
	Gatherer    prometheus.Gatherer

	CORSAllowedOrigin string
	AdminToken        string
}

// NewRouter はAPIルーターを構築する。
// ミドルウェアの適用順: recovery → logging → CORS。
// ポーリングAPIにはレート制限、管理APIにはBearerトークン認証を適用する。
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.Get("/health", deps.HealthHandler.Health)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api/items", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}
		r.Get("/", deps.ItemHandler.ListItems)
	})

	r.Get("/ws", deps.WSHandler.Serve)

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.NewAdminTokenMiddleware(deps.AdminToken))
		r.Post("/sources/{id}/refresh", deps.AdminHandler.RefreshSource)
	})

	return r
}
