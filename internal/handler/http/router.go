package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/storefront/internal/service"
	"github.com/utafrali/storefront/pkg/health"
	"github.com/utafrali/storefront/pkg/middleware"
)

// RouterConfig carries the collaborators the storefront router needs.
type RouterConfig struct {
	Registry      *service.Registry
	Health        *health.Handler
	Metrics       *middleware.HTTPMetrics
	Gatherer      prometheus.Gatherer
	ValidateToken middleware.TokenValidator
	CORS          middleware.CORSConfig
	RateLimit     middleware.RateLimitConfig
	Logger        *slog.Logger
}

// NewRouter creates a chi router with all storefront routes registered.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
	}
	r.Use(middleware.Tracing)

	// Health check endpoints
	r.Get("/health/live", cfg.Health.LivenessHandler())
	r.Get("/health/ready", cfg.Health.ReadinessHandler())
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	h := NewSessionHandler(cfg.Registry, cfg.Logger)

	r.Route("/api/v1/session", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(middleware.SessionID)
		r.Use(middleware.RateLimit(cfg.RateLimit, cfg.Logger))
		r.Use(middleware.OptionalAuth(cfg.ValidateToken))
		r.Use(middleware.RequestLogger(cfg.Logger))

		r.Get("/", h.GetSession)
		r.With(middleware.RequireAccount).Post("/sign-in", h.SignIn)
		r.Post("/sign-out", h.SignOut)
		r.Get("/notices", h.Notices)

		r.Get("/cart", h.GetCart)
		r.Delete("/cart", h.ClearCart)
		r.Post("/cart/items", h.AddItem)
		r.Patch("/cart/items/{productId}", h.UpdateQuantity)
		r.Delete("/cart/items/{productId}", h.RemoveItem)

		r.Get("/wishlist", h.GetWishlist)
		r.Get("/wishlist/{productId}", h.IsWishlisted)
		r.Post("/wishlist/{productId}/toggle", h.ToggleWishlist)

		r.Get("/compare", h.GetCompare)
		r.Post("/compare", h.AddToCompare)
		r.Delete("/compare", h.ClearCompare)
		r.Post("/compare/submit", h.SubmitCompare)
		r.Delete("/compare/{productId}", h.RemoveFromCompare)

		r.Get("/recent", h.GetRecent)
		r.Post("/recent", h.RecordView)
	})

	return r
}
