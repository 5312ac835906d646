package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// SetupRoutes configures the router: the public metrics read path, the
// scheduler-only sync triggers and the OAuth handshake endpoints.
func SetupRoutes(h *Handlers) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HealthCheck)

	// OAuth handshakes (no auth; the platforms redirect the browser here)
	r.Get("/auth/shopify", h.ShopifyAuthorize)
	r.Get("/auth/shopify/callback", h.ShopifyCallback)
	r.Get("/auth/tiktok", h.TikTokAuthorize)
	r.Get("/auth/tiktok/callback", h.TikTokCallback)

	r.Route("/api", func(r chi.Router) {
		r.Get("/metrics", h.GetMetrics)

		// Sync triggers mutate stored rows and are reserved for the
		// scheduler.
		r.Group(func(r chi.Router) {
			r.Use(h.requireScheduler)
			r.Get("/sync/{platform}", h.SyncPlatform)
			r.Get("/backfill/{platform}", h.Backfill)
		})
	})

	return r
}

// requireScheduler admits requests carrying the shared cron secret or the
// in-process scheduler header. Everything else is rejected before any
// side effects.
func (h *Handlers) requireScheduler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if h.cronSecret != "" && req.Header.Get("Authorization") == "Bearer "+h.cronSecret {
			next.ServeHTTP(w, req)
			return
		}
		if req.Header.Get("X-Scheduler") == "1" {
			next.ServeHTTP(w, req)
			return
		}
		writeError(w, http.StatusUnauthorized, "unauthorized", "")
	})
}
