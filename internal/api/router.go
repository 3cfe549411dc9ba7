package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"groupsync/internal/middleware"
)

// RouterOptions carries the cross-cutting settings for the status API.
type RouterOptions struct {
	// Validator guards /v1 routes. nil leaves them open.
	Validator middleware.JWTValidator

	CORSAllowedOrigins []string
	RateLimit          middleware.RateLimitConfig
}

// NewRouter assembles the status API router.
func NewRouter(h *Handler, opts RouterOptions) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	if opts.RateLimit.RequestsPerSecond > 0 {
		r.Use(middleware.RateLimiter(opts.RateLimit))
	}

	r.Get("/healthz", h.Health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.RequireAuth(opts.Validator))
		r.Get("/jobs", h.ListJobs)
		r.Get("/runs", h.ListRuns)
		r.Get("/runs/{runID}", h.GetRun)
		if h.reloader != nil {
			r.Post("/schedule/reload", h.ReloadSchedule)
		}
	})

	return r
}
