package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/agrimind-ai/agrimind/libs/agri-engine/cmd/agrimind-api/handlers"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/cmd/agrimind-api/middleware"
	"github.com/agrimind-ai/agrimind/libs/agri-engine/internal/observability"
)

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	RequestTimeout time.Duration
	AdminAPIKey    string
	AllowedOrigins []string
	// Metrics, when set, is served on /metrics.
	Metrics http.Handler
}

// NewRouter creates the API router with all routes configured.
func NewRouter(logger *observability.Logger, svc handlers.Service, cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestContext)
	r.Use(middleware.AccessLog(logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Timeout(cfg.RequestTimeout))

	qa := handlers.NewQAHandler(logger, svc)

	r.Get("/health", qa.Health)
	r.Get("/ready", qa.Ready)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/extract", qa.Extract)
		r.Post("/match", qa.Match)
		r.Post("/ask", qa.Ask)

		r.With(middleware.AdminKey(cfg.AdminAPIKey)).Post("/reload", qa.Reload)
	})

	return r
}
