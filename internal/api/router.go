package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	apiMiddleware "github.com/phrazzld/taskflow/internal/api/middleware"
	"github.com/phrazzld/taskflow/internal/task"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider exposes the live state of a run.
type StatsProvider interface {
	Snapshot() task.Snapshot
}

// RouterConfig wires the status routes to a run.
type RouterConfig struct {
	// Stats is required.
	Stats StatsProvider

	// Stop ends the run window early. POST /stop is only routed when set.
	Stop func()

	// Gatherer backs /metrics. The route is omitted when nil.
	Gatherer prometheus.Gatherer

	Logger *slog.Logger
}

// NewRouter creates the status router.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "status_server")

	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(logger))

	h := NewStatusHandler(cfg.Stats, cfg.Stop, logger)

	r.Get("/health", h.Health)
	r.Get("/stats", h.Stats)
	if cfg.Stop != nil {
		r.Post("/stop", h.Stop)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	return r
}
