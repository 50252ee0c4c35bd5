package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/txfeed/service/activity"
	"github.com/brojonat/txfeed/service/config"
	"github.com/brojonat/txfeed/service/metrics"
	natspkg "github.com/brojonat/txfeed/service/nats"
	"github.com/brojonat/txfeed/service/reconcile"
	"github.com/brojonat/txfeed/service/temporal"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ActivityService is what the HTTP API needs from the reconciliation engine.
// *reconcile.Engine implements it.
type ActivityService interface {
	Run(ctx context.Context, address string) (*reconcile.PassResult, error)
	GetMergedActivities(ctx context.Context, address string) ([]activity.Activity, error)
}

// StatusSubscriber streams status change events. *nats.Subscriber implements it.
type StatusSubscriber interface {
	Subscribe(ctx context.Context, address string, handle func(*natspkg.StatusChangeEvent)) error
}

// Server represents the HTTP server for the activity feed.
type Server struct {
	addr       string
	cfg        *config.Config
	service    ActivityService
	scheduler  temporal.Scheduler
	subscriber StatusSubscriber
	metrics    *metrics.Metrics
	logger     *slog.Logger
	server     *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The subscriber is optional; without it the streaming endpoint is not served.
// The metrics is optional; without it /metrics is not served.
func New(addr string, cfg *config.Config, service ActivityService, scheduler temporal.Scheduler, subscriber StatusSubscriber, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:       addr,
		cfg:        cfg,
		service:    service,
		scheduler:  scheduler,
		subscriber: subscriber,
		metrics:    m,
		logger:     logger,
	}
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern, name string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, name)(h))
	}

	route("GET /api/v1/activities/{address}", "/api/v1/activities/{address}",
		handleGetActivities(s.service, s.logger))
	route("POST /api/v1/activities/{address}/reconcile", "/api/v1/activities/{address}/reconcile",
		handleReconcile(s.service, s.logger))
	route("POST /api/v1/schedules", "/api/v1/schedules",
		handleCreateSchedule(s.scheduler, s.cfg, s.logger))
	route("DELETE /api/v1/schedules/{address}", "/api/v1/schedules/{address}",
		handleDeleteSchedule(s.scheduler, s.logger))

	if s.subscriber != nil {
		route("GET /api/v1/stream/status/{address}", "/api/v1/stream/status/{address}",
			handleStreamStatus(s.subscriber, s.metrics, s.logger))
		route("GET /api/v1/stream/status", "/api/v1/stream/status",
			handleStreamStatus(s.subscriber, s.metrics, s.logger))
	} else {
		s.logger.Warn("NATS subscriber not configured, streaming endpoints disabled")
	}

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// No write timeout: SSE connections stay open.
		IdleTimeout: 60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
