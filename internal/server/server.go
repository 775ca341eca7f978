// Package server exposes the notification center as a JSON API for the
// web dashboard, plus health and Prometheus endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httplog/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/nhle/notification-center/internal/logger"
	"github.com/nhle/notification-center/internal/metrics"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Deps holds what the router needs.
type Deps struct {
	Notifications  Notifications
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Logger         *slog.Logger
	AllowedOrigins []string

	// RateLimit and Burst bound requests per client. A zero RateLimit
	// disables limiting.
	RateLimit rate.Limit
	Burst     int
}

// NewRouter builds the HTTP handler.
func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = logger.Discard()
	}
	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	h := &handler{svc: d.Notifications, log: log}

	r := chi.NewRouter()
	r.Use(metricsMiddleware(d.Metrics))
	r.Use(chimiddleware.RequestID)
	r.Use(httplog.RequestLogger(log, &httplog.Options{
		Level:  slog.LevelInfo,
		Schema: httplog.SchemaECS,
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.health)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/notifications", func(r chi.Router) {
		if d.RateLimit > 0 {
			r.Use(newRateLimiter(d.RateLimit, d.Burst).limit)
		}
		r.Use(chimiddleware.Timeout(requestTimeout))
		r.Get("/", h.list)
		r.Post("/refresh", h.refresh)
		r.Post("/{id}/read", h.markRead)
		r.Delete("/{id}", h.delete)
	})

	return r
}

// Server runs the API until its context is canceled.
type Server struct {
	http *http.Server
	log  *slog.Logger
}

func New(addr string, handler http.Handler, log *slog.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("server started", "addr", s.http.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log.Info("server exited cleanly")
	return nil
}
