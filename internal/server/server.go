// internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"matching-workers/internal/common/database"
	"matching-workers/internal/common/logger"
	"matching-workers/internal/matching/cache"
)

const readyTimeout = 3 * time.Second

// Options configure the ops server. Zero values fall back to the prometheus
// default gatherer and no cache stats route.
type Options struct {
	Port         int
	Dependencies []database.Dependency
	CacheStats   func() cache.Stats
	TaskTypes    func() []string
	Gatherer     prometheus.Gatherer
	Logger       logger.Logger
	Clock        func() time.Time
}

// Server exposes health, readiness and metrics for the worker manager.
type Server struct {
	opts   Options
	router chi.Router
	srv    *http.Server
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logger.NewNoOpLogger()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{opts: opts}
	s.router = s.routes()
	s.srv = &http.Server{
		Addr:              fmt.Sprintf(":%d", opts.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.health)
	r.Get("/ready", s.ready)
	r.Handle("/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	if s.opts.CacheStats != nil {
		r.Get("/cache/stats", s.cacheStats)
	}
	return r
}

// Start serves in the background. Listener failures are logged.
func (s *Server) Start() {
	go func() {
		s.opts.Logger.Info("Health/Metrics server listening", map[string]interface{}{"addr": s.srv.Addr})
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.opts.Logger.Error("Health/Metrics server failed", map[string]interface{}{"error": err.Error()})
		}
	}()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "healthy",
		"time":   s.opts.Clock().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	body := map[string]interface{}{
		"time": s.opts.Clock().Format(time.RFC3339),
	}
	if s.opts.TaskTypes != nil {
		body["workers"] = s.opts.TaskTypes()
	}

	if err := database.PingAll(ctx, s.opts.Dependencies...); err != nil {
		s.opts.Logger.Warn("Readiness check failed", map[string]interface{}{"error": err.Error()})
		body["status"] = "unavailable"
		body["error"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, body)
		return
	}
	body["status"] = "ready"
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) cacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.opts.CacheStats())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
