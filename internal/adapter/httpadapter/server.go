package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/wildfire-hotspot-etl/internal/pipeline"
)

// Runs is the pipeline surface the HTTP server exposes.
type Runs interface {
	sharedobs.ReadinessChecker
	TryRunOnce(ctx context.Context) (*pipeline.Report, error)
	LastReport() *pipeline.Report
}

// Server exposes health, readiness, metrics and run-trigger HTTP endpoints.
type Server struct {
	httpServer *http.Server
	runs       Runs
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and /runs routes.
func NewServer(addr string, runs Runs, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// POST /runs answers only after the whole batch is processed.
			WriteTimeout: 10 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		runs:   runs,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(runs))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /runs", s.handleTriggerRun)
	mux.HandleFunc("GET /runs/latest", s.handleLatestRun)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	// A disconnecting client does not abort a run that already started.
	report, err := s.runs.TryRunOnce(context.WithoutCancel(r.Context()))
	switch {
	case errors.Is(err, pipeline.ErrRunInProgress):
		sharedobs.WriteJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case err != nil:
		s.logger.Warn("triggered run failed", "error", err)
		if report == nil {
			sharedobs.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		sharedobs.WriteJSON(w, http.StatusInternalServerError, report)
	default:
		sharedobs.WriteJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleLatestRun(w http.ResponseWriter, _ *http.Request) {
	report := s.runs.LastReport()
	if report == nil {
		sharedobs.WriteJSON(w, http.StatusNotFound, map[string]string{"error": "no run has completed yet"})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, report)
}
