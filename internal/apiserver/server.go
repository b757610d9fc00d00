// Package apiserver exposes the diagnostic engine over HTTP: agent
// endpoints that run the orchestrator, evidence endpoints for direct
// operator access, and health, readiness, and metrics endpoints.
package apiserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/opsight/opsight/internal/agent/orchestrator"
	"github.com/opsight/opsight/internal/evidence"
	"github.com/opsight/opsight/internal/logging"
)

// ReadinessChecker reports whether the service is ready to take requests.
type ReadinessChecker interface {
	IsReady() bool
}

// NoOpReadinessChecker always reports ready.
type NoOpReadinessChecker struct{}

func (n *NoOpReadinessChecker) IsReady() bool { return true }

// Server handles HTTP API requests. It implements lifecycle.Component.
type Server struct {
	port             int
	server           *http.Server
	router           *http.ServeMux
	logger           *logging.Logger
	orchestrator     *orchestrator.Orchestrator
	data             *evidence.DataLayer
	readinessChecker ReadinessChecker
}

// New creates the API server and registers all routes.
func New(port int, orch *orchestrator.Orchestrator, data *evidence.DataLayer, readiness ReadinessChecker) *Server {
	if readiness == nil {
		readiness = &NoOpReadinessChecker{}
	}

	s := &Server{
		port:             port,
		router:           http.NewServeMux(),
		logger:           logging.GetLogger("api"),
		orchestrator:     orch,
		data:             data,
		readinessChecker: readiness,
	}

	s.registerHandlers()

	// Diagnosis requests hold the connection while the model works, so the
	// write timeout has to outlast a worst-case multi-phase run.
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.corsMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) registerHandlers() {
	s.router.HandleFunc("/api/v1/detect-issues", s.withMethod(http.MethodPost, s.handleDetectIssues))
	s.router.HandleFunc("/api/v1/diagnose", s.withMethod(http.MethodPost, s.handleDiagnose))
	s.router.HandleFunc("/api/v1/query", s.withMethod(http.MethodPost, s.handleQuery))
	s.router.HandleFunc("/api/v1/logs/", s.withMethod(http.MethodGet, s.handleLogs))
	s.router.HandleFunc("/api/v1/compare-data/", s.withMethod(http.MethodGet, s.handleCompareData))

	s.router.HandleFunc("/healthz", s.handleHealth)
	s.router.HandleFunc("/readyz", s.handleReady)
	s.router.Handle("/metrics", promhttp.Handler())
}

// Start implements lifecycle.Component. The listener runs in its own
// goroutine; Start returns once it is launched.
func (s *Server) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.logger.Info("starting API server on port %d", s.port)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.ErrorWithErr("HTTP server error", err)
		}
	}()

	return nil
}

// Stop implements lifecycle.Component and drains in-flight requests.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping API server")

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.ErrorWithErr("HTTP server shutdown error", err)
		return err
	}

	s.logger.Info("API server stopped")
	return nil
}

// Name implements lifecycle.Component.
func (s *Server) Name() string {
	return "api-server"
}

// Handler returns the routed handler, wrapped in middleware. Exposed for
// tests.
func (s *Server) Handler() http.Handler {
	return s.corsMiddleware(s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if !s.readinessChecker.IsReady() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]bool{"ready": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
