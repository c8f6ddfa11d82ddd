// Package api exposes the exam-prep workflow and stored study plans over
// HTTP.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/p-n-ai/rapidrevise/internal/examprep"
	"github.com/p-n-ai/rapidrevise/internal/studyplan"
)

// Runner runs one exam-prep workflow.
type Runner interface {
	Run(ctx context.Context, req examprep.Request, sinks ...examprep.EventSink) examprep.Result
}

// Check is a named readiness probe.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// Config holds server dependencies. Store is optional; without it plans are
// not persisted and the /study-plans routes are not registered.
type Config struct {
	Runner Runner
	Store  studyplan.Store
	// AdminKeyHash is the bcrypt hash of the key required by destructive
	// routes. Empty disables them.
	AdminKeyHash string
	Checks       []Check
	Logger       *slog.Logger
}

// Server serves the HTTP API.
type Server struct {
	runner    Runner
	store     studyplan.Store
	adminHash []byte
	checks    []Check
	logger    *slog.Logger
}

// New creates a Server.
func New(cfg Config) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("workflow runner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:    cfg.Runner,
		store:     cfg.Store,
		adminHash: []byte(cfg.AdminKeyHash),
		checks:    cfg.Checks,
		logger:    logger,
	}, nil
}

// Handler returns the router with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /exam-prep", s.handleExamPrep)
	mux.HandleFunc("GET /exam-prep/stream", s.handleExamPrepStream)

	if s.store != nil {
		mux.HandleFunc("POST /study-plans", s.handleCreatePlan)
		mux.HandleFunc("GET /study-plans", s.handleListPlans)
		mux.HandleFunc("GET /study-plans/{id}", s.handleGetPlan)
		mux.HandleFunc("GET /study-plans/{id}/export", s.handleExportPlan)
		mux.Handle("DELETE /study-plans/{id}", s.requireAdmin(http.HandlerFunc(s.handleDeletePlan)))
	}
	return s.logRequests(mux)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for _, c := range s.checks {
		if err := c.Probe(ctx); err != nil {
			s.logger.Warn("readiness check failed", "check", c.Name, "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "check": c.Name})
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack hands the connection to the websocket handshake.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
			return
		}
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("writing response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
