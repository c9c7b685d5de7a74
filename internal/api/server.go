// Package api serves the daemon's HTTP API.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"git.home.luguber.info/inful/nostrbackup/internal/backup"
	"git.home.luguber.info/inful/nostrbackup/internal/daemon"
	"git.home.luguber.info/inful/nostrbackup/internal/foundation/errors"
)

// Backend is the daemon surface the API exposes.
type Backend interface {
	Info() daemon.Info
	TriggerRun(trigger string) (string, error)
	LastRun() (daemon.Run, bool)
	Backups(ctx context.Context) ([]backup.Info, error)
}

// Server represents the API server.
type Server struct {
	Addr    string
	backend Backend
	router  *chi.Mux
	server  *http.Server
	errors  *errors.HTTPErrorAdapter
	metrics http.Handler
	token   string
	logger  *slog.Logger
	routes  sync.Once
}

// NewServer creates a new API server.
func NewServer(addr string, backend Backend) *Server {
	s := &Server{
		Addr:    addr,
		backend: backend,
		router:  chi.NewRouter(),
		logger:  slog.Default(),
	}
	s.errors = errors.NewHTTPErrorAdapter(s.logger)

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return s
}

// WithMetrics serves h on /metrics.
func (s *Server) WithMetrics(h http.Handler) *Server {
	s.metrics = h
	return s
}

// WithToken protects mutating routes with a bearer token.
func (s *Server) WithToken(token string) *Server {
	s.token = token
	return s
}

// WithLogger sets the request and error logger.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	if logger != nil {
		s.logger = logger
		s.errors = errors.NewHTTPErrorAdapter(logger)
	}
	return s
}

// Handler returns the router. Routes are built on first use, so every With
// option must be applied before.
func (s *Server) Handler() http.Handler {
	s.routes.Do(s.setupRoutes)
	return s.router
}

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get("/health", s.handleHealth)
	s.router.Get("/status", s.handleStatus)

	s.router.Route("/runs", func(r chi.Router) {
		r.Get("/last", s.handleLastRun)
		r.With(TokenMiddleware(s.token)).Post("/", s.handleTriggerRun)
	})

	s.router.Get("/backups", s.handleListBackups)

	if s.metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.metrics)
	}
}

// Start starts the API server and blocks until it stops.
func (s *Server) Start() error {
	s.server.Handler = s.Handler()
	s.logger.Info("API server listening", slog.String("addr", s.Addr))
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapError(err, errors.CategoryRuntime, "API server failed").
			WithContext("addr", s.Addr).
			Build()
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Error writes a classified error response.
func (s *Server) Error(w http.ResponseWriter, r *http.Request, err error) {
	s.errors.WriteErrorResponse(w, r, err)
}

// Success writes a success response.
func (s *Server) Success(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	resp := Response{
		Success: true,
		Data:    data,
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// Handler methods

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.Success(w, http.StatusOK, s.backend.Info())
}
