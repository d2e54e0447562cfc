// Package viewer serves run artifact directories over HTTP for local
// inspection. It is a read-only convenience server: no authentication, no
// mutation, just the artifacts the pipeline wrote plus a small JSON index.
package viewer

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// defaultRequestTimeout bounds a single request when the configuration does
// not specify one.
const defaultRequestTimeout = 15 * time.Second

// ServerConfig carries the dependencies of the viewer server.
type ServerConfig struct {
	// RunsDir is the base directory holding one subdirectory per run.
	RunsDir string

	// RequestTimeout bounds each request's context. Zero means the default.
	RequestTimeout time.Duration

	// Logger receives request and error logs. Defaults to slog.Default().
	Logger *slog.Logger
}

// Server is the viewer HTTP server. Construct with NewServer, then pass
// Handler to http.Server.
type Server struct {
	runsDir string
	timeout time.Duration
	logger  *slog.Logger
	router  *chi.Mux
}

// NewServer builds the viewer with its routes mounted.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.RunsDir == "" {
		return nil, fmt.Errorf("viewer: runs directory is required")
	}

	s := &Server{
		runsDir: cfg.RunsDir,
		timeout: cfg.RequestTimeout,
		logger:  cfg.Logger,
		router:  chi.NewRouter(),
	}
	if s.timeout <= 0 {
		s.timeout = defaultRequestTimeout
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.mountRoutes()
	return s, nil
}

// Handler returns the router as an http.Handler for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// mountRoutes registers middleware and routes. Ordering: the recoverer is
// outermost so panics anywhere in the chain still produce a JSON 500.
func (s *Server) mountRoutes() {
	s.router.Use(s.recoverer)
	s.router.Use(contextTimeoutMiddleware(s.timeout))
	s.router.Use(requestIDMiddleware)
	s.router.Use(requestLogger(s.logger))

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/runs", s.handleListRuns)
	s.router.Get("/runs/{runID}", s.handleRunDetail)
	s.router.Get("/runs/{runID}/{artifact}", s.handleArtifact)
}
