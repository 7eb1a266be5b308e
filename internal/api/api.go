// Package api provides HTTP handlers and the main API server logic for docpipe.
//
// It exposes RESTful endpoints for uploading document templates, running
// data-collection sessions and generating filled documents. The API
// integrates with the store, blob, genai and flow modules.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/docpipe/docpipe/internal/blob"
	"github.com/docpipe/docpipe/internal/flow"
	"github.com/docpipe/docpipe/internal/genai"
	"github.com/docpipe/docpipe/internal/store"
)

// Server configuration constants
const (
	// DefaultAddr is the default listen address for the API server
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultPlanTimeout bounds plan interpretation at session start
	DefaultPlanTimeout = 60 * time.Second
	// DefaultFillTimeout bounds template filling during generation
	DefaultFillTimeout = 120 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the listen address for the API server.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server bundles the service dependencies behind the HTTP handlers.
type Server struct {
	addr       string
	store      store.Store
	blobs      blob.Store
	gaClient   genai.ClientInterface
	engine     *flow.Engine
	mux        *http.ServeMux
	httpServer *http.Server
}

// NewServer assembles the API server from its collaborators.
func NewServer(st store.Store, blobs blob.Store, gaClient genai.ClientInterface, engine *flow.Engine, opts ...Option) *Server {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	s := &Server{
		addr:     cfg.Addr,
		store:    st,
		blobs:    blobs,
		gaClient: gaClient,
		engine:   engine,
		mux:      http.NewServeMux(),
	}
	s.registerRoutes()
	s.httpServer = &http.Server{Addr: cfg.Addr, Handler: s.mux}
	return s
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/templates", s.templatesHandler)
	s.mux.HandleFunc("/templates/", s.templateByNameHandler)
	s.mux.HandleFunc("/sessions/start", s.startSessionHandler)
	s.mux.HandleFunc("/sessions/", s.sessionSubresourceHandler)
}

// Handler exposes the route multiplexer, primarily for tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run starts the API server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Server.Run: API server listening", "addr", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		slog.Error("Server.Run: listener failed", "error", err)
		return err
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}
