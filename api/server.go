// Package api exposes the query service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/wildvoice/wildrag/internal/entity"
	"github.com/wildvoice/wildrag/internal/log"
	"github.com/wildvoice/wildrag/internal/query"
)

const (
	readTimeout     = 10 * time.Second
	writeTimeout    = 60 * time.Second
	idleTimeout     = 120 * time.Second
	shutdownTimeout = 10 * time.Second
)

// QueryService answers entity scoped queries. Satisfied by *query.Service.
type QueryService interface {
	Process(ctx context.Context, entityName, queryText string) (*query.Result, error)
}

// Pinger checks backend connectivity for the readiness probe. Satisfied by
// *pgxpool.Pool. May be nil when no live backend is configured.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front end.
type Server struct {
	server   *http.Server
	registry *entity.Registry
	svc      QueryService
	pinger   Pinger
	logger   log.Logger
}

// NewServer wires the routes and middleware.
func NewServer(addr string, registry *entity.Registry, svc QueryService, pinger Pinger, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNop()
	}

	s := &Server{
		registry: registry,
		svc:      svc,
		pinger:   pinger,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.HandleFunc("GET /hello", s.handleHello)
	mux.HandleFunc("GET /entities", s.handleEntities)
	mux.HandleFunc("POST /query", s.handleQuery)

	handler := chain(mux,
		s.recoveryMiddleware,
		requestIDMiddleware,
		s.loggingMiddleware,
	)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Handler returns the configured HTTP handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}
