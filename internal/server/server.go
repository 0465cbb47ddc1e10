package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/folio/internal/app"
)

// Server manages the HTTP server and routes
type Server struct {
	app      *app.App
	shutdown chan<- struct{}
	router   *http.ServeMux
	server   *http.Server
	limiter  *ipRateLimiter
}

// New creates a new HTTP server over the given app. A send on shutdown asks
// the main loop to stop the process.
func New(application *app.App, shutdown chan<- struct{}) *Server {
	s := &Server{
		app:      application,
		shutdown: shutdown,
		limiter:  newIPRateLimiter(),
	}

	s.router = s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", application.Config.Server.Host, application.Config.Server.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.withConditionalMiddleware(s.router),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.app.Logger.Info().
		Str("address", s.server.Addr).
		Msg("HTTP server starting")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.app.Logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.app.Logger.Info().Msg("HTTP server stopped")
	return nil
}
