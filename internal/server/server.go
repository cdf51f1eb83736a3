// Package server exposes trace analysis and SLA checks over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"tracelens/internal/app"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// New creates a new server instance from the wired components.
func New(c *app.Components) *Server {
	handler := NewHandler(c.Orchestrator, c.Monitor, c.Logger)
	router := SetupRouter(handler, c.Registry)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", c.Config.App.Host, c.Config.App.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		srv:    srv,
		logger: c.Logger,
	}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.srv.Addr
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}
