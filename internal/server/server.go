// Package server exposes the signing broker over HTTP. All endpoints except
// the health check require the shared service token; the signing endpoints
// can additionally be pinned to caller IP allowlists.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/signbroker/internal/server/handler"
	"github.com/alanyoungcy/signbroker/internal/server/middleware"
)

const healthPath = "/api/health"

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	ServiceToken string // if empty, authentication is disabled

	// Per-endpoint caller IP allowlists. An empty list leaves the endpoint
	// open to any authenticated caller.
	AllowedIPsOrder     []string
	AllowedIPsAllowance []string
	AllowedIPsTransfer  []string
}

// Handlers aggregates all HTTP handlers the server registers.
type Handlers struct {
	Health *handler.HealthHandler
	Sign   *handler.SignHandler
	Audit  *handler.AuditHandler
}

// Server is the HTTP API server for the signing broker.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered and the middleware
// chain (IP allowlists, service-token auth, request logging) applied.
func NewServer(cfg Config, handlers Handlers, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET "+healthPath, handlers.Health.HealthCheck)

	// Signing endpoints.
	mux.HandleFunc("POST /api/sign/order", handlers.Sign.SignOrder)
	mux.HandleFunc("POST /api/sign/allowance", handlers.Sign.SignAllowance)
	mux.HandleFunc("POST /api/sign/transfer", handlers.Sign.SignTransfer)

	// Audit log access.
	mux.HandleFunc("GET /api/audit", handlers.Audit.List)
	mux.HandleFunc("GET /api/audit/archives", handlers.Audit.ListArchives)
	mux.HandleFunc("GET /api/audit/{id}", handlers.Audit.GetByID)

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	h = middleware.IPAllowlist(map[string][]string{
		"/api/sign/order":     cfg.AllowedIPsOrder,
		"/api/sign/allowance": cfg.AllowedIPsAllowance,
		"/api/sign/transfer":  cfg.AllowedIPsTransfer,
	}, logger)(h)

	h = middleware.ServiceAuth(cfg.ServiceToken, healthPath)(h)

	h = middleware.Logging(logger)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
