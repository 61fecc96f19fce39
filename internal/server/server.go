// Package server exposes the resolution subsystem over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/oraclebot/internal/server/handler"
	"github.com/alanyoungcy/oraclebot/internal/server/middleware"
	"github.com/alanyoungcy/oraclebot/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminToken  string // if empty, authentication is disabled
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health    *handler.HealthHandler
	Markets   *handler.MarketHandler
	Oracle    *handler.OracleHandler
	Workflows *handler.WorkflowHandler
}

// Server is the HTTP + WebSocket API server for the resolution subsystem.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux and
// the middleware chain (logging, CORS, auth) wired up.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required once the chain allows it through).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market endpoints.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("PUT /api/markets", handlers.Markets.UpsertMarket)

	// Resolution lifecycle endpoints.
	mux.HandleFunc("POST /api/oracle/markets/{id}/propose", handlers.Oracle.Propose)
	mux.HandleFunc("GET /api/oracle/markets/{id}/requests", handlers.Oracle.ListMarketRequests)
	mux.HandleFunc("GET /api/oracle/requests/{id}", handlers.Oracle.GetRequest)
	mux.HandleFunc("POST /api/oracle/requests/{id}/challenge", handlers.Oracle.Challenge)
	mux.HandleFunc("POST /api/oracle/requests/{id}/finalize", handlers.Oracle.Finalize)
	mux.HandleFunc("GET /api/oracle/disputes", handlers.Oracle.ListOpenDisputes)
	mux.HandleFunc("POST /api/oracle/disputes/{id}/adjudicate", handlers.Oracle.Adjudicate)

	// Verification workflow endpoints.
	mux.HandleFunc("GET /api/workflows", handlers.Workflows.List)
	mux.HandleFunc("PUT /api/workflows", handlers.Workflows.Upsert)
	mux.HandleFunc("GET /api/workflows/{id}", handlers.Workflows.Get)
	mux.HandleFunc("POST /api/workflows/{id}/enabled", handlers.Workflows.SetEnabled)
	mux.HandleFunc("POST /api/workflows/{id}/execute", handlers.Workflows.Execute)

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain.
	var h http.Handler = mux
	h = middleware.Auth(cfg.AdminToken)(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
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
