// Package api provides the HTTP surface of the engine.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/waqasniazi9/aml-case-management/internal/domain"
	"github.com/waqasniazi9/aml-case-management/internal/engine"
	"github.com/waqasniazi9/aml-case-management/internal/rules"
)

// Server represents the HTTP API server.
type Server struct {
	router  *chi.Mux
	handler *Handler
	server  *http.Server
	config  domain.ServerConfig
}

// NewServer creates a new API server.
func NewServer(cfg domain.ServerConfig, st domain.Store, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, ruleEngine *rules.Engine, version string) *Server {
	handler := NewHandler(st, cache, bus, eng, ruleEngine, version)
	router := chi.NewRouter()

	// Global middleware stack
	router.Use(CORSMiddleware)         // CORS for browser clients
	router.Use(RecoverMiddleware)      // Recover from panics
	router.Use(TracingMiddleware)      // OpenTelemetry tracing
	router.Use(LoggingMiddleware)      // Request logging
	router.Use(middleware.RealIP)      // Extract real IP
	router.Use(middleware.Compress(5)) // Gzip compression

	// Health endpoints
	router.Get("/health", handler.Health)
	router.Get("/ready", handler.Ready)

	// Entities
	router.Post("/entities", handler.CreateEntity)
	router.Get("/entities/{id}", handler.GetEntity)

	// Cases
	router.Post("/cases", handler.CreateCase)
	router.Get("/cases", handler.ListCases)
	router.Get("/cases/{id}", handler.GetCase)
	router.Patch("/cases/{id}/status", handler.UpdateCaseStatus)
	router.Post("/cases/{id}/transactions", handler.IngestTransaction)
	router.Post("/cases/{id}/analyze", handler.AnalyzeCase)
	router.Post("/cases/{id}/assess", handler.AssessCase)

	// Indicator rule management
	router.Get("/rules", handler.ListRules)
	router.Post("/rules", handler.CreateRule)
	router.Post("/rules/reload", handler.ReloadRules)

	// Aggregates
	router.Get("/statistics", handler.Statistics)

	return &Server{
		router:  router,
		handler: handler,
		config:  cfg,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Handler returns the handler for testing.
func (s *Server) Handler() *Handler {
	return s.handler
}
