package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driving"
	"github.com/lapis-labs/lapis-backend/internal/runtime"
)

// ReadinessChecker reports whether the configured providers are reachable
type ReadinessChecker interface {
	Readiness(ctx context.Context) (bool, map[string]runtime.ComponentStatus)
}

// Server represents the HTTP server
type Server struct {
	httpServer *http.Server
	router     *http.ServeMux
	version    string
	schema     domain.RequestSchema
	maxUpload  int64
	logger     *slog.Logger

	// Services
	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService

	// Infrastructure
	readiness   ReadinessChecker
	authAdapter driven.AuthAdapter // nil disables bearer auth
	corsOrigins []string
}

// Config holds server configuration
type Config struct {
	Host    string
	Port    int
	Version string

	// Schema selects the request fields reported in missingFields
	Schema domain.RequestSchema

	// CORSOrigins lists allowed origins; "*" allows any
	CORSOrigins []string

	// MaxUploadBytes caps multipart uploads
	MaxUploadBytes int64

	Logger *slog.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:           "0.0.0.0",
		Port:           4000,
		Version:        "dev",
		Schema:         domain.SchemaTenant,
		CORSOrigins:    []string{"*"},
		MaxUploadBytes: 10 << 20,
	}
}

// NewServer creates a new HTTP server. authAdapter may be nil, in which case
// requests are not authenticated.
func NewServer(
	cfg Config,
	ingestionService driving.IngestionService,
	retrievalService driving.RetrievalService,
	readiness ReadinessChecker,
	authAdapter driven.AuthAdapter,
) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Schema == "" {
		cfg.Schema = domain.SchemaTenant
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultConfig().MaxUploadBytes
	}

	s := &Server{
		router:           http.NewServeMux(),
		version:          cfg.Version,
		schema:           cfg.Schema,
		maxUpload:        cfg.MaxUploadBytes,
		logger:           logger,
		ingestionService: ingestionService,
		retrievalService: retrievalService,
		readiness:        readiness,
		authAdapter:      authAdapter,
		corsOrigins:      cfg.CORSOrigins,
	}

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	authMiddleware := NewAuthMiddleware(s.authAdapter)

	// Liveness and health endpoints (no auth)
	s.router.HandleFunc("GET /{$}", s.handleRoot)
	s.router.HandleFunc("GET /health", s.handleHealth)
	s.router.HandleFunc("GET /ready", s.handleReady)
	s.router.HandleFunc("GET /version", s.handleVersion)

	// Ingestion endpoints
	s.router.Handle("POST /embedding",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleEmbedding)))
	s.router.Handle("POST /chunk-and-embed",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIngestBatch)))
	s.router.Handle("POST /ingest",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIngestBatch)))
	s.router.Handle("POST /ingest/upload",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIngestUpload)))
	s.router.Handle("GET /documents/{id}/ingestions",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleIngestionHistory)))

	// Retrieval endpoints
	s.router.Handle("POST /search",
		authMiddleware.Authenticate(http.HandlerFunc(s.handleSearch)))
}

// Handler returns the router wrapped in the recovery, logging and CORS middleware
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = NewCORSMiddleware(s.corsOrigins).Handler(h)
	h = NewLoggingMiddleware(s.logger).Handler(h)
	h = NewRecoveryMiddleware(s.logger).Handler(h)
	return h
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", "addr", s.httpServer.Addr, "version", s.version)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}

// Stop stops the server
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
