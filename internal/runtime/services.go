package runtime

import (
	"context"
	"sync"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Services holds references to the configured providers.
// The vector index is fixed at startup; the embedding, generation, cache and
// ingestion log providers are optional and may be swapped while running.
// Thread-safe for concurrent access.
type Services struct {
	mu sync.RWMutex

	// Config tracks capability flags
	config *domain.RuntimeConfig

	vectorIndex driven.VectorIndex

	// Optional services (can be nil)
	embeddingService driven.EmbeddingService
	llmService       driven.LLMService
	embeddingCache   driven.EmbeddingCache
	ingestionLog     driven.IngestionLog
}

// NewServices creates a new Services registry
func NewServices(config *domain.RuntimeConfig, index driven.VectorIndex) *Services {
	return &Services{
		config:      config,
		vectorIndex: index,
	}
}

// Config returns the runtime configuration
func (s *Services) Config() *domain.RuntimeConfig {
	return s.config
}

// VectorIndex returns the vector index
func (s *Services) VectorIndex() driven.VectorIndex {
	return s.vectorIndex
}

// EmbeddingService returns the current embedding service (may be nil)
func (s *Services) EmbeddingService() driven.EmbeddingService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingService
}

// LLMService returns the current LLM service (may be nil)
func (s *Services) LLMService() driven.LLMService {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.llmService
}

// EmbeddingCache returns the embedding cache (may be nil)
func (s *Services) EmbeddingCache() driven.EmbeddingCache {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embeddingCache
}

// IngestionLog returns the ingestion log (may be nil)
func (s *Services) IngestionLog() driven.IngestionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingestionLog
}

// SetEmbeddingService updates the embedding service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetEmbeddingService(svc driven.EmbeddingService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil && s.embeddingService != svc {
		_ = s.embeddingService.Close()
	}

	s.embeddingService = svc
	s.config.SetEmbeddingAvailable(svc != nil)
}

// SetLLMService updates the LLM service.
// Closes the old service if present. Updates config flags.
func (s *Services) SetLLMService(svc driven.LLMService) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.llmService != nil && s.llmService != svc {
		_ = s.llmService.Close()
	}

	s.llmService = svc
	s.config.SetLLMAvailable(svc != nil)
}

// SetEmbeddingCache updates the embedding cache
func (s *Services) SetEmbeddingCache(cache driven.EmbeddingCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.embeddingCache = cache
	s.config.SetCacheAvailable(cache != nil)
}

// SetIngestionLog updates the ingestion log
func (s *Services) SetIngestionLog(log driven.IngestionLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ingestionLog = log
	s.config.SetIngestionLogAvailable(log != nil)
}

// Close shuts down all services
func (s *Services) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.embeddingService != nil {
		_ = s.embeddingService.Close()
		s.embeddingService = nil
	}
	if s.llmService != nil {
		_ = s.llmService.Close()
		s.llmService = nil
	}

	s.config.SetEmbeddingAvailable(false)
	s.config.SetLLMAvailable(false)

	return nil
}

// ValidateAndSetEmbedding validates connectivity before setting embedding service
func (s *Services) ValidateAndSetEmbedding(ctx context.Context, svc driven.EmbeddingService) error {
	if svc == nil {
		s.SetEmbeddingService(nil)
		return nil
	}

	if err := svc.HealthCheck(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetEmbeddingService(svc)
	return nil
}

// ValidateAndSetLLM validates connectivity before setting LLM service
func (s *Services) ValidateAndSetLLM(ctx context.Context, svc driven.LLMService) error {
	if svc == nil {
		s.SetLLMService(nil)
		return nil
	}

	if err := svc.Ping(ctx); err != nil {
		_ = svc.Close()
		return err
	}

	s.SetLLMService(svc)
	return nil
}

// ComponentStatus is the readiness of one dependency
type ComponentStatus struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	StatusOK          = "ok"
	StatusError       = "error"
	StatusUnavailable = "not_configured"
)

// Readiness pings the index and every configured optional dependency.
// ready is false when the index, embedding provider or a configured
// dependency fails its check.
func (s *Services) Readiness(ctx context.Context) (ready bool, components map[string]ComponentStatus) {
	components = make(map[string]ComponentStatus)
	ready = true

	check := func(name string, configured bool, fn func(context.Context) error) {
		if !configured {
			components[name] = ComponentStatus{Status: StatusUnavailable}
			return
		}
		if err := fn(ctx); err != nil {
			components[name] = ComponentStatus{Status: StatusError, Error: err.Error()}
			ready = false
			return
		}
		components[name] = ComponentStatus{Status: StatusOK}
	}

	index := s.VectorIndex()
	check("vector_index", index != nil, func(ctx context.Context) error { return index.HealthCheck(ctx) })
	if index == nil {
		ready = false
	}

	embedding := s.EmbeddingService()
	if embedding == nil {
		ready = false
		components["embedding"] = ComponentStatus{Status: StatusUnavailable}
	} else {
		components["embedding"] = ComponentStatus{Status: StatusOK}
	}

	cache := s.EmbeddingCache()
	check("cache", cache != nil, func(ctx context.Context) error { return cache.Ping(ctx) })

	ingestionLog := s.IngestionLog()
	check("ingestion_log", ingestionLog != nil, func(ctx context.Context) error { return ingestionLog.Ping(ctx) })

	return ready, components
}
