package domain

import "sync"

// RuntimeConfig tracks which providers are available at runtime.
// The vector backend and request schema are fixed at startup; the
// capability flags are updated as optional providers come and go.
// Thread-safe for concurrent access.
type RuntimeConfig struct {
	mu sync.RWMutex

	// Static (set at startup, read-only)
	VectorBackend string // "pinecone" or "qdrant"
	Schema        RequestSchema

	// Dynamic capability flags
	embeddingAvailable    bool
	llmAvailable          bool
	cacheAvailable        bool
	ingestionLogAvailable bool
}

// NewRuntimeConfig creates a new RuntimeConfig with initial values
func NewRuntimeConfig(vectorBackend string, schema RequestSchema) *RuntimeConfig {
	return &RuntimeConfig{
		VectorBackend: vectorBackend,
		Schema:        schema,
	}
}

// EmbeddingAvailable returns whether the embedding provider is configured
func (c *RuntimeConfig) EmbeddingAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.embeddingAvailable
}

// LLMAvailable returns whether the generation provider is configured
func (c *RuntimeConfig) LLMAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.llmAvailable
}

// CacheAvailable returns whether embeddings are cached
func (c *RuntimeConfig) CacheAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cacheAvailable
}

// IngestionLogAvailable returns whether ingestion runs are audited
func (c *RuntimeConfig) IngestionLogAvailable() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ingestionLogAvailable
}

// SetEmbeddingAvailable updates the embedding availability flag
func (c *RuntimeConfig) SetEmbeddingAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embeddingAvailable = available
}

// SetLLMAvailable updates the LLM availability flag
func (c *RuntimeConfig) SetLLMAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.llmAvailable = available
}

// SetCacheAvailable updates the cache availability flag
func (c *RuntimeConfig) SetCacheAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cacheAvailable = available
}

// SetIngestionLogAvailable updates the ingestion log availability flag
func (c *RuntimeConfig) SetIngestionLogAvailable(available bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ingestionLogAvailable = available
}

// CanIngest returns true if documents can be embedded and stored
func (c *RuntimeConfig) CanIngest() bool {
	return c.EmbeddingAvailable()
}

// CanGenerateAnswers returns true if answers can be synthesized from sources
func (c *RuntimeConfig) CanGenerateAnswers() bool {
	return c.EmbeddingAvailable() && c.LLMAvailable()
}

// Capabilities returns a snapshot of the flags keyed by provider role.
func (c *RuntimeConfig) Capabilities() map[string]bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return map[string]bool{
		"embedding":     c.embeddingAvailable,
		"generation":    c.llmAvailable,
		"cache":         c.cacheAvailable,
		"ingestion_log": c.ingestionLogAvailable,
	}
}
