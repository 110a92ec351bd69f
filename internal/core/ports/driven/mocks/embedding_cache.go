package mocks

import (
	"context"
	"sync"

	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Ensure MockEmbeddingCache implements EmbeddingCache
var _ driven.EmbeddingCache = (*MockEmbeddingCache)(nil)

// MockEmbeddingCache is an in-memory EmbeddingCache for testing
type MockEmbeddingCache struct {
	mu      sync.Mutex
	entries map[string][]float32
	hits    int
	misses  int
	getErr  error
	setErr  error
}

// NewMockEmbeddingCache creates a new MockEmbeddingCache
func NewMockEmbeddingCache() *MockEmbeddingCache {
	return &MockEmbeddingCache{entries: make(map[string][]float32)}
}

func (m *MockEmbeddingCache) Get(ctx context.Context, model, text string) ([]float32, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	v, ok := m.entries[model+"\x00"+text]
	if ok {
		m.hits++
	} else {
		m.misses++
	}
	return v, ok, nil
}

func (m *MockEmbeddingCache) Set(ctx context.Context, model, text string, vector []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.entries[model+"\x00"+text] = vector
	return nil
}

func (m *MockEmbeddingCache) Ping(ctx context.Context) error {
	return nil
}

// Stats returns hit and miss counts
func (m *MockEmbeddingCache) Stats() (hits, misses int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

func (m *MockEmbeddingCache) SetErrors(getErr, setErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr, m.setErr = getErr, setErr
}
