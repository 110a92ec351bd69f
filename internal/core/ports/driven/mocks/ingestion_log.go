package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Ensure MockIngestionLog implements IngestionLog
var _ driven.IngestionLog = (*MockIngestionLog)(nil)

// MockIngestionLog is an in-memory IngestionLog for testing
type MockIngestionLog struct {
	mu      sync.Mutex
	records []*domain.IngestionRecord
	err     error
}

// NewMockIngestionLog creates a new MockIngestionLog
func NewMockIngestionLog() *MockIngestionLog {
	return &MockIngestionLog{}
}

func (m *MockIngestionLog) Record(ctx context.Context, rec *domain.IngestionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if rec.ID == "" {
		rec.ID = fmt.Sprintf("ing-%d", len(m.records)+1)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *MockIngestionLog) ListByDocument(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []*domain.IngestionRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		if m.records[i].DocumentID != documentID {
			continue
		}
		out = append(out, m.records[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MockIngestionLog) Ping(ctx context.Context) error {
	return m.err
}

// SetError makes every call fail with err
func (m *MockIngestionLog) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Records returns every recorded attempt in insertion order
func (m *MockIngestionLog) Records() []*domain.IngestionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.IngestionRecord(nil), m.records...)
}
