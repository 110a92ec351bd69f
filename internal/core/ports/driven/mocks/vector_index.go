package mocks

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Ensure MockVectorIndex implements VectorIndex
var _ driven.VectorIndex = (*MockVectorIndex)(nil)

// ErrMockIndex is returned when a configured failure triggers
var ErrMockIndex = errors.New("mock index failure")

// MockVectorIndex is an in-memory VectorIndex ranking records by cosine similarity.
type MockVectorIndex struct {
	mu          sync.RWMutex
	records     map[string]domain.EmbeddedRecord
	order       []string
	upserts     []domain.EmbeddedRecord
	queries     []domain.IndexQuery
	failUpsert  map[string]bool
	queryErr    error
	describeErr error
	healthErr   error

	// Matches, when set, is returned by Query instead of ranking stored records
	Matches []domain.SearchMatch
}

// NewMockVectorIndex creates a new MockVectorIndex
func NewMockVectorIndex() *MockVectorIndex {
	return &MockVectorIndex{
		records:    make(map[string]domain.EmbeddedRecord),
		failUpsert: make(map[string]bool),
	}
}

func (m *MockVectorIndex) Upsert(ctx context.Context, records []domain.EmbeddedRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	for _, rec := range records {
		if m.failUpsert[rec.ID] {
			return ErrMockIndex
		}
		if _, exists := m.records[rec.ID]; !exists {
			m.order = append(m.order, rec.ID)
		}
		m.records[rec.ID] = rec
		m.upserts = append(m.upserts, rec)
	}
	return nil
}

func (m *MockVectorIndex) Query(ctx context.Context, q domain.IndexQuery) ([]domain.SearchMatch, error) {
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.mu.Unlock()

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.Matches != nil {
		return m.Matches, nil
	}

	var matches []domain.SearchMatch
	for _, id := range m.order {
		rec := m.records[id]
		if q.Filter.TeamID != "" && rec.Metadata.String(domain.MetaTeamID) != q.Filter.TeamID {
			continue
		}
		if q.Filter.OrganizationID != "" && rec.Metadata.String(domain.MetaOrganizationID) != q.Filter.OrganizationID {
			continue
		}
		matches = append(matches, domain.SearchMatch{
			ID:       rec.ID,
			Score:    cosine(q.Vector, rec.Vector),
			Metadata: rec.Metadata,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if q.TopK > 0 && len(matches) > q.TopK {
		matches = matches[:q.TopK]
	}
	return matches, nil
}

func (m *MockVectorIndex) Describe(ctx context.Context) (*domain.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	return &domain.IndexStats{Name: "mock-index", Ready: true}, nil
}

func (m *MockVectorIndex) HealthCheck(ctx context.Context) error {
	return m.healthErr
}

func (m *MockVectorIndex) Name() string {
	return "mock"
}

// Helper methods for testing

// FailUpsert makes upserting the record with id fail
func (m *MockVectorIndex) FailUpsert(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failUpsert[id] = true
}

func (m *MockVectorIndex) SetQueryError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryErr = err
}

func (m *MockVectorIndex) SetDescribeError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.describeErr = err
}

func (m *MockVectorIndex) SetHealthError(err error) {
	m.healthErr = err
}

// Record returns the stored record with id
func (m *MockVectorIndex) Record(id string) (domain.EmbeddedRecord, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	return rec, ok
}

// Count returns the number of distinct stored records
func (m *MockVectorIndex) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Upserts returns every record passed to Upsert, in call order
func (m *MockVectorIndex) Upserts() []domain.EmbeddedRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.EmbeddedRecord(nil), m.upserts...)
}

// Queries returns every query received
func (m *MockVectorIndex) Queries() []domain.IndexQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.IndexQuery(nil), m.queries...)
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
