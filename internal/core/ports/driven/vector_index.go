package driven

import (
	"context"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

// VectorIndex stores embedded records and answers nearest-neighbour queries.
// Implementations talk to a hosted index provider.
type VectorIndex interface {
	// Upsert inserts or replaces records keyed by ID
	Upsert(ctx context.Context, records []domain.EmbeddedRecord) error

	// Query returns up to q.TopK matches ordered by descending score.
	// A non-zero q.Filter restricts matches to records carrying the same scope.
	Query(ctx context.Context, q domain.IndexQuery) ([]domain.SearchMatch, error)

	// Describe returns provider-reported index details
	Describe(ctx context.Context) (*domain.IndexStats, error)

	// HealthCheck verifies the index is reachable
	HealthCheck(ctx context.Context) error

	// Name returns the backend name, e.g. "pinecone"
	Name() string
}
