package driven

import (
	"context"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

// IngestionLog persists an audit trail of ingestion attempts
type IngestionLog interface {
	// Record appends an ingestion attempt. ID and CreatedAt are assigned when empty.
	Record(ctx context.Context, rec *domain.IngestionRecord) error

	// ListByDocument returns the most recent attempts for a document, newest first
	ListByDocument(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error
}
