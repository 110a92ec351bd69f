package driving

import (
	"context"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

// IngestionService chunks, embeds and stores documents
type IngestionService interface {
	// Ingest stores every chunk of a single document. A failure of any chunk
	// fails the document; chunks already stored are left in place.
	Ingest(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error)

	// IngestBatch ingests documents one after another. Each document's
	// outcome is reported independently.
	IngestBatch(ctx context.Context, docs []domain.Document, opts domain.IngestOptions) (*domain.BatchResult, error)

	// IngestFile normalises an uploaded file by MIME type and ingests the
	// resulting text under doc's identity and scope.
	IngestFile(ctx context.Context, data []byte, mimeType string, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error)

	// History returns recorded ingestion attempts for a document, newest first.
	// Returns domain.ErrServiceUnavailable when no ingestion log is configured.
	History(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error)
}
