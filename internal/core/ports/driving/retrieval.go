package driving

import (
	"context"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

// RetrievalService answers natural-language queries from stored chunks
type RetrievalService interface {
	// Answer embeds the query, retrieves the nearest chunks within the
	// caller's scope and optionally synthesizes an answer from them.
	Answer(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error)
}
