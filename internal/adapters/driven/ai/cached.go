package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Ensure CachedEmbedding implements EmbeddingService
var _ driven.EmbeddingService = (*CachedEmbedding)(nil)

// CachedEmbedding serves repeated texts from an EmbeddingCache and falls
// through to the wrapped service on a miss. Cache failures are logged and
// never fail the call.
type CachedEmbedding struct {
	driven.EmbeddingService
	cache  driven.EmbeddingCache
	logger *slog.Logger
}

// NewCachedEmbedding wraps next with cache. A nil cache returns next unchanged.
func NewCachedEmbedding(next driven.EmbeddingService, cache driven.EmbeddingCache, logger *slog.Logger) driven.EmbeddingService {
	if cache == nil {
		return next
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedEmbedding{EmbeddingService: next, cache: cache, logger: logger}
}

func (e *CachedEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := e.Model()
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		vec, ok, err := e.cache.Get(ctx, model, text)
		if err != nil {
			e.logger.Warn("embedding cache read failed", "error", err)
		}
		if ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	fresh, err := e.EmbeddingService.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("embedding provider returned %d vectors for %d inputs", len(fresh), len(missing))
	}
	for j, vec := range fresh {
		out[missingIdx[j]] = vec
		if err := e.cache.Set(ctx, model, missing[j], vec); err != nil {
			e.logger.Warn("embedding cache write failed", "error", err)
		}
	}
	return out, nil
}

func (e *CachedEmbedding) EmbedQuery(ctx context.Context, query string) ([]float32, error) {
	out, err := e.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
