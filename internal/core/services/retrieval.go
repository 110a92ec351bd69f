package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driving"
	"github.com/lapis-labs/lapis-backend/internal/runtime"
)

// Ensure retrievalService implements RetrievalService
var _ driving.RetrievalService = (*retrievalService)(nil)

// AnswerSystemPrompt constrains generated answers to the retrieved context
const AnswerSystemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the answer is not contained in the context, say that you don't know."

// RetrievalConfig holds dependencies for the retrieval service.
type RetrievalConfig struct {
	Services *runtime.Services

	// DefaultTopK applies when a request does not set topK
	DefaultTopK int

	Logger *slog.Logger
}

// retrievalService implements query → embed → search → generate
type retrievalService struct {
	services    *runtime.Services
	defaultTopK int
	logger      *slog.Logger
}

// NewRetrievalService creates a new RetrievalService
func NewRetrievalService(cfg RetrievalConfig) driving.RetrievalService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &retrievalService{
		services:    cfg.Services,
		defaultTopK: domain.ClampTopK(cfg.DefaultTopK, domain.DefaultTopK),
		logger:      logger,
	}
}

// Answer retrieves the chunks nearest to query and optionally asks the
// generation provider to answer from them.
func (s *retrievalService) Answer(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error) {
	start := time.Now()

	if err := s.services.Config().Schema.ValidateQuery(query, opts.Scope); err != nil {
		return nil, err
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider: %w", domain.ErrServiceUnavailable)
	}

	vector, err := embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, domain.NewExternalServiceError("embedding", "embed", err)
	}

	topK := domain.ClampTopK(opts.TopK, s.defaultTopK)
	matches, err := s.services.VectorIndex().Query(ctx, domain.IndexQuery{
		Vector: vector,
		TopK:   topK,
		Filter: opts.Scope,
	})
	if err != nil {
		return nil, domain.NewExternalServiceError("index", "query", err)
	}

	// Providers already rank by score; a stable sort keeps their order for ties.
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	result := &domain.AnswerResult{
		Query:   query,
		Sources: make([]domain.SourceMatch, 0, len(matches)),
	}
	for _, m := range matches {
		result.Sources = append(result.Sources, domain.NewSourceMatch(m))
	}

	if len(matches) == 0 {
		result.Answer = domain.NoRelevantInformation
		result.Took = time.Since(start)
		s.logger.Info("no matches",
			"team_id", opts.Scope.TeamID,
			"organization_id", opts.Scope.OrganizationID,
			"top_k", topK,
		)
		return result, nil
	}

	if opts.GenerateAnswer {
		llm := s.services.LLMService()
		if llm == nil {
			return nil, domain.NewExternalServiceError("generation", "generate", domain.ErrServiceUnavailable)
		}

		answer, err := llm.Generate(ctx, AnswerSystemPrompt, BuildAnswerPrompt(result.Sources, query))
		if err != nil {
			return nil, domain.NewExternalServiceError("generation", "generate", err)
		}
		result.Answer = answer
	}

	result.Took = time.Since(start)

	s.logger.Info("query answered",
		"team_id", opts.Scope.TeamID,
		"organization_id", opts.Scope.OrganizationID,
		"top_k", topK,
		"match_count", len(matches),
		"generated", opts.GenerateAnswer,
		"duration_ms", result.Took.Milliseconds(),
	)

	return result, nil
}

// BuildAnswerPrompt joins the source texts, in rank order, into a context
// block followed by the question.
func BuildAnswerPrompt(sources []domain.SourceMatch, query string) string {
	texts := make([]string, 0, len(sources))
	for _, src := range sources {
		texts = append(texts, src.Text)
	}

	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(texts, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	return b.String()
}
