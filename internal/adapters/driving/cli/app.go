package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lapis-labs/lapis-backend/internal/adapters/driven/ai"
	"github.com/lapis-labs/lapis-backend/internal/adapters/driven/auth"
	"github.com/lapis-labs/lapis-backend/internal/adapters/driven/pinecone"
	"github.com/lapis-labs/lapis-backend/internal/adapters/driven/postgres"
	"github.com/lapis-labs/lapis-backend/internal/adapters/driven/qdrant"
	redisadapter "github.com/lapis-labs/lapis-backend/internal/adapters/driven/redis"
	"github.com/lapis-labs/lapis-backend/internal/config"
	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driving"
	"github.com/lapis-labs/lapis-backend/internal/core/services"
	"github.com/lapis-labs/lapis-backend/internal/normalisers"
	"github.com/lapis-labs/lapis-backend/internal/postprocessors"
	"github.com/lapis-labs/lapis-backend/internal/runtime"
)

// app holds the wired services shared by every command
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	services  *runtime.Services
	ingestion driving.IngestionService
	retrieval driving.RetrievalService
	auth      driven.AuthAdapter // nil when JWT_SECRET is unset

	closers []func() error
}

// Close releases provider clients and connections in reverse order
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newApp builds the app from configuration. Tests replace it.
var newApp = buildApp

func buildApp(ctx context.Context, path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration:\n%w", err)
	}

	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	// ===== Vector index =====
	index, err := newVectorIndex(cfg)
	if err != nil {
		return err
	}
	a.services = runtime.NewServices(domain.NewRuntimeConfig(cfg.VectorBackend, cfg.Schema()), index)
	a.closers = append(a.closers, a.services.Close)
	a.logger.Info("vector index configured", "backend", index.Name())

	// ===== Embedding provider =====
	factory := ai.NewFactory()
	embedder, err := factory.CreateEmbeddingService(cfg.EmbeddingSettings())
	if err != nil {
		return fmt.Errorf("embedding provider: %w", err)
	}
	dimensions := embedder.Dimensions()

	if cfg.RateLimit.RequestsPerSecond > 0 {
		embedder = ai.NewRateLimitedEmbedding(embedder, ai.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			BurstSize:         cfg.RateLimit.Burst,
		})
		a.logger.Info("embedding rate limit enabled",
			"requests_per_second", cfg.RateLimit.RequestsPerSecond,
			"burst", cfg.RateLimit.Burst,
		)
	}

	// ===== Redis embedding cache (optional) =====
	if cfg.Redis.URL != "" {
		client, err := redisadapter.Connect(ctx, cfg.Redis.URL)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, client.Close)

		cache := redisadapter.NewEmbeddingCache(client, cfg.EmbeddingCacheTTL())
		a.services.SetEmbeddingCache(cache)
		embedder = ai.NewCachedEmbedding(embedder, cache, a.logger)
		a.logger.Info("embedding cache enabled", "ttl", cfg.EmbeddingCacheTTL())
	}
	a.services.SetEmbeddingService(embedder)

	// ===== Generation provider =====
	llm, err := factory.CreateLLMService(cfg.LLMSettings())
	if err != nil {
		return fmt.Errorf("generation provider: %w", err)
	}
	a.services.SetLLMService(llm)

	if q, ok := index.(*qdrant.Index); ok && dimensions > 0 {
		if err := q.EnsureCollection(ctx, dimensions); err != nil {
			a.logger.Warn("failed to ensure qdrant collection", "error", err)
		}
	}

	// ===== PostgreSQL ingestion log (optional) =====
	if cfg.Database.URL != "" {
		db, err := postgres.Connect(ctx, postgres.DefaultConfig(cfg.Database.URL))
		if err != nil {
			return err
		}
		a.closers = append(a.closers, db.Close)

		if err := db.InitSchema(ctx); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
		a.services.SetIngestionLog(postgres.NewIngestionLog(db))
		a.logger.Info("ingestion log enabled")
	}

	// ===== Bearer auth (optional) =====
	if cfg.Auth.JWTSecret != "" {
		a.auth = auth.NewAdapter(cfg.Auth.JWTSecret)
	}

	// ===== Core services =====
	a.ingestion = services.NewIngestionService(services.IngestionConfig{
		Services: a.services,
		Chunker: postprocessors.NewChunker(postprocessors.ChunkConfig{
			MaxChunkSize: cfg.Ingestion.ChunkSize,
			Overlap:      cfg.Ingestion.ChunkOverlap,
		}),
		Normalisers:  normalisers.DefaultRegistry(),
		ChunkSize:    cfg.Ingestion.ChunkSize,
		ChunkOverlap: cfg.Ingestion.ChunkOverlap,
		Concurrency:  cfg.Ingestion.Concurrency,
		ProbeIndex:   cfg.Ingestion.ProbeIndex,
		Logger:       a.logger,
	})
	a.retrieval = services.NewRetrievalService(services.RetrievalConfig{
		Services:    a.services,
		DefaultTopK: cfg.DefaultTopK,
		Logger:      a.logger,
	})

	return nil
}

func newVectorIndex(cfg *config.Config) (driven.VectorIndex, error) {
	switch cfg.VectorBackend {
	case config.BackendQdrant:
		qcfg := qdrant.DefaultConfig(cfg.Qdrant.URL, cfg.Qdrant.Collection)
		qcfg.APIKey = cfg.Qdrant.APIKey
		return qdrant.NewIndex(qcfg)
	default:
		pcfg := pinecone.DefaultConfig(cfg.Pinecone.APIKey, cfg.Pinecone.Index)
		pcfg.Host = cfg.Pinecone.Host
		pcfg.Namespace = cfg.Pinecone.Namespace
		return pinecone.NewIndex(pcfg)
	}
}
