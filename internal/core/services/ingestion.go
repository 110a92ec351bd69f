package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driving"
	"github.com/lapis-labs/lapis-backend/internal/runtime"
)

// Ensure ingestionService implements IngestionService
var _ driving.IngestionService = (*ingestionService)(nil)

// Chunking bounds
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 100
	MaxChunkSize        = 8000
	DefaultConcurrency  = 4
)

// IngestionConfig holds dependencies for the ingestion service.
type IngestionConfig struct {
	Services    *runtime.Services
	Chunker     driven.Chunker
	Normalisers driven.NormaliserRegistry

	// ChunkSize and ChunkOverlap are the defaults for requests that do not override them
	ChunkSize    int
	ChunkOverlap int

	// Concurrency bounds the number of chunks embedded and stored at once
	Concurrency int

	// ProbeIndex describes the index before each document; failures only log
	ProbeIndex bool

	Logger *slog.Logger
	Now    func() time.Time
}

// ingestionService implements the chunk → embed → upsert pipeline
type ingestionService struct {
	services     *runtime.Services
	chunker      driven.Chunker
	normalisers  driven.NormaliserRegistry
	chunkSize    int
	chunkOverlap int
	concurrency  int
	probeIndex   bool
	logger       *slog.Logger
	now          func() time.Time
}

// NewIngestionService creates a new IngestionService
func NewIngestionService(cfg IngestionConfig) driving.IngestionService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	chunkSize = min(chunkSize, MaxChunkSize)

	overlap := cfg.ChunkOverlap
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	overlap = min(overlap, chunkSize)

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	return &ingestionService{
		services:     cfg.Services,
		chunker:      cfg.Chunker,
		normalisers:  cfg.Normalisers,
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
		concurrency:  concurrency,
		probeIndex:   cfg.ProbeIndex,
		logger:       logger,
		now:          now,
	}
}

// Ingest validates, chunks, embeds and stores a single document
func (s *ingestionService) Ingest(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
	if err := s.services.Config().Schema.ValidateDocument(doc); err != nil {
		return nil, err
	}

	embedder := s.services.EmbeddingService()
	if embedder == nil {
		return nil, fmt.Errorf("embedding provider: %w", domain.ErrServiceUnavailable)
	}
	index := s.services.VectorIndex()

	start := s.now()
	documentID := doc.EffectiveDocumentID()

	s.probe(ctx, index)

	size, overlap := s.chunkBounds(opts)
	chunks := domain.NewChunks(doc, s.chunker.Chunk(doc.Text, size, overlap))

	s.logger.Debug("chunked document",
		"document_id", documentID,
		"chunk_count", len(chunks),
		"chunk_size", size,
		"chunk_overlap", overlap,
	)

	summaries, err := s.store(ctx, embedder, index, doc, chunks, opts)
	s.record(ctx, doc, opts, chunks, start, err)
	if err != nil {
		s.logger.Error("ingestion failed",
			"document_id", documentID,
			"record_id", doc.ID,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("document ingested",
		"document_id", documentID,
		"record_id", doc.ID,
		"chunk_count", len(summaries),
		"duration_ms", s.now().Sub(start).Milliseconds(),
	)

	return &domain.IngestResult{
		DocumentID: documentID,
		Title:      doc.Title,
		ChunkCount: len(summaries),
		PerChunk:   summaries,
	}, nil
}

// store embeds and upserts every chunk. The first failure cancels the
// outstanding work; chunks already upserted stay in the index.
func (s *ingestionService) store(
	ctx context.Context,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	doc domain.Document,
	chunks []domain.Chunk,
	opts domain.IngestOptions,
) ([]domain.ChunkSummary, error) {
	createdAt := s.now().UTC().Format(time.RFC3339)
	summaries := make([]domain.ChunkSummary, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			vectors, err := embedder.Embed(gctx, []string{chunk.Text})
			if err != nil {
				return domain.NewExternalServiceError("embedding", "embed", err)
			}
			if len(vectors) != 1 {
				return domain.NewExternalServiceError("embedding", "embed",
					fmt.Errorf("expected 1 vector, got %d", len(vectors)))
			}

			record := domain.EmbeddedRecord{
				ID:       chunk.ID,
				Vector:   vectors[0],
				Metadata: chunkMetadata(doc, chunk, createdAt, opts),
			}
			if err := index.Upsert(gctx, []domain.EmbeddedRecord{record}); err != nil {
				return domain.NewExternalServiceError("index", "upsert", err)
			}

			summaries[chunk.Index] = chunk.Summary()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// Cancellation of the caller's context is reported as-is.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return summaries, nil
}

// chunkMetadata builds the stored metadata for one chunk. Source metadata is
// written first so reserved keys always win.
func chunkMetadata(doc domain.Document, chunk domain.Chunk, createdAt string, opts domain.IngestOptions) domain.Metadata {
	md := make(domain.Metadata, len(doc.SourceMetadata)+10)
	for k, v := range doc.SourceMetadata {
		md[k] = v
	}

	md[domain.MetaText] = chunk.Text
	md[domain.MetaDocumentID] = chunk.DocumentID
	md[domain.MetaTitle] = doc.Title
	md[domain.MetaTeamID] = doc.Scope.TeamID
	md[domain.MetaOrganizationID] = doc.Scope.OrganizationID
	md[domain.MetaChunkIndex] = chunk.Index
	md[domain.MetaChunkTotal] = chunk.TotalChunks
	md[domain.MetaCreatedAt] = createdAt

	if opts.Source != "" {
		md[domain.MetaSource] = opts.Source
	}
	if opts.SourceType != "" {
		md[domain.MetaSourceType] = opts.SourceType
	}
	return md
}

// chunkBounds applies per-request overrides within the service limits
func (s *ingestionService) chunkBounds(opts domain.IngestOptions) (size, overlap int) {
	size = s.chunkSize
	if opts.ChunkSize > 0 {
		size = min(opts.ChunkSize, MaxChunkSize)
	}

	overlap = s.chunkOverlap
	if opts.ChunkOverlap != nil {
		overlap = max(*opts.ChunkOverlap, 0)
	}
	return size, min(overlap, size)
}

// probe describes the index. It never fails the request.
func (s *ingestionService) probe(ctx context.Context, index driven.VectorIndex) {
	if !s.probeIndex {
		return
	}
	stats, err := index.Describe(ctx)
	if err != nil {
		s.logger.Warn("index probe failed", "index", index.Name(), "error", err)
		return
	}
	s.logger.Debug("index probe",
		"index", index.Name(),
		"name", stats.Name,
		"dimension", stats.Dimension,
		"ready", stats.Ready,
	)
}

// record appends the outcome to the ingestion log when one is configured
func (s *ingestionService) record(ctx context.Context, doc domain.Document, opts domain.IngestOptions, chunks []domain.Chunk, start time.Time, ingestErr error) {
	log := s.services.IngestionLog()
	if log == nil {
		return
	}

	rec := &domain.IngestionRecord{
		DocumentID: doc.EffectiveDocumentID(),
		RecordID:   doc.ID,
		Title:      doc.Title,
		Scope:      doc.Scope,
		Source:     opts.Source,
		Status:     domain.IngestionSucceeded,
		DurationMs: s.now().Sub(start).Milliseconds(),
		CreatedAt:  start.UTC(),
	}
	if ingestErr != nil {
		rec.Status = domain.IngestionFailed
		rec.Error = ingestErr.Error()
	} else {
		rec.ChunkIDs = make([]string, len(chunks))
		for i, chunk := range chunks {
			rec.ChunkIDs[i] = chunk.ID
		}
	}

	// The request context may already be cancelled on failure.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := log.Record(logCtx, rec); err != nil {
		s.logger.Warn("failed to record ingestion",
			"document_id", rec.DocumentID,
			"error", err,
		)
	}
}

// IngestBatch ingests documents sequentially. A failing document is reported
// in its item and never stops the rest of the batch.
func (s *ingestionService) IngestBatch(ctx context.Context, docs []domain.Document, opts domain.IngestOptions) (*domain.BatchResult, error) {
	if len(docs) == 0 {
		return nil, domain.NewValidationError("documents")
	}
	if s.services.EmbeddingService() == nil {
		return nil, fmt.Errorf("embedding provider: %w", domain.ErrServiceUnavailable)
	}

	result := &domain.BatchResult{
		Source:     opts.Source,
		SourceType: opts.SourceType,
		Items:      make([]domain.BatchItem, 0, len(docs)),
	}

	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		item := domain.BatchItem{
			Index:      i,
			ID:         doc.ID,
			DocumentID: doc.EffectiveDocumentID(),
		}

		normalised, err := s.normaliseBatchText(doc, opts.SourceType)
		var res *domain.IngestResult
		if err == nil {
			res, err = s.Ingest(ctx, normalised, opts)
		}

		if err != nil {
			item.Status = domain.BatchItemFailed
			item.Error = err.Error()
			var ve *domain.ValidationError
			if errors.As(err, &ve) {
				item.MissingFields = ve.Fields
			}
			result.Failed++
		} else {
			item.Status = domain.BatchItemSucceeded
			item.Result = res
			result.Succeeded++
		}
		result.Items = append(result.Items, item)
	}

	s.logger.Info("batch ingested",
		"source", opts.Source,
		"source_type", opts.SourceType,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)

	return result, nil
}

// normaliseBatchText runs inline text through the normaliser for sourceType.
// Blank text is left for validation to report.
func (s *ingestionService) normaliseBatchText(doc domain.Document, sourceType string) (domain.Document, error) {
	if s.normalisers == nil || sourceType == "" || strings.TrimSpace(doc.Text) == "" {
		return doc, nil
	}
	text, err := s.normalisers.NormaliseFile([]byte(doc.Text), domain.MIMETypeForSourceType(sourceType))
	if err != nil {
		return doc, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	doc.Text = text
	return doc, nil
}

// IngestFile extracts text from an uploaded file and ingests it
func (s *ingestionService) IngestFile(ctx context.Context, data []byte, mimeType string, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
	if len(data) == 0 {
		return nil, domain.NewValidationError(domain.FieldText)
	}
	if s.normalisers == nil {
		return nil, fmt.Errorf("normalisers: %w", domain.ErrServiceUnavailable)
	}

	text, err := s.normalisers.NormaliseFile(data, mimeType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	s.logger.Debug("file normalised",
		"record_id", doc.ID,
		"mime_type", mimeType,
		"bytes", len(data),
		"text_bytes", len(text),
	)

	doc.Text = text
	return s.Ingest(ctx, doc, opts)
}

// History lists ingestion attempts for a document
func (s *ingestionService) History(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error) {
	log := s.services.IngestionLog()
	if log == nil {
		return nil, fmt.Errorf("ingestion log: %w", domain.ErrServiceUnavailable)
	}
	if strings.TrimSpace(documentID) == "" {
		return nil, domain.NewValidationError(domain.FieldDocumentID)
	}

	records, err := log.ListByDocument(ctx, documentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list ingestions: %w", err)
	}
	if records == nil {
		records = []*domain.IngestionRecord{}
	}
	return records, nil
}
