package cli

import (
	"context"
	"errors"

	"github.com/lapis-labs/lapis-backend/internal/config"
	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

type mockIngestion struct {
	gotData []byte
	gotMIME string
	gotDoc  domain.Document
	gotOpts domain.IngestOptions
	err     error
}

func (m *mockIngestion) Ingest(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIngestion) IngestBatch(ctx context.Context, docs []domain.Document, opts domain.IngestOptions) (*domain.BatchResult, error) {
	return nil, errors.New("not implemented")
}

func (m *mockIngestion) IngestFile(ctx context.Context, data []byte, mimeType string, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
	m.gotData = data
	m.gotMIME = mimeType
	m.gotDoc = doc
	m.gotOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestResult{
		DocumentID: doc.EffectiveDocumentID(),
		ChunkCount: 1,
		PerChunk:   []domain.ChunkSummary{{ChunkID: domain.ChunkID(doc.ID, 0), ChunkSize: len(data)}},
	}, nil
}

func (m *mockIngestion) History(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error) {
	return nil, domain.ErrServiceUnavailable
}

type mockRetrieval struct {
	gotQuery string
	gotOpts  domain.SearchOptions
	result   *domain.AnswerResult
	err      error
}

func (m *mockRetrieval) Answer(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error) {
	m.gotQuery = query
	m.gotOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// setupTestApp replaces app construction with mocks and returns a cleanup func
func setupTestApp(ingestion *mockIngestion, retrieval *mockRetrieval) func() {
	old := newApp
	newApp = func(ctx context.Context, path string) (*app, error) {
		return &app{
			cfg:       config.Default(),
			ingestion: ingestion,
			retrieval: retrieval,
		}, nil
	}
	return func() {
		newApp = old
	}
}
