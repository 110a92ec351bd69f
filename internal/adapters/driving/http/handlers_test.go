package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/runtime"
)

// Mock services for testing

type mockIngestionService struct {
	ingestFn      func(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error)
	ingestBatchFn func(ctx context.Context, docs []domain.Document, opts domain.IngestOptions) (*domain.BatchResult, error)
	ingestFileFn  func(ctx context.Context, data []byte, mimeType string, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error)
	historyFn     func(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error)
}

func (m *mockIngestionService) Ingest(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, doc, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) IngestBatch(ctx context.Context, docs []domain.Document, opts domain.IngestOptions) (*domain.BatchResult, error) {
	if m.ingestBatchFn != nil {
		return m.ingestBatchFn(ctx, docs, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) IngestFile(ctx context.Context, data []byte, mimeType string, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
	if m.ingestFileFn != nil {
		return m.ingestFileFn(ctx, data, mimeType, doc, opts)
	}
	return nil, errors.New("not implemented")
}

func (m *mockIngestionService) History(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, documentID, limit)
	}
	return nil, errors.New("not implemented")
}

type mockRetrievalService struct {
	answerFn func(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error)
}

func (m *mockRetrievalService) Answer(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error) {
	if m.answerFn != nil {
		return m.answerFn(ctx, query, opts)
	}
	return nil, errors.New("not implemented")
}

type mockReadiness struct {
	ready      bool
	components map[string]runtime.ComponentStatus
}

func (m *mockReadiness) Readiness(ctx context.Context) (bool, map[string]runtime.ComponentStatus) {
	return m.ready, m.components
}

func newTestServer(ingestion *mockIngestionService, retrieval *mockRetrievalService) *Server {
	if ingestion == nil {
		ingestion = &mockIngestionService{}
	}
	if retrieval == nil {
		retrieval = &mockRetrievalService{}
	}
	return NewServer(DefaultConfig(), ingestion, retrieval, nil, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

// Health endpoints

func TestRootHandler(t *testing.T) {
	server := newTestServer(nil, nil)

	rr := doJSON(t, server.Handler(), "GET", "/", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}
	if rr.Body.String() != "working" {
		t.Errorf("expected body 'working', got %q", rr.Body.String())
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/plain") {
		t.Errorf("expected text/plain, got %s", rr.Header().Get("Content-Type"))
	}
}

func TestUnknownRoute(t *testing.T) {
	server := newTestServer(nil, nil)

	rr := doJSON(t, server.Handler(), "GET", "/nope", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	server := newTestServer(nil, nil)

	rr := doJSON(t, server.Handler(), "GET", "/health", nil)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %s", response["status"])
	}
}

func TestReadyHandler(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		server := newTestServer(nil, nil)
		server.readiness = &mockReadiness{
			ready: true,
			components: map[string]runtime.ComponentStatus{
				"vector_index": {Status: runtime.StatusOK},
				"cache":        {Status: runtime.StatusUnavailable},
			},
		}

		rr := doJSON(t, server.Handler(), "GET", "/ready", nil)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
		var response ReadyResponse
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Status != "ready" {
			t.Errorf("expected status 'ready', got %s", response.Status)
		}
		if response.Components["cache"].Status != runtime.StatusUnavailable {
			t.Errorf("expected cache not_configured, got %s", response.Components["cache"].Status)
		}
	})

	t.Run("index down", func(t *testing.T) {
		server := newTestServer(nil, nil)
		server.readiness = &mockReadiness{
			ready: false,
			components: map[string]runtime.ComponentStatus{
				"vector_index": {Status: runtime.StatusError, Error: "connection refused"},
			},
		}

		rr := doJSON(t, server.Handler(), "GET", "/ready", nil)

		if rr.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status 503, got %d", rr.Code)
		}
		var response ReadyResponse
		if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Components["vector_index"].Error != "connection refused" {
			t.Errorf("expected component error, got %+v", response.Components["vector_index"])
		}
	})
}

func TestVersionHandler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Version = "1.2.3"
	server := NewServer(cfg, &mockIngestionService{}, &mockRetrievalService{}, nil, nil)

	rr := doJSON(t, server.Handler(), "GET", "/version", nil)

	var response map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["version"] != "1.2.3" {
		t.Errorf("expected version 1.2.3, got %s", response["version"])
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusBadRequest, "bad")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Errorf("expected application/json, got %s", rr.Header().Get("Content-Type"))
	}
	if !strings.Contains(rr.Body.String(), `"error":"bad"`) {
		t.Errorf("unexpected body %s", rr.Body.String())
	}
}

// Single document ingestion

func TestHandleEmbedding_Success(t *testing.T) {
	var got domain.Document
	var gotOpts domain.IngestOptions
	ingestion := &mockIngestionService{
		ingestFn: func(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
			got = doc
			gotOpts = opts
			return &domain.IngestResult{
				DocumentID: doc.EffectiveDocumentID(),
				Title:      doc.Title,
				ChunkCount: 1,
				PerChunk:   []domain.ChunkSummary{{ChunkID: "doc-1_chunk_0", ChunkIndex: 0, ChunkSize: 11}},
			}, nil
		},
	}
	server := newTestServer(ingestion, nil)

	rr := doJSON(t, server.Handler(), "POST", "/embedding", map[string]any{
		"text":           "hello world",
		"id":             "doc-1",
		"title":          "Greeting",
		"teamId":         "team-1",
		"organizationId": "org-1",
		"chunkSize":      500,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.ID != "doc-1" || got.Text != "hello world" || got.Title != "Greeting" {
		t.Errorf("unexpected document %+v", got)
	}
	if got.Scope != (domain.Scope{TeamID: "team-1", OrganizationID: "org-1"}) {
		t.Errorf("unexpected scope %+v", got.Scope)
	}
	if gotOpts.ChunkSize != 500 {
		t.Errorf("expected chunk size 500, got %d", gotOpts.ChunkSize)
	}

	var response map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response["id"] != "doc-1" {
		t.Errorf("expected id doc-1, got %v", response["id"])
	}
	if response["chunkCount"] != float64(1) {
		t.Errorf("expected chunkCount 1, got %v", response["chunkCount"])
	}
	if response["message"] == "" {
		t.Error("expected a message")
	}
}

func TestHandleEmbedding_ChunkOverlap(t *testing.T) {
	var gotOpts domain.IngestOptions
	ingestion := &mockIngestionService{
		ingestFn: func(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
			gotOpts = opts
			return &domain.IngestResult{DocumentID: doc.EffectiveDocumentID(), ChunkCount: 1}, nil
		},
	}
	server := newTestServer(ingestion, nil)
	body := map[string]any{"text": "hello", "id": "doc-1", "teamId": "team-1", "organizationId": "org-1"}

	rr := doJSON(t, server.Handler(), "POST", "/embedding", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotOpts.ChunkOverlap != nil {
		t.Errorf("expected no overlap override, got %d", *gotOpts.ChunkOverlap)
	}

	body["chunkOverlap"] = 0
	rr = doJSON(t, server.Handler(), "POST", "/embedding", body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotOpts.ChunkOverlap == nil || *gotOpts.ChunkOverlap != 0 {
		t.Errorf("expected explicit zero overlap, got %v", gotOpts.ChunkOverlap)
	}
}

func TestHandleEmbedding_InvalidJSON(t *testing.T) {
	server := newTestServer(nil, nil)

	rr := doJSON(t, server.Handler(), "POST", "/embedding", "invalid json")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleEmbedding_MissingFields(t *testing.T) {
	ingestion := &mockIngestionService{
		ingestFn: func(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
			return nil, domain.NewValidationError(domain.FieldText, domain.FieldTeamID)
		},
	}
	server := newTestServer(ingestion, nil)

	rr := doJSON(t, server.Handler(), "POST", "/embedding", map[string]any{"id": "doc-1"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}

	var response ValidationErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	want := map[string]bool{
		"text":           true,
		"id":             false,
		"title":          false,
		"teamId":         true,
		"organizationId": false,
	}
	if len(response.MissingFields) != len(want) {
		t.Fatalf("expected %d fields, got %v", len(want), response.MissingFields)
	}
	for field, missing := range want {
		if response.MissingFields[field] != missing {
			t.Errorf("missingFields[%s] = %v, want %v", field, response.MissingFields[field], missing)
		}
	}
}

func TestHandleEmbedding_ProviderFailure(t *testing.T) {
	ingestion := &mockIngestionService{
		ingestFn: func(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
			return nil, domain.NewExternalServiceError("index", "upsert", errors.New("503 from index"))
		},
	}
	server := newTestServer(ingestion, nil)

	rr := doJSON(t, server.Handler(), "POST", "/embedding", map[string]any{"id": "doc-1", "text": "x"})

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", rr.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.Error == "" {
		t.Error("expected error summary")
	}
	if !strings.Contains(response.Details, "503 from index") {
		t.Errorf("expected provider details, got %q", response.Details)
	}
}

func TestHandleEmbedding_NotConfigured(t *testing.T) {
	ingestion := &mockIngestionService{
		ingestFn: func(ctx context.Context, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
			return nil, domain.ErrServiceUnavailable
		},
	}
	server := newTestServer(ingestion, nil)

	rr := doJSON(t, server.Handler(), "POST", "/embedding", map[string]any{"id": "doc-1", "text": "x"})

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

// Batch ingestion

func TestHandleIngestBatch(t *testing.T) {
	for _, path := range []string{"/ingest", "/chunk-and-embed"} {
		t.Run(path, func(t *testing.T) {
			var gotDocs []domain.Document
			var gotOpts domain.IngestOptions
			ingestion := &mockIngestionService{
				ingestBatchFn: func(ctx context.Context, docs []domain.Document, opts domain.IngestOptions) (*domain.BatchResult, error) {
					gotDocs = docs
					gotOpts = opts
					return &domain.BatchResult{
						Source:     opts.Source,
						SourceType: opts.SourceType,
						Succeeded:  1,
						Failed:     1,
						Items: []domain.BatchItem{
							{Index: 0, ID: "a", Status: domain.BatchItemSucceeded},
							{Index: 1, ID: "b", Status: domain.BatchItemFailed, MissingFields: []string{"text"}},
						},
					}, nil
				},
			}
			server := newTestServer(ingestion, nil)

			rr := doJSON(t, server.Handler(), "POST", path, map[string]any{
				"source":     "wiki",
				"sourceType": "markdown",
				"documents": []map[string]any{
					{"id": "a", "text": "# A", "teamId": "t1", "organizationId": "o1"},
					{"id": "b", "teamId": "t1", "organizationId": "o1"},
				},
			})

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
			}
			if len(gotDocs) != 2 || gotDocs[0].ID != "a" || gotDocs[1].Scope.TeamID != "t1" {
				t.Errorf("unexpected documents %+v", gotDocs)
			}
			if gotOpts.Source != "wiki" || gotOpts.SourceType != "markdown" {
				t.Errorf("unexpected options %+v", gotOpts)
			}

			var response domain.BatchResult
			if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Succeeded != 1 || response.Failed != 1 || len(response.Items) != 2 {
				t.Errorf("unexpected result %+v", response)
			}
		})
	}
}

func TestHandleIngestBatch_Empty(t *testing.T) {
	ingestion := &mockIngestionService{
		ingestBatchFn: func(ctx context.Context, docs []domain.Document, opts domain.IngestOptions) (*domain.BatchResult, error) {
			return nil, domain.NewValidationError("documents")
		},
	}
	server := newTestServer(ingestion, nil)

	rr := doJSON(t, server.Handler(), "POST", "/ingest", map[string]any{"source": "wiki"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var response ValidationErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.MissingFields["documents"] {
		t.Errorf("expected documents to be reported missing, got %v", response.MissingFields)
	}
}

// File upload

func multipartBody(t *testing.T, fields map[string]string, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		if err != nil {
			t.Fatalf("failed to create file part: %v", err)
		}
		_, _ = fw.Write(content)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHandleIngestUpload(t *testing.T) {
	var gotData []byte
	var gotMIME string
	var gotDoc domain.Document
	ingestion := &mockIngestionService{
		ingestFileFn: func(ctx context.Context, data []byte, mimeType string, doc domain.Document, opts domain.IngestOptions) (*domain.IngestResult, error) {
			gotData = data
			gotMIME = mimeType
			gotDoc = doc
			return &domain.IngestResult{DocumentID: doc.EffectiveDocumentID(), ChunkCount: 1}, nil
		},
	}
	server := newTestServer(ingestion, nil)

	body, contentType := multipartBody(t, map[string]string{
		"id":             "handbook",
		"title":          "Handbook",
		"teamId":         "t1",
		"organizationId": "o1",
	}, "handbook.md", []byte("# Handbook"))

	req := httptest.NewRequest("POST", "/ingest/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if string(gotData) != "# Handbook" {
		t.Errorf("unexpected data %q", gotData)
	}
	if gotMIME != "text/markdown" {
		t.Errorf("expected text/markdown, got %s", gotMIME)
	}
	if gotDoc.ID != "handbook" || gotDoc.Scope.OrganizationID != "o1" {
		t.Errorf("unexpected document %+v", gotDoc)
	}
	if gotDoc.SourceMetadata["filename"] != "handbook.md" {
		t.Errorf("expected filename metadata, got %v", gotDoc.SourceMetadata)
	}
}

func TestHandleIngestUpload_MissingFile(t *testing.T) {
	server := newTestServer(nil, nil)

	body, contentType := multipartBody(t, map[string]string{"id": "x"}, "", nil)
	req := httptest.NewRequest("POST", "/ingest/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleIngestUpload_NotMultipart(t *testing.T) {
	server := newTestServer(nil, nil)

	rr := doJSON(t, server.Handler(), "POST", "/ingest/upload", map[string]string{"id": "x"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

// Ingestion history

func TestHandleIngestionHistory(t *testing.T) {
	var gotID string
	var gotLimit int
	ingestion := &mockIngestionService{
		historyFn: func(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error) {
			gotID = documentID
			gotLimit = limit
			return []*domain.IngestionRecord{
				{ID: "r1", DocumentID: documentID, Status: domain.IngestionSucceeded, CreatedAt: time.Now()},
			}, nil
		},
	}
	server := newTestServer(ingestion, nil)

	rr := doJSON(t, server.Handler(), "GET", "/documents/policy/ingestions?limit=10", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if gotID != "policy" || gotLimit != 10 {
		t.Errorf("unexpected call id=%s limit=%d", gotID, gotLimit)
	}

	var response []domain.IngestionRecord
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response) != 1 || response[0].ID != "r1" {
		t.Errorf("unexpected records %+v", response)
	}
}

func TestHandleIngestionHistory_NotConfigured(t *testing.T) {
	ingestion := &mockIngestionService{
		historyFn: func(ctx context.Context, documentID string, limit int) ([]*domain.IngestionRecord, error) {
			return nil, domain.ErrServiceUnavailable
		},
	}
	server := newTestServer(ingestion, nil)

	rr := doJSON(t, server.Handler(), "GET", "/documents/policy/ingestions", nil)

	if rr.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rr.Code)
	}
}

func TestHandleIngestionHistory_BadLimit(t *testing.T) {
	server := newTestServer(nil, nil)

	rr := doJSON(t, server.Handler(), "GET", "/documents/policy/ingestions?limit=abc", nil)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

// Retrieval

func TestHandleSearch_Success(t *testing.T) {
	var gotQuery string
	var gotOpts domain.SearchOptions
	retrieval := &mockRetrievalService{
		answerFn: func(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error) {
			gotQuery = query
			gotOpts = opts
			meta := domain.Metadata{"text": "t", "teamId": "t1", "organizationId": "o1"}
			return &domain.AnswerResult{
				Query:  query,
				Answer: "because",
				Sources: []domain.SourceMatch{
					{ID: "a", Score: 0.9, Text: "t", Metadata: meta},
					{ID: "b", Score: 0.4, Text: "t", Metadata: meta},
				},
				Took: 25 * time.Millisecond,
			}, nil
		},
	}
	server := newTestServer(nil, retrieval)

	rr := doJSON(t, server.Handler(), "POST", "/search", map[string]any{
		"query":          "x",
		"teamId":         "t1",
		"organizationId": "o1",
		"topK":           2,
		"generateAnswer": true,
	})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if gotQuery != "x" {
		t.Errorf("expected query x, got %s", gotQuery)
	}
	if gotOpts.TopK != 2 || !gotOpts.GenerateAnswer || gotOpts.Scope.TeamID != "t1" {
		t.Errorf("unexpected options %+v", gotOpts)
	}

	var response searchResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(response.Results) != 2 || len(response.Sources) != 2 {
		t.Fatalf("expected 2 results and sources, got %d/%d", len(response.Results), len(response.Sources))
	}
	if response.Results[0].Score < response.Results[1].Score {
		t.Error("expected results in descending score order")
	}
	for _, r := range response.Results {
		if r.Metadata.String("teamId") != "t1" || r.Metadata.String("organizationId") != "o1" {
			t.Errorf("result %s carries wrong scope: %v", r.ID, r.Metadata)
		}
	}
	if response.Answer != "because" {
		t.Errorf("expected answer, got %q", response.Answer)
	}
	if response.TookMs != 25 {
		t.Errorf("expected tookMs 25, got %d", response.TookMs)
	}
}

func TestHandleSearch_NoMatches(t *testing.T) {
	retrieval := &mockRetrievalService{
		answerFn: func(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error) {
			return &domain.AnswerResult{Query: query, Answer: domain.NoRelevantInformation, Sources: []domain.SourceMatch{}}, nil
		},
	}
	server := newTestServer(nil, retrieval)

	rr := doJSON(t, server.Handler(), "POST", "/search", map[string]any{"query": "x", "teamId": "t", "organizationId": "o"})

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"sources":[]`) {
		t.Errorf("expected empty sources array, got %s", rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), domain.NoRelevantInformation) {
		t.Errorf("expected fallback answer, got %s", rr.Body.String())
	}
}

func TestHandleSearch_InvalidJSON(t *testing.T) {
	server := newTestServer(nil, nil)

	rr := doJSON(t, server.Handler(), "POST", "/search", "invalid json")

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	retrieval := &mockRetrievalService{
		answerFn: func(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error) {
			return nil, domain.NewValidationError(domain.FieldQuery)
		},
	}
	server := newTestServer(nil, retrieval)

	rr := doJSON(t, server.Handler(), "POST", "/search", map[string]any{"teamId": "t", "organizationId": "o"})

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	var response ValidationErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !response.MissingFields["query"] || response.MissingFields["teamId"] {
		t.Errorf("unexpected missingFields %v", response.MissingFields)
	}
}

func TestHandleSearch_GenerationUnavailable(t *testing.T) {
	retrieval := &mockRetrievalService{
		answerFn: func(ctx context.Context, query string, opts domain.SearchOptions) (*domain.AnswerResult, error) {
			return nil, domain.NewExternalServiceError("generation", "generate", domain.ErrServiceUnavailable)
		},
	}
	server := newTestServer(nil, retrieval)

	rr := doJSON(t, server.Handler(), "POST", "/search", map[string]any{"query": "x", "generateAnswer": true})

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
}

func TestMissingFields(t *testing.T) {
	ve := domain.NewValidationError("query", "extra")
	got := missingFields(ve, []string{"query", "teamId"})

	want := map[string]bool{"query": true, "teamId": false, "extra": true}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("missingFields[%s] = %v, want %v", k, got[k], v)
		}
	}
}
