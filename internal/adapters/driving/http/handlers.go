package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error   string `json:"error" example:"invalid request body"`
	Details string `json:"details,omitempty" example:"embedding embed failed: 429 Too Many Requests"`
}

// ValidationErrorResponse reports which required fields were missing
// @Description Validation error response
type ValidationErrorResponse struct {
	Error         string          `json:"error" example:"missing required fields"`
	MissingFields map[string]bool `json:"missingFields"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// ReadyResponse reports per-component readiness
// @Description Readiness response
type ReadyResponse struct {
	Status     string                             `json:"status" example:"ready"`
	Components map[string]componentStatusResponse `json:"components"`
}

type componentStatusResponse struct {
	Status string `json:"status" example:"ok"`
	Error  string `json:"error,omitempty"`
}

// Health endpoints

// handleRoot godoc
// @Summary      Liveness probe
// @Description  Returns a fixed plain-text body
// @Tags         Health
// @Produce      plain
// @Success      200  {string}  string  "working"
// @Router       / [get]
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, "working")
}

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Checks the vector index and any configured cache and ingestion log
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.readiness == nil {
		writeJSON(w, http.StatusOK, ReadyResponse{Status: "ready", Components: map[string]componentStatusResponse{}})
		return
	}

	ready, components := s.readiness.Readiness(r.Context())
	resp := ReadyResponse{
		Status:     "ready",
		Components: make(map[string]componentStatusResponse, len(components)),
	}
	for name, c := range components {
		resp.Components[name] = componentStatusResponse{Status: c.Status, Error: c.Error}
	}

	status := http.StatusOK
	if !ready {
		resp.Status = "not_ready"
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Ingestion endpoints

// documentRequest is a single document as sent by clients
// @Description Document to ingest
type documentRequest struct {
	Text           string            `json:"text" example:"Our refund policy is simple."`
	ID             string            `json:"id" example:"doc-1"`
	Title          string            `json:"title,omitempty" example:"Refund policy"`
	TeamID         string            `json:"teamId,omitempty" example:"team-1"`
	OrganizationID string            `json:"organizationId,omitempty" example:"org-1"`
	DocumentID     string            `json:"documentId,omitempty" example:"policy-handbook"`
	SourceMetadata map[string]string `json:"sourceMetadata,omitempty"`
}

func (d documentRequest) toDomain() domain.Document {
	return domain.Document{
		ID:             d.ID,
		DocumentID:     d.DocumentID,
		Title:          d.Title,
		Text:           d.Text,
		Scope:          domain.Scope{TeamID: d.TeamID, OrganizationID: d.OrganizationID},
		SourceMetadata: d.SourceMetadata,
	}
}

// embeddingRequest ingests one document
// @Description Single document ingestion request
type embeddingRequest struct {
	documentRequest
	ChunkSize    int  `json:"chunkSize,omitempty" example:"1000"`
	ChunkOverlap *int `json:"chunkOverlap,omitempty" example:"100"`
}

// ingestResponse reports the stored chunks of one document
// @Description Single document ingestion response
type ingestResponse struct {
	Message string `json:"message" example:"Embedding stored successfully!"`
	ID      string `json:"id" example:"doc-1"`
	*domain.IngestResult
}

// handleEmbedding godoc
// @Summary      Ingest a document
// @Description  Chunk, embed and store a single document
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      embeddingRequest  true  "Document"
// @Success      200      {object}  ingestResponse
// @Failure      400      {object}  ValidationErrorResponse  "Missing required fields"
// @Failure      403      {object}  ErrorResponse  "Scope not permitted by token"
// @Failure      500      {object}  ErrorResponse  "Provider failure"
// @Router       /embedding [post]
func (s *Server) handleEmbedding(w http.ResponseWriter, r *http.Request) {
	var req embeddingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	doc := req.toDomain()
	scope, err := authorizeScope(r.Context(), doc.Scope)
	if err != nil {
		s.writeServiceError(w, err, s.schema.RequiredFields())
		return
	}
	doc.Scope = scope

	result, err := s.ingestionService.Ingest(r.Context(), doc, domain.IngestOptions{
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
	})
	if err != nil {
		s.writeServiceError(w, err, s.schema.RequiredFields())
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Message:      "Embedding stored successfully!",
		ID:           doc.ID,
		IngestResult: result,
	})
}

// batchRequest ingests documents from one source
// @Description Batch ingestion request
type batchRequest struct {
	Source       string            `json:"source" example:"confluence"`
	SourceType   string            `json:"sourceType" example:"markdown"`
	Documents    []documentRequest `json:"documents"`
	ChunkSize    int               `json:"chunkSize,omitempty" example:"1000"`
	ChunkOverlap *int              `json:"chunkOverlap,omitempty" example:"100"`
}

// handleIngestBatch godoc
// @Summary      Ingest a batch of documents
// @Description  Ingest documents from one source. Each document succeeds or fails independently.
// @Tags         Ingestion
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      batchRequest  true  "Documents"
// @Success      200      {object}  domain.BatchResult
// @Failure      400      {object}  ValidationErrorResponse  "No documents"
// @Failure      403      {object}  ErrorResponse  "Scope not permitted by token"
// @Failure      503      {object}  ErrorResponse  "Embedding provider not configured"
// @Router       /chunk-and-embed [post]
// @Router       /ingest [post]
func (s *Server) handleIngestBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	docs := make([]domain.Document, 0, len(req.Documents))
	for _, d := range req.Documents {
		doc := d.toDomain()
		scope, err := authorizeScope(r.Context(), doc.Scope)
		if err != nil {
			s.writeServiceError(w, err, nil)
			return
		}
		doc.Scope = scope
		docs = append(docs, doc)
	}

	result, err := s.ingestionService.IngestBatch(r.Context(), docs, domain.IngestOptions{
		ChunkSize:    req.ChunkSize,
		ChunkOverlap: req.ChunkOverlap,
		Source:       req.Source,
		SourceType:   req.SourceType,
	})
	if err != nil {
		s.writeServiceError(w, err, []string{"documents"})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleIngestUpload godoc
// @Summary      Ingest an uploaded file
// @Description  Extract text from a PDF, HTML, Markdown or plain-text file and ingest it
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file            formData  file    true   "Document file"
// @Param        id              formData  string  true   "Record id"
// @Param        title           formData  string  false  "Title"
// @Param        teamId          formData  string  false  "Team id"
// @Param        organizationId  formData  string  false  "Organization id"
// @Param        documentId      formData  string  false  "Logical document id"
// @Param        mimeType        formData  string  false  "Overrides the type guessed from the file name"
// @Success      200  {object}  ingestResponse
// @Failure      400  {object}  ValidationErrorResponse  "Missing fields or unreadable file"
// @Failure      413  {object}  ErrorResponse  "File too large"
// @Failure      500  {object}  ErrorResponse  "Provider failure"
// @Router       /ingest/upload [post]
func (s *Server) handleIngestUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read file")
		return
	}

	mimeType := r.FormValue("mimeType")
	if mimeType == "" {
		mimeType = domain.MIMETypeForFilename(header.Filename)
	}

	doc := domain.Document{
		ID:         r.FormValue("id"),
		DocumentID: r.FormValue("documentId"),
		Title:      r.FormValue("title"),
		Scope: domain.Scope{
			TeamID:         r.FormValue("teamId"),
			OrganizationID: r.FormValue("organizationId"),
		},
		SourceMetadata: map[string]string{"filename": header.Filename},
	}
	scope, err := authorizeScope(r.Context(), doc.Scope)
	if err != nil {
		s.writeServiceError(w, err, nil)
		return
	}
	doc.Scope = scope

	result, err := s.ingestionService.IngestFile(r.Context(), data, mimeType, doc, domain.IngestOptions{
		Source:     r.FormValue("source"),
		SourceType: mimeType,
	})
	if err != nil {
		s.writeServiceError(w, err, s.schema.RequiredFields())
		return
	}

	writeJSON(w, http.StatusOK, ingestResponse{
		Message:      "File ingested successfully!",
		ID:           doc.ID,
		IngestResult: result,
	})
}

// handleIngestionHistory godoc
// @Summary      Ingestion history
// @Description  List recorded ingestion attempts for a logical document, newest first
// @Tags         Ingestion
// @Produce      json
// @Security     BearerAuth
// @Param        id     path      string  true   "Document ID"
// @Param        limit  query     int     false  "Maximum entries"
// @Success      200    {array}   domain.IngestionRecord
// @Failure      404    {object}  ErrorResponse  "Ingestion log not configured"
// @Router       /documents/{id}/ingestions [get]
func (s *Server) handleIngestionHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := s.ingestionService.History(r.Context(), id, limit)
	if err != nil {
		if errors.Is(err, domain.ErrServiceUnavailable) {
			writeError(w, http.StatusNotFound, "ingestion log not configured")
			return
		}
		s.writeServiceError(w, err, []string{domain.FieldDocumentID})
		return
	}

	// Tokens only see their own tenant's history
	if claims := GetTokenClaims(r.Context()); claims != nil {
		visible := records[:0]
		for _, rec := range records {
			if claims.Permits(rec.Scope) {
				visible = append(visible, rec)
			}
		}
		records = visible
	}

	writeJSON(w, http.StatusOK, records)
}

// Retrieval endpoints

// searchRequest represents a retrieval request
// @Description Search query request
type searchRequest struct {
	Query          string `json:"query" example:"How long do refunds take?"`
	TeamID         string `json:"teamId,omitempty" example:"team-1"`
	OrganizationID string `json:"organizationId,omitempty" example:"org-1"`
	TopK           int    `json:"topK,omitempty" example:"5"`
	GenerateAnswer bool   `json:"generateAnswer,omitempty" example:"true"`
}

// searchResponse carries the ranked sources and optional answer.
// Results mirrors Sources for older clients.
// @Description Search response
type searchResponse struct {
	Query   string               `json:"query"`
	Answer  string               `json:"answer,omitempty"`
	Sources []domain.SourceMatch `json:"sources"`
	Results []domain.SourceMatch `json:"results"`
	TookMs  int64                `json:"tookMs" example:"412"`
}

// handleSearch godoc
// @Summary      Search and answer
// @Description  Retrieve the chunks nearest to the query within the caller's scope and optionally generate an answer from them
// @Tags         Retrieval
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      searchRequest  true  "Search query"
// @Success      200      {object}  searchResponse
// @Failure      400      {object}  ValidationErrorResponse  "Missing query or scope"
// @Failure      403      {object}  ErrorResponse  "Scope not permitted by token"
// @Failure      500      {object}  ErrorResponse  "Provider failure"
// @Router       /search [post]
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	scope, err := authorizeScope(r.Context(), domain.Scope{TeamID: req.TeamID, OrganizationID: req.OrganizationID})
	if err != nil {
		s.writeServiceError(w, err, s.schema.QueryFields())
		return
	}

	result, err := s.retrievalService.Answer(r.Context(), req.Query, domain.SearchOptions{
		Scope:          scope,
		TopK:           req.TopK,
		GenerateAnswer: req.GenerateAnswer,
	})
	if err != nil {
		s.writeServiceError(w, err, s.schema.QueryFields())
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{
		Query:   result.Query,
		Answer:  result.Answer,
		Sources: result.Sources,
		Results: result.Sources,
		TookMs:  result.Took.Milliseconds(),
	})
}

// Helper functions

// writeServiceError maps a service error onto a status code and body.
// required lists the fields reported in missingFields for validation errors.
func (s *Server) writeServiceError(w http.ResponseWriter, err error, required []string) {
	var ve *domain.ValidationError
	var ext *domain.ExternalServiceError

	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ValidationErrorResponse{
			Error:         "missing required fields",
			MissingFields: missingFields(ve, required),
		})
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "scope not permitted by token")
	case errors.As(err, &ext):
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrServiceUnavailable) {
			status = http.StatusServiceUnavailable
		}
		s.logger.Error("provider failure", "service", ext.Service, "op", ext.Op, "error", ext.Err)
		writeJSON(w, status, ErrorResponse{
			Error:   "failed to " + ext.Op + " via " + ext.Service + " provider",
			Details: err.Error(),
		})
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Error:   "service unavailable",
			Details: err.Error(),
		})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal server error",
			Details: err.Error(),
		})
	}
}

// missingFields reports every required field, true when it was missing.
// Fields missing but not listed in required are included as true.
func missingFields(ve *domain.ValidationError, required []string) map[string]bool {
	fields := make(map[string]bool, len(required)+len(ve.Fields))
	for _, f := range required {
		fields[f] = false
	}
	for _, f := range ve.Fields {
		fields[f] = true
	}
	return fields
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
