package domain

import (
	"fmt"
	"time"
)

// Scope is the tenant pair used to isolate stored records and queries.
type Scope struct {
	TeamID         string `json:"teamId"`
	OrganizationID string `json:"organizationId"`
}

// IsZero reports whether neither scope field is set.
func (s Scope) IsZero() bool {
	return s.TeamID == "" && s.OrganizationID == ""
}

// Document is an inbound document awaiting ingestion.
// Only its derived chunks are persisted (in the vector index).
type Document struct {
	ID             string            `json:"id"`
	DocumentID     string            `json:"documentId,omitempty"`
	Title          string            `json:"title,omitempty"`
	Text           string            `json:"text"`
	Scope          Scope             `json:"scope"`
	SourceMetadata map[string]string `json:"sourceMetadata,omitempty"`
}

// EffectiveDocumentID returns DocumentID, falling back to ID.
func (d *Document) EffectiveDocumentID() string {
	if d.DocumentID != "" {
		return d.DocumentID
	}
	return d.ID
}

// Chunk is a bounded, overlapping slice of a document's text
type Chunk struct {
	ID          string `json:"chunkId"`
	DocumentID  string `json:"documentId"`
	Index       int    `json:"chunkIndex"`
	TotalChunks int    `json:"chunkTotal"`
	Text        string `json:"text"`
	ByteLength  int    `json:"byteLength"`
}

// NewChunks builds the chunks of doc from its split text, in order.
func NewChunks(doc Document, texts []string) []Chunk {
	documentID := doc.EffectiveDocumentID()
	chunks := make([]Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = Chunk{
			ID:          ChunkID(doc.ID, i),
			DocumentID:  documentID,
			Index:       i,
			TotalChunks: len(texts),
			Text:        text,
			ByteLength:  len(text),
		}
	}
	return chunks
}

// Summary reports the chunk as it appears in an ingestion result
func (c Chunk) Summary() ChunkSummary {
	return ChunkSummary{
		ChunkID:    c.ID,
		ChunkIndex: c.Index,
		ChunkSize:  c.ByteLength,
	}
}

// ChunkID derives the record id of the chunk at index from the document's record id.
// Re-ingesting a document with the same id yields the same chunk ids.
func ChunkID(recordID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", recordID, index)
}

// Metadata is the key/value payload stored alongside a vector.
// Values are strings or ints.
type Metadata map[string]any

// String returns the string value for key, or "" if absent or not a string.
func (m Metadata) String(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// Int returns the integer value for key. JSON numbers decode as float64.
func (m Metadata) Int(key string) (int, bool) {
	switch v := m[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	}
	return 0, false
}

// Metadata keys written for every chunk record
const (
	MetaText           = "text"
	MetaDocumentID     = "documentId"
	MetaTitle          = "title"
	MetaTeamID         = "teamId"
	MetaOrganizationID = "organizationId"
	MetaChunkIndex     = "chunkIndex"
	MetaChunkTotal     = "chunkTotal"
	MetaCreatedAt      = "createdAt"
	MetaSource         = "source"
	MetaSourceType     = "sourceType"
)

// EmbeddedRecord is a chunk combined with its embedding, ready for upsert.
type EmbeddedRecord struct {
	ID       string    `json:"id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

// ChunkSummary describes one stored chunk in an ingestion result.
type ChunkSummary struct {
	ChunkID    string `json:"chunkId"`
	ChunkIndex int    `json:"chunkIndex"`
	ChunkSize  int    `json:"chunkSize"`
}

// IngestResult is returned when every chunk of a document was stored.
type IngestResult struct {
	DocumentID string         `json:"documentId"`
	Title      string         `json:"title,omitempty"`
	ChunkCount int            `json:"chunkCount"`
	PerChunk   []ChunkSummary `json:"perChunk"`
}

// IngestOptions tunes chunking for a single request. A zero ChunkSize and a
// nil ChunkOverlap use the service defaults; an explicit overlap of 0 disables overlap.
type IngestOptions struct {
	ChunkSize    int    `json:"chunkSize,omitempty"`
	ChunkOverlap *int   `json:"chunkOverlap,omitempty"`
	Source       string `json:"source,omitempty"`
	SourceType   string `json:"sourceType,omitempty"`
}

// BatchItemStatus is the outcome of one document in a batch
type BatchItemStatus string

const (
	BatchItemSucceeded BatchItemStatus = "succeeded"
	BatchItemFailed    BatchItemStatus = "failed"
)

// BatchItem is the itemized outcome for one document of a batch.
type BatchItem struct {
	Index         int             `json:"index"`
	ID            string          `json:"id"`
	DocumentID    string          `json:"documentId,omitempty"`
	Status        BatchItemStatus `json:"status"`
	Result        *IngestResult   `json:"result,omitempty"`
	Error         string          `json:"error,omitempty"`
	MissingFields []string        `json:"missingFields,omitempty"`
}

// BatchResult summarises a batch ingestion. One failing document never blocks the others.
type BatchResult struct {
	Source     string      `json:"source,omitempty"`
	SourceType string      `json:"sourceType,omitempty"`
	Succeeded  int         `json:"succeeded"`
	Failed     int         `json:"failed"`
	Items      []BatchItem `json:"items"`
}

// IngestionStatus is the state recorded in the ingestion log
type IngestionStatus string

const (
	IngestionSucceeded IngestionStatus = "succeeded"
	IngestionFailed    IngestionStatus = "failed"
)

// IngestionRecord is one audited ingestion attempt.
type IngestionRecord struct {
	ID         string          `json:"id"`
	DocumentID string          `json:"documentId"`
	RecordID   string          `json:"recordId"`
	Title      string          `json:"title,omitempty"`
	Scope      Scope           `json:"scope"`
	Source     string          `json:"source,omitempty"`
	ChunkIDs   []string        `json:"chunkIds"`
	Status     IngestionStatus `json:"status"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
	CreatedAt  time.Time       `json:"createdAt"`
}
