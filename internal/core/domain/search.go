package domain

import "time"

// NoRelevantInformation is the answer returned when the index yields no matches.
const NoRelevantInformation = "No relevant information found."

// TopK bounds
const (
	DefaultTopK = 5
	MaxTopK     = 50
)

// ClampTopK applies the default for non-positive values and caps at MaxTopK.
func ClampTopK(topK, fallback int) int {
	if topK <= 0 {
		topK = fallback
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}
	return topK
}

// SearchOptions configures a retrieval request
type SearchOptions struct {
	Scope          Scope `json:"scope"`
	TopK           int   `json:"topK"`
	GenerateAnswer bool  `json:"generateAnswer"`
}

// IndexQuery is a nearest-neighbour lookup against the vector index.
// Values are never requested back; metadata always is.
type IndexQuery struct {
	Vector []float32
	TopK   int
	Filter Scope
}

// SearchMatch is a single nearest-neighbour hit returned by the index
type SearchMatch struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// SourceMatch is a ranked source returned to callers
type SourceMatch struct {
	ID       string   `json:"id"`
	Score    float64  `json:"score"`
	Text     string   `json:"text"`
	Metadata Metadata `json:"metadata"`
}

// NewSourceMatch lifts the text field out of a match's metadata.
func NewSourceMatch(m SearchMatch) SourceMatch {
	return SourceMatch{
		ID:       m.ID,
		Score:    m.Score,
		Text:     m.Metadata.String(MetaText),
		Metadata: m.Metadata,
	}
}

// AnswerResult is the result of a retrieval request
type AnswerResult struct {
	Query   string        `json:"query"`
	Answer  string        `json:"answer,omitempty"`
	Sources []SourceMatch `json:"sources"`
	Took    time.Duration `json:"took" swaggertype:"integer" example:"1500000"`
}

// IndexStats describes the vector index as reported by its provider
type IndexStats struct {
	Name      string `json:"name"`
	Host      string `json:"host,omitempty"`
	Dimension int    `json:"dimension,omitempty"`
	Metric    string `json:"metric,omitempty"`
	Ready     bool   `json:"ready"`
}
