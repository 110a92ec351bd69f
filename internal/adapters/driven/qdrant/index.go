package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

// RecordIDKey is the payload key holding the caller's record id.
// Qdrant point ids must be unsigned integers or UUIDs.
const RecordIDKey = "recordId"

// ErrCollectionNotFound is returned when the collection does not exist
var ErrCollectionNotFound = errors.New("qdrant: collection not found")

// Config holds Qdrant connection configuration
type Config struct {
	// URL is the Qdrant REST endpoint (e.g., http://localhost:6333)
	URL string

	// APIKey is sent as the api-key header when set
	APIKey string

	// Collection holds the chunk points
	Collection string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(endpoint, collection string) Config {
	return Config{
		URL:        endpoint,
		Collection: collection,
		Timeout:    15 * time.Second,
	}
}

// Index implements driven.VectorIndex using the Qdrant REST API
type Index struct {
	baseURL    string
	apiKey     string
	collection string
	httpClient *http.Client
}

// NewIndex creates a new Qdrant-backed VectorIndex
func NewIndex(cfg Config) (*Index, error) {
	if cfg.URL == "" {
		return nil, errors.New("qdrant: url is required")
	}
	if cfg.Collection == "" {
		return nil, errors.New("qdrant: collection is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Index{
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Name returns the backend name
func (x *Index) Name() string {
	return "qdrant"
}

// PointID maps a record id onto a stable UUID
func PointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(recordID)).String()
}

func (x *Index) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", x.baseURL, url.PathEscape(x.collection), suffix)
}

// EnsureCollection creates the collection with cosine distance when it is missing
func (x *Index) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("qdrant: invalid dimension %d", dimension)
	}

	_, err := x.Describe(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCollectionNotFound) {
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := x.do(ctx, http.MethodPut, x.collectionURL(""), body, nil); err != nil {
		return fmt.Errorf("qdrant create collection: %w", err)
	}
	return nil
}

type collectionResponse struct {
	Result struct {
		Status      string `json:"status"`
		PointsCount int    `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// Describe returns the collection's vector parameters and status
func (x *Index) Describe(ctx context.Context) (*domain.IndexStats, error) {
	var resp collectionResponse
	if err := x.do(ctx, http.MethodGet, x.collectionURL(""), nil, &resp); err != nil {
		return nil, fmt.Errorf("qdrant describe collection: %w", err)
	}

	return &domain.IndexStats{
		Name:      x.collection,
		Host:      x.baseURL,
		Dimension: resp.Result.Config.Params.Vectors.Size,
		Metric:    strings.ToLower(resp.Result.Config.Params.Vectors.Distance),
		Ready:     resp.Result.Status == "green",
	}, nil
}

// HealthCheck verifies the collection is reachable
func (x *Index) HealthCheck(ctx context.Context) error {
	_, err := x.Describe(ctx)
	return err
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// Upsert writes records as points and waits for the write to apply
func (x *Index) Upsert(ctx context.Context, records []domain.EmbeddedRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]point, 0, len(records))
	for _, rec := range records {
		payload := make(map[string]any, len(rec.Metadata)+1)
		for k, v := range rec.Metadata {
			payload[k] = v
		}
		payload[RecordIDKey] = rec.ID

		points = append(points, point{
			ID:      PointID(rec.ID),
			Vector:  rec.Vector,
			Payload: payload,
		})
	}

	body := map[string]any{"points": points}
	if err := x.do(ctx, http.MethodPut, x.collectionURL("/points?wait=true"), body, nil); err != nil {
		return fmt.Errorf("qdrant upsert: %w", err)
	}
	return nil
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Query searches the collection, matching scope fields exactly
func (x *Index) Query(ctx context.Context, q domain.IndexQuery) ([]domain.SearchMatch, error) {
	body := map[string]any{
		"vector":       q.Vector,
		"limit":        q.TopK,
		"with_payload": true,
		"with_vector":  false,
	}
	if filter := scopeFilter(q.Filter); filter != nil {
		body["filter"] = filter
	}

	var resp searchResponse
	if err := x.do(ctx, http.MethodPost, x.collectionURL("/points/search"), body, &resp); err != nil {
		return nil, fmt.Errorf("qdrant search: %w", err)
	}

	matches := make([]domain.SearchMatch, 0, len(resp.Result))
	for _, r := range resp.Result {
		metadata := domain.Metadata{}
		id := fmt.Sprint(r.ID)
		for k, v := range r.Payload {
			if k == RecordIDKey {
				if s, ok := v.(string); ok {
					id = s
				}
				continue
			}
			metadata[k] = v
		}
		matches = append(matches, domain.SearchMatch{
			ID:       id,
			Score:    r.Score,
			Metadata: metadata,
		})
	}
	return matches, nil
}

func scopeFilter(scope domain.Scope) map[string]any {
	var must []map[string]any
	if scope.TeamID != "" {
		must = append(must, matchClause(domain.MetaTeamID, scope.TeamID))
	}
	if scope.OrganizationID != "" {
		must = append(must, matchClause(domain.MetaOrganizationID, scope.OrganizationID))
	}
	if len(must) == 0 {
		return nil
	}
	return map[string]any{"must": must}
}

func matchClause(key, value string) map[string]any {
	return map[string]any{
		"key":   key,
		"match": map[string]any{"value": value},
	}
}

func (x *Index) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if x.apiKey != "" {
		req.Header.Set("api-key", x.apiKey)
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return ErrCollectionNotFound
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s failed: %s - %s", method, endpoint, resp.Status, strings.TrimSpace(string(respBody)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
