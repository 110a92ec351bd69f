package pinecone

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
	"sync"
	"time"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*Index)(nil)

const (
	// DefaultControlPlaneURL is the Pinecone control plane endpoint
	DefaultControlPlaneURL = "https://api.pinecone.io"

	// DefaultAPIVersion is sent as X-Pinecone-API-Version
	DefaultAPIVersion = "2025-01"

	// upsertBatchSize stays well under the per-request vector limit
	upsertBatchSize = 100
)

// ErrHostUnresolved is returned when the index host cannot be discovered
var ErrHostUnresolved = errors.New("pinecone: index host not resolved")

// Config holds Pinecone connection configuration
type Config struct {
	// APIKey authenticates both control and data plane requests
	APIKey string

	// IndexName is the index to describe and write to
	IndexName string

	// Host is the data plane host. When empty it is resolved with a describe call.
	Host string

	// Namespace partitions records inside the index. Empty uses the default namespace.
	Namespace string

	// ControlPlaneURL overrides DefaultControlPlaneURL
	ControlPlaneURL string

	// APIVersion overrides DefaultAPIVersion
	APIVersion string

	// Timeout for HTTP requests
	Timeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig(apiKey, indexName string) Config {
	return Config{
		APIKey:          apiKey,
		IndexName:       indexName,
		ControlPlaneURL: DefaultControlPlaneURL,
		APIVersion:      DefaultAPIVersion,
		Timeout:         30 * time.Second,
	}
}

// Index implements driven.VectorIndex against the Pinecone REST API
type Index struct {
	cfg          Config
	controlPlane string
	httpClient   *http.Client

	mu   sync.Mutex
	host string
}

// NewIndex creates a new Pinecone-backed VectorIndex
func NewIndex(cfg Config) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone: api key is required")
	}
	if cfg.IndexName == "" && cfg.Host == "" {
		return nil, errors.New("pinecone: index name or host is required")
	}
	if cfg.ControlPlaneURL == "" {
		cfg.ControlPlaneURL = DefaultControlPlaneURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Index{
		cfg:          cfg,
		controlPlane: strings.TrimSuffix(cfg.ControlPlaneURL, "/"),
		host:         normaliseHost(cfg.Host),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

// Name returns the backend name
func (x *Index) Name() string {
	return "pinecone"
}

// describeResponse is the control plane index description
type describeResponse struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

// Describe fetches the index description from the control plane.
// A successful call also caches the data plane host.
func (x *Index) Describe(ctx context.Context) (*domain.IndexStats, error) {
	if x.cfg.IndexName == "" {
		return nil, errors.New("pinecone: describe requires an index name")
	}

	endpoint := fmt.Sprintf("%s/indexes/%s", x.controlPlane, url.PathEscape(x.cfg.IndexName))

	var desc describeResponse
	if err := x.do(ctx, http.MethodGet, endpoint, nil, &desc); err != nil {
		return nil, fmt.Errorf("pinecone describe index: %w", err)
	}

	if desc.Host != "" {
		x.mu.Lock()
		if x.host == "" {
			x.host = normaliseHost(desc.Host)
		}
		x.mu.Unlock()
	}

	return &domain.IndexStats{
		Name:      desc.Name,
		Host:      desc.Host,
		Dimension: desc.Dimension,
		Metric:    desc.Metric,
		Ready:     desc.Status.Ready,
	}, nil
}

// HealthCheck asks the data plane for index statistics
func (x *Index) HealthCheck(ctx context.Context) error {
	host, err := x.dataPlane(ctx)
	if err != nil {
		return err
	}
	if err := x.do(ctx, http.MethodPost, host+"/describe_index_stats", map[string]any{}, nil); err != nil {
		return fmt.Errorf("pinecone health check: %w", err)
	}
	return nil
}

type pineconeVector struct {
	ID       string          `json:"id"`
	Values   []float32       `json:"values"`
	Metadata domain.Metadata `json:"metadata,omitempty"`
}

type upsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

// Upsert writes records in batches. Existing ids are replaced.
func (x *Index) Upsert(ctx context.Context, records []domain.EmbeddedRecord) error {
	if len(records) == 0 {
		return nil
	}

	host, err := x.dataPlane(ctx)
	if err != nil {
		return err
	}

	for start := 0; start < len(records); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(records))

		req := upsertRequest{
			Vectors:   make([]pineconeVector, 0, end-start),
			Namespace: x.cfg.Namespace,
		}
		for _, rec := range records[start:end] {
			req.Vectors = append(req.Vectors, pineconeVector{
				ID:       rec.ID,
				Values:   rec.Vector,
				Metadata: rec.Metadata,
			})
		}

		if err := x.do(ctx, http.MethodPost, host+"/vectors/upsert", req, nil); err != nil {
			return fmt.Errorf("pinecone upsert: %w", err)
		}
	}
	return nil
}

type queryRequest struct {
	Vector          []float32      `json:"vector"`
	TopK            int            `json:"topK"`
	Filter          map[string]any `json:"filter,omitempty"`
	IncludeMetadata bool           `json:"includeMetadata"`
	IncludeValues   bool           `json:"includeValues"`
	Namespace       string         `json:"namespace,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string          `json:"id"`
		Score    float64         `json:"score"`
		Metadata domain.Metadata `json:"metadata"`
	} `json:"matches"`
}

// Query runs a nearest-neighbour search, filtering on the scope fields that are set
func (x *Index) Query(ctx context.Context, q domain.IndexQuery) ([]domain.SearchMatch, error) {
	host, err := x.dataPlane(ctx)
	if err != nil {
		return nil, err
	}

	req := queryRequest{
		Vector:          q.Vector,
		TopK:            q.TopK,
		Filter:          scopeFilter(q.Filter),
		IncludeMetadata: true,
		IncludeValues:   false,
		Namespace:       x.cfg.Namespace,
	}

	var resp queryResponse
	if err := x.do(ctx, http.MethodPost, host+"/query", req, &resp); err != nil {
		return nil, fmt.Errorf("pinecone query: %w", err)
	}

	matches := make([]domain.SearchMatch, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		matches = append(matches, domain.SearchMatch{
			ID:       m.ID,
			Score:    m.Score,
			Metadata: m.Metadata,
		})
	}
	return matches, nil
}

// scopeFilter builds an equality filter. Multiple keys are ANDed by Pinecone.
func scopeFilter(scope domain.Scope) map[string]any {
	if scope.IsZero() {
		return nil
	}
	filter := make(map[string]any)
	if scope.TeamID != "" {
		filter[domain.MetaTeamID] = map[string]any{"$eq": scope.TeamID}
	}
	if scope.OrganizationID != "" {
		filter[domain.MetaOrganizationID] = map[string]any{"$eq": scope.OrganizationID}
	}
	return filter
}

// dataPlane returns the data plane base URL, describing the index on first use
func (x *Index) dataPlane(ctx context.Context) (string, error) {
	x.mu.Lock()
	host := x.host
	x.mu.Unlock()
	if host != "" {
		return host, nil
	}

	if _, err := x.Describe(ctx); err != nil {
		return "", err
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if x.host == "" {
		return "", ErrHostUnresolved
	}
	return x.host, nil
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
	req.Header.Set("Api-Key", x.cfg.APIKey)
	req.Header.Set("X-Pinecone-API-Version", x.cfg.APIVersion)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

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

// normaliseHost prefixes bare hosts with https:// and drops a trailing slash
func normaliseHost(host string) string {
	host = strings.TrimSuffix(strings.TrimSpace(host), "/")
	if host == "" {
		return ""
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return host
}
