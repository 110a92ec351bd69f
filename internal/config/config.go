// Package config loads service configuration from an optional YAML file,
// a .env file and the process environment, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
)

// Vector backends
const (
	BackendPinecone = "pinecone"
	BackendQdrant   = "qdrant"
)

// EnvConfigPath names the YAML file when no --config flag is given
const EnvConfigPath = "LAPIS_CONFIG"

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	CORSOrigins    []string `yaml:"cors_origins"`
	MaxUploadBytes int64    `yaml:"max_upload_bytes"`
}

// OpenAIConfig configures the embedding and generation providers
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	OrgID           string `yaml:"org_id"`
	BaseURL         string `yaml:"base_url"`
	EmbeddingModel  string `yaml:"embedding_model"`
	GenerationModel string `yaml:"generation_model"`
	MaxRetries      int    `yaml:"max_retries"`
}

// RateLimitConfig throttles embedding calls. Zero RequestsPerSecond disables it.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// PineconeConfig configures the Pinecone index
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	Index     string `yaml:"index"`
	Host      string `yaml:"host"`
	Namespace string `yaml:"namespace"`
}

// QdrantConfig configures the Qdrant collection
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	Collection string `yaml:"collection"`
}

// IngestionConfig tunes chunking and fan-out
type IngestionConfig struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap int  `yaml:"chunk_overlap"`
	Concurrency  int  `yaml:"concurrency"`
	ProbeIndex   bool `yaml:"probe_index"`
}

// RedisConfig enables the embedding cache when URL is set
type RedisConfig struct {
	URL             string `yaml:"url"`
	EmbeddingTTLSec int    `yaml:"embedding_ttl_sec"`
}

// DatabaseConfig enables the ingestion log when URL is set
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig enables bearer auth when JWTSecret is set
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// LogConfig configures the slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root service configuration
type Config struct {
	Server        ServerConfig    `yaml:"server"`
	OpenAI        OpenAIConfig    `yaml:"openai"`
	RateLimit     RateLimitConfig `yaml:"embedding_rate_limit"`
	VectorBackend string          `yaml:"vector_backend"`
	Pinecone      PineconeConfig  `yaml:"pinecone"`
	Qdrant        QdrantConfig    `yaml:"qdrant"`
	Ingestion     IngestionConfig `yaml:"ingestion"`
	RequestSchema string          `yaml:"request_schema"`
	DefaultTopK   int             `yaml:"default_top_k"`
	Redis         RedisConfig     `yaml:"redis"`
	Database      DatabaseConfig  `yaml:"database"`
	Auth          AuthConfig      `yaml:"auth"`
	Log           LogConfig       `yaml:"log"`
}

// Default returns the configuration used when nothing overrides it
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           4000,
			CORSOrigins:    []string{"*"},
			MaxUploadBytes: 10 << 20,
		},
		OpenAI: OpenAIConfig{
			EmbeddingModel:  "text-embedding-ada-002",
			GenerationModel: "gpt-4o-mini",
		},
		RateLimit:     RateLimitConfig{Burst: 1},
		VectorBackend: BackendPinecone,
		Pinecone:      PineconeConfig{Index: "lapis-01"},
		Qdrant:        QdrantConfig{Collection: "lapis-01"},
		Ingestion: IngestionConfig{
			ChunkSize:    1000,
			ChunkOverlap: 100,
			Concurrency:  4,
			ProbeIndex:   true,
		},
		RequestSchema: string(domain.SchemaTenant),
		DefaultTopK:   domain.DefaultTopK,
		Redis:         RedisConfig{EmbeddingTTLSec: 86400},
		Log:           LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the configuration. path names an optional YAML file; when empty
// the LAPIS_CONFIG variable is consulted. A missing .env file is ignored.
// Load does not validate; call Validate before using credentials.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides fields from environment variables. Malformed numbers
// are reported together.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	e := envReader{lookup: lookup}

	e.str("HOST", &c.Server.Host)
	e.integer("PORT", &c.Server.Port)
	e.list("CORS_ORIGINS", &c.Server.CORSOrigins)
	e.integer64("MAX_UPLOAD_BYTES", &c.Server.MaxUploadBytes)

	e.str("OPENAI_API_KEY", &c.OpenAI.APIKey)
	e.str("OPENAI_ORG_ID", &c.OpenAI.OrgID)
	e.str("OPENAI_BASE_URL", &c.OpenAI.BaseURL)
	e.str("EMBEDDING_MODEL", &c.OpenAI.EmbeddingModel)
	e.str("GENERATION_MODEL", &c.OpenAI.GenerationModel)
	e.integer("OPENAI_MAX_RETRIES", &c.OpenAI.MaxRetries)

	e.number("EMBEDDING_RATE_LIMIT", &c.RateLimit.RequestsPerSecond)
	e.integer("EMBEDDING_RATE_BURST", &c.RateLimit.Burst)

	e.str("VECTOR_BACKEND", &c.VectorBackend)
	e.str("PINECONE_API_KEY", &c.Pinecone.APIKey)
	e.str("PINECONE_INDEX", &c.Pinecone.Index)
	e.str("PINECONE_HOST", &c.Pinecone.Host)
	e.str("PINECONE_NAMESPACE", &c.Pinecone.Namespace)
	e.str("QDRANT_URL", &c.Qdrant.URL)
	e.str("QDRANT_API_KEY", &c.Qdrant.APIKey)
	e.str("QDRANT_COLLECTION", &c.Qdrant.Collection)

	e.integer("CHUNK_SIZE", &c.Ingestion.ChunkSize)
	e.integer("CHUNK_OVERLAP", &c.Ingestion.ChunkOverlap)
	e.integer("INGEST_CONCURRENCY", &c.Ingestion.Concurrency)
	e.boolean("INDEX_PROBE", &c.Ingestion.ProbeIndex)

	e.str("REQUEST_SCHEMA", &c.RequestSchema)
	e.integer("DEFAULT_TOP_K", &c.DefaultTopK)

	e.str("REDIS_URL", &c.Redis.URL)
	e.integer("EMBEDDING_CACHE_TTL_SEC", &c.Redis.EmbeddingTTLSec)
	e.str("DATABASE_URL", &c.Database.URL)
	e.str("JWT_SECRET", &c.Auth.JWTSecret)

	e.str("LOG_LEVEL", &c.Log.Level)
	e.str("LOG_FORMAT", &c.Log.Format)

	return errors.Join(e.errs...)
}

// Validate reports every missing credential and invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is required"))
	}

	switch c.VectorBackend {
	case BackendPinecone:
		if c.Pinecone.APIKey == "" {
			errs = append(errs, errors.New("PINECONE_API_KEY is required for the pinecone backend"))
		}
		if c.Pinecone.Index == "" && c.Pinecone.Host == "" {
			errs = append(errs, errors.New("PINECONE_INDEX or PINECONE_HOST is required for the pinecone backend"))
		}
	case BackendQdrant:
		if c.Qdrant.URL == "" {
			errs = append(errs, errors.New("QDRANT_URL is required for the qdrant backend"))
		}
		if c.Qdrant.Collection == "" {
			errs = append(errs, errors.New("QDRANT_COLLECTION is required for the qdrant backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("VECTOR_BACKEND must be %q or %q, got %q", BackendPinecone, BackendQdrant, c.VectorBackend))
	}

	if _, err := domain.ParseRequestSchema(c.RequestSchema); err != nil {
		errs = append(errs, fmt.Errorf("REQUEST_SCHEMA: %w", err))
	}
	if c.Ingestion.ChunkSize <= 0 {
		errs = append(errs, errors.New("CHUNK_SIZE must be positive"))
	}
	if c.Ingestion.ChunkOverlap < 0 {
		errs = append(errs, errors.New("CHUNK_OVERLAP must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d is out of range", c.Server.Port))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Schema returns the parsed request schema
func (c *Config) Schema() domain.RequestSchema {
	schema, err := domain.ParseRequestSchema(c.RequestSchema)
	if err != nil {
		return domain.SchemaTenant
	}
	return schema
}

// EmbeddingSettings returns the embedding provider settings
func (c *Config) EmbeddingSettings() *domain.EmbeddingSettings {
	return &domain.EmbeddingSettings{
		Provider:     domain.AIProviderOpenAI,
		Model:        c.OpenAI.EmbeddingModel,
		APIKey:       c.OpenAI.APIKey,
		BaseURL:      c.OpenAI.BaseURL,
		Organization: c.OpenAI.OrgID,
		MaxRetries:   c.OpenAI.MaxRetries,
	}
}

// LLMSettings returns the generation provider settings
func (c *Config) LLMSettings() *domain.LLMSettings {
	return &domain.LLMSettings{
		Provider:     domain.AIProviderOpenAI,
		Model:        c.OpenAI.GenerationModel,
		APIKey:       c.OpenAI.APIKey,
		BaseURL:      c.OpenAI.BaseURL,
		Organization: c.OpenAI.OrgID,
		MaxRetries:   c.OpenAI.MaxRetries,
	}
}

// EmbeddingCacheTTL returns the cache entry lifetime
func (c *Config) EmbeddingCacheTTL() time.Duration {
	return time.Duration(c.Redis.EmbeddingTTLSec) * time.Second
}

// NewLogger builds a slog logger writing to w per the Log settings
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.EqualFold(c.Log.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q is not one of debug, info, warn, error", s)
}

// envReader applies set variables and collects parse errors
type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) get(key string) (string, bool) {
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) integer(key string, dst *int) {
	if v, ok := e.get(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) integer64(key string, dst *int64) {
	if v, ok := e.get(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not an integer", key, v))
			return
		}
		*dst = n
	}
}

func (e *envReader) number(key string, dst *float64) {
	if v, ok := e.get(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a number", key, v))
			return
		}
		*dst = f
	}
}

func (e *envReader) boolean(key string, dst *bool) {
	if v, ok := e.get(key); ok {
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			*dst = true
		case "false", "0", "no":
			*dst = false
		default:
			e.errs = append(e.errs, fmt.Errorf("%s: %q is not a boolean", key, v))
		}
	}
}

func (e *envReader) list(key string, dst *[]string) {
	if v, ok := e.get(key); ok {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*dst = out
	}
}
