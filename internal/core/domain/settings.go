package domain

import "errors"

// ErrInvalidProvider indicates an unsupported AI provider name
var ErrInvalidProvider = errors.New("invalid provider")

// AIProvider identifies a hosted model provider
type AIProvider string

const (
	// AIProviderOpenAI covers api.openai.com and any OpenAI-compatible base URL
	AIProviderOpenAI AIProvider = "openai"
)

// EmbeddingSettings configures the embedding provider
type EmbeddingSettings struct {
	Provider     AIProvider `json:"provider" yaml:"provider"`
	Model        string     `json:"model" yaml:"model"`
	APIKey       string     `json:"-" yaml:"api_key"`
	BaseURL      string     `json:"base_url,omitempty" yaml:"base_url"`
	Organization string     `json:"organization,omitempty" yaml:"organization"`
	MaxRetries   int        `json:"max_retries" yaml:"max_retries"`
}

// IsConfigured returns true if a provider and credentials are set
func (s *EmbeddingSettings) IsConfigured() bool {
	return s.Provider != "" && s.APIKey != ""
}

// LLMSettings configures the generation provider
type LLMSettings struct {
	Provider     AIProvider `json:"provider" yaml:"provider"`
	Model        string     `json:"model" yaml:"model"`
	APIKey       string     `json:"-" yaml:"api_key"`
	BaseURL      string     `json:"base_url,omitempty" yaml:"base_url"`
	Organization string     `json:"organization,omitempty" yaml:"organization"`
	MaxRetries   int        `json:"max_retries" yaml:"max_retries"`
}

// IsConfigured returns true if a provider, model and credentials are set
func (s *LLMSettings) IsConfigured() bool {
	return s.Provider != "" && s.APIKey != "" && s.Model != ""
}
