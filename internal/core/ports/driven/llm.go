package driven

import (
	"context"
)

// LLMService provides large language model completions for answer synthesis
type LLMService interface {
	// Generate returns the model's reply to a single user turn under the
	// given system instruction
	Generate(ctx context.Context, system, user string) (string, error)

	// Model returns the model name being used
	Model() string

	// Ping verifies the LLM service is available
	Ping(ctx context.Context) error

	// Close releases resources held by the LLM service
	Close() error
}
