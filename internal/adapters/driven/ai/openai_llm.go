package ai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/lapis-labs/lapis-backend/internal/core/domain"
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// Ensure OpenAILLM implements LLMService
var _ driven.LLMService = (*OpenAILLM)(nil)

// DefaultGenerationModel is used when no model is configured
const DefaultGenerationModel = "gpt-4o-mini"

// OpenAILLM implements LLMService using chat completions
type OpenAILLM struct {
	client openai.Client
	model  string
}

// NewOpenAILLM creates a new OpenAI chat completion service
func NewOpenAILLM(settings *domain.LLMSettings) (*OpenAILLM, error) {
	if settings == nil || settings.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	model := settings.Model
	if model == "" {
		model = DefaultGenerationModel
	}

	return &OpenAILLM{
		client: openai.NewClient(clientOptions(settings.APIKey, settings.BaseURL, settings.Organization, settings.MaxRetries)...),
		model:  model,
	}, nil
}

// Generate sends one system and one user message and returns the first choice
func (l *OpenAILLM) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := l.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Model: openai.ChatModel(l.model),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completions: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the model name being used
func (l *OpenAILLM) Model() string {
	return l.model
}

// Ping verifies the model is reachable with the configured key
func (l *OpenAILLM) Ping(ctx context.Context) error {
	if _, err := l.client.Models.Get(ctx, l.model); err != nil {
		return fmt.Errorf("openai models: %w", err)
	}
	return nil
}

// Close releases resources held by the LLM service
func (l *OpenAILLM) Close() error {
	return nil
}
