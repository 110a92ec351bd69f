package mocks

import (
	"context"
	"sync"
)

// LLMCall captures one Generate invocation
type LLMCall struct {
	System string
	User   string
}

// MockLLMService is a mock implementation of LLMService for testing
type MockLLMService struct {
	mu      sync.Mutex
	model   string
	answer  string
	err     error
	pingErr error
	closed  bool
	calls   []LLMCall

	// GenerateFn overrides the canned answer when set
	GenerateFn func(ctx context.Context, system, user string) (string, error)
}

// NewMockLLMService creates a MockLLMService that replies with answer
func NewMockLLMService(answer string) *MockLLMService {
	return &MockLLMService{
		model:  "mock-llm",
		answer: answer,
	}
}

func (m *MockLLMService) Generate(ctx context.Context, system, user string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, LLMCall{System: system, User: user})
	fn, answer, err := m.GenerateFn, m.answer, m.err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, system, user)
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (m *MockLLMService) Model() string {
	return m.model
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *MockLLMService) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockLLMService) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetError makes every Generate call fail with err
func (m *MockLLMService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetPingError makes Ping fail with err
func (m *MockLLMService) SetPingError(err error) {
	m.pingErr = err
}

// Calls returns captured Generate invocations
func (m *MockLLMService) Calls() []LLMCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]LLMCall(nil), m.calls...)
}
