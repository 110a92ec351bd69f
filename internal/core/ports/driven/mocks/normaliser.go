package mocks

import (
	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven"
)

// MockNormaliser is a mock implementation of Normaliser for testing
type MockNormaliser struct {
	SupportedTypesFn func() []string
	PriorityFn       func() int
	NormaliseFn      func(content string, mimeType string) string
}

func NewMockNormaliser() *MockNormaliser {
	return &MockNormaliser{}
}

func (m *MockNormaliser) Normalise(content string, mimeType string) string {
	if m.NormaliseFn != nil {
		return m.NormaliseFn(content, mimeType)
	}
	return content
}

func (m *MockNormaliser) SupportedTypes() []string {
	if m.SupportedTypesFn != nil {
		return m.SupportedTypesFn()
	}
	return []string{"text/plain", "text/markdown"}
}

func (m *MockNormaliser) Priority() int {
	if m.PriorityFn != nil {
		return m.PriorityFn()
	}
	return 100
}

// MockNormaliserRegistry is a mock implementation of NormaliserRegistry for testing
type MockNormaliserRegistry struct {
	GetFn           func(mimeType string) driven.Normaliser
	RegisterFn      func(normaliser driven.Normaliser)
	NormaliseFileFn func(data []byte, mimeType string) (string, error)
	normaliser      driven.Normaliser
	requested       []string
}

func NewMockNormaliserRegistry() *MockNormaliserRegistry {
	return &MockNormaliserRegistry{
		normaliser: NewMockNormaliser(),
	}
}

func (m *MockNormaliserRegistry) Get(mimeType string) driven.Normaliser {
	m.requested = append(m.requested, mimeType)
	if m.GetFn != nil {
		return m.GetFn(mimeType)
	}
	return m.normaliser
}

func (m *MockNormaliserRegistry) Register(normaliser driven.Normaliser) {
	if m.RegisterFn != nil {
		m.RegisterFn(normaliser)
	}
	m.normaliser = normaliser
}

// List returns all registered MIME types
func (m *MockNormaliserRegistry) List() []string {
	if m.normaliser != nil {
		return m.normaliser.SupportedTypes()
	}
	return []string{}
}

func (m *MockNormaliserRegistry) NormaliseFile(data []byte, mimeType string) (string, error) {
	m.requested = append(m.requested, mimeType)
	if m.NormaliseFileFn != nil {
		return m.NormaliseFileFn(data, mimeType)
	}
	return m.normaliser.Normalise(string(data), mimeType), nil
}

// SetNormaliser sets the normaliser returned by Get
func (m *MockNormaliserRegistry) SetNormaliser(n driven.Normaliser) {
	m.normaliser = n
}

// Requested returns the MIME types looked up so far
func (m *MockNormaliserRegistry) Requested() []string {
	return m.requested
}
