package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the caller supplied a missing or malformed field
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden indicates the caller may not act on the requested scope
	ErrForbidden = errors.New("forbidden")

	// ErrExternalService indicates an embedding, index or generation provider failed
	ErrExternalService = errors.New("external service error")

	// ErrServiceUnavailable indicates a provider is not configured for this deployment
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrTokenInvalid indicates the bearer token could not be verified
	ErrTokenInvalid = errors.New("invalid token")

	// ErrTokenExpired indicates the bearer token has expired
	ErrTokenExpired = errors.New("token expired")
)

// ValidationError reports every required field missing from a request.
type ValidationError struct {
	// Fields holds the missing field names in schema order
	Fields []string
}

// NewValidationError creates a ValidationError for the given missing fields.
func NewValidationError(fields ...string) *ValidationError {
	return &ValidationError{Fields: fields}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Fields, ", "))
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Has reports whether field is among the missing fields.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// ExternalServiceError wraps a failure returned by a third-party provider.
type ExternalServiceError struct {
	// Service names the provider role: "embedding", "index" or "generation"
	Service string
	// Op names the failed operation, e.g. "upsert"
	Op  string
	Err error
}

// NewExternalServiceError wraps err as a failure of service.op.
func NewExternalServiceError(service, op string, err error) *ExternalServiceError {
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

func (e *ExternalServiceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s failed", e.Service, e.Op)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Op, e.Err)
}

// Unwrap returns the provider error.
func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// Is matches ErrExternalService in addition to the wrapped cause.
func (e *ExternalServiceError) Is(target error) bool {
	return target == ErrExternalService
}
