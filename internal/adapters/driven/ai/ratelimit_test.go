package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/openai/openai-go"

	"github.com/lapis-labs/lapis-backend/internal/core/ports/driven/mocks"
)

func TestNewRateLimitedEmbedding_Disabled(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()

	if got := NewRateLimitedEmbedding(inner, RateLimitConfig{}); got != inner {
		t.Error("expected zero rate to return the wrapped service unchanged")
	}
}

func TestRateLimitedEmbedding_PassesThrough(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	svc := NewRateLimitedEmbedding(inner, RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 10})

	out, err := svc.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Errorf("expected 2 embeddings, got %d", len(out))
	}
	if _, err := svc.EmbedQuery(context.Background(), "q"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.Calls()) != 3 {
		t.Errorf("expected 3 embedded texts, got %d", len(inner.Calls()))
	}
	if svc.Model() != inner.Model() {
		t.Error("expected Model to be delegated")
	}
}

func TestRateLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	limiter.RecordRateLimitError(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := limiter.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRateLimiter_RecordKeepsLongestBackoff(t *testing.T) {
	limiter := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1})

	limiter.RecordRateLimitError(time.Minute)
	first := limiter.retryAt
	limiter.RecordRateLimitError(time.Millisecond)

	if !limiter.retryAt.Equal(first) {
		t.Error("shorter backoff must not shrink the window")
	}
}

func TestRateLimitedEmbedding_BacksOffOn429(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	svc := NewRateLimitedEmbedding(inner, RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1}).(*RateLimitedEmbedding)

	apiErr := &openai.Error{
		StatusCode: http.StatusTooManyRequests,
		Response:   &http.Response{Header: http.Header{"Retry-After": []string{"30"}}},
	}
	svc.observe(fmt.Errorf("openai embeddings: %w", apiErr))

	until := time.Until(svc.limiter.retryAt)
	if until < 25*time.Second || until > 31*time.Second {
		t.Errorf("expected ~30s backoff, got %v", until)
	}
}

func TestRateLimitedEmbedding_IgnoresOtherErrors(t *testing.T) {
	inner := mocks.NewMockEmbeddingService()
	svc := NewRateLimitedEmbedding(inner, RateLimitConfig{RequestsPerSecond: 1000}).(*RateLimitedEmbedding)

	svc.observe(errors.New("boom"))
	svc.observe(&openai.Error{StatusCode: http.StatusInternalServerError})

	if !svc.limiter.retryAt.IsZero() {
		t.Error("expected no backoff for non-429 errors")
	}
}
