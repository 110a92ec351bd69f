package driven

import (
	"context"
)

// EmbeddingCache stores embeddings keyed by model and input text.
// A miss is reported with ok=false and a nil error.
type EmbeddingCache interface {
	Get(ctx context.Context, model, text string) (vector []float32, ok bool, err error)
	Set(ctx context.Context, model, text string, vector []float32) error
	Ping(ctx context.Context) error
}
