// Package embedding defines how activity documents and queries are turned
// into vectors for similarity search.
package embedding

import (
	"context"
	"errors"
)

// ErrRateLimited is wrapped by remote embedders when the provider refuses a
// request because of quota.
var ErrRateLimited = errors.New("embedding provider rate limited")

// Embedder converts free text into a numeric vector representation.
// Every vector produced by one Embedder has the same dimension.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}
