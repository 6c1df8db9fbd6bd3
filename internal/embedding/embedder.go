// Package embedding turns passage and query text into vectors through an
// OpenAI-compatible embedding service, with an LRU cache for repeated queries.
package embedding

import (
	"context"
	"errors"
	"strings"
)

// ErrEmptyInput is returned for empty or whitespace-only text. The service is not called.
var ErrEmptyInput = errors.New("empty embedding input")

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

func checkInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyInput
	}
	return nil
}
