// Package llm isolates every call to the text-understanding service: semantic
// chunking, query rewriting, and answer generation.
package llm

import (
	"context"

	"github.com/sofim-uhk/sofim/internal/models"
)

// Section is one topically coherent passage proposed by the service.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Service is the narrow interface the pipeline and query path use. Callers
// treat every error as "use the fallback value".
type Service interface {
	// Chunk splits one block of a document. part and total give the block position (1-based).
	Chunk(ctx context.Context, source, block string, part, total int) ([]Section, error)
	// Rewrite reformulates a user query into a search string.
	Rewrite(ctx context.Context, query string) (string, error)
	// Answer generates a reply grounded only on the given passages.
	Answer(ctx context.Context, query string, passages []*models.Passage) (string, error)
}
