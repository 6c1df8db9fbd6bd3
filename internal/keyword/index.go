// Package keyword provides an in-memory keyword index over live passages,
// used for operator lookups of what a generation contains.
package keyword

import (
	"context"

	"github.com/sofim-uhk/sofim/internal/models"
)

// SearchOptions optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// TitleBoost multiplies the score contribution from title matches. Use 1.0 for no boost.
	TitleBoost float64
	// FuzzyEnabled enables typo-tolerant matching.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2).
	Fuzziness int
	// SourceTag restricts hits to passages with this exact tag.
	SourceTag string
}

// Index defines keyword search operations over passages.
type Index interface {
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Result, error)
	DocCount() (uint64, error)
	Close() error
}

// Result is a single keyword search hit.
type Result struct {
	PassageID int64
	Score     float64
}

type passageDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

func newPassageDoc(p *models.Passage) passageDoc {
	return passageDoc{Title: p.Title, Content: p.Body, Source: p.SourceTag}
}
