package search

import (
	"context"
	"strings"

	"github.com/sofim-uhk/sofim/internal/keyword"
	"github.com/sofim-uhk/sofim/internal/models"
)

// Hit is one keyword lookup result.
type Hit struct {
	Passage *models.Passage `json:"passage"`
	Score   float64         `json:"score"`
}

// Lookup runs a keyword search over the live snapshot for operators. When the
// snapshot has no keyword index, titles and bodies are scanned for the query.
func (e *Engine) Lookup(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if limit <= 0 {
		limit = 20
	}
	snap := e.live.Live()
	if snap.Keyword == nil {
		return scan(snap.Passages, query, limit, opts), nil
	}
	results, err := snap.Keyword.Search(ctx, query, limit, opts)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(results))
	for _, r := range results {
		p, ok := snap.Passage(r.PassageID)
		if !ok {
			continue
		}
		hits = append(hits, Hit{Passage: p, Score: r.Score})
	}
	return hits, nil
}

func scan(passages []*models.Passage, query string, limit int, opts *keyword.SearchOptions) []Hit {
	q := strings.ToLower(query)
	var hits []Hit
	for _, p := range passages {
		if opts != nil && opts.SourceTag != "" && p.SourceTag != opts.SourceTag {
			continue
		}
		score := 0.0
		if strings.Contains(strings.ToLower(p.Title), q) {
			score += 2
		}
		if strings.Contains(strings.ToLower(p.Body), q) {
			score++
		}
		if score == 0 {
			continue
		}
		hits = append(hits, Hit{Passage: p, Score: score})
		if len(hits) == limit {
			break
		}
	}
	return hits
}
