// Package search answers chat queries over the live generation: optional
// query rewrite, embedding, ranking and answer generation.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/embedding"
	"github.com/sofim-uhk/sofim/internal/index"
	"github.com/sofim-uhk/sofim/internal/llm"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/ranking"
)

// NoInfoMessage is the reply when no passage clears the relevance floor.
const NoInfoMessage = "Bohužel k tomuto dotazu nemám v databázi žádné informace."

// ErrEmptyQuery is returned for blank queries.
var ErrEmptyQuery = errors.New("empty query")

// LiveSource provides the current live snapshot.
type LiveSource interface {
	Live() *index.Snapshot
}

// Retrieval is the outcome of ranking one query.
type Retrieval struct {
	Query       string                 `json:"query"`
	SearchQuery string                 `json:"search_query"`
	Matches     []models.ScoredPassage `json:"matches"`
	QueryTime   int64                  `json:"query_time_ms"`
}

// Engine runs retrieval and answer generation.
type Engine struct {
	live     LiveSource
	embedder embedding.Embedder
	svc      llm.Service
	ranker   *ranking.Ranker
	rewrite  bool
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRewrite toggles query rewriting before embedding.
func WithRewrite(enabled bool) Option {
	return func(e *Engine) { e.rewrite = enabled }
}

// NewEngine creates a search engine. svc may be nil; queries are then used
// verbatim and answers are built from the best passage.
func NewEngine(live LiveSource, embedder embedding.Embedder, svc llm.Service, ranker *ranking.Ranker, opts ...Option) *Engine {
	e := &Engine{
		live:     live,
		embedder: embedder,
		svc:      svc,
		ranker:   ranker,
		rewrite:  true,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Rewrite reformulates query for embedding. Any failure yields query unchanged.
func (e *Engine) Rewrite(ctx context.Context, query string) string {
	if e.svc == nil || !e.rewrite {
		return query
	}
	out, err := e.svc.Rewrite(ctx, query)
	if err != nil {
		e.logger.Warn("query rewrite failed, using original", zap.Error(err))
		return query
	}
	if out = strings.TrimSpace(out); out == "" {
		return query
	}
	return out
}

// Retrieve ranks the live generation for query. The rewritten query drives
// the embedding; code boosts always come from the original query.
func (e *Engine) Retrieve(ctx context.Context, query string) (*Retrieval, error) {
	start := time.Now()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	searchQuery := e.Rewrite(ctx, query)
	vec, err := e.embedder.Embed(ctx, searchQuery)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	snap := e.live.Live()
	matches := e.ranker.Rank(vec, snap.Passages, query)
	e.logger.Debug("query ranked",
		zap.String("query", query),
		zap.String("search_query", searchQuery),
		zap.Int("candidates", snap.Len()),
		zap.Int("matches", len(matches)))
	return &Retrieval{
		Query:       query,
		SearchQuery: searchQuery,
		Matches:     matches,
		QueryTime:   time.Since(start).Milliseconds(),
	}, nil
}

// Answer retrieves passages for query and generates a reply grounded on them.
// Without matches it returns NoInfoMessage and never calls the service.
func (e *Engine) Answer(ctx context.Context, query string) (*models.ChatResponse, error) {
	r, err := e.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(r.Matches) == 0 {
		return &models.ChatResponse{Response: NoInfoMessage, Sources: []string{}}, nil
	}
	passages := make([]*models.Passage, len(r.Matches))
	for i, m := range r.Matches {
		passages[i] = m.Passage
	}

	var text string
	if e.svc == nil {
		text = passages[0].Title + "\n\n" + passages[0].Body
	} else {
		text, err = e.svc.Answer(ctx, r.Query, passages)
		if err != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
	}
	return &models.ChatResponse{Response: strings.TrimSpace(text), Sources: Sources(passages)}, nil
}

// Sources returns the de-duplicated passage titles in rank order, falling back
// to the source tag for untitled passages.
func Sources(passages []*models.Passage) []string {
	seen := make(map[string]bool)
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		src := p.Title
		if src == "" {
			src = p.SourceTag
		}
		if src == "" || seen[src] {
			continue
		}
		seen[src] = true
		out = append(out, src)
	}
	return out
}
