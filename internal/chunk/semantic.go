package chunk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sofim-uhk/sofim/internal/llm"
	"github.com/sofim-uhk/sofim/internal/models"
)

// ErrAllBlocksFailed is returned when the service failed on every block of a document.
var ErrAllBlocksFailed = errors.New("every block failed to chunk")

// SemanticChunker delegates splitting to the text-understanding service.
// Documents longer than blockChars are cut into sequential blocks first.
type SemanticChunker struct {
	svc        llm.Service
	blockChars int
	fallback   *WindowChunker
	limiter    *semaphore.Weighted
	timeout    time.Duration
	logger     *zap.Logger
}

// SemanticOption configures a SemanticChunker.
type SemanticOption func(*SemanticChunker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) SemanticOption {
	return func(c *SemanticChunker) { c.logger = l }
}

// WithLimiter bounds concurrent service calls across the pipeline.
func WithLimiter(s *semaphore.Weighted) SemanticOption {
	return func(c *SemanticChunker) { c.limiter = s }
}

// WithBlockTimeout bounds each service call.
func WithBlockTimeout(d time.Duration) SemanticOption {
	return func(c *SemanticChunker) { c.timeout = d }
}

// WithFallback sets the chunker used when svc is nil.
func WithFallback(w *WindowChunker) SemanticOption {
	return func(c *SemanticChunker) { c.fallback = w }
}

// NewSemanticChunker returns a chunker. A nil svc makes every call use the window fallback.
func NewSemanticChunker(svc llm.Service, blockChars int, opts ...SemanticOption) *SemanticChunker {
	if blockChars <= 0 {
		blockChars = 12000
	}
	c := &SemanticChunker{
		svc:        svc,
		blockChars: blockChars,
		fallback:   NewWindowChunker(300, 30),
		logger:     zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Chunk splits a document into drafts tagged with source. A failing block is
// logged and skipped; ErrAllBlocksFailed is returned only if no block succeeded.
func (c *SemanticChunker) Chunk(ctx context.Context, source, title, text string) ([]models.Draft, error) {
	if c.svc == nil {
		return c.fallback.Chunk(source, title, text), nil
	}
	blocks := SplitBlocks(text, c.blockChars)
	if len(blocks) == 0 {
		return nil, nil
	}

	var drafts []models.Draft
	var lastErr error
	failed := 0
	for i, block := range blocks {
		sections, err := c.chunkBlock(ctx, source, block, i+1, len(blocks))
		if err == nil && len(sections) == 0 {
			err = errors.New("no sections returned")
		}
		if err != nil {
			failed++
			lastErr = err
			c.logger.Warn("skipping block",
				zap.String("source", source),
				zap.Int("part", i+1),
				zap.Int("total", len(blocks)),
				zap.Error(err))
			continue
		}
		for _, s := range sections {
			t := s.Title
			if t == "" {
				t = title
			}
			drafts = append(drafts, models.Draft{Title: t, Body: s.Content, SourceTag: source})
		}
	}
	if failed == len(blocks) {
		return nil, fmt.Errorf("%w (%d blocks): %v", ErrAllBlocksFailed, failed, lastErr)
	}
	return drafts, nil
}

func (c *SemanticChunker) chunkBlock(ctx context.Context, source, block string, part, total int) ([]llm.Section, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		defer c.limiter.Release(1)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.svc.Chunk(ctx, source, block, part, total)
}

// SplitBlocks cuts text into blocks of at most max runes, preferring to cut at
// whitespace in the second half of each block. Blocks are trimmed and empty
// blocks dropped.
func SplitBlocks(text string, max int) []string {
	runes := []rune(strings.TrimSpace(text))
	var blocks []string
	for len(runes) > max {
		cut := max
		for i := max; i > max/2; i-- {
			if unicode.IsSpace(runes[i]) {
				cut = i
				break
			}
		}
		if b := strings.TrimSpace(string(runes[:cut])); b != "" {
			blocks = append(blocks, b)
		}
		runes = runes[cut:]
	}
	if b := strings.TrimSpace(string(runes)); b != "" {
		blocks = append(blocks, b)
	}
	return blocks
}
