package llm

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"github.com/sofim-uhk/sofim/internal/models"
)

// ErrNotScripted is returned by Fake for calls without a scripted function.
var ErrNotScripted = errors.New("fake service call not scripted")

// Fake is a scripted Service for tests. Unset functions fail with ErrNotScripted.
type Fake struct {
	ChunkFunc   func(source, block string, part, total int) ([]Section, error)
	RewriteFunc func(query string) (string, error)
	AnswerFunc  func(query string, passages []*models.Passage) (string, error)

	ChunkCalls   atomic.Int64
	RewriteCalls atomic.Int64
	AnswerCalls  atomic.Int64
}

// Chunk calls ChunkFunc.
func (f *Fake) Chunk(ctx context.Context, source, block string, part, total int) ([]Section, error) {
	f.ChunkCalls.Add(1)
	if f.ChunkFunc == nil {
		return nil, ErrNotScripted
	}
	return f.ChunkFunc(source, block, part, total)
}

// Rewrite calls RewriteFunc.
func (f *Fake) Rewrite(ctx context.Context, query string) (string, error) {
	f.RewriteCalls.Add(1)
	if f.RewriteFunc == nil {
		return "", ErrNotScripted
	}
	return f.RewriteFunc(query)
}

// Answer calls AnswerFunc.
func (f *Fake) Answer(ctx context.Context, query string, passages []*models.Passage) (string, error) {
	f.AnswerCalls.Add(1)
	if f.AnswerFunc == nil {
		return "", ErrNotScripted
	}
	return f.AnswerFunc(query, passages)
}

// ParagraphChunks is a ChunkFunc that returns one section per blank-line
// separated paragraph, titled by the paragraph's first line.
func ParagraphChunks(source, block string, part, total int) ([]Section, error) {
	var out []Section
	for _, para := range strings.Split(block, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		title, _, _ := strings.Cut(para, "\n")
		out = append(out, Section{Title: title, Content: para})
	}
	return out, nil
}
