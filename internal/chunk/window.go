// Package chunk turns extracted documents and table rows into passage drafts.
package chunk

import (
	"fmt"
	"strings"

	"github.com/sofim-uhk/sofim/internal/models"
)

// WindowChunker splits text into overlapping word windows. It is the fallback
// when no text-understanding service is configured.
type WindowChunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewWindowChunker creates a chunker with the given size and overlap (in words).
func NewWindowChunker(chunkSize, chunkOverlap int) *WindowChunker {
	if chunkSize <= 0 {
		chunkSize = 300
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &WindowChunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Chunk splits text into drafts titled "<title> (i/n)".
func (c *WindowChunker) Chunk(source, title, text string) []models.Draft {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	step := c.chunkSize - c.chunkOverlap
	var bodies []string
	for i := 0; i < len(words); i += step {
		end := i + c.chunkSize
		if end > len(words) {
			end = len(words)
		}
		bodies = append(bodies, strings.Join(words[i:end], " "))
		if end >= len(words) {
			break
		}
	}
	if title == "" {
		title = source
	}
	drafts := make([]models.Draft, len(bodies))
	for i, body := range bodies {
		t := title
		if len(bodies) > 1 {
			t = fmt.Sprintf("%s (%d/%d)", title, i+1, len(bodies))
		}
		drafts[i] = models.Draft{Title: t, Body: body, SourceTag: source}
	}
	return drafts
}
