// Package models defines core data structures for passages, sync status, and retrieval results.
package models

import "time"

// Passage is one retrievable unit of text plus its embedding and provenance.
// Passages are immutable once written; updates are delete-category plus re-insert.
type Passage struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Body      string    `json:"body" db:"body"`
	Vector    []float32 `json:"-" db:"vector"`
	SourceTag string    `json:"source_tag" db:"source_tag"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Draft is a chunker output that has not been embedded yet.
type Draft struct {
	Title     string
	Body      string
	SourceTag string
}

// EnrichedText returns the string that is embedded for a draft: provenance
// metadata ahead of the body. Only the plain body is stored.
func (d Draft) EnrichedText() string {
	return "Source: " + d.SourceTag + "\nTitle: " + d.Title + "\n\n" + d.Body
}

// Source is a seed URL from the operator-managed source list.
type Source struct {
	ID  int64  `json:"id" db:"id"`
	URL string `json:"url" db:"url" validate:"required,url"`
}
