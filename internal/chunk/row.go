package chunk

import (
	"fmt"
	"strings"

	"github.com/sofim-uhk/sofim/internal/config"
	"github.com/sofim-uhk/sofim/internal/fetch"
	"github.com/sofim-uhk/sofim/internal/models"
)

var placeholders = map[string]bool{
	"":     true,
	"-":    true,
	"nan":  true,
	"null": true,
	"none": true,
	"n/a":  true,
}

var codeHints = []string{"kod", "code", "zkratka", "abbr"}

func isPlaceholder(v string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(v))]
}

// RowChunker turns each table row into one passage.
type RowChunker struct {
	cfg config.TabularConfig
}

// NewRowChunker creates a row chunker from the tabular source configuration.
func NewRowChunker(cfg config.TabularConfig) *RowChunker {
	return &RowChunker{cfg: cfg}
}

// Chunk returns one draft per usable row and the number of skipped rows.
// Rows without a name and without a code are skipped.
func (c *RowChunker) Chunk(table *fetch.Table) ([]models.Draft, int) {
	nameCols := c.indexes(table, c.cfg.NameColumns)
	codeCols := c.indexes(table, c.cfg.CodeColumns)
	if len(codeCols) == 0 {
		for i, col := range table.Columns {
			for _, hint := range codeHints {
				if strings.Contains(col.Key, hint) {
					codeCols = append(codeCols, i)
					break
				}
			}
		}
	}

	priority := make(map[int]bool)
	ignored := make(map[string]bool)
	for _, col := range c.cfg.IgnoredColumns {
		ignored[fetch.NormalizeKey(col)] = true
	}

	var drafts []models.Draft
	skipped := 0
	for _, row := range table.Rows {
		name := firstValue(row, nameCols)
		code := firstValue(row, codeCols)
		if name == "" && code == "" {
			skipped++
			continue
		}

		var body []string
		for _, f := range c.cfg.PriorityFields {
			i := table.Index(f.Column)
			if i < 0 {
				continue
			}
			priority[i] = true
			if v := strings.TrimSpace(row[i]); !isPlaceholder(v) {
				body = append(body, fmt.Sprintf("%s: %s", f.Label, v))
			}
		}
		if c.cfg.IncludeRemainingOrDefault() {
			for i, col := range table.Columns {
				if priority[i] || ignored[col.Key] {
					continue
				}
				if v := strings.TrimSpace(row[i]); !isPlaceholder(v) {
					body = append(body, fmt.Sprintf("%s: %s", col.Name, v))
				}
			}
		}

		title := c.title(name, code)
		text := strings.Join(body, "\n")
		if text == "" {
			text = title
		}
		drafts = append(drafts, models.Draft{Title: title, Body: text, SourceTag: c.cfg.Tag})
	}
	return drafts, skipped
}

func (c *RowChunker) title(name, code string) string {
	var t string
	switch {
	case name != "" && code != "":
		t = fmt.Sprintf("%s (%s)", name, code)
	case name != "":
		t = name
	default:
		t = code
	}
	if c.cfg.TitlePrefix == "" {
		return t
	}
	return c.cfg.TitlePrefix + ": " + t
}

func (c *RowChunker) indexes(table *fetch.Table, names []string) []int {
	var out []int
	for _, n := range names {
		if i := table.Index(n); i >= 0 {
			out = append(out, i)
		}
	}
	return out
}

func firstValue(row []string, cols []int) string {
	for _, i := range cols {
		if v := strings.TrimSpace(row[i]); !isPlaceholder(v) {
			return v
		}
	}
	return ""
}
