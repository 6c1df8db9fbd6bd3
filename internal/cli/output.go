// Package cli provides output helpers for the sofim command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sofim-uhk/sofim/internal/ingest"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates a --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteStatus writes per-category sync state.
func WriteStatus(w io.Writer, statuses []*models.SyncStatus, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, statuses)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(w, "No sync has run yet.")
		return nil
	}
	sorted := append([]*models.SyncStatus(nil), statuses...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Category < sorted[j].Category })
	for _, st := range sorted {
		fmt.Fprintf(w, "%-8s %-8s %d/%d", st.Category, st.Status, st.ProcessedItems, st.TotalItems)
		if st.LastUpdated != nil {
			fmt.Fprintf(w, "  updated %s", st.LastUpdated.Format(time.RFC3339))
		}
		fmt.Fprintln(w)
		for _, line := range st.ErrorLines() {
			fmt.Fprintf(w, "  ! %s\n", utils.Truncate(line, 160))
		}
	}
	return nil
}

// WriteReport writes the outcome of a finished sync run.
func WriteReport(w io.Writer, rep *ingest.Report, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, rep)
	}
	state := "published"
	if !rep.Published {
		state = "not published"
	}
	fmt.Fprintf(w, "Run %s (%s) %s in %s\n", rep.RunID, rep.Mode, state,
		rep.Finished.Sub(rep.Started).Round(time.Millisecond))
	for _, cat := range rep.Mode.Categories() {
		if cause, ok := rep.Failed[cat]; ok {
			fmt.Fprintf(w, "  %-8s failed: %s\n", cat, cause)
			continue
		}
		fmt.Fprintf(w, "  %-8s %d passages\n", cat, rep.Passages[cat])
	}
	return nil
}

// Answer is the printable result of one question.
type Answer struct {
	Query   string                 `json:"query"`
	Answer  string                 `json:"answer"`
	Sources []string               `json:"sources"`
	Matches []models.ScoredPassage `json:"matches,omitempty"`
}

// WriteAnswer writes an answer, its sources and optionally the ranked passages.
func WriteAnswer(w io.Writer, a *Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, a)
	}
	fmt.Fprintf(w, "\n%s\n", a.Answer)
	if len(a.Sources) > 0 {
		fmt.Fprintf(w, "\nSources: %s\n", strings.Join(a.Sources, "; "))
	}
	for i, m := range a.Matches {
		fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
		fmt.Fprintf(w, "Rank: %d | Score: %.4f | ID: %d\n", i+1, m.Score, m.Passage.ID)
		fmt.Fprintf(w, "Title: %s\n", m.Passage.Title)
		fmt.Fprintf(w, "\n%s\n\n", utils.Truncate(m.Passage.Body, 200))
	}
	return nil
}

// WriteSources writes the operator source list.
func WriteSources(w io.Writer, sources []*models.Source, format OutputFormat) error {
	if format == OutputJSON {
		if sources == nil {
			sources = []*models.Source{}
		}
		return writeJSON(w, sources)
	}
	if len(sources) == 0 {
		fmt.Fprintln(w, "No sources configured.")
		return nil
	}
	for _, s := range sources {
		fmt.Fprintf(w, "%4d  %s\n", s.ID, s.URL)
	}
	return nil
}
