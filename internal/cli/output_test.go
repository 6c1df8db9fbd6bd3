package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/sofim-uhk/sofim/internal/ingest"
	"github.com/sofim-uhk/sofim/internal/models"
)

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "text": OutputText, "JSON": OutputJSON} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("compact"); err == nil {
		t.Error("ParseFormat(compact) should fail")
	}
}

func TestWriteStatus_Text(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	statuses := []*models.SyncStatus{
		{Category: models.CategoryWeb, Status: models.StateSuccess, TotalItems: 10, ProcessedItems: 10,
			LastUpdated: &now, LastError: "https://a.example/1: status 500"},
		{Category: models.CategoryTabular, Status: models.StateRunning, TotalItems: 4, ProcessedItems: 1},
	}
	var buf bytes.Buffer
	if err := WriteStatus(&buf, statuses, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if strings.Index(out, "tabular") > strings.Index(out, "web") {
		t.Errorf("categories should be sorted:\n%s", out)
	}
	for _, want := range []string{"10/10", "1/4", "2026-03-01T10:00:00Z", "! https://a.example/1: status 500"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteStatus_Empty(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteStatus(&buf, nil, OutputText)
	if !strings.Contains(buf.String(), "No sync") {
		t.Errorf("got %q", buf.String())
	}
}

func TestWriteReport(t *testing.T) {
	start := time.Now()
	rep := &ingest.Report{
		RunID:     "run-1",
		Mode:      models.ModeFull,
		Published: true,
		Passages:  map[models.Category]int{models.CategoryWeb: 7},
		Failed:    map[models.Category]string{models.CategoryTabular: "no tabular source"},
		Started:   start,
		Finished:  start.Add(1500 * time.Millisecond),
	}
	var buf bytes.Buffer
	if err := WriteReport(&buf, rep, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"run-1", "published", "7 passages", "failed: no tabular source", "1.5s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswer_JSON(t *testing.T) {
	a := &Answer{
		Query:   "KIKM",
		Answer:  "Katedra informatiky",
		Sources: []string{"KIKM"},
		Matches: []models.ScoredPassage{{Passage: &models.Passage{ID: 3, Title: "KIKM"}, Score: 0.9}},
	}
	var buf bytes.Buffer
	if err := WriteAnswer(&buf, a, OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded Answer
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Answer != a.Answer || len(decoded.Matches) != 1 || decoded.Matches[0].Passage.ID != 3 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteAnswer_TextTruncatesBodies(t *testing.T) {
	body := strings.Repeat("ř", 300)
	a := &Answer{
		Answer:  "odpověď",
		Sources: []string{"A", "B"},
		Matches: []models.ScoredPassage{{Passage: &models.Passage{ID: 1, Title: "A", Body: body}, Score: 0.5}},
	}
	var buf bytes.Buffer
	_ = WriteAnswer(&buf, a, OutputText)
	out := buf.String()
	if !strings.Contains(out, "Sources: A; B") {
		t.Errorf("missing sources:\n%s", out)
	}
	if strings.Contains(out, body) || !strings.Contains(out, strings.Repeat("ř", 200)+"...") {
		t.Errorf("body not truncated to 200 runes:\n%s", out)
	}
}

func TestWriteSources(t *testing.T) {
	var buf bytes.Buffer
	_ = WriteSources(&buf, nil, OutputJSON)
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON list = %q", buf.String())
	}
	buf.Reset()
	_ = WriteSources(&buf, []*models.Source{{ID: 2, URL: "https://fim.uhk.cz/"}}, OutputText)
	if !strings.Contains(buf.String(), "2  https://fim.uhk.cz/") {
		t.Errorf("got %q", buf.String())
	}
}
