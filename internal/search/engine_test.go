package search

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/sofim-uhk/sofim/internal/index"
	"github.com/sofim-uhk/sofim/internal/keyword"
	"github.com/sofim-uhk/sofim/internal/llm"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/ranking"
)

type staticLive struct{ snap *index.Snapshot }

func (s staticLive) Live() *index.Snapshot { return s.snap }

// vectorEmbedder maps exact texts to vectors and records what it was asked.
type vectorEmbedder struct {
	vectors map[string][]float32
	last    atomic.Value
}

func (v *vectorEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v.last.Store(text)
	if vec, ok := v.vectors[text]; ok {
		return vec, nil
	}
	return nil, errors.New("unknown text")
}

func testSnapshot() *index.Snapshot {
	return &index.Snapshot{Passages: []*models.Passage{
		{ID: 1, Title: "Předmět: Operační analýza 2 (OA2)", Body: "Garant: doc. Novák", Vector: []float32{0.9, 0.435889894}},
		{ID: 2, Title: "Předmět: Operační analýza 1 (OA1)", Body: "Garant: Ing. Malá", Vector: []float32{0.8, 0.6}},
		{ID: 3, Title: "Přijímací řízení", Body: "Přihlášky do konce března.", Vector: []float32{0, 1}},
	}}
}

func newTestEngine(svc llm.Service) (*Engine, *vectorEmbedder) {
	emb := &vectorEmbedder{vectors: map[string][]float32{
		"Kdo garantuje OA1?":         {1, 0},
		"garant předmětu OA1":        {1, 0},
		"Kdy se podávají přihlášky?": {0, 1},
		"xyz":                        {-1, 0},
	}}
	r := ranking.NewRanker(&ranking.Config{TopK: 3, MinScore: 0.2, CodeBoost: 0.5})
	return NewEngine(staticLive{testSnapshot()}, emb, svc, r), emb
}

func TestEngine_RewriteDrivesEmbeddingButNotBoost(t *testing.T) {
	fake := &llm.Fake{RewriteFunc: func(q string) (string, error) { return "garant předmětu OA1", nil }}
	e, emb := newTestEngine(fake)

	r, err := e.Retrieve(context.Background(), "Kdo garantuje OA1?")
	if err != nil {
		t.Fatal(err)
	}
	if emb.last.Load() != "garant předmětu OA1" {
		t.Errorf("embedded %q, want rewritten query", emb.last.Load())
	}
	if len(r.Matches) == 0 || r.Matches[0].Passage.ID != 2 {
		t.Fatalf("OA1 should rank first: %+v", r.Matches)
	}
}

func TestEngine_RewriteFailureFallsBack(t *testing.T) {
	fake := &llm.Fake{RewriteFunc: func(q string) (string, error) { return "", errors.New("timeout") }}
	e, emb := newTestEngine(fake)

	if _, err := e.Retrieve(context.Background(), "Kdo garantuje OA1?"); err != nil {
		t.Fatal(err)
	}
	if emb.last.Load() != "Kdo garantuje OA1?" {
		t.Errorf("embedded %q, want original query", emb.last.Load())
	}
	if got := e.Rewrite(context.Background(), "  "); got != "  " {
		t.Errorf("rewrite of blank result: %q", got)
	}
}

func TestEngine_AnswerNoMatchesSkipsService(t *testing.T) {
	fake := &llm.Fake{RewriteFunc: func(q string) (string, error) { return q, nil }}
	e, _ := newTestEngine(fake)

	resp, err := e.Answer(context.Background(), "xyz")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != NoInfoMessage || len(resp.Sources) != 0 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if fake.AnswerCalls.Load() != 0 {
		t.Error("answer service must not be called without matches")
	}
}

func TestEngine_AnswerWithSources(t *testing.T) {
	var got []*models.Passage
	fake := &llm.Fake{
		RewriteFunc: func(q string) (string, error) { return q, nil },
		AnswerFunc: func(q string, ps []*models.Passage) (string, error) {
			got = ps
			return " Garantem je Ing. Malá. ", nil
		},
	}
	e, _ := newTestEngine(fake)

	resp, err := e.Answer(context.Background(), "Kdo garantuje OA1?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Garantem je Ing. Malá." {
		t.Errorf("response = %q", resp.Response)
	}
	if len(got) != 2 || got[0].ID != 2 {
		t.Errorf("answer got passages %+v", got)
	}
	want := []string{"Předmět: Operační analýza 1 (OA1)", "Předmět: Operační analýza 2 (OA2)"}
	if !reflect.DeepEqual(resp.Sources, want) {
		t.Errorf("sources = %v", resp.Sources)
	}
}

func TestEngine_AnswerWithoutService(t *testing.T) {
	e, _ := newTestEngine(nil)
	resp, err := e.Answer(context.Background(), "Kdy se podávají přihlášky?")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Response != "Přijímací řízení\n\nPřihlášky do konce března." {
		t.Errorf("response = %q", resp.Response)
	}
}

func TestEngine_Errors(t *testing.T) {
	e, _ := newTestEngine(nil)
	if _, err := e.Retrieve(context.Background(), "   "); !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("blank query: %v", err)
	}
	if _, err := e.Retrieve(context.Background(), "neznámý dotaz"); err == nil {
		t.Error("expected embedding error")
	}
}

func TestSources_Dedup(t *testing.T) {
	got := Sources([]*models.Passage{
		{Title: "A"}, {Title: "B"}, {Title: "A"}, {SourceTag: "https://x.cz"},
	})
	if !reflect.DeepEqual(got, []string{"A", "B", "https://x.cz"}) {
		t.Errorf("Sources = %v", got)
	}
}

func TestEngine_LookupScanAndKeyword(t *testing.T) {
	e, _ := newTestEngine(nil)
	hits, err := e.Lookup(context.Background(), "oa1", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Passage.ID != 2 {
		t.Errorf("scan lookup: %+v", hits)
	}

	snap := testSnapshot()
	idx, err := keyword.Build(snap.Passages)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = idx.Close() }()
	snap.Keyword = idx
	e2 := NewEngine(staticLive{snap}, nil, nil, ranking.NewRanker(nil))
	hits, err = e2.Lookup(context.Background(), "přihlášky", 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Passage.ID != 3 {
		t.Errorf("keyword lookup: %+v", hits)
	}
}
