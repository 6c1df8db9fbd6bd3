package index

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/storage"
)

const tabularTag = "csv_import"

func newTestManager(t *testing.T, opts ...Option) (*Manager, *storage.SQLiteStorage) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "sofim.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	m := NewManager(store, tabularTag, opts...)
	if err := m.Open(context.Background()); err != nil {
		t.Fatal(err)
	}
	return m, store
}

func publish(t *testing.T, m *Manager, mode models.Mode, passages ...*models.Passage) {
	t.Helper()
	ctx := context.Background()
	if err := m.Prepare(ctx, mode); err != nil {
		t.Fatal(err)
	}
	for _, p := range passages {
		if err := m.Insert(ctx, p); err != nil {
			t.Fatal(err)
		}
	}
	if err := m.Publish(ctx); err != nil {
		t.Fatal(err)
	}
}

func p(title, tag string) *models.Passage {
	return &models.Passage{Title: title, Body: title, SourceTag: tag, Vector: []float32{1, 0}}
}

func titles(s *Snapshot) map[string]int64 {
	out := map[string]int64{}
	for _, ps := range s.Passages {
		out[ps.Title] = ps.ID
	}
	return out
}

func TestManager_OpenWithoutLive(t *testing.T) {
	m, _ := newTestManager(t)
	if m.Live().Len() != 0 {
		t.Errorf("expected empty snapshot, got %d", m.Live().Len())
	}
}

func TestManager_PartialWebRefreshKeepsTabular(t *testing.T) {
	m, _ := newTestManager(t)
	publish(t, m, models.ModeFull,
		p("Předmět: Algebra (ALG)", tabularTag),
		p("Old page", "https://x.cz/a"),
	)
	before := titles(m.Live())

	publish(t, m, models.ModeWeb, p("New page", "https://x.cz/a"))
	after := titles(m.Live())

	if _, ok := after["Old page"]; ok {
		t.Error("old web passage should be gone")
	}
	if _, ok := after["New page"]; !ok {
		t.Error("new web passage missing")
	}
	if after["Předmět: Algebra (ALG)"] != before["Předmět: Algebra (ALG)"] {
		t.Error("tabular passage should survive a web refresh unchanged")
	}
}

func TestManager_PartialTabularRefreshKeepsWeb(t *testing.T) {
	m, _ := newTestManager(t)
	publish(t, m, models.ModeFull,
		p("Předmět: Algebra (ALG)", tabularTag),
		p("Page", "https://x.cz/a"),
	)

	publish(t, m, models.ModeTabular, p("Předmět: Logika (LOG)", tabularTag))
	after := titles(m.Live())
	if len(after) != 2 {
		t.Fatalf("expected 2 passages, got %v", after)
	}
	if _, ok := after["Page"]; !ok {
		t.Error("web passage should survive a tabular refresh")
	}
	if _, ok := after["Předmět: Algebra (ALG)"]; ok {
		t.Error("old tabular passage should be replaced")
	}
}

func TestManager_PublishEmptyStaging(t *testing.T) {
	m, _ := newTestManager(t)
	publish(t, m, models.ModeFull, p("Page", "https://x.cz/a"))
	publish(t, m, models.ModeFull)
	if m.Live().Len() != 0 {
		t.Errorf("publishing empty staging should empty live, got %d", m.Live().Len())
	}
}

func TestManager_KeepFailedCategory(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	publish(t, m, models.ModeFull,
		p("Předmět: Algebra (ALG)", tabularTag),
		p("Page", "https://x.cz/a"),
	)

	if err := m.Prepare(ctx, models.ModeFull); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(ctx, p("Page v2", "https://x.cz/a")); err != nil {
		t.Fatal(err)
	}
	if err := m.Keep(ctx, models.CategoryTabular); err != nil {
		t.Fatal(err)
	}
	if err := m.Publish(ctx); err != nil {
		t.Fatal(err)
	}
	after := titles(m.Live())
	if _, ok := after["Předmět: Algebra (ALG)"]; !ok || len(after) != 2 {
		t.Errorf("unexpected live generation: %v", after)
	}
}

func TestManager_DiscardLeavesLive(t *testing.T) {
	m, store := newTestManager(t)
	ctx := context.Background()
	publish(t, m, models.ModeFull, p("Page", "https://x.cz/a"))

	if err := m.Prepare(ctx, models.ModeFull); err != nil {
		t.Fatal(err)
	}
	if err := m.Insert(ctx, p("Half done", "https://x.cz/b")); err != nil {
		t.Fatal(err)
	}
	if err := m.Discard(ctx); err != nil {
		t.Fatal(err)
	}
	if err := m.Publish(ctx); !errors.Is(err, storage.ErrNoStaging) {
		t.Errorf("publish after discard: got %v, want ErrNoStaging", err)
	}
	live, err := store.LoadLive(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(live) != 1 || live[0].Title != "Page" {
		t.Errorf("live changed: %+v", live)
	}
}

func TestManager_ReadersDuringPublish(t *testing.T) {
	m, _ := newTestManager(t)
	publish(t, m, models.ModeFull, p("A", "https://x.cz/a"), p("B", "https://x.cz/b"))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				n := m.Live().Len()
				if n != 2 && n != 3 {
					t.Errorf("reader saw partial generation of %d passages", n)
					return
				}
			}
		}()
	}
	publish(t, m, models.ModeFull, p("A", "https://x.cz/a"), p("B", "https://x.cz/b"), p("C", "https://x.cz/c"))
	close(stop)
	wg.Wait()
}

func TestManager_KeywordSnapshot(t *testing.T) {
	m, _ := newTestManager(t, WithKeywordIndex(true))
	publish(t, m, models.ModeFull, p("Předmět: Algebra (ALG)", tabularTag))

	snap := m.Live()
	if snap.Keyword == nil {
		t.Fatal("expected keyword index on snapshot")
	}
	hits, err := snap.Keyword.Search(context.Background(), "alg", 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if _, ok := snap.Passage(hits[0].PassageID); !ok {
		t.Error("hit does not resolve to a live passage")
	}
}

func TestManager_Close(t *testing.T) {
	m, _ := newTestManager(t, WithKeywordIndex(true))
	publish(t, m, models.ModeFull, p("Předmět: Algebra (ALG)", tabularTag))

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := m.Live().Len(); got != 0 {
		t.Errorf("live passages after Close = %d, want 0", got)
	}
}
