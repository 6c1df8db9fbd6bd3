package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sofim-uhk/sofim/internal/cli"
	"github.com/sofim-uhk/sofim/internal/llm"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/search"
	"github.com/sofim-uhk/sofim/internal/storage"
	"go.uber.org/zap"
)

// constEmbedder maps every text to the same vector so ranking is decided by code boosts.
type constEmbedder struct{}

func (constEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

const testCatalog = "Název;Zkratka;Katedra;Kredity\n" +
	"Informatika;KIKM;KIT;5\n" +
	"Matematika;MAT1;KM;4\n"

func writeTestConfig(t *testing.T, dir string) string {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "predmety.csv"), []byte(testCatalog), 0o600); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	content := `
storage:
  database_path: "./sofim.db"
sources:
  tabular:
    path: "./predmety.csv"
search:
  min_score: 0
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func newTestApp(t *testing.T, svc llm.Service) *app {
	t.Helper()
	cfg, _, err := loadConfig(writeTestConfig(t, t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	a, err := newApp(context.Background(), cfg, zap.NewNop(), withEmbedder(constEmbedder{}), withLLM(svc))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestLoadConfig_prefersCwdConfigWhenDefaultPath(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	content := `
debug: true
storage:
  database_path: "test.db"
`
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	origWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = os.Chdir(origWd) }()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}

	cfg, resolved, err := loadConfig(defaultConfigPath)
	if err != nil {
		t.Fatal(err)
	}
	// On macOS, cwd can be /private/var/... while t.TempDir() is /var/...; compare canonical paths.
	resolvedCanon, _ := filepath.EvalSymlinks(resolved)
	configPathCanon, _ := filepath.EvalSymlinks(configPath)
	if resolvedCanon != configPathCanon {
		t.Errorf("resolved path = %s, want %s", resolvedCanon, configPathCanon)
	}
	if !cfg.Debug {
		t.Error("debug should be true from cwd config.yaml")
	}
}

func TestLoadConfig_usesExplicitPath(t *testing.T) {
	dir := t.TempDir()
	configPath := writeTestConfig(t, dir)

	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != configPath {
		t.Errorf("resolved = %s, want %s", resolved, configPath)
	}
	if want := filepath.Join(dir, "sofim.db"); cfg.Storage.DatabasePath != want {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, want)
	}
}

func TestLoadConfig_missingFile(t *testing.T) {
	if _, _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing config")
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"kdo", "je", "garant"}, "kdo je garant"},
		{[]string{"  podmínky přijetí "}, "podmínky přijetí"},
		{[]string{}, ""},
	}
	for _, tt := range tests {
		if got := buildQuery(tt.args); got != tt.want {
			t.Errorf("buildQuery(%q) = %q, want %q", tt.args, got, tt.want)
		}
	}
}

func TestApp_TabularSyncThenAsk(t *testing.T) {
	fake := &llm.Fake{
		AnswerFunc: func(query string, passages []*models.Passage) (string, error) {
			return "Odpověď: " + passages[0].Title, nil
		},
	}
	a := newTestApp(t, fake)
	ctx := context.Background()

	rep, err := a.runner.Run(ctx, models.ModeTabular)
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !rep.Published || rep.Passages[models.CategoryTabular] != 2 {
		t.Fatalf("report = %+v", rep)
	}
	if got := a.index.Live().Len(); got != 2 {
		t.Fatalf("live passages = %d, want 2", got)
	}

	var buf bytes.Buffer
	if err := ask(ctx, &buf, a, "kdo učí KIKM", true, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Odpověď: Předmět: Informatika (KIKM)") {
		t.Errorf("answer should be grounded on the code match:\n%s", out)
	}
	if !strings.Contains(out, "Rank: 1") || !strings.Contains(out, "Rank: 2") {
		t.Errorf("expected both passages listed:\n%s", out)
	}
	// Rewrite is not scripted, so the original query is embedded.
	if fake.RewriteCalls.Load() == 0 {
		t.Error("rewrite should be attempted when enabled")
	}
}

func TestAsk_EmptyIndex(t *testing.T) {
	fake := &llm.Fake{}
	a := newTestApp(t, fake)

	var buf bytes.Buffer
	if err := ask(context.Background(), &buf, a, "rozvrh", false, cli.OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), search.NoInfoMessage) {
		t.Errorf("got %q", buf.String())
	}
	if fake.AnswerCalls.Load() != 0 {
		t.Error("answer service must not be called without matches")
	}
}

func TestAddSource(t *testing.T) {
	a := newTestApp(t, nil)
	ctx := context.Background()

	if _, err := addSource(ctx, a.storage, "not a url"); err == nil {
		t.Error("expected invalid url error")
	}
	src, err := addSource(ctx, a.storage, " https://fim.uhk.cz/studium ")
	if err != nil {
		t.Fatal(err)
	}
	if src.URL != "https://fim.uhk.cz/studium" {
		t.Errorf("url = %q", src.URL)
	}
	if _, err := addSource(ctx, a.storage, "https://fim.uhk.cz/studium"); !errors.Is(err, storage.ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}
}
