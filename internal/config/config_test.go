package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
server:
  host: "127.0.0.1"
  port: 9000
storage:
  database_path: "test.db"
ingest:
  fetch_timeout: 5s
search:
  top_k: 5
  code_boost: 0.75
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Storage.DatabasePath == "" {
		t.Error("database_path should be set")
	}
	if cfg.Ingest.FetchTimeout != 5*time.Second {
		t.Errorf("fetch_timeout = %v, want 5s", cfg.Ingest.FetchTimeout)
	}
	if cfg.Search.TopK != 5 || cfg.Search.CodeBoost != 0.75 {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	if got := cfg.Search.MinScoreOrDefault(); got != 0.2 {
		t.Errorf("min_score default = %v, want 0.2", got)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
storage:
  database_path: "./data/sofim.db"
sources:
  tabular:
    path: "./catalog/predmety.csv"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	wantDB := filepath.Join(dir, "data", "sofim.db")
	if cfg.Storage.DatabasePath != wantDB {
		t.Errorf("database_path = %s, want %s", cfg.Storage.DatabasePath, wantDB)
	}
	wantCSV := filepath.Join(dir, "catalog", "predmety.csv")
	if cfg.Sources.Tabular.Path != wantCSV {
		t.Errorf("tabular path = %s, want %s", cfg.Sources.Tabular.Path, wantCSV)
	}
}

func TestLoad_dotEnvSuppliesSecrets(t *testing.T) {
	dir := t.TempDir()
	t.Cleanup(func() {
		_ = os.Unsetenv("SOFIM_LLM_API_KEY")
		_ = os.Unsetenv("SOFIM_ADMIN_TOKEN")
	})
	env := "SOFIM_LLM_API_KEY=sk-test\nSOFIM_ADMIN_TOKEN=secret\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0600); err != nil {
		t.Fatal(err)
	}
	path := writeConfig(t, dir, `
storage:
  database_path: "./sofim.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("api key = %q, want sk-test", cfg.LLM.APIKey)
	}
	if cfg.Server.AdminToken != "secret" {
		t.Errorf("admin token = %q, want secret", cfg.Server.AdminToken)
	}
}

func TestLoad_invalidSeedURL(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
storage:
  database_path: "./sofim.db"
sources:
  seed_urls: ["not a url"]
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error for malformed seed URL")
	}
	if !strings.Contains(err.Error(), "SeedURLs") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 5001 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Search.TopK != 3 {
		t.Errorf("default top_k: got %d", cfg.Search.TopK)
	}
	if cfg.Search.CodeBoost != 0.5 {
		t.Errorf("default code_boost: got %f, want 0.5", cfg.Search.CodeBoost)
	}
	if len(cfg.Search.Stopwords) != len(DefaultStopwords) {
		t.Errorf("stopwords: got %d entries", len(cfg.Search.Stopwords))
	}
	if cfg.LLM.BlockChars != 12000 {
		t.Errorf("default block_chars: got %d", cfg.LLM.BlockChars)
	}
	tab := cfg.Sources.Tabular
	if tab.Tag != "csv_import" {
		t.Errorf("default tabular tag: got %s", tab.Tag)
	}
	if tab.HeaderScanRows != 15 {
		t.Errorf("default header_scan_rows: got %d", tab.HeaderScanRows)
	}
	if len(tab.Encodings) != 4 || tab.Encodings[0] != "utf-8" {
		t.Errorf("encodings: got %v", tab.Encodings)
	}
	if !tab.IncludeRemainingOrDefault() {
		t.Error("include_remaining should default to true")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLLMConfig_RewriteOrDefault(t *testing.T) {
	t.Run("nil_returns_true", func(t *testing.T) {
		l := &LLMConfig{}
		if !l.RewriteOrDefault() {
			t.Error("RewriteOrDefault() = false, want true")
		}
	})
	t.Run("false_returns_false", func(t *testing.T) {
		f := false
		l := &LLMConfig{RewriteEnabled: &f}
		if l.RewriteOrDefault() {
			t.Error("RewriteOrDefault() = true, want false")
		}
	})
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saved.yaml")
	cfg := &Config{
		Server:  ServerConfig{Host: "localhost", Port: 9090},
		Storage: StorageConfig{DatabasePath: "/tmp/sofim.db"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}

func TestLoad_explicitZeroMinScoreKept(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
search:
  min_score: 0
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := cfg.Search.MinScoreOrDefault(); got != 0 {
		t.Errorf("min_score = %v, want explicit 0", got)
	}
}
