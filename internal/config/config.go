// Package config provides configuration loading and structs for the sofim server.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	LLM     LLMConfig     `yaml:"llm"`
	Ingest  IngestConfig  `yaml:"ingest"`
	Sources SourcesConfig `yaml:"sources"`
	Search  SearchConfig  `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
	// AdminToken guards /api/v1/admin. Empty disables the admin routes.
	AdminToken string `yaml:"admin_token"`
}

// StorageConfig holds the database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path" validate:"required"`
}

// LLMConfig configures the OpenAI-compatible text-understanding and embedding service.
type LLMConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
	APIKey         string        `yaml:"api_key"`
	ChatModel      string        `yaml:"chat_model"`
	EmbeddingModel string        `yaml:"embedding_model" validate:"required"`
	RewriteEnabled *bool         `yaml:"rewrite_enabled"`
	Timeout        time.Duration `yaml:"timeout" validate:"min=0"`
	BlockChars     int           `yaml:"block_chars" validate:"min=500"`
}

// RewriteOrDefault returns whether queries are rewritten before embedding; defaults to true when unset.
func (l *LLMConfig) RewriteOrDefault() bool {
	if l.RewriteEnabled != nil {
		return *l.RewriteEnabled
	}
	return true
}

// IngestConfig holds pipeline concurrency and fetch limits.
type IngestConfig struct {
	Workers              int           `yaml:"workers" validate:"min=1,max=256"`
	LLMConcurrency       int           `yaml:"llm_concurrency" validate:"min=1,max=64"`
	FetchTimeout         time.Duration `yaml:"fetch_timeout" validate:"min=0"`
	UserAgent            string        `yaml:"user_agent"`
	MaxDocumentBytes     int64         `yaml:"max_document_bytes" validate:"min=1024"`
	DocumentLinkPatterns []string      `yaml:"document_link_patterns"`
	MinTextChars         int           `yaml:"min_text_chars" validate:"min=1"`
}

// SourcesConfig lists configured seed URLs and the tabular source.
type SourcesConfig struct {
	SeedURLs []string      `yaml:"seed_urls" validate:"dive,url"`
	Tabular  TabularConfig `yaml:"tabular"`
}

// TabularConfig describes the course catalog file and how rows become passages.
// Column names are matched after normalization (lowercase, no diacritics).
type TabularConfig struct {
	Path             string          `yaml:"path"`
	Tag              string          `yaml:"tag" validate:"required"`
	HeaderKeywords   []string        `yaml:"header_keywords" validate:"min=1"`
	HeaderScanRows   int             `yaml:"header_scan_rows" validate:"min=1"`
	Encodings        []string        `yaml:"encodings" validate:"min=1"`
	NameColumns      []string        `yaml:"name_columns" validate:"min=1"`
	CodeColumns      []string        `yaml:"code_columns"`
	TitlePrefix      string          `yaml:"title_prefix"`
	PriorityFields   []PriorityField `yaml:"priority_fields" validate:"dive"`
	IgnoredColumns   []string        `yaml:"ignored_columns"`
	IncludeRemaining *bool           `yaml:"include_remaining"`
	Watch            bool            `yaml:"watch"`
}

// PriorityField is a column rendered first in a row passage body under a label.
type PriorityField struct {
	Column string `yaml:"column" validate:"required"`
	Label  string `yaml:"label" validate:"required"`
}

// IncludeRemainingOrDefault returns whether non-priority columns are appended; defaults to true when unset.
func (t *TabularConfig) IncludeRemainingOrDefault() bool {
	if t.IncludeRemaining != nil {
		return *t.IncludeRemaining
	}
	return true
}

// SearchConfig holds retrieval ranker settings.
type SearchConfig struct {
	TopK      int      `yaml:"top_k" validate:"min=1,max=50"`
	MinScore  *float64 `yaml:"min_score"`
	CodeBoost float64  `yaml:"code_boost" validate:"min=0"`
	Stopwords []string `yaml:"stopwords"`
	CacheSize int      `yaml:"cache_size" validate:"min=0"`
}

// MinScoreOrDefault returns the relevance floor; defaults to 0.2 when unset. An explicit 0 disables the floor.
func (s *SearchConfig) MinScoreOrDefault() float64 {
	if s.MinScore != nil {
		return *s.MinScore
	}
	return 0.2
}

// Load reads the .env file next to the config (if any), parses the YAML config at path,
// applies defaults and env overrides, expands paths, and validates the result.
func Load(path string) (*Config, error) {
	configDir := filepath.Dir(path)
	if err := loadDotEnv(filepath.Join(configDir, ".env")); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)
	applyEnv(&cfg)

	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Sources.Tabular.Path != "" {
		cfg.Sources.Tabular.Path = expandPath(cfg.Sources.Tabular.Path, configDir)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints and returns a readable error listing every failed field.
func Validate(cfg *Config) error {
	err := validator.New().Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", e.Namespace(), e.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv lets secrets live outside the YAML file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("SOFIM_LLM_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	} else if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("SOFIM_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
