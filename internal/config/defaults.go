package config

import "time"

// DefaultStopwords are short words that look like subject codes but are not.
var DefaultStopwords = []string{
	"pro", "kde", "kdy", "jak", "co", "na", "do", "se", "ze", "ke", "ve",
	"test", "info", "data", "stag", "fim", "uhk", "pan", "pani",
	"doc", "prof", "ing", "mgr", "bc", "phd", "kontakt", "vedouci",
}

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5001
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/sofim/data/sofim.db"
	}

	if cfg.LLM.EmbeddingModel == "" {
		cfg.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.BlockChars == 0 {
		cfg.LLM.BlockChars = 12000
	}

	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 8
	}
	if cfg.Ingest.LLMConcurrency == 0 {
		cfg.Ingest.LLMConcurrency = 4
	}
	if cfg.Ingest.FetchTimeout == 0 {
		cfg.Ingest.FetchTimeout = 20 * time.Second
	}
	if cfg.Ingest.UserAgent == "" {
		cfg.Ingest.UserAgent = "sofim-crawler/1.0"
	}
	if cfg.Ingest.MaxDocumentBytes == 0 {
		cfg.Ingest.MaxDocumentBytes = 32 << 20
	}
	if cfg.Ingest.DocumentLinkPatterns == nil {
		cfg.Ingest.DocumentLinkPatterns = []string{"/file/", "/download/", "/soubor/"}
	}
	if cfg.Ingest.MinTextChars == 0 {
		cfg.Ingest.MinTextChars = 10
	}

	applyTabularDefaults(&cfg.Sources.Tabular)

	if cfg.Search.TopK == 0 {
		cfg.Search.TopK = 3
	}
	if cfg.Search.CodeBoost == 0 {
		cfg.Search.CodeBoost = 0.5
	}
	if cfg.Search.Stopwords == nil {
		cfg.Search.Stopwords = append([]string(nil), DefaultStopwords...)
	}
	if cfg.Search.CacheSize == 0 {
		cfg.Search.CacheSize = 1000
	}
}

func applyTabularDefaults(t *TabularConfig) {
	if t.Tag == "" {
		t.Tag = "csv_import"
	}
	if t.HeaderKeywords == nil {
		t.HeaderKeywords = []string{"nazev", "katedra"}
	}
	if t.HeaderScanRows == 0 {
		t.HeaderScanRows = 15
	}
	if t.Encodings == nil {
		t.Encodings = []string{"utf-8", "windows-1250", "iso-8859-2", "windows-1252"}
	}
	if t.NameColumns == nil {
		t.NameColumns = []string{"nazev", "nazev anglicky"}
	}
	if t.CodeColumns == nil {
		t.CodeColumns = []string{"zkratka", "kod predmetu"}
	}
	if t.TitlePrefix == "" {
		t.TitlePrefix = "Předmět"
	}
	if t.PriorityFields == nil {
		t.PriorityFields = []PriorityField{
			{Column: "katedra", Label: "Katedra"},
			{Column: "garant", Label: "Garant"},
			{Column: "kredity", Label: "Počet kreditů"},
			{Column: "semestr", Label: "Semestr"},
			{Column: "zpusob zakonceni", Label: "Způsob zakončení"},
			{Column: "anotace", Label: "Anotace"},
			{Column: "pozadavky", Label: "Požadavky"},
		}
	}
	if t.IgnoredColumns == nil {
		t.IgnoredColumns = []string{"id", "poradi"}
	}
	if t.IncludeRemaining == nil {
		v := true
		t.IncludeRemaining = &v
	}
}
