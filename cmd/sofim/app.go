package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sofim-uhk/sofim/internal/chunk"
	"github.com/sofim-uhk/sofim/internal/config"
	"github.com/sofim-uhk/sofim/internal/embedding"
	"github.com/sofim-uhk/sofim/internal/fetch"
	"github.com/sofim-uhk/sofim/internal/index"
	"github.com/sofim-uhk/sofim/internal/ingest"
	"github.com/sofim-uhk/sofim/internal/llm"
	"github.com/sofim-uhk/sofim/internal/ranking"
	"github.com/sofim-uhk/sofim/internal/search"
	"github.com/sofim-uhk/sofim/internal/status"
	"github.com/sofim-uhk/sofim/internal/storage"
)

// app holds the initialized components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	storage  *storage.SQLiteStorage
	tracker  *status.Tracker
	index    *index.Manager
	embedder embedding.Embedder
	llm      llm.Service
	runner   *ingest.Runner
	engine   *search.Engine
}

// appOption overrides a component, for tests.
type appOption func(*app)

func withEmbedder(e embedding.Embedder) appOption {
	return func(a *app) { a.embedder = e }
}

func withLLM(s llm.Service) appOption {
	return func(a *app) { a.llm = s }
}

// newApp opens storage, recovers the generation tables, loads the live
// snapshot and wires the ingest and search pipelines.
func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...appOption) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	for _, o := range opts {
		o(a)
	}

	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, err
	}
	a.storage = store

	a.tracker = status.NewTracker(store, status.WithLogger(logger))
	reset, err := a.tracker.ResetInterrupted(ctx)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	for _, cat := range reset {
		logger.Warn("sync interrupted by restart", zap.String("category", string(cat)))
	}

	a.index = index.NewManager(store, cfg.Sources.Tabular.Tag,
		index.WithLogger(logger), index.WithKeywordIndex(true))
	if err := a.index.Open(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	if a.llm == nil && cfg.LLM.ChatModel != "" {
		svc, err := llm.NewOpenAIService(llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.ChatModel,
			Timeout: cfg.LLM.Timeout,
		}, llm.WithLogger(logger))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.llm = svc
	}
	if a.embedder == nil {
		emb, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey,
			Model:   cfg.LLM.EmbeddingModel,
			Timeout: cfg.LLM.Timeout,
		}, embedding.WithLogger(logger))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		a.embedder = emb
	}
	a.embedder = embedding.NewCachedEmbedder(a.embedder, cfg.Search.CacheSize)

	limiter := semaphore.NewWeighted(int64(cfg.Ingest.LLMConcurrency))
	chunker := chunk.NewSemanticChunker(a.llm, cfg.LLM.BlockChars,
		chunk.WithLogger(logger),
		chunk.WithLimiter(limiter),
		chunk.WithBlockTimeout(cfg.LLM.Timeout))
	fetcher := fetch.New(
		fetch.WithLogger(logger),
		fetch.WithTimeout(cfg.Ingest.FetchTimeout),
		fetch.WithUserAgent(cfg.Ingest.UserAgent),
		fetch.WithMaxBytes(cfg.Ingest.MaxDocumentBytes),
		fetch.WithMinTextChars(cfg.Ingest.MinTextChars),
		fetch.WithLinkPatterns(cfg.Ingest.DocumentLinkPatterns))
	a.runner = ingest.NewRunner(cfg, ingest.Deps{
		Index:    a.index,
		Tracker:  a.tracker,
		Sources:  store,
		Fetcher:  fetcher,
		Chunker:  chunker,
		Rows:     chunk.NewRowChunker(cfg.Sources.Tabular),
		Embedder: a.embedder,
		Limiter:  limiter,
	}, ingest.WithLogger(logger))

	ranker := ranking.NewRanker(&ranking.Config{
		TopK:      cfg.Search.TopK,
		MinScore:  cfg.Search.MinScoreOrDefault(),
		CodeBoost: cfg.Search.CodeBoost,
		Stopwords: cfg.Search.Stopwords,
	})
	a.engine = search.NewEngine(a.index, a.embedder, a.llm, ranker,
		search.WithLogger(logger),
		search.WithRewrite(cfg.LLM.RewriteOrDefault()))

	logger.Info("components initialized",
		zap.Int("live_passages", a.index.Live().Len()),
		zap.Bool("chat_model", a.llm != nil))
	return a, nil
}

func (a *app) Close() error {
	a.runner.Wait()
	if err := a.index.Close(); err != nil {
		a.logger.Warn("close keyword index", zap.Error(err))
	}
	if err := a.storage.Close(); err != nil {
		return fmt.Errorf("close storage: %w", err)
	}
	return nil
}
