// Package ingest orchestrates sync runs: it fetches every source of the
// requested categories into a staging generation and publishes it live.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/sofim-uhk/sofim/internal/chunk"
	"github.com/sofim-uhk/sofim/internal/config"
	"github.com/sofim-uhk/sofim/internal/embedding"
	"github.com/sofim-uhk/sofim/internal/fetch"
	"github.com/sofim-uhk/sofim/internal/index"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/status"
)

var (
	// ErrRunInProgress is returned when a run is triggered while another is active.
	ErrRunInProgress = errors.New("a sync run is already in progress")
	// ErrNothingPublished is returned when every category of a run failed.
	ErrNothingPublished = errors.New("every category failed, live generation unchanged")
)

// Chunker splits a fetched document into passage drafts.
type Chunker interface {
	Chunk(ctx context.Context, source, title, text string) ([]models.Draft, error)
}

// SourceLister lists operator-managed seed URLs.
type SourceLister interface {
	ListSources(ctx context.Context) ([]*models.Source, error)
}

// Deps are the collaborators of a Runner.
type Deps struct {
	Index    *index.Manager
	Tracker  *status.Tracker
	Sources  SourceLister
	Fetcher  *fetch.Fetcher
	Chunker  Chunker
	Rows     *chunk.RowChunker
	Embedder embedding.Embedder
	// Limiter bounds concurrent embedding calls; it should be shared with the chunker.
	Limiter *semaphore.Weighted
}

// Report summarizes a finished run.
type Report struct {
	RunID     string                     `json:"run_id"`
	Mode      models.Mode                `json:"mode"`
	Published bool                       `json:"published"`
	Passages  map[models.Category]int    `json:"passages"`
	Failed    map[models.Category]string `json:"failed,omitempty"`
	Started   time.Time                  `json:"started"`
	Finished  time.Time                  `json:"finished"`
}

// Runner executes sync runs, at most one at a time.
type Runner struct {
	deps        Deps
	cfg         *config.Config
	itemTimeout time.Duration
	logger      *zap.Logger

	running atomic.Bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	last    *Report
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithItemTimeout bounds each embedding call.
func WithItemTimeout(d time.Duration) Option {
	return func(r *Runner) { r.itemTimeout = d }
}

// NewRunner creates a runner.
func NewRunner(cfg *config.Config, deps Deps, opts ...Option) *Runner {
	if deps.Limiter == nil {
		n := int64(cfg.Ingest.LLMConcurrency)
		if n <= 0 {
			n = 1
		}
		deps.Limiter = semaphore.NewWeighted(n)
	}
	r := &Runner{
		deps:        deps,
		cfg:         cfg,
		itemTimeout: cfg.LLM.Timeout,
		logger:      zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Running reports whether a run is active in this process.
func (r *Runner) Running() bool {
	return r.running.Load()
}

// LastReport returns the report of the most recent finished run, or nil.
func (r *Runner) LastReport() *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Run executes a sync run and blocks until it finishes.
func (r *Runner) Run(ctx context.Context, mode models.Mode) (*Report, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)
	return r.run(ctx, mode)
}

// Start launches a sync run in the background. The run outlives ctx's
// cancellation; use Wait to block until it finishes.
func (r *Runner) Start(ctx context.Context, mode models.Mode) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer r.running.Store(false)
		if _, err := r.run(context.WithoutCancel(ctx), mode); err != nil {
			r.logger.Error("sync run failed", zap.String("mode", string(mode)), zap.Error(err))
		}
	}()
	return nil
}

// Wait blocks until background runs finish.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) run(ctx context.Context, mode models.Mode) (*Report, error) {
	rep := &Report{
		RunID:    uuid.NewString(),
		Mode:     mode,
		Passages: make(map[models.Category]int),
		Failed:   make(map[models.Category]string),
		Started:  time.Now(),
	}
	log := r.logger.With(zap.String("run_id", rep.RunID), zap.String("mode", string(mode)))
	defer func() {
		rep.Finished = time.Now()
		r.mu.Lock()
		r.last = rep
		r.mu.Unlock()
	}()

	cats := mode.Categories()
	if err := r.deps.Tracker.Start(ctx, cats); err != nil {
		return rep, fmt.Errorf("start run: %w", err)
	}
	log.Info("sync run started")

	if err := r.deps.Index.Prepare(ctx, mode); err != nil {
		return rep, r.abort(ctx, log, cats, fmt.Errorf("prepare staging: %w", err))
	}

	counts := newCounter()
	for _, cat := range cats {
		var err error
		switch cat {
		case models.CategoryWeb:
			err = r.syncWeb(ctx, log, counts)
		case models.CategoryTabular:
			err = r.syncTabular(ctx, log, counts)
		}
		if ctx.Err() != nil {
			return rep, r.abort(ctx, log, cats, ctx.Err())
		}
		if err != nil {
			rep.Failed[cat] = err.Error()
			log.Error("category failed", zap.String("category", string(cat)), zap.Error(err))
			if ferr := r.deps.Tracker.Fail(ctx, cat, err); ferr != nil {
				log.Warn("failed to record category failure", zap.Error(ferr))
			}
		}
	}
	rep.Passages = counts.snapshot()

	if len(rep.Failed) == len(cats) {
		if err := r.deps.Index.Discard(ctx); err != nil {
			log.Warn("failed to drop staging", zap.Error(err))
		}
		log.Error("sync run published nothing")
		return rep, ErrNothingPublished
	}
	for cat := range rep.Failed {
		if err := r.deps.Index.Keep(ctx, cat); err != nil {
			return rep, r.abort(ctx, log, cats, err)
		}
	}
	if err := r.deps.Index.Publish(ctx); err != nil {
		return rep, r.abort(ctx, log, cats, err)
	}
	rep.Published = true

	for _, cat := range cats {
		if _, failed := rep.Failed[cat]; failed {
			continue
		}
		if err := r.deps.Tracker.Succeed(ctx, cat); err != nil {
			log.Warn("failed to record success", zap.String("category", string(cat)), zap.Error(err))
		}
	}
	log.Info("sync run published",
		zap.Int("live_passages", r.deps.Index.Live().Len()),
		zap.Int("failed_categories", len(rep.Failed)))
	return rep, nil
}

// abort handles a run-fatal error: staging is dropped, live stays as it was,
// and every category still running moves to error.
func (r *Runner) abort(ctx context.Context, log *zap.Logger, cats []models.Category, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := r.deps.Index.Discard(ctx); err != nil {
		log.Warn("failed to drop staging", zap.Error(err))
	}
	for _, cat := range cats {
		err := r.deps.Tracker.Fail(ctx, cat, cause)
		if err != nil && !errors.Is(err, status.ErrNotRunning) {
			log.Warn("failed to record run failure", zap.String("category", string(cat)), zap.Error(err))
		}
	}
	log.Error("sync run aborted", zap.Error(cause))
	return cause
}

// store embeds one draft and inserts it into staging. A draft that cannot be
// embedded is skipped and reported through the returned error.
func (r *Runner) store(ctx context.Context, d models.Draft) error {
	vec, err := r.embed(ctx, d.EnrichedText())
	if err != nil {
		return fmt.Errorf("embed %q: %w", d.Title, err)
	}
	p := &models.Passage{Title: d.Title, Body: d.Body, Vector: vec, SourceTag: d.SourceTag}
	if err := r.deps.Index.Insert(ctx, p); err != nil {
		return fmt.Errorf("insert %q: %w", d.Title, err)
	}
	return nil
}

func (r *Runner) embed(ctx context.Context, text string) ([]float32, error) {
	if err := r.deps.Limiter.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.deps.Limiter.Release(1)
	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}
	return r.deps.Embedder.Embed(ctx, text)
}

type counter struct {
	mu sync.Mutex
	m  map[models.Category]int
}

func newCounter() *counter {
	return &counter{m: make(map[models.Category]int)}
}

func (c *counter) add(cat models.Category, n int) {
	c.mu.Lock()
	c.m[cat] += n
	c.mu.Unlock()
}

func (c *counter) snapshot() map[models.Category]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[models.Category]int, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out
}
