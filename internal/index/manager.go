// Package index manages the live passage generation and its zero-downtime rebuild.
package index

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/keyword"
	"github.com/sofim-uhk/sofim/internal/models"
	"github.com/sofim-uhk/sofim/internal/storage"
)

// Snapshot is an immutable view of the live generation.
type Snapshot struct {
	Passages []*models.Passage
	// Keyword is nil when keyword indexing is disabled or failed to build.
	Keyword  keyword.Index
	LoadedAt time.Time
}

// Len returns the number of live passages.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Passages)
}

// Passage returns the live passage with the given id.
func (s *Snapshot) Passage(id int64) (*models.Passage, bool) {
	if s == nil {
		return nil, false
	}
	for _, p := range s.Passages {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Manager builds staging generations and swaps them live. Readers call Live
// without locking; a publish replaces the snapshot with a single atomic store.
type Manager struct {
	store      storage.Storage
	tabularTag string
	keyword    bool
	logger     *zap.Logger
	now        func() time.Time

	live atomic.Pointer[Snapshot]
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithKeywordIndex enables building an in-memory keyword index per snapshot.
func WithKeywordIndex(enabled bool) Option {
	return func(m *Manager) { m.keyword = enabled }
}

// NewManager creates a manager. tabularTag is the source tag carried by every
// tabular passage; it separates the two categories during partial refresh.
func NewManager(store storage.Storage, tabularTag string, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		tabularTag: tabularTag,
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	m.live.Store(&Snapshot{LoadedAt: m.now()})
	return m
}

// Open resolves a publish interrupted by a crash, then loads the live generation.
func (m *Manager) Open(ctx context.Context) error {
	rec, err := m.store.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover generations: %w", err)
	}
	if rec != storage.RecoveryNone {
		m.logger.Warn("recovered interrupted publish", zap.String("action", string(rec)))
	}
	return m.Reload(ctx)
}

// Live returns the current live snapshot.
func (m *Manager) Live() *Snapshot {
	return m.live.Load()
}

// Reload reads the live generation from storage and swaps it in.
func (m *Manager) Reload(ctx context.Context) error {
	passages, err := m.store.LoadLive(ctx)
	if err != nil {
		return fmt.Errorf("load live generation: %w", err)
	}
	snap := &Snapshot{Passages: passages, LoadedAt: m.now()}
	if m.keyword {
		idx, err := keyword.Build(passages)
		if err != nil {
			m.logger.Warn("keyword index unavailable", zap.Error(err))
		} else {
			snap.Keyword = idx
		}
	}
	// The previous keyword index is left to the garbage collector; readers may still hold it.
	m.live.Store(snap)
	m.logger.Info("live generation loaded", zap.Int("passages", len(passages)))
	return nil
}

// Close releases the live keyword index. The manager must not be used afterwards.
func (m *Manager) Close() error {
	snap := m.live.Swap(&Snapshot{LoadedAt: m.now()})
	if snap != nil && snap.Keyword != nil {
		return snap.Keyword.Close()
	}
	return nil
}

// Filter returns the source tag filter selecting a category's passages.
func (m *Manager) Filter(cat models.Category) storage.TagFilter {
	if cat == models.CategoryTabular {
		return storage.TagFilter{Tag: m.tabularTag}
	}
	return storage.TagFilter{Tag: m.tabularTag, Exclude: true}
}

// Prepare creates the staging generation for a run. A full run, or any run
// without a live generation, starts from an empty staging. A partial run
// copies live and removes the refreshed categories.
func (m *Manager) Prepare(ctx context.Context, mode models.Mode) error {
	hasLive, err := m.store.HasGeneration(ctx, storage.GenerationLive)
	if err != nil {
		return err
	}
	partial := mode.Partial() && hasLive
	if err := m.store.PrepareStaging(ctx, partial); err != nil {
		return err
	}
	if !partial {
		return nil
	}
	for _, cat := range mode.Categories() {
		n, err := m.store.DeleteStaging(ctx, m.Filter(cat))
		if err != nil {
			return fmt.Errorf("clear %s from staging: %w", cat, err)
		}
		m.logger.Debug("cleared category from staging", zap.String("category", string(cat)), zap.Int64("passages", n))
	}
	return nil
}

// Insert stores one passage in staging immediately.
func (m *Manager) Insert(ctx context.Context, p *models.Passage) error {
	return m.store.InsertStaging(ctx, p)
}

// Keep restores a category's live passages into staging after the category failed.
func (m *Manager) Keep(ctx context.Context, cat models.Category) error {
	n, err := m.store.CarryOver(ctx, m.Filter(cat))
	if err != nil {
		return fmt.Errorf("keep %s passages: %w", cat, err)
	}
	m.logger.Info("kept previous passages of failed category", zap.String("category", string(cat)), zap.Int64("passages", n))
	return nil
}

// Discard drops the staging generation without touching live.
func (m *Manager) Discard(ctx context.Context) error {
	return m.store.DropStaging(ctx)
}

// Publish swaps staging live in one transaction and reloads the snapshot.
func (m *Manager) Publish(ctx context.Context) error {
	if err := m.store.Publish(ctx); err != nil {
		return fmt.Errorf("publish staging: %w", err)
	}
	return m.Reload(ctx)
}
