// Package status tracks per-category ingest progress and persists it on every change.
package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/models"
)

// ErrNotRunning is returned when a running-only transition is applied to an idle or finished category.
var ErrNotRunning = errors.New("category is not running")

// Store persists status records.
type Store interface {
	GetStatus(ctx context.Context, cat models.Category) (*models.SyncStatus, error)
	ListStatus(ctx context.Context) ([]*models.SyncStatus, error)
	SaveStatus(ctx context.Context, s *models.SyncStatus) error
}

// Tracker owns the status records. Transitions follow idle -> running -> success|error;
// item errors append to the log without leaving running.
type Tracker struct {
	mu     sync.Mutex
	store  Store
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// WithClock overrides the time source used for last_updated.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// NewTracker returns a tracker backed by store.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{store: store, logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Start moves each category to running and clears its counters and error log.
func (t *Tracker) Start(ctx context.Context, cats []models.Category) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, cat := range cats {
		st, err := t.load(ctx, cat)
		if err != nil {
			return err
		}
		st.Status = models.StateRunning
		st.TotalItems = 0
		st.ProcessedItems = 0
		st.LastError = ""
		if err := t.store.SaveStatus(ctx, st); err != nil {
			return fmt.Errorf("failed to start %s: %w", cat, err)
		}
	}
	return nil
}

// SetTotal records how many items the category will process.
func (t *Tracker) SetTotal(ctx context.Context, cat models.Category, total int) error {
	return t.update(ctx, cat, func(st *models.SyncStatus) {
		st.TotalItems = total
	})
}

// Advance marks one item processed. A non-nil itemErr is appended to the error log
// and the category stays running.
func (t *Tracker) Advance(ctx context.Context, cat models.Category, item string, itemErr error) error {
	return t.update(ctx, cat, func(st *models.SyncStatus) {
		st.ProcessedItems++
		if itemErr != nil {
			appendError(st, item, itemErr)
		}
	})
}

// RecordError appends to the error log without counting an item.
func (t *Tracker) RecordError(ctx context.Context, cat models.Category, item string, err error) error {
	return t.update(ctx, cat, func(st *models.SyncStatus) {
		appendError(st, item, err)
	})
}

// Fail moves a running category to error.
func (t *Tracker) Fail(ctx context.Context, cat models.Category, cause error) error {
	return t.update(ctx, cat, func(st *models.SyncStatus) {
		st.Status = models.StateError
		if cause != nil {
			appendError(st, string(cat), cause)
		}
	})
}

// Succeed moves a running category to success and stamps last_updated.
func (t *Tracker) Succeed(ctx context.Context, cat models.Category) error {
	return t.update(ctx, cat, func(st *models.SyncStatus) {
		st.Status = models.StateSuccess
		now := t.now().UTC()
		st.LastUpdated = &now
	})
}

// Status returns the record of one category.
func (t *Tracker) Status(ctx context.Context, cat models.Category) (*models.SyncStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.load(ctx, cat)
}

// Snapshot returns every record.
func (t *Tracker) Snapshot(ctx context.Context) ([]*models.SyncStatus, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.ListStatus(ctx)
}

// AnyRunning reports whether any category is currently running.
func (t *Tracker) AnyRunning(ctx context.Context) (bool, error) {
	list, err := t.Snapshot(ctx)
	if err != nil {
		return false, err
	}
	for _, st := range list {
		if st.Status == models.StateRunning {
			return true, nil
		}
	}
	return false, nil
}

// ResetInterrupted marks categories left running by a previous process as failed.
// It returns the categories that were reset.
func (t *Tracker) ResetInterrupted(ctx context.Context) ([]models.Category, error) {
	list, err := t.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var reset []models.Category
	for _, st := range list {
		if st.Status != models.StateRunning {
			continue
		}
		if err := t.Fail(ctx, st.Category, errors.New("run interrupted before completion")); err != nil {
			return reset, err
		}
		t.logger.Warn("marked interrupted run as failed", zap.String("category", string(st.Category)))
		reset = append(reset, st.Category)
	}
	return reset, nil
}

func (t *Tracker) update(ctx context.Context, cat models.Category, fn func(*models.SyncStatus)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, err := t.load(ctx, cat)
	if err != nil {
		return err
	}
	if st.Status != models.StateRunning {
		return fmt.Errorf("%s is %s: %w", cat, st.Status, ErrNotRunning)
	}
	fn(st)
	if err := t.store.SaveStatus(ctx, st); err != nil {
		t.logger.Warn("failed to persist status", zap.String("category", string(cat)), zap.Error(err))
		return fmt.Errorf("failed to save %s status: %w", cat, err)
	}
	return nil
}

func (t *Tracker) load(ctx context.Context, cat models.Category) (*models.SyncStatus, error) {
	st, err := t.store.GetStatus(ctx, cat)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s status: %w", cat, err)
	}
	return st, nil
}

func appendError(st *models.SyncStatus, item string, err error) {
	line := strings.ReplaceAll(err.Error(), "\n", " ")
	if item != "" {
		line = item + ": " + line
	}
	if st.LastError == "" {
		st.LastError = line
		return
	}
	st.LastError += "\n" + line
}
