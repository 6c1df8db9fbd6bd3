package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/fetch"
	"github.com/sofim-uhk/sofim/internal/models"
)

// ErrNoTabularSource is returned by a tabular sync without a configured file.
var ErrNoTabularSource = errors.New("no tabular source configured")

// syncTabular reads the tabular file and stores one passage per row. An
// unreadable file fails the category.
func (r *Runner) syncTabular(ctx context.Context, log *zap.Logger, counts *counter) error {
	cat := models.CategoryTabular
	tc := r.cfg.Sources.Tabular
	if tc.Path == "" {
		return ErrNoTabularSource
	}
	table, err := fetch.ReadTable(tc.Path, fetch.TabularOptions{
		HeaderKeywords: tc.HeaderKeywords,
		HeaderScanRows: tc.HeaderScanRows,
		Encodings:      tc.Encodings,
	})
	if err != nil {
		return err
	}
	drafts, skipped := r.deps.Rows.Chunk(table)
	log.Info("tabular sync",
		zap.String("path", tc.Path),
		zap.String("encoding", table.Encoding),
		zap.Int("rows", len(table.Rows)),
		zap.Int("skipped_rows", skipped))
	if err := r.deps.Tracker.SetTotal(ctx, cat, len(drafts)); err != nil {
		return err
	}

	pool, err := ants.NewPool(r.workers())
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, d := range drafts {
		d := d
		wg.Add(1)
		task := func() {
			defer wg.Done()
			itemErr := r.store(ctx, d)
			if itemErr == nil {
				counts.add(cat, 1)
			}
			if err := r.deps.Tracker.Advance(ctx, cat, d.Title, itemErr); err != nil {
				log.Warn("failed to record progress", zap.Error(err))
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			_ = r.deps.Tracker.Advance(ctx, cat, d.Title, err)
		}
	}
	wg.Wait()
	return nil
}
