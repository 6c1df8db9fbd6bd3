package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/sofim-uhk/sofim/internal/fetch"
	"github.com/sofim-uhk/sofim/internal/models"
)

// seedURLs merges configured seeds with the operator source list, de-duplicated in order.
func (r *Runner) seedURLs(ctx context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(u string) {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		out = append(out, u)
	}
	for _, u := range r.cfg.Sources.SeedURLs {
		add(u)
	}
	if r.deps.Sources != nil {
		sources, err := r.deps.Sources.ListSources(ctx)
		if err != nil {
			return nil, fmt.Errorf("list sources: %w", err)
		}
		for _, s := range sources {
			add(s.URL)
		}
	}
	return out, nil
}

// syncWeb ingests every seed URL on a bounded worker pool. Failing URLs are
// item errors; only an unreadable source list fails the category.
func (r *Runner) syncWeb(ctx context.Context, log *zap.Logger, counts *counter) error {
	cat := models.CategoryWeb
	urls, err := r.seedURLs(ctx)
	if err != nil {
		return err
	}
	if err := r.deps.Tracker.SetTotal(ctx, cat, len(urls)); err != nil {
		return err
	}
	log.Info("web sync", zap.Int("urls", len(urls)))

	pool, err := ants.NewPool(r.workers())
	if err != nil {
		return fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for _, u := range urls {
		u := u
		wg.Add(1)
		task := func() {
			defer wg.Done()
			n, itemErr := r.ingestURL(ctx, log, u)
			counts.add(cat, n)
			if itemErr != nil {
				log.Warn("url failed", zap.String("url", u), zap.Error(itemErr))
			}
			if err := r.deps.Tracker.Advance(ctx, cat, u, itemErr); err != nil {
				log.Warn("failed to record progress", zap.Error(err))
			}
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			_ = r.deps.Tracker.Advance(ctx, cat, u, err)
		}
	}
	wg.Wait()
	return nil
}

// ingestURL fetches one seed page and the documents it links to. It returns
// the number of stored passages; the error reports the page itself failing.
// Failing documents are logged against the category without failing the page.
func (r *Runner) ingestURL(ctx context.Context, log *zap.Logger, rawURL string) (int, error) {
	page, err := r.deps.Fetcher.FetchPage(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	stored := 0
	if page.Text != "" {
		n, err := r.ingestText(ctx, page.URL, page.Title, page.Text)
		stored += n
		if err != nil {
			return stored, err
		}
	} else {
		log.Debug("page has no usable text", zap.String("url", rawURL))
	}

	for _, link := range page.DocumentLinks {
		if ctx.Err() != nil {
			return stored, ctx.Err()
		}
		doc, err := r.deps.Fetcher.FetchDocument(ctx, link)
		if errors.Is(err, fetch.ErrNoUsableText) {
			log.Debug("document discarded", zap.String("url", link), zap.Error(err))
			continue
		}
		if err == nil {
			var n int
			n, err = r.ingestText(ctx, doc.URL, documentTitle(page.Title, doc.URL), doc.Text)
			stored += n
		}
		if err != nil {
			log.Warn("document failed", zap.String("url", link), zap.Error(err))
			if rerr := r.deps.Tracker.RecordError(ctx, models.CategoryWeb, link, err); rerr != nil {
				log.Warn("failed to record error", zap.Error(rerr))
			}
		}
	}
	return stored, nil
}

// ingestText chunks a document and stores every draft. Drafts that fail to
// embed are skipped; an error is returned only if nothing was stored.
func (r *Runner) ingestText(ctx context.Context, source, title, text string) (int, error) {
	drafts, err := r.deps.Chunker.Chunk(ctx, source, title, text)
	if err != nil {
		return 0, err
	}
	stored := 0
	var lastErr error
	for _, d := range drafts {
		if err := r.store(ctx, d); err != nil {
			lastErr = err
			r.logger.Warn("passage skipped", zap.String("source", source), zap.Error(err))
			continue
		}
		stored++
	}
	if stored == 0 && lastErr != nil {
		return 0, lastErr
	}
	return stored, nil
}

func documentTitle(pageTitle, docURL string) string {
	name := docURL
	if i := strings.LastIndex(strings.TrimRight(docURL, "/"), "/"); i >= 0 {
		name = strings.TrimRight(docURL, "/")[i+1:]
	}
	if pageTitle == "" {
		return name
	}
	return pageTitle + " - " + name
}

func (r *Runner) workers() int {
	if r.cfg.Ingest.Workers > 0 {
		return r.cfg.Ingest.Workers
	}
	return 1
}
