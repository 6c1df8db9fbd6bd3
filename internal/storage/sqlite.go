package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/sofim-uhk/sofim/internal/models"
)

// SQLiteStorage implements Storage using SQLite. Passage generations are plain
// tables and publish swaps them with ALTER TABLE RENAME inside one transaction.
type SQLiteStorage struct {
	db     *sql.DB
	path   string
	now    func() time.Time

	// beforeSwap runs inside the publish transaction after live has been moved
	// to backup and before staging becomes live. Tests use it to inject failures.
	beforeSwap func() error
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection serializes writers from the ingest workers and keeps
	// PRAGMA settings on the connection that runs every statement.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS sync_status (
		category TEXT PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'idle',
		total_items INTEGER NOT NULL DEFAULT 0,
		processed_items INTEGER NOT NULL DEFAULT 0,
		last_updated TIMESTAMP NULL,
		last_error TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS crawler_urls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := db.Exec(schema); err != nil {
		return err
	}
	for _, cat := range models.AllCategories {
		if _, err := db.Exec(`INSERT OR IGNORE INTO sync_status (category) VALUES (?)`, string(cat)); err != nil {
			return fmt.Errorf("failed to seed status for %s: %w", cat, err)
		}
	}
	return nil
}

// createGeneration creates an empty passage table. Index names are global in
// SQLite and follow a table through renames, so each generation gets its own.
func createGeneration(ctx context.Context, ex execer, gen Generation) error {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ddl := fmt.Sprintf(`
	CREATE TABLE %[1]s (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		vector BLOB NOT NULL,
		source_tag TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX idx_passages_%[2]s_source_tag ON %[1]s(source_tag);
	`, gen, suffix)
	_, err := ex.ExecContext(ctx, ddl)
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tableExists(ctx context.Context, q execer, gen Generation) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, string(gen),
	).Scan(&n)
	return n > 0, err
}

// HasGeneration reports whether the generation table exists.
func (s *SQLiteStorage) HasGeneration(ctx context.Context, gen Generation) (bool, error) {
	return tableExists(ctx, s.db, gen)
}

// PrepareStaging replaces any stale staging generation with a fresh one. With
// copyLive set and a live generation present, staging starts as a copy of live
// that keeps passage IDs.
func (s *SQLiteStorage) PrepareStaging(ctx context.Context, copyLive bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+string(GenerationStaging)); err != nil {
		return fmt.Errorf("failed to drop stale staging: %w", err)
	}
	if err := createGeneration(ctx, tx, GenerationStaging); err != nil {
		return fmt.Errorf("failed to create staging: %w", err)
	}
	if copyLive {
		hasLive, err := tableExists(ctx, tx, GenerationLive)
		if err != nil {
			return err
		}
		if hasLive {
			_, err := tx.ExecContext(ctx, fmt.Sprintf(
				`INSERT INTO %s (id, title, body, vector, source_tag, created_at)
				 SELECT id, title, body, vector, source_tag, created_at FROM %s ORDER BY id`,
				GenerationStaging, GenerationLive))
			if err != nil {
				return fmt.Errorf("failed to copy live into staging: %w", err)
			}
		}
	}
	return tx.Commit()
}

// DeleteStaging removes staged passages matching filter and returns how many were removed.
func (s *SQLiteStorage) DeleteStaging(ctx context.Context, filter TagFilter) (int64, error) {
	op := "="
	if filter.Exclude {
		op = "!="
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE source_tag %s ?`, GenerationStaging, op), filter.Tag)
	if err != nil {
		return 0, wrapMissing(err)
	}
	return res.RowsAffected()
}

// CarryOver replaces the staged passages matching filter with the live ones,
// so a category that failed keeps its previous content. Carried passages get
// new IDs. It returns the number of passages copied.
func (s *SQLiteStorage) CarryOver(ctx context.Context, filter TagFilter) (int64, error) {
	op := "="
	if filter.Exclude {
		op = "!="
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE source_tag %s ?`, GenerationStaging, op), filter.Tag); err != nil {
		return 0, wrapMissing(err)
	}
	hasLive, err := tableExists(ctx, tx, GenerationLive)
	if err != nil {
		return 0, err
	}
	var n int64
	if hasLive {
		res, err := tx.ExecContext(ctx, fmt.Sprintf(
			`INSERT INTO %s (title, body, vector, source_tag, created_at)
			 SELECT title, body, vector, source_tag, created_at FROM %s WHERE source_tag %s ? ORDER BY id`,
			GenerationStaging, GenerationLive, op), filter.Tag)
		if err != nil {
			return 0, fmt.Errorf("failed to carry live passages over: %w", err)
		}
		if n, err = res.RowsAffected(); err != nil {
			return 0, err
		}
	}
	return n, tx.Commit()
}

// InsertStaging writes one passage into staging and sets its ID and CreatedAt.
func (s *SQLiteStorage) InsertStaging(ctx context.Context, p *models.Passage) error {
	p.CreatedAt = s.now().UTC()
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (title, body, vector, source_tag, created_at) VALUES (?, ?, ?, ?, ?)`, GenerationStaging),
		p.Title, p.Body, encodeVector(p.Vector), p.SourceTag, p.CreatedAt,
	)
	if err != nil {
		return wrapMissing(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = id
	return nil
}

// DropStaging discards the staging generation, if any.
func (s *SQLiteStorage) DropStaging(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+string(GenerationStaging))
	return err
}

// Publish makes staging the live generation. Inside one transaction live is
// renamed to backup and staging to live; the backup is dropped after commit.
// A failure before commit rolls back both renames.
func (s *SQLiteStorage) Publish(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	hasStaging, err := tableExists(ctx, tx, GenerationStaging)
	if err != nil {
		return err
	}
	if !hasStaging {
		return ErrNoStaging
	}
	hasLive, err := tableExists(ctx, tx, GenerationLive)
	if err != nil {
		return err
	}
	if hasLive {
		if _, err := tx.ExecContext(ctx, `DROP TABLE IF EXISTS `+string(GenerationBackup)); err != nil {
			return fmt.Errorf("failed to clear old backup: %w", err)
		}
		if err := rename(ctx, tx, GenerationLive, GenerationBackup); err != nil {
			return err
		}
	}
	if s.beforeSwap != nil {
		if err := s.beforeSwap(); err != nil {
			return fmt.Errorf("publish aborted: %w", err)
		}
	}
	if err := rename(ctx, tx, GenerationStaging, GenerationLive); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit publish: %w", err)
	}

	// The new generation is live; a leftover backup is cleaned up by Recover.
	if _, err := s.db.ExecContext(ctx, `DROP TABLE IF EXISTS `+string(GenerationBackup)); err != nil {
		return fmt.Errorf("published, but failed to drop backup: %w", err)
	}
	return nil
}

func rename(ctx context.Context, ex execer, from, to Generation) error {
	if _, err := ex.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s RENAME TO %s`, from, to)); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", from, to, err)
	}
	return nil
}

// Recover resolves a backup generation left behind by an interrupted publish.
// If live exists the backup is stale and dropped; otherwise the backup is the
// last complete generation and is restored as live.
func (s *SQLiteStorage) Recover(ctx context.Context) (Recovery, error) {
	hasBackup, err := s.HasGeneration(ctx, GenerationBackup)
	if err != nil || !hasBackup {
		return RecoveryNone, err
	}
	hasLive, err := s.HasGeneration(ctx, GenerationLive)
	if err != nil {
		return RecoveryNone, err
	}
	if hasLive {
		if _, err := s.db.ExecContext(ctx, `DROP TABLE `+string(GenerationBackup)); err != nil {
			return RecoveryNone, fmt.Errorf("failed to drop stale backup: %w", err)
		}
		return RecoveryDropped, nil
	}
	if err := rename(ctx, s.db, GenerationBackup, GenerationLive); err != nil {
		return RecoveryNone, err
	}
	return RecoveryRestored, nil
}

// LoadLive returns every live passage ordered by ID. A missing live generation yields nil.
func (s *SQLiteStorage) LoadLive(ctx context.Context) ([]*models.Passage, error) {
	hasLive, err := s.HasGeneration(ctx, GenerationLive)
	if err != nil || !hasLive {
		return nil, err
	}
	return s.loadPassages(ctx, GenerationLive)
}

func (s *SQLiteStorage) loadPassages(ctx context.Context, gen Generation) ([]*models.Passage, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT id, title, body, vector, source_tag, created_at FROM %s ORDER BY id`, gen))
	if err != nil {
		return nil, wrapMissing(err)
	}
	defer rows.Close()

	var out []*models.Passage
	for rows.Next() {
		var p models.Passage
		var blob []byte
		if err := rows.Scan(&p.ID, &p.Title, &p.Body, &blob, &p.SourceTag, &p.CreatedAt); err != nil {
			return nil, err
		}
		if p.Vector, err = decodeVector(blob); err != nil {
			return nil, fmt.Errorf("passage %d: %w", p.ID, err)
		}
		out = append(out, &p)
	}
	return out, rows.Err()
}

// CountPassages returns the number of passages in a generation, or 0 if it does not exist.
func (s *SQLiteStorage) CountPassages(ctx context.Context, gen Generation) (int64, error) {
	ok, err := s.HasGeneration(ctx, gen)
	if err != nil || !ok {
		return 0, err
	}
	var count int64
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+string(gen)).Scan(&count)
	return count, err
}

// GetStatus returns the status record of one category.
func (s *SQLiteStorage) GetStatus(ctx context.Context, cat models.Category) (*models.SyncStatus, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT category, status, total_items, processed_items, last_updated, last_error
		 FROM sync_status WHERE category = ?`, string(cat))
	st, err := scanStatus(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("status %s: %w", cat, ErrNotFound)
	}
	return st, err
}

// ListStatus returns every status record ordered by category.
func (s *SQLiteStorage) ListStatus(ctx context.Context) ([]*models.SyncStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, status, total_items, processed_items, last_updated, last_error
		 FROM sync_status ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.SyncStatus
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStatus(r scanner) (*models.SyncStatus, error) {
	var st models.SyncStatus
	var cat, state string
	var updated sql.NullTime
	if err := r.Scan(&cat, &state, &st.TotalItems, &st.ProcessedItems, &updated, &st.LastError); err != nil {
		return nil, err
	}
	st.Category = models.Category(cat)
	st.Status = models.SyncState(state)
	if updated.Valid {
		t := updated.Time
		st.LastUpdated = &t
	}
	return &st, nil
}

// SaveStatus upserts a status record.
func (s *SQLiteStorage) SaveStatus(ctx context.Context, st *models.SyncStatus) error {
	var updated any
	if st.LastUpdated != nil {
		updated = st.LastUpdated.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_status (category, status, total_items, processed_items, last_updated, last_error)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(category) DO UPDATE SET
		   status = excluded.status,
		   total_items = excluded.total_items,
		   processed_items = excluded.processed_items,
		   last_updated = excluded.last_updated,
		   last_error = excluded.last_error`,
		string(st.Category), string(st.Status), st.TotalItems, st.ProcessedItems, updated, st.LastError,
	)
	return err
}

// ListSources returns the seed URL list ordered by ID.
func (s *SQLiteStorage) ListSources(ctx context.Context) ([]*models.Source, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, url FROM crawler_urls ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Source
	for rows.Next() {
		var src models.Source
		if err := rows.Scan(&src.ID, &src.URL); err != nil {
			return nil, err
		}
		out = append(out, &src)
	}
	return out, rows.Err()
}

// AddSource appends a seed URL. Adding a URL twice returns ErrDuplicate.
func (s *SQLiteStorage) AddSource(ctx context.Context, url string) (*models.Source, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO crawler_urls (url) VALUES (?)`, url)
	if err != nil {
		var serr sqlite3.Error
		if errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return nil, fmt.Errorf("source %s: %w", url, ErrDuplicate)
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Source{ID: id, URL: url}, nil
}

// DeleteSource removes a seed URL by ID.
func (s *SQLiteStorage) DeleteSource(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM crawler_urls WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("source %d: %w", id, ErrNotFound)
	}
	return nil
}

// DiskUsage returns the size of the database file and its WAL sidecars.
func (s *SQLiteStorage) DiskUsage() (int64, error) {
	return DiskUsageBytes(databaseFiles(s.path)...)
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func wrapMissing(err error) error {
	if err != nil && strings.Contains(err.Error(), "no such table: "+string(GenerationStaging)) {
		return fmt.Errorf("%w: %v", ErrNoStaging, err)
	}
	return err
}
