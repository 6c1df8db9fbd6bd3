// Package storage persists passage generations, sync status records, and the seed URL list.
package storage

import (
	"context"
	"errors"

	"github.com/sofim-uhk/sofim/internal/models"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoStaging is returned when publishing or populating without a prepared staging generation.
	ErrNoStaging = errors.New("no staging generation")
	// ErrDuplicate is returned when adding a seed URL that is already listed.
	ErrDuplicate = errors.New("duplicate")
)

// Generation names one of the three passage tables of the rotation contract.
type Generation string

const (
	GenerationLive    Generation = "passages_live"
	GenerationStaging Generation = "passages_staging"
	GenerationBackup  Generation = "passages_backup"
)

// TagFilter selects passages by source tag. With Exclude set it matches every
// passage whose tag differs from Tag.
type TagFilter struct {
	Tag     string
	Exclude bool
}

// Recovery describes what startup recovery did with a leftover backup generation.
type Recovery string

const (
	RecoveryNone     Recovery = "none"
	RecoveryDropped  Recovery = "dropped_backup"
	RecoveryRestored Recovery = "restored_backup"
)

// Storage defines generation, status and source list persistence.
type Storage interface {
	// Generation operations
	HasGeneration(ctx context.Context, gen Generation) (bool, error)
	PrepareStaging(ctx context.Context, copyLive bool) error
	DeleteStaging(ctx context.Context, filter TagFilter) (int64, error)
	CarryOver(ctx context.Context, filter TagFilter) (int64, error)
	InsertStaging(ctx context.Context, p *models.Passage) error
	DropStaging(ctx context.Context) error
	Publish(ctx context.Context) error
	Recover(ctx context.Context) (Recovery, error)
	LoadLive(ctx context.Context) ([]*models.Passage, error)
	CountPassages(ctx context.Context, gen Generation) (int64, error)

	// Sync status operations
	GetStatus(ctx context.Context, cat models.Category) (*models.SyncStatus, error)
	ListStatus(ctx context.Context) ([]*models.SyncStatus, error)
	SaveStatus(ctx context.Context, s *models.SyncStatus) error

	// Source list operations
	ListSources(ctx context.Context) ([]*models.Source, error)
	AddSource(ctx context.Context, url string) (*models.Source, error)
	DeleteSource(ctx context.Context, id int64) error

	// Stats
	DiskUsage() (int64, error)

	Close() error
}
