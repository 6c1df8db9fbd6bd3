package models

import (
	"fmt"
	"strings"
	"time"
)

// Category identifies a source category that can be refreshed independently.
type Category string

const (
	CategoryWeb     Category = "web"
	CategoryTabular Category = "tabular"
)

// AllCategories lists every category in a stable order.
var AllCategories = []Category{CategoryWeb, CategoryTabular}

// Mode selects which categories an ingest run refreshes.
type Mode string

const (
	ModeFull    Mode = "full"
	ModeWeb     Mode = "web"
	ModeTabular Mode = "tabular"
)

// ParseMode accepts the canonical mode names and the legacy aliases "all" and "csv".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "all":
		return ModeFull, nil
	case "web":
		return ModeWeb, nil
	case "tabular", "csv":
		return ModeTabular, nil
	}
	return "", fmt.Errorf("unknown sync mode %q (want full, web or tabular)", s)
}

// Categories returns the categories refreshed by the mode.
func (m Mode) Categories() []Category {
	switch m {
	case ModeWeb:
		return []Category{CategoryWeb}
	case ModeTabular:
		return []Category{CategoryTabular}
	}
	return AllCategories
}

// Partial reports whether staging starts as a copy of the live generation.
func (m Mode) Partial() bool {
	return m != ModeFull
}

// SyncState is the lifecycle state of a category's most recent run.
type SyncState string

const (
	StateIdle    SyncState = "idle"
	StateRunning SyncState = "running"
	StateSuccess SyncState = "success"
	StateError   SyncState = "error"
)

// SyncStatus is the persisted progress record for one category.
type SyncStatus struct {
	Category       Category   `json:"category" db:"category"`
	Status         SyncState  `json:"status" db:"status"`
	TotalItems     int        `json:"total_items" db:"total_items"`
	ProcessedItems int        `json:"processed_items" db:"processed_items"`
	LastUpdated    *time.Time `json:"last_updated,omitempty" db:"last_updated"`
	LastError      string     `json:"last_error" db:"last_error"`
}

// ErrorLines splits the accumulated error log into entries.
func (s SyncStatus) ErrorLines() []string {
	if strings.TrimSpace(s.LastError) == "" {
		return nil
	}
	return strings.Split(s.LastError, "\n")
}
