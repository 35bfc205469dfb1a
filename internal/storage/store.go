// Package storage keeps a ledger of tool runs and the outcome of every item
// (converted file or synced entry) processed during a run.
package storage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Item statuses.
const (
	StatusOK      = "ok"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
	StatusDryRun  = "dry-run"
)

// Run is a single invocation of a tool.
type Run struct {
	ID          uuid.UUID
	Tool        string
	StartTime   time.Time
	EndTime     *time.Time
	Source      string
	Destination string
	Succeeded   int
	Failed      int
}

// Item is the outcome of processing one input.
type Item struct {
	RunID     uuid.UUID
	Path      string
	Status    string
	ErrorKind string
	Message   string
	Sweeps    int
	Channels  int
	Outputs   []string
	Bytes     int64
	Duration  time.Duration
	Timestamp time.Time
}

// Store records runs and their items. Implementations are safe for
// concurrent use.
type Store interface {
	// StartRun creates and persists a new run.
	StartRun(ctx context.Context, tool, source, destination string) (*Run, error)

	// RecordItem persists the outcome of one item of a run.
	RecordItem(ctx context.Context, item *Item) error

	// FinishRun stamps the run end time and its success and failure counts.
	FinishRun(ctx context.Context, run *Run) error

	// Runs returns all runs ordered by start time.
	Runs(ctx context.Context) ([]*Run, error)

	// Items returns the items of a run in the order they were recorded.
	Items(ctx context.Context, runID uuid.UUID) ([]*Item, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}
