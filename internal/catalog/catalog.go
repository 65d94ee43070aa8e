// Package catalog records the history of atlas builder runs.
package catalog

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for catalog operations.
var (
	ErrNotFound      = errors.New("run not found")
	ErrAlreadyExists = errors.New("run already exists")
	ErrLockTimeout   = errors.New("failed to acquire catalog lock")
)

// Status is the state of a run.
type Status string

const (
	StatusRunning     Status = "running"
	StatusSucceeded   Status = "succeeded"
	StatusFailed      Status = "failed"
	StatusInterrupted Status = "interrupted"
)

// Entry is one recorded builder run.
type Entry struct {
	ID         string    `json:"id"`      // Run name, also the log file name
	Builder    string    `json:"builder"` // Executable that was started
	InputFiles []string  `json:"input_files"`
	Args       int       `json:"args"` // Lines in the response file
	LogPath    string    `json:"log_path"`
	Status     Status    `json:"status"`
	ExitCode   int       `json:"exit_code"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// Duration returns how long the run took, or zero while it is running.
func (e *Entry) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return 0
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// Finish records the outcome of a run.
func (e *Entry) Finish(status Status, exitCode int, err error, at time.Time) {
	e.Status = status
	e.ExitCode = exitCode
	e.FinishedAt = at
	if err != nil {
		e.Error = err.Error()
	}
}

// ListFilter filters catalog queries.
type ListFilter struct {
	Status Status // empty = all
}

// Store provides persistent storage for run entries.
type Store interface {
	// Add records a new run.
	// Returns ErrAlreadyExists if a run with the same ID is recorded.
	Add(ctx context.Context, entry Entry) error

	// Get retrieves a run by ID.
	// Returns ErrNotFound if not found.
	Get(ctx context.Context, id string) (*Entry, error)

	// Update replaces an existing run.
	// Returns ErrNotFound if not found.
	Update(ctx context.Context, entry Entry) error

	// Remove deletes runs by ID, ignoring IDs that are not recorded.
	Remove(ctx context.Context, ids ...string) error

	// List returns matching runs, most recently started first.
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}
