package store

import "fmt"

// Store defines the interface for run ledger persistence.
// Implementations must be thread-safe.
//
// Error handling conventions:
//   - Return nil error on success
//   - Return ErrNotFound if a run doesn't exist (for Load/Delete)
//   - Wrap underlying errors with context using fmt.Errorf("context: %w", err)
type Store interface {
	// SaveRun validates and saves a run record, overwriting any record with the same ID.
	SaveRun(run *RunRecord) error

	// LoadRun retrieves a run record.
	// Returns ErrNotFound if no run exists for this ID.
	LoadRun(id string) (*RunRecord, error)

	// ListRuns returns metadata for all runs, newest first.
	ListRuns() ([]RunInfo, error)

	// DeleteRun removes a run record and its artifacts (trace.jsonl).
	// Returns ErrNotFound if no run exists for this ID.
	DeleteRun(id string) error

	// BaseDir is the root under which run artifacts live (<BaseDir>/runs/<id>/).
	BaseDir() string

	Close() error
}

// Open returns the store for the given driver: "fs" (a directory) or
// "sqlite" (a database file; artifacts go next to it).
func Open(driver, path string) (Store, error) {
	switch driver {
	case "", "fs":
		return NewFSStore(path)
	case "sqlite":
		return NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown store driver: %s (valid: fs, sqlite)", driver)
	}
}

// ErrNotFound is returned when a requested run does not exist.
// Use errors.Is(err, ErrNotFound) to check for this error.
var ErrNotFound = &NotFoundError{}

// NotFoundError represents a missing run.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return "run not found: " + e.ID
	}
	return "run not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
