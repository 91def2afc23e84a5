package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id           TEXT PRIMARY KEY,
	kind         TEXT NOT NULL,
	filter       TEXT NOT NULL,
	params       TEXT NOT NULL,
	rmse         REAL NOT NULL,
	initial_rmse REAL NOT NULL,
	images       INTEGER NOT NULL,
	timestamp    TEXT NOT NULL,
	config       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
`

// SQLiteStore implements the Store interface on a single SQLite database.
// Run artifacts (trace.jsonl) go to <dir of db>/runs/<id>/.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	baseDir string
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, baseDir: dir}, nil
}

// BaseDir returns the directory holding the database.
func (s *SQLiteStore) BaseDir() string {
	return s.baseDir
}

// SaveRun inserts or replaces a run record.
func (s *SQLiteStore) SaveRun(run *RunRecord) error {
	if run == nil {
		return fmt.Errorf("run cannot be nil")
	}
	if err := run.Validate(); err != nil {
		return err
	}

	params, err := json.Marshal(run.Params)
	if err != nil {
		return fmt.Errorf("failed to serialize params: %w", err)
	}
	config, err := json.Marshal(run.Config)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (id, kind, filter, params, rmse, initial_rmse, images, timestamp, config)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			filter = excluded.filter,
			params = excluded.params,
			rmse = excluded.rmse,
			initial_rmse = excluded.initial_rmse,
			images = excluded.images,
			timestamp = excluded.timestamp,
			config = excluded.config`,
		run.ID, run.Kind, run.Filter, string(params), run.RMSE, run.InitialRMSE, run.Images,
		run.Timestamp.UTC().Format(time.RFC3339Nano), string(config),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	slog.Debug("Run saved", "id", run.ID, "kind", run.Kind, "db", s.path)
	return nil
}

// LoadRun retrieves a run record.
func (s *SQLiteStore) LoadRun(id string) (*RunRecord, error) {
	if id == "" {
		return nil, fmt.Errorf("id cannot be empty")
	}

	var (
		run            RunRecord
		params, config string
		ts             string
	)
	err := s.db.QueryRow(`
		SELECT id, kind, filter, params, rmse, initial_rmse, images, timestamp, config
		FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.Kind, &run.Filter, &params, &run.RMSE, &run.InitialRMSE, &run.Images, &ts, &config)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{ID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}

	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return nil, fmt.Errorf("failed to deserialize params: %w", err)
	}
	if err := json.Unmarshal([]byte(config), &run.Config); err != nil {
		return nil, fmt.Errorf("failed to deserialize config: %w", err)
	}
	if run.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
		return nil, fmt.Errorf("failed to parse timestamp: %w", err)
	}

	return &run, nil
}

// ListRuns returns metadata for all runs, newest first.
func (s *SQLiteStore) ListRuns() ([]RunInfo, error) {
	rows, err := s.db.Query(`SELECT id, kind, filter, rmse, images, timestamp FROM runs`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	infos := []RunInfo{}
	for rows.Next() {
		var info RunInfo
		var ts string
		if err := rows.Scan(&info.ID, &info.Kind, &info.Filter, &info.RMSE, &info.Images, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if info.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			slog.Warn("Skipping run with bad timestamp", "id", info.ID, "error", err)
			continue
		}
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	sortNewestFirst(infos)
	return infos, nil
}

// DeleteRun removes the run row and its artifact directory.
func (s *SQLiteStore) DeleteRun(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}

	res, err := s.db.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n == 0 {
		return &NotFoundError{ID: id}
	}

	if err := os.RemoveAll(filepath.Join(s.baseDir, "runs", id)); err != nil {
		return fmt.Errorf("failed to remove run artifacts: %w", err)
	}

	slog.Debug("Run deleted", "id", id, "db", s.path)
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
