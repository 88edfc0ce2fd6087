// Package history keeps a local SQLite ledger of completed sync runs. The
// ledger is reporting-only: the engine never reads it back, so the Notion
// destination remains the sole source of truth for reconciliation.
package history

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Run is one recorded sync run.
type Run struct {
	ID        string
	Window    string
	Status    string
	Created   int
	Updated   int
	Skipped   int
	Failed    int
	Error     string
	StartedAt time.Time
	Duration  time.Duration
}

// Run statuses.
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// Store persists runs in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the ledger database at path.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database schema
func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		window TEXT NOT NULL,
		status TEXT NOT NULL,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_window ON runs(window);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
	`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// Record inserts one completed run.
func (s *Store) Record(run Run) error {
	_, err := s.db.Exec(
		`INSERT INTO runs (id, window, status, created, updated, skipped, failed, error, started_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Window,
		run.Status,
		run.Created,
		run.Updated,
		run.Skipped,
		run.Failed,
		run.Error,
		run.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	return nil
}

// ListPaginated returns runs newest-first. A pageSize of 0 disables paging.
func (s *Store) ListPaginated(page, pageSize int) ([]Run, error) {
	query := `SELECT id, window, status, created, updated, skipped, failed, error, started_at, duration_ms
		FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if pageSize > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, pageSize, (page-1)*pageSize)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// ListByWindow returns every run recorded for one calendar date, newest-first.
func (s *Store) ListByWindow(window string) ([]Run, error) {
	rows, err := s.db.Query(
		`SELECT id, window, status, created, updated, skipped, failed, error, started_at, duration_ms
		 FROM runs WHERE window = ? ORDER BY started_at DESC, id DESC`, window)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs for window %s: %w", window, err)
	}
	defer rows.Close()

	return scanRuns(rows)
}

// scanRuns converts database rows to Run objects
func scanRuns(rows *sql.Rows) ([]Run, error) {
	var runs []Run

	for rows.Next() {
		var run Run
		var startedAt string
		var durationMS int64

		if err := rows.Scan(&run.ID, &run.Window, &run.Status, &run.Created, &run.Updated,
			&run.Skipped, &run.Failed, &run.Error, &startedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		run.StartedAt, _ = time.Parse("2006-01-02 15:04:05", startedAt)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, run)
	}

	return runs, rows.Err()
}
