// Package runlog records pipeline invocations in a local SQLite file so the
// status command can show recent runs. Writes are best-effort: the pipeline
// treats a run-log failure as a warning, never as a reason to abort.
package runlog

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Entry is one recorded pipeline run.
type Entry struct {
	ID         string
	Tool       string
	Status     string
	Records    int
	Enriched   int
	Skipped    int
	Failed     int
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	tool        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	records     INTEGER NOT NULL DEFAULT 0,
	enriched    INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0,
	error       TEXT,
	started_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	finished_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

// Log provides access to the run history database.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the run log at path and applies the schema.
func Open(path string) (*Log, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrapf(err, "runlog: mkdir %s", dir)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	if _, err := db.Exec(migration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "runlog: migrate")
	}

	return &Log{db: db}, nil
}

// Close releases the database.
func (l *Log) Close() error {
	return l.db.Close()
}

// Start records the beginning of a run and returns its id.
func (l *Log) Start(ctx context.Context, tool string, records int) (string, error) {
	id := uuid.NewString()
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, tool, status, records, started_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, tool, StatusRunning, records, time.Now().UTC(),
	)
	if err != nil {
		return "", eris.Wrapf(err, "runlog: start %s run", tool)
	}
	return id, nil
}

// Complete marks a run as finished with its counts.
func (l *Log) Complete(ctx context.Context, id string, enriched, skipped, failed int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, enriched = ?, skipped = ?, failed = ?, finished_at = ?
		 WHERE id = ?`,
		StatusComplete, enriched, skipped, failed, time.Now().UTC(), id,
	)
	return eris.Wrap(err, "runlog: complete run")
}

// Fail marks a run as failed with its cause.
func (l *Log) Fail(ctx context.Context, id string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, finished_at = ?
		 WHERE id = ?`,
		StatusFailed, msg, time.Now().UTC(), id,
	)
	return eris.Wrap(err, "runlog: fail run")
}

// Recent returns the most recent runs, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, tool, status, records, enriched, skipped, failed,
		        COALESCE(error, ''), started_at, finished_at
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: query recent")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var e Entry
		var finished sql.NullTime
		if err := rows.Scan(&e.ID, &e.Tool, &e.Status, &e.Records, &e.Enriched,
			&e.Skipped, &e.Failed, &e.Error, &e.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		if finished.Valid {
			t := finished.Time
			e.FinishedAt = &t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "runlog: iterate runs")
	}

	return entries, nil
}
