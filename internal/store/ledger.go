// Package store keeps a SQLite ledger of regression runs and their verdicts.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"cornersweep/internal/report"
)

// Run is one harness invocation.
type Run struct {
	ID         string
	Name       string
	Dir        string
	StartedAt  time.Time
	FinishedAt time.Time
	Passed     bool
	Verdicts   []report.Verdict
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// Entry is one verdict as recorded in the ledger.
type Entry struct {
	RunID     string
	RunName   string
	StartedAt time.Time
	Verdict   report.Verdict
}

// Ledger persists runs in SQLite.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

// Open opens (creating if needed) the ledger at path.
func Open(path string, logger *zap.Logger) (*Ledger, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	l := &Ledger{db: db, path: path, logger: logger}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// initialize creates the required tables.
func (l *Ledger) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		dir TEXT NOT NULL,
		started_at INTEGER NOT NULL, -- unix nanoseconds
		finished_at INTEGER NOT NULL,
		passed INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	verdictsTable := `
	CREATE TABLE IF NOT EXISTS verdicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		suite TEXT NOT NULL,
		device TEXT NOT NULL,
		metric TEXT NOT NULL,
		min_error REAL NOT NULL,
		mean_error REAL NOT NULL,
		max_error REAL NOT NULL,
		passed INTEGER NOT NULL,
		corners INTEGER NOT NULL,
		expected INTEGER NOT NULL,
		unresolved INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_verdicts_run ON verdicts(run_id);
	CREATE INDEX IF NOT EXISTS idx_verdicts_device ON verdicts(device);
	`

	for _, table := range []string{runsTable, verdictsTable} {
		if _, err := l.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path returns the database file.
func (l *Ledger) Path() string {
	return l.path
}

// Record stores a run and its verdicts atomically.
func (l *Ledger) Record(ctx context.Context, run Run) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if run.ID == "" {
		run.ID = NewRunID()
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, name, dir, started_at, finished_at, passed) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.Name, run.Dir,
		run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		boolInt(run.Passed),
	); err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO verdicts (run_id, suite, device, metric, min_error, mean_error, max_error,
			passed, corners, expected, unresolved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare verdict insert: %w", err)
	}
	defer stmt.Close()

	for _, v := range run.Verdicts {
		if _, err := stmt.ExecContext(ctx, run.ID, v.Suite, v.Device, v.Metric,
			v.Min, v.Mean, v.Max, boolInt(v.Pass), v.Groups, v.Expected, v.Unresolved); err != nil {
			return fmt.Errorf("failed to record verdict for %s: %w", v.Device, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	l.logger.Info("Run recorded",
		zap.String("run_id", run.ID),
		zap.String("name", run.Name),
		zap.Int("verdicts", len(run.Verdicts)))
	return nil
}

// History returns recorded verdicts, newest run first. An empty device
// matches every device; limit <= 0 means 50.
func (l *Ledger) History(ctx context.Context, device string, limit int) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT r.id, r.name, r.started_at, v.suite, v.device, v.metric,
			v.min_error, v.mean_error, v.max_error, v.passed, v.corners, v.expected, v.unresolved
		FROM verdicts v JOIN runs r ON r.id = v.run_id
		WHERE (? = '' OR v.device = ?)
		ORDER BY r.started_at DESC, v.id ASC
		LIMIT ?`

	rows, err := l.db.QueryContext(ctx, query, device, device, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var started int64
		var passed int
		v := &e.Verdict
		if err := rows.Scan(&e.RunID, &e.RunName, &started, &v.Suite, &v.Device, &v.Metric,
			&v.Min, &v.Mean, &v.Max, &passed, &v.Groups, &v.Expected, &v.Unresolved); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		v.Pass = passed != 0
		e.StartedAt = time.Unix(0, started).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
