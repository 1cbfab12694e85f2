package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"wavebatch/internal/task"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
    task_id     TEXT PRIMARY KEY,
    output_path TEXT,
    error       TEXT,
    updated_at  TEXT NOT NULL
);
`

// Entry is one persisted ledger row.
type Entry struct {
	TaskID     string
	OutputPath string
	Error      string
	UpdatedAt  time.Time
}

// Stats summarizes recorded (not re-validated) outcomes.
type Stats struct {
	Total           int
	RecordedSuccess int
	RecordedFailure int
	Unattempted     int
}

// Store manages ledger persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the ledger database and applies the
// schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure ledger directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Seed inserts task ids that are not yet present, leaving existing rows
// and their outcomes untouched.
func (s *Store) Seed(ctx context.Context, entries []Entry) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin seed: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO tasks (task_id, output_path, error, updated_at) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare seed: %w", err)
	}
	defer stmt.Close()

	added := 0
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, entry := range entries {
		if entry.TaskID == "" {
			continue
		}
		res, err := stmt.ExecContext(ctx, entry.TaskID, nullableString(entry.OutputPath), nullableString(entry.Error), now)
		if err != nil {
			return 0, fmt.Errorf("seed %s: %w", entry.TaskID, err)
		}
		if affected, err := res.RowsAffected(); err == nil {
			added += int(affected)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit seed: %w", err)
	}
	return added, nil
}

// Merge applies a batch of results in one transaction, last write wins per
// task id. The merge is idempotent: applying the same batch twice leaves
// the same ledger.
func (s *Store) Merge(ctx context.Context, results []task.Result) error {
	if len(results) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks (task_id, output_path, error, updated_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(task_id) DO UPDATE SET
             output_path = excluded.output_path,
             error = excluded.error,
             updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare merge: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, result := range results {
		if result.TaskID == "" {
			continue
		}
		if _, err := stmt.ExecContext(ctx, result.TaskID, nullableString(result.OutputPath), nullableString(result.Error), now); err != nil {
			return fmt.Errorf("merge %s: %w", result.TaskID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit merge: %w", err)
	}
	return nil
}

// Get fetches one row by task id.
func (s *Store) Get(ctx context.Context, taskID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT task_id, output_path, error, updated_at FROM tasks WHERE task_id = ?`, taskID)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry, nil
}

// All returns every row ordered by task id so exports are deterministic.
func (s *Store) All(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT task_id, output_path, error, updated_at FROM tasks ORDER BY task_id`)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// Stats counts recorded outcomes. Recorded success means an output locator
// with no error; only structural validation decides actual success.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT COUNT(1),
               COALESCE(SUM(CASE WHEN output_path IS NOT NULL AND error IS NULL THEN 1 ELSE 0 END), 0),
               COALESCE(SUM(CASE WHEN error IS NOT NULL THEN 1 ELSE 0 END), 0)
        FROM tasks`)
	var stats Stats
	if err := row.Scan(&stats.Total, &stats.RecordedSuccess, &stats.RecordedFailure); err != nil {
		return Stats{}, fmt.Errorf("ledger stats: %w", err)
	}
	stats.Unattempted = stats.Total - stats.RecordedSuccess - stats.RecordedFailure
	return stats, nil
}

func scanEntry(scanner interface{ Scan(dest ...any) error }) (*Entry, error) {
	var (
		taskID     string
		outputPath sql.NullString
		errText    sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(&taskID, &outputPath, &errText, &updatedRaw); err != nil {
		return nil, err
	}
	entry := &Entry{
		TaskID:     taskID,
		OutputPath: outputPath.String,
		Error:      errText.String,
	}
	if updated, err := time.Parse(time.RFC3339Nano, updatedRaw); err == nil {
		entry.UpdatedAt = updated
	}
	return entry, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
