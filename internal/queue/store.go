package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"broll/internal/config"
	"broll/internal/jobs"
	"broll/internal/services"
)

// Store manages job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

var _ jobs.Store = (*Store)(nil)

// RestartReason is recorded on records failed because the daemon restarted.
const RestartReason = "daemon restarted before the job finished"

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the job database under the configured log
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JobDatabasePath())
}

// OpenPath opens the database file at dbPath and fails records a previous
// process left active.
func OpenPath(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ctx := context.Background()
	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := store.FailActive(ctx, RestartReason, services.KindCancelled); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path reports the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Insert adds a new record.
func (s *Store) Insert(ctx context.Context, job jobs.Job) error {
	if strings.TrimSpace(job.ID) == "" {
		return errors.New("insert job: id required")
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = job.CreatedAt
	}
	_, err := s.execWithRetry(ctx,
		`INSERT INTO jobs (
            id, status, progress, stage, source_path, original_name,
            output_path, error_message, error_kind, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID,
		job.Status,
		job.Progress,
		nullableString(job.Stage),
		job.SourcePath,
		nullableString(job.OriginalName),
		nullableString(job.Output),
		nullableString(job.Error),
		nullableString(job.ErrorKind),
		formatTime(job.CreatedAt),
		formatTime(job.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a record by id. Unknown ids return (nil, nil).
func (s *Store) Get(ctx context.Context, id string) (*jobs.Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Update persists changes to an existing record.
func (s *Store) Update(ctx context.Context, job jobs.Job) error {
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = time.Now().UTC()
	}
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
         SET status = ?, progress = ?, stage = ?, source_path = ?, original_name = ?,
             output_path = ?, error_message = ?, error_kind = ?, updated_at = ?
         WHERE id = ?`,
		job.Status,
		job.Progress,
		nullableString(job.Stage),
		job.SourcePath,
		nullableString(job.OriginalName),
		nullableString(job.Output),
		nullableString(job.Error),
		nullableString(job.ErrorKind),
		formatTime(job.UpdatedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job %s: not found", job.ID)
	}
	return nil
}

// List returns records ordered by creation time, optionally filtered by status.
func (s *Store) List(ctx context.Context, statuses ...jobs.Status) ([]jobs.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + makePlaceholders(len(statuses)) + `)`
		for _, st := range statuses {
			args = append(args, st)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []jobs.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return out, nil
}

// FailActive moves every queued or processing record to error.
func (s *Store) FailActive(ctx context.Context, message, kind string) (int, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET status = ?, error_message = ?, error_kind = ?, updated_at = ?
         WHERE status IN (?, ?)`,
		jobs.StatusError,
		message,
		nullableString(kind),
		formatTime(time.Now().UTC()),
		jobs.StatusQueued,
		jobs.StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("fail active jobs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail active jobs: %w", err)
	}
	return int(n), nil
}
