package jobs

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

	"vidstitch/internal/services"
)

// DBName is the job database filename inside the staging directory.
const DBName = "jobs.db"

// Store manages merge job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

const schema = `
CREATE TABLE IF NOT EXISTS merge_jobs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	output_name TEXT NOT NULL,
	manifest TEXT NOT NULL,
	input_count INTEGER NOT NULL,
	status TEXT NOT NULL,
	progress_phase TEXT NOT NULL DEFAULT '',
	progress_percent REAL NOT NULL DEFAULT 0,
	progress_message TEXT NOT NULL DEFAULT '',
	error_message TEXT NOT NULL DEFAULT '',
	result_path TEXT NOT NULL DEFAULT '',
	result_size INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_merge_jobs_status ON merge_jobs(status);
`

// Open initializes or connects to the job database under stagingDir.
func Open(stagingDir string) (*Store, error) {
	if strings.TrimSpace(stagingDir) == "" {
		return nil, errors.New("jobs: staging directory not set")
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure staging directory: %w", err)
	}

	dbPath := filepath.Join(stagingDir, DBName)
	db, err := sql.Open("sqlite", dbPath)
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

	return &Store{db: db, path: dbPath}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

// Destroy closes the store and removes the database files from disk.
func (s *Store) Destroy() error {
	if s == nil {
		return nil
	}
	if err := s.Close(); err != nil {
		return err
	}
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(s.path + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove job database: %w", err)
		}
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// Create inserts a new job in the staging state. At most one job may be
// active at a time; creating while another job is staging or encoding fails
// with the in-flight marker.
func (s *Store) Create(ctx context.Context, outputName, manifest string, inputCount int) (*Job, error) {
	if strings.TrimSpace(outputName) == "" {
		return nil, errors.New("jobs: output name required")
	}
	active, err := s.Active(ctx)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, services.Wrap(services.ErrMergeInFlight, "jobs",
			fmt.Sprintf("job %d is still active", active.ID), nil)
	}
	now := time.Now().UTC()
	job := &Job{
		OutputName: outputName,
		Manifest:   manifest,
		InputCount: inputCount,
		Status:     StatusStaging,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	res, err := s.execWithRetry(ctx,
		`INSERT INTO merge_jobs (output_name, manifest, input_count, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		job.OutputName, job.Manifest, job.InputCount, string(job.Status), job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("job id: %w", err)
	}
	job.ID = id
	return job, nil
}

// Update persists the mutable fields of a job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil || job.ID == 0 {
		return errors.New("jobs: update requires a persisted job")
	}
	job.UpdatedAt = time.Now().UTC()
	_, err := s.execWithRetry(ctx,
		`UPDATE merge_jobs
		 SET status = ?, progress_phase = ?, progress_percent = ?, progress_message = ?,
		     error_message = ?, result_path = ?, result_size = ?, updated_at = ?
		 WHERE id = ?`,
		string(job.Status), job.ProgressPhase, job.ProgressPercent, job.ProgressMessage,
		job.ErrorMessage, job.ResultPath, job.ResultSize, job.UpdatedAt, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job %d: %w", job.ID, err)
	}
	return nil
}

// GetByID fetches a job, returning nil when absent.
func (s *Store) GetByID(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, output_name, manifest, input_count, status, progress_phase, progress_percent,
		        progress_message, error_message, result_path, result_size, created_at, updated_at
		 FROM merge_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// Active returns the in-flight job, if any. At most one job may be active at
// a time.
func (s *Store) Active(ctx context.Context) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		`SELECT id, output_name, manifest, input_count, status, progress_phase, progress_percent,
		        progress_message, error_message, result_path, result_size, created_at, updated_at
		 FROM merge_jobs WHERE status IN (?, ?) ORDER BY id DESC LIMIT 1`,
		string(StatusStaging), string(StatusEncoding))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return job, err
}

// List returns all jobs in creation order.
func (s *Store) List(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT id, output_name, manifest, input_count, status, progress_phase, progress_percent,
		        progress_message, error_message, result_path, result_size, created_at, updated_at
		 FROM merge_jobs ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// Health returns aggregated counts per lifecycle state.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx),
		`SELECT status, COUNT(*) FROM merge_jobs GROUP BY status`)
	if err != nil {
		return HealthSummary{}, fmt.Errorf("job health: %w", err)
	}
	defer rows.Close()

	var summary HealthSummary
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return HealthSummary{}, err
		}
		parsed, ok := ParseStatus(status)
		if !ok {
			return HealthSummary{}, fmt.Errorf("unknown job status %q", status)
		}
		summary.Total += count
		switch {
		case parsed.IsActive():
			summary.Active += count
		case parsed == StatusCompleted:
			summary.Completed += count
		case parsed == StatusFailed:
			summary.Failed += count
		}
	}
	return summary, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var job Job
	var status string
	if err := row.Scan(
		&job.ID, &job.OutputName, &job.Manifest, &job.InputCount, &status,
		&job.ProgressPhase, &job.ProgressPercent, &job.ProgressMessage,
		&job.ErrorMessage, &job.ResultPath, &job.ResultSize,
		&job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan job: %w", err)
	}
	parsed, ok := ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown job status %q", status)
	}
	job.Status = parsed
	return &job, nil
}
