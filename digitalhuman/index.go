// ABOUTME: SQLite-backed job index for fast status queries without reading per-job task.json files.
// ABOUTME: The Runner notifies it on every transition; rows are always rebuildable from job metadata.
package digitalhuman

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// JobRow is one job's entry in the index.
type JobRow struct {
	JobID     string
	Status    string
	Message   string
	CreatedAt string
	UpdatedAt string
}

// Index is a SQLite-backed job-status index. It serves list and lookup
// queries; the per-job task.json remains the source of truth.
type Index struct {
	db *sql.DB
}

// OpenIndex opens or creates the index database at the given path.
func OpenIndex(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS jobs (
			job_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the database connection.
func (idx *Index) Close() error {
	return idx.db.Close()
}

// CreateJob inserts a pending row for a new job.
func (idx *Index) CreateJob(jobID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := idx.db.Exec(
		`INSERT INTO jobs (job_id, status, message, created_at, updated_at)
		 VALUES (?, ?, '', ?, ?)
		 ON CONFLICT(job_id) DO NOTHING`,
		jobID, string(StatusPending), now, now,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateStatus upserts a job's status row. Satisfies StatusNotifier so the
// Runner can report transitions directly.
func (idx *Index) UpdateStatus(jobID, status, message string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := idx.db.Exec(
		`INSERT INTO jobs (job_id, status, message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			message = excluded.message,
			updated_at = excluded.updated_at`,
		jobID, status, message, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert job status: %w", err)
	}
	return nil
}

// GetJob returns one job's row, or sql.ErrNoRows when absent.
func (idx *Index) GetJob(jobID string) (JobRow, error) {
	var row JobRow
	err := idx.db.QueryRow(
		`SELECT job_id, status, message, created_at, updated_at FROM jobs WHERE job_id = ?`,
		jobID,
	).Scan(&row.JobID, &row.Status, &row.Message, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		return JobRow{}, err
	}
	return row, nil
}

// ListJobs returns all jobs, most recently updated first.
func (idx *Index) ListJobs() ([]JobRow, error) {
	rows, err := idx.db.Query(
		`SELECT job_id, status, message, created_at, updated_at
		 FROM jobs ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []JobRow
	for rows.Next() {
		var row JobRow
		if err := rows.Scan(&row.JobID, &row.Status, &row.Message, &row.CreatedAt, &row.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
