package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/contact-ingest/internal/domain"
	"github.com/ignite/contact-ingest/internal/service/ingest"
)

// JobRepo implements ingest.JobRepository against PostgreSQL.
type JobRepo struct{ db *sql.DB }

// NewJobRepo creates a Postgres-backed job repository.
func NewJobRepo(db *sql.DB) *JobRepo { return &JobRepo{db: db} }

func (r *JobRepo) Get(ctx context.Context, id int) (*domain.Job, error) {
	var j domain.Job
	err := r.db.QueryRowContext(ctx, `
		SELECT job_id, job_user_id, job_original_filename, job_s3_object_key,
		       job_status, job_total_rows, job_processed_rows, job_issue_count,
		       job_process_start, job_process_end, job_created_at
		FROM jobs
		WHERE job_id = $1
	`, id).Scan(
		&j.ID, &j.UserID, &j.OriginalFilename, &j.ObjectKey,
		&j.Status, &j.TotalRows, &j.ProcessedRows, &j.IssueCount,
		&j.ProcessStart, &j.ProcessEnd, &j.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ingest.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// UpdateStatus reads the current status first and checks the lifecycle
// rules, so an illegal move (say COMPLETED back to PROCESSING) surfaces
// as ingest.ErrInvalidTransition instead of silently corrupting the job.
// Nil timestamps leave the stored process_start/process_end untouched.
func (r *JobRepo) UpdateStatus(ctx context.Context, id int, status domain.JobStatus, processStart, processEnd *time.Time) error {
	var current domain.JobStatus
	err := r.db.QueryRowContext(ctx,
		`SELECT job_status FROM jobs WHERE job_id = $1`, id,
	).Scan(&current)
	if err == sql.ErrNoRows {
		return ingest.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read job status: %w", err)
	}
	if !current.CanTransitionTo(status) {
		return fmt.Errorf("%w: %s -> %s", ingest.ErrInvalidTransition, current, status)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET job_status = $2,
		    job_process_start = COALESCE($3, job_process_start),
		    job_process_end = COALESCE($4, job_process_end)
		WHERE job_id = $1
	`, id, status, processStart, processEnd)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

func (r *JobRepo) UpdateMetadata(ctx context.Context, id int, totalRows, processedRows, issueCount *int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE jobs
		SET job_total_rows = COALESCE($2, job_total_rows),
		    job_processed_rows = COALESCE($3, job_processed_rows),
		    job_issue_count = COALESCE($4, job_issue_count)
		WHERE job_id = $1
	`, id, totalRows, processedRows, issueCount)
	if err != nil {
		return fmt.Errorf("update job metadata: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}
