package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/contact-ingest/internal/domain"
	"github.com/ignite/contact-ingest/internal/service/ingest"
)

// StagingRepo implements ingest.StagingRepository against PostgreSQL.
//
// The staging text columns are nullable in the schema, so reads COALESCE
// them to empty strings rather than scanning through sql.NullString.
type StagingRepo struct{ db *sql.DB }

// NewStagingRepo creates a Postgres-backed staging repository.
func NewStagingRepo(db *sql.DB) *StagingRepo { return &StagingRepo{db: db} }

func (r *StagingRepo) ExistsByHash(ctx context.Context, jobID int, rowHash string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM staging WHERE staging_job_id = $1 AND staging_row_hash = $2)`,
		jobID, rowHash,
	).Scan(&exists)
	return exists, err
}

func (r *StagingRepo) Create(ctx context.Context, s *domain.Staging) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO staging (staging_job_id, staging_email, staging_first_name,
		                     staging_last_name, staging_company, staging_status, staging_row_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING staging_id, staging_created_at
	`, s.JobID, s.Email, s.FirstName, s.LastName, s.Company, s.Status, s.RowHash,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		return fmt.Errorf("create staging row: %w", err)
	}
	return nil
}

func (r *StagingRepo) GetByJob(ctx context.Context, jobID int) ([]domain.Staging, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT staging_id, staging_job_id,
		       COALESCE(staging_email, ''), COALESCE(staging_first_name, ''),
		       COALESCE(staging_last_name, ''), COALESCE(staging_company, ''),
		       COALESCE(staging_status, ''), staging_row_hash, staging_created_at
		FROM staging
		WHERE staging_job_id = $1
		ORDER BY staging_id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list staging rows: %w", err)
	}
	defer rows.Close()

	return scanStagingRows(rows)
}

func (r *StagingRepo) GetReadyForConsolidation(ctx context.Context, jobID int) ([]domain.Staging, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT staging_id, staging_job_id,
		       COALESCE(staging_email, ''), COALESCE(staging_first_name, ''),
		       COALESCE(staging_last_name, ''), COALESCE(staging_company, ''),
		       COALESCE(staging_status, ''), staging_row_hash, staging_created_at
		FROM staging
		WHERE staging_job_id = $1 AND staging_status = $2
		ORDER BY staging_id
	`, jobID, domain.StagingReady)
	if err != nil {
		return nil, fmt.Errorf("list ready staging rows: %w", err)
	}
	defer rows.Close()

	return scanStagingRows(rows)
}

func (r *StagingRepo) UpdateStatus(ctx context.Context, id int64, status domain.StagingStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE staging SET staging_status = $2 WHERE staging_id = $1`,
		id, status,
	)
	if err != nil {
		return fmt.Errorf("update staging status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

func (r *StagingRepo) HasAny(ctx context.Context, jobID int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM staging WHERE staging_job_id = $1)`,
		jobID,
	).Scan(&exists)
	return exists, err
}

func (r *StagingRepo) CountByStatus(ctx context.Context, jobID int, status domain.StagingStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM staging WHERE staging_job_id = $1 AND staging_status = $2`,
		jobID, status,
	).Scan(&n)
	return n, err
}

func scanStagingRows(rows *sql.Rows) ([]domain.Staging, error) {
	var out []domain.Staging
	for rows.Next() {
		var s domain.Staging
		if err := rows.Scan(
			&s.ID, &s.JobID, &s.Email, &s.FirstName,
			&s.LastName, &s.Company, &s.Status, &s.RowHash, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan staging row: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}
