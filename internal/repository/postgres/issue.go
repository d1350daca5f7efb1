package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/contact-ingest/internal/domain"
	"github.com/ignite/contact-ingest/internal/service/ingest"
)

// Resolution stamp written when the worker closes an issue on its own.
const autoResolveComment = "All related staging records resolved during reprocessing"

// IssueRepo implements ingest.IssueRepository against PostgreSQL.
type IssueRepo struct{ db *sql.DB }

// NewIssueRepo creates a Postgres-backed issue repository.
func NewIssueRepo(db *sql.DB) *IssueRepo { return &IssueRepo{db: db} }

// GetOrCreate upserts on the (job, type, key) identity. Concurrent callers
// racing on the same identity are collapsed by the unique constraint; the
// description only lands on first creation.
func (r *IssueRepo) GetOrCreate(ctx context.Context, jobID int, issueType domain.IssueType, key, description string) (*domain.Issue, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issues (issues_job_id, issue_type, issue_key, issue_description, issue_resolved)
		VALUES ($1, $2, $3, $4, false)
		ON CONFLICT (issues_job_id, issue_type, issue_key) DO NOTHING
	`, jobID, issueType, key, description)
	if err != nil {
		return nil, fmt.Errorf("insert issue: %w", err)
	}

	var i domain.Issue
	err = r.db.QueryRowContext(ctx, `
		SELECT issue_id, issues_job_id, issue_type, issue_key, issue_resolved,
		       COALESCE(issue_description, ''), issue_resolved_at,
		       COALESCE(issue_resolved_by, ''), COALESCE(issue_resolution_comment, ''),
		       issue_created_at
		FROM issues
		WHERE issues_job_id = $1 AND issue_type = $2 AND issue_key = $3
	`, jobID, issueType, key).Scan(
		&i.ID, &i.JobID, &i.Type, &i.Key, &i.Resolved,
		&i.Description, &i.ResolvedAt, &i.ResolvedBy, &i.ResolutionComment,
		&i.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &i, nil
}

func (r *IssueRepo) LinkStaging(ctx context.Context, issueID int, stagingID int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO issue_items (item_issue_id, item_staging_id)
		VALUES ($1, $2)
		ON CONFLICT (item_issue_id, item_staging_id) DO NOTHING
	`, issueID, stagingID)
	if err != nil {
		return fmt.Errorf("link staging to issue: %w", err)
	}
	return nil
}

func (r *IssueRepo) GetByJob(ctx context.Context, jobID int) ([]domain.Issue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT issue_id, issues_job_id, issue_type, issue_key, issue_resolved,
		       COALESCE(issue_description, ''), issue_resolved_at,
		       COALESCE(issue_resolved_by, ''), COALESCE(issue_resolution_comment, ''),
		       issue_created_at
		FROM issues
		WHERE issues_job_id = $1
		ORDER BY issue_id
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	defer rows.Close()

	return scanIssues(rows)
}

func (r *IssueRepo) GetForStaging(ctx context.Context, stagingID int64) ([]domain.Issue, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT i.issue_id, i.issues_job_id, i.issue_type, i.issue_key, i.issue_resolved,
		       COALESCE(i.issue_description, ''), i.issue_resolved_at,
		       COALESCE(i.issue_resolved_by, ''), COALESCE(i.issue_resolution_comment, ''),
		       i.issue_created_at
		FROM issues i
		JOIN issue_items it ON it.item_issue_id = i.issue_id
		WHERE it.item_staging_id = $1
		ORDER BY i.issue_id
	`, stagingID)
	if err != nil {
		return nil, fmt.Errorf("list issues for staging row: %w", err)
	}
	defer rows.Close()

	return scanIssues(rows)
}

// AutoResolveIfAllStagingResolved closes the issue when none of its linked
// staging rows still carries ISSUE. The check and the write run as a single
// UPDATE. An issue with no links is never auto-resolved.
func (r *IssueRepo) AutoResolveIfAllStagingResolved(ctx context.Context, issueID int) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE issues
		SET issue_resolved = true,
		    issue_resolved_at = NOW(),
		    issue_resolved_by = 'system',
		    issue_resolution_comment = $2
		WHERE issue_id = $1
		  AND issue_resolved = false
		  AND EXISTS (
		      SELECT 1 FROM issue_items WHERE item_issue_id = $1
		  )
		  AND NOT EXISTS (
		      SELECT 1
		      FROM issue_items it
		      JOIN staging s ON s.staging_id = it.item_staging_id
		      WHERE it.item_issue_id = $1 AND s.staging_status = $3
		  )
	`, issueID, autoResolveComment, domain.StagingIssue)
	if err != nil {
		return false, fmt.Errorf("auto-resolve issue: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *IssueRepo) CountLinkedStagingWithStatus(ctx context.Context, issueID int, status domain.StagingStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM issue_items it
		JOIN staging s ON s.staging_id = it.item_staging_id
		WHERE it.item_issue_id = $1 AND s.staging_status = $2
	`, issueID, status).Scan(&n)
	return n, err
}

func (r *IssueRepo) ClearResolution(ctx context.Context, issueID int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE issues
		SET issue_resolved = false,
		    issue_resolved_at = NULL,
		    issue_resolved_by = NULL,
		    issue_resolution_comment = NULL
		WHERE issue_id = $1
	`, issueID)
	if err != nil {
		return fmt.Errorf("clear issue resolution: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

// MarkResolved records a human resolution from the review surface. The
// worker itself only resolves through AutoResolveIfAllStagingResolved.
func (r *IssueRepo) MarkResolved(ctx context.Context, issueID int, resolvedBy, comment string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE issues
		SET issue_resolved = true,
		    issue_resolved_at = NOW(),
		    issue_resolved_by = $2,
		    issue_resolution_comment = $3
		WHERE issue_id = $1
	`, issueID, resolvedBy, comment)
	if err != nil {
		return fmt.Errorf("resolve issue: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ingest.ErrNotFound
	}
	return nil
}

func scanIssues(rows *sql.Rows) ([]domain.Issue, error) {
	var out []domain.Issue
	for rows.Next() {
		var i domain.Issue
		if err := rows.Scan(
			&i.ID, &i.JobID, &i.Type, &i.Key, &i.Resolved,
			&i.Description, &i.ResolvedAt, &i.ResolvedBy, &i.ResolutionComment,
			&i.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan issue: %w", err)
		}
		out = append(out, i)
	}
	return out, nil
}
