package ingest

import (
	"context"
	"time"

	"github.com/ignite/contact-ingest/internal/domain"
)

// JobRepository defines the data access contract for ingestion jobs.
type JobRepository interface {
	// Get returns a job by ID. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id int) (*domain.Job, error)

	// UpdateStatus transitions a job to the given status and optionally
	// stamps process_start and/or process_end. Illegal transitions return
	// ErrInvalidTransition.
	UpdateStatus(ctx context.Context, id int, status domain.JobStatus, processStart, processEnd *time.Time) error

	// UpdateMetadata updates the row counters. Nil pointers leave the
	// corresponding column untouched.
	UpdateMetadata(ctx context.Context, id int, totalRows, processedRows, issueCount *int) error
}

// StagingRepository defines the data access contract for staging rows.
type StagingRepository interface {
	// ExistsByHash reports whether a staging row with this fingerprint
	// already exists for the job.
	ExistsByHash(ctx context.Context, jobID int, rowHash string) (bool, error)

	// Create inserts a staging row and fills in its generated ID.
	Create(ctx context.Context, s *domain.Staging) error

	// GetByJob returns all staging rows for a job in creation order.
	GetByJob(ctx context.Context, jobID int) ([]domain.Staging, error)

	// GetReadyForConsolidation returns the job's READY staging rows.
	GetReadyForConsolidation(ctx context.Context, jobID int) ([]domain.Staging, error)

	// UpdateStatus sets the status of one staging row.
	UpdateStatus(ctx context.Context, id int64, status domain.StagingStatus) error

	// HasAny reports whether the job has any staging rows at all. This is
	// what routes a redelivered message into the reprocess flow.
	HasAny(ctx context.Context, jobID int) (bool, error)

	// CountByStatus counts the job's staging rows carrying the status.
	CountByStatus(ctx context.Context, jobID int, status domain.StagingStatus) (int, error)
}

// IssueRepository defines the data access contract for issues and their
// links to staging rows.
type IssueRepository interface {
	// GetOrCreate upserts an issue on its (jobID, type, key) identity and
	// returns the stored row. The description is only written on first
	// creation.
	GetOrCreate(ctx context.Context, jobID int, issueType domain.IssueType, key, description string) (*domain.Issue, error)

	// LinkStaging associates a staging row with an issue. Idempotent.
	LinkStaging(ctx context.Context, issueID int, stagingID int64) error

	// GetByJob returns all issues for a job.
	GetByJob(ctx context.Context, jobID int) ([]domain.Issue, error)

	// GetForStaging returns all issues linked to a staging row.
	GetForStaging(ctx context.Context, stagingID int64) ([]domain.Issue, error)

	// AutoResolveIfAllStagingResolved marks the issue resolved by the
	// system iff none of its linked staging rows still carries ISSUE.
	// Returns true when the issue was resolved by this call.
	AutoResolveIfAllStagingResolved(ctx context.Context, issueID int) (bool, error)

	// CountLinkedStagingWithStatus counts the issue's linked staging rows
	// carrying the given status.
	CountLinkedStagingWithStatus(ctx context.Context, issueID int, status domain.StagingStatus) (int, error)

	// ClearResolution reopens a resolved issue, clearing the resolved
	// flag, timestamp, actor and comment.
	ClearResolution(ctx context.Context, issueID int) error
}

// ContactRepository defines the data access contract for finalized contacts.
type ContactRepository interface {
	// ExistingEmails returns the subset of the given normalized emails
	// for which the user already owns a contact.
	ExistingEmails(ctx context.Context, emails []string, userID string) (map[string]struct{}, error)

	// CreateFromStaging materializes a contact from a staging row. All
	// four contact fields and the userID must be non-empty.
	CreateFromStaging(ctx context.Context, s *domain.Staging, userID string) (*domain.Contact, error)
}

// BlobStore fetches uploaded CSV objects by key.
type BlobStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
}
