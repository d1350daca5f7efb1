package domain

import "time"

// IssueType enumerates the validation defect classes.
type IssueType string

const (
	IssueDuplicateEmail       IssueType = "DUPLICATE_EMAIL"
	IssueInvalidEmail         IssueType = "INVALID_EMAIL"
	IssueExistingEmail        IssueType = "EXISTING_EMAIL"
	IssueMissingRequiredField IssueType = "MISSING_REQUIRED_FIELD"
)

// Issue is a reviewable defect class within a job, identified by
// (JobID, Type, Key). One issue may link many staging rows; a duplicate
// email, for example, groups every row that carries it.
type Issue struct {
	ID                int        `json:"issue_id" db:"issue_id"`
	JobID             int        `json:"job_id" db:"issues_job_id"`
	Type              IssueType  `json:"issue_type" db:"issue_type"`
	Key               string     `json:"issue_key" db:"issue_key"`
	Resolved          bool       `json:"resolved" db:"issue_resolved"`
	Description       string     `json:"description" db:"issue_description"`
	ResolvedAt        *time.Time `json:"resolved_at" db:"issue_resolved_at"`
	ResolvedBy        string     `json:"resolved_by" db:"issue_resolved_by"`
	ResolutionComment string     `json:"resolution_comment" db:"issue_resolution_comment"`
	CreatedAt         time.Time  `json:"created_at" db:"issue_created_at"`
}

// IssueItem links one staging row to one issue. The pair
// (IssueID, StagingID) is unique.
type IssueItem struct {
	ID        int   `json:"issue_item_id" db:"issue_item_id"`
	IssueID   int   `json:"issue_id" db:"item_issue_id"`
	StagingID int64 `json:"staging_id" db:"item_staging_id"`
}
