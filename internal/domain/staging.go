package domain

import "time"

// StagingStatus enumerates the review states of a staging row.
type StagingStatus string

const (
	StagingReady   StagingStatus = "READY"
	StagingSuccess StagingStatus = "SUCCESS"
	StagingDiscard StagingStatus = "DISCARD"
	StagingIssue   StagingStatus = "ISSUE"
)

// Staging is the mutable intermediate form of one CSV row. RowHash is the
// deterministic fingerprint that makes re-ingestion idempotent: the pair
// (JobID, RowHash) is unique.
type Staging struct {
	ID        int64         `json:"staging_id" db:"staging_id"`
	JobID     int           `json:"job_id" db:"staging_job_id"`
	Email     string        `json:"email" db:"staging_email"`
	FirstName string        `json:"first_name" db:"staging_first_name"`
	LastName  string        `json:"last_name" db:"staging_last_name"`
	Company   string        `json:"company" db:"staging_company"`
	Status    StagingStatus `json:"status" db:"staging_status"`
	RowHash   string        `json:"row_hash" db:"staging_row_hash"`
	CreatedAt time.Time     `json:"created_at" db:"staging_created_at"`
}
