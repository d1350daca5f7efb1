package domain

import "time"

// JobStatus enumerates the states an ingestion job can be in.
type JobStatus string

const (
	JobPending     JobStatus = "PENDING"
	JobProcessing  JobStatus = "PROCESSING"
	JobNeedsReview JobStatus = "NEEDS_REVIEW"
	JobCompleted   JobStatus = "COMPLETED"
	JobFailed      JobStatus = "FAILED"
)

// jobTransitions is the legal edge set of the job state machine.
// COMPLETED is terminal. FAILED may re-enter PROCESSING when the queue
// redelivers the message.
var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:     {JobProcessing, JobFailed},
	JobProcessing:  {JobNeedsReview, JobCompleted, JobFailed},
	JobNeedsReview: {JobProcessing, JobFailed},
	JobFailed:      {JobProcessing},
	JobCompleted:   {},
}

// CanTransitionTo reports whether moving from s to next is a legal job
// status transition. Writing the current status again is always legal so
// that redelivered messages can re-enter PROCESSING mid-flight.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s == next {
		return true
	}
	for _, t := range jobTransitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible from s.
func (s JobStatus) Terminal() bool {
	return len(jobTransitions[s]) == 0
}

// Job represents one CSV ingestion request owned by a user.
type Job struct {
	ID               int        `json:"job_id" db:"job_id"`
	UserID           string     `json:"user_id" db:"job_user_id"`
	OriginalFilename string     `json:"original_filename" db:"job_original_filename"`
	ObjectKey        string     `json:"object_key" db:"job_s3_object_key"`
	Status           JobStatus  `json:"status" db:"job_status"`
	TotalRows        int        `json:"total_rows" db:"job_total_rows"`
	ProcessedRows    int        `json:"processed_rows" db:"job_processed_rows"`
	IssueCount       int        `json:"issue_count" db:"job_issue_count"`
	ProcessStart     *time.Time `json:"process_start" db:"job_process_start"`
	ProcessEnd       *time.Time `json:"process_end" db:"job_process_end"`
	CreatedAt        time.Time  `json:"created_at" db:"job_created_at"`
}
