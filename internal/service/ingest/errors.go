package ingest

import "errors"

// Sentinel errors for the ingest service layer.
var (
	// ErrNotFound is returned by repositories when a requested record
	// does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrEmptyCSV marks a decoded file with no data rows; the job is
	// failed rather than completed empty.
	ErrEmptyCSV = errors.New("csv file contains no data rows")

	// ErrInvalidTransition is returned when a job status change violates
	// the job lifecycle.
	ErrInvalidTransition = errors.New("illegal job status transition")
)
