// Package ingest implements the CSV contact ingestion pipeline.
//
// A job arrives as a queue message naming an uploaded CSV object. On first
// delivery the processor decodes the file, stages every row under a
// deterministic fingerprint, validates rows against per-user duplicate and
// existing-contact checks, and groups failures into reviewable issues.
// Redelivered messages skip the CSV entirely and revalidate the staging
// rows instead, picking up edits and discards made during review. Jobs with
// no remaining unresolved issues are consolidated: READY rows become
// contacts and the job completes.
//
// The processor contains pure business logic and depends on the repository
// interfaces defined in repository.go. It never imports net/http or
// database/sql directly.
package ingest
