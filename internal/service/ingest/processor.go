package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ignite/contact-ingest/internal/csvdec"
	"github.com/ignite/contact-ingest/internal/domain"
	"github.com/ignite/contact-ingest/internal/pkg/logger"
)

// Processor drives a contact ingestion job from queue message to terminal
// state. One processor serves the whole worker; each message gets its own
// context and sublogger.
type Processor struct {
	jobs     JobRepository
	stagings StagingRepository
	issues   IssueRepository
	contacts ContactRepository
	blobs    BlobStore
	logger   zerolog.Logger

	progressEvery int
}

// NewProcessor wires the processor's collaborators. progressEvery is the
// number of handled rows between processed_rows checkpoints; zero or
// negative selects the default of 10.
func NewProcessor(
	jobs JobRepository,
	stagings StagingRepository,
	issues IssueRepository,
	contacts ContactRepository,
	blobs BlobStore,
	progressEvery int,
	logger zerolog.Logger,
) *Processor {
	if progressEvery <= 0 {
		progressEvery = 10
	}
	return &Processor{
		jobs:          jobs,
		stagings:      stagings,
		issues:        issues,
		contacts:      contacts,
		blobs:         blobs,
		logger:        logger,
		progressEvery: progressEvery,
	}
}

// ProcessJob routes one queue message to the right flow. A missing job and
// an already COMPLETED job are both stale messages: they succeed without
// side effects so the consumer deletes the message.
func (p *Processor) ProcessJob(ctx context.Context, jobID int, objectKey string) error {
	log := p.logger.With().Int("job_id", jobID).Str("s3_key", objectKey).Logger()
	log.Info().Msg("Starting job processing")

	job, err := p.jobs.Get(ctx, jobID)
	if errors.Is(err, ErrNotFound) {
		log.Warn().Msg("Job not found, skipping stale message")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job %d: %w", jobID, err)
	}

	if job.Status == domain.JobCompleted {
		log.Info().Msg("Job already completed, skipping duplicate delivery")
		return nil
	}

	hasStaging, err := p.stagings.HasAny(ctx, jobID)
	if err != nil {
		return fmt.Errorf("check staging for job %d: %w", jobID, err)
	}

	if hasStaging {
		log.Info().Str("flow", "reprocess").Msg("Staging rows exist, revalidating without re-reading CSV")
		return p.reprocess(ctx, job, log)
	}
	log.Info().Str("flow", "initial").Msg("No staging rows, running initial flow")
	return p.processInitial(ctx, job, objectKey, log)
}

// processInitial handles the first delivery for a job: fetch and decode the
// CSV, stage every row, validate, and either flag the job for review or
// consolidate it straight to contacts.
func (p *Processor) processInitial(ctx context.Context, job *domain.Job, objectKey string, log zerolog.Logger) (err error) {
	defer func() {
		if err != nil {
			log.Error().Err(err).Msg("Initial processing failed")
			p.failJob(ctx, job.ID, log)
		}
	}()

	start := time.Now().UTC()
	if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobProcessing, &start, nil); err != nil {
		return fmt.Errorf("transition job %d to PROCESSING: %w", job.ID, err)
	}

	data, err := p.blobs.Fetch(ctx, objectKey)
	if err != nil {
		return fmt.Errorf("fetch %s: %w", objectKey, err)
	}

	decoded, err := csvdec.Decode(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", objectKey, err)
	}
	rows := decoded.Rows
	if len(rows) == 0 {
		return fmt.Errorf("%s: %w", objectKey, ErrEmptyCSV)
	}
	log.Info().
		Str("encoding", decoded.Encoding).
		Str("delimiter", string(decoded.Delimiter)).
		Int("total_rows", len(rows)).
		Msg("CSV decoded")

	duplicates := duplicateEmails(rows)

	seen := make(map[string]struct{})
	emails := make([]string, 0, len(rows))
	for _, row := range rows {
		email := NormalizeEmail(row["email"])
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		emails = append(emails, email)
	}
	existing, err := p.contacts.ExistingEmails(ctx, emails, job.UserID)
	if err != nil {
		return fmt.Errorf("load existing contacts for user %s: %w", job.UserID, err)
	}
	log.Info().
		Int("duplicate_emails", len(duplicates)).
		Int("existing_emails", len(existing)).
		Msg("Pre-indexing complete")

	processed := 0
	for i, row := range rows {
		rowNumber := i + 1
		rowLog := log.With().Int("row_number", rowNumber).Logger()

		hash := RowHash(job.ID, rowNumber, row)
		exists, err := p.stagings.ExistsByHash(ctx, job.ID, hash)
		if err != nil {
			rowLog.Error().Err(err).Msg("Fingerprint lookup failed, skipping row")
			continue
		}
		if exists {
			rowLog.Debug().Str("row_hash", hash).Msg("Row already staged, skipping")
			continue
		}

		// Staged as ISSUE first so a crash between create and validate
		// leaves the row flagged, never silently importable.
		staging := &domain.Staging{
			JobID:     job.ID,
			Email:     row["email"],
			FirstName: row["first_name"],
			LastName:  row["last_name"],
			Company:   row["company"],
			Status:    domain.StagingIssue,
			RowHash:   hash,
		}
		if err := p.stagings.Create(ctx, staging); err != nil {
			rowLog.Error().Err(err).Msg("Staging insert failed, skipping row")
			continue
		}

		result := ValidateRow(row, duplicates, existing)
		if result.Valid {
			if err := p.stagings.UpdateStatus(ctx, staging.ID, domain.StagingReady); err != nil {
				rowLog.Error().Err(err).Msg("Staging update failed, skipping row")
				continue
			}
		} else {
			key := NormalizeEmail(row["email"])
			if key == "" {
				key = fmt.Sprintf("row_%d", rowNumber)
			}
			if err := p.recordIssue(ctx, job.ID, key, staging.ID, result); err != nil {
				rowLog.Error().Err(err).Msg("Issue recording failed, skipping row")
				continue
			}
			rowLog.Debug().
				Str("issue_type", string(result.Type)).
				Str("issue_key", logger.RedactEmail(key)).
				Msg("Row flagged with issue")
		}

		processed++
		p.checkpoint(ctx, job.ID, processed, log)
	}

	total := len(rows)
	return p.finishPass(ctx, job, &total, processed, log)
}

// reprocess handles redelivery for a job that already has staging rows. The
// CSV is never re-read; the staging table, as edited during review, is the
// source of truth.
func (p *Processor) reprocess(ctx context.Context, job *domain.Job, log zerolog.Logger) (err error) {
	defer func() {
		if err != nil {
			log.Error().Err(err).Msg("Reprocessing failed")
			p.failJob(ctx, job.ID, log)
		}
	}()

	start := time.Now().UTC()
	if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobProcessing, &start, nil); err != nil {
		return fmt.Errorf("transition job %d to PROCESSING: %w", job.ID, err)
	}

	records, err := p.stagings.GetByJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load staging for job %d: %w", job.ID, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("job %d routed to reprocess but has no staging rows", job.ID)
	}
	log.Info().Int("staging_count", len(records)).Msg("Loaded staging rows for revalidation")

	// DISCARD rows are user decisions: they sit out validation entirely,
	// including the duplicate census.
	counts := make(map[string]int)
	for _, s := range records {
		if s.Status == domain.StagingDiscard {
			continue
		}
		if email := NormalizeEmail(s.Email); email != "" {
			counts[email]++
		}
	}
	duplicates := make(map[string]struct{}, len(counts))
	emails := make([]string, 0, len(counts))
	for email, n := range counts {
		emails = append(emails, email)
		if n > 1 {
			duplicates[email] = struct{}{}
		}
	}
	existing, err := p.contacts.ExistingEmails(ctx, emails, job.UserID)
	if err != nil {
		return fmt.Errorf("load existing contacts for user %s: %w", job.UserID, err)
	}

	processed, readyCount, flagged, discarded := 0, 0, 0, 0
	for _, s := range records {
		if s.Status == domain.StagingDiscard {
			discarded++
			continue
		}
		rowLog := log.With().Int64("staging_id", s.ID).Logger()

		result := ValidateRow(stagingRow(s), duplicates, existing)
		if result.Valid {
			if err := p.markStagingReady(ctx, s.ID); err != nil {
				rowLog.Error().Err(err).Msg("Revalidation update failed, skipping row")
				continue
			}
			readyCount++
		} else {
			if err := p.reflagStaging(ctx, job.ID, s, result, rowLog); err != nil {
				rowLog.Error().Err(err).Msg("Issue recording failed, skipping row")
				continue
			}
			flagged++
		}

		processed++
		p.checkpoint(ctx, job.ID, processed, log)
	}
	log.Info().
		Int("ready_count", readyCount).
		Int("flagged_count", flagged).
		Int("discard_count", discarded).
		Msg("Revalidation complete")

	return p.finishPass(ctx, job, nil, processed, log)
}

// finishPass writes the post-loop metadata snapshot and decides the job's
// next state: NEEDS_REVIEW while any issue is unresolved, consolidation
// otherwise. totalRows is only set by the initial flow.
func (p *Processor) finishPass(ctx context.Context, job *domain.Job, totalRows *int, processed int, log zerolog.Logger) error {
	issues, err := p.issues.GetByJob(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load issues for job %d: %w", job.ID, err)
	}
	issueCount := len(issues)
	if err := p.jobs.UpdateMetadata(ctx, job.ID, totalRows, &processed, &issueCount); err != nil {
		return fmt.Errorf("update metadata for job %d: %w", job.ID, err)
	}

	unresolved := 0
	for _, issue := range issues {
		if !issue.Resolved {
			unresolved++
		}
	}
	if unresolved > 0 {
		end := time.Now().UTC()
		if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobNeedsReview, nil, &end); err != nil {
			return fmt.Errorf("transition job %d to NEEDS_REVIEW: %w", job.ID, err)
		}
		log.Info().
			Int("processed_rows", processed).
			Int("issue_count", issueCount).
			Int("unresolved_count", unresolved).
			Msg("Job processing complete, needs review")
		return nil
	}

	log.Info().Int("processed_rows", processed).Msg("No unresolved issues, consolidating")
	return p.consolidate(ctx, job, log)
}

// consolidate promotes READY staging rows to contacts and completes the
// job. Called only when every issue is resolved.
func (p *Processor) consolidate(ctx context.Context, job *domain.Job, log zerolog.Logger) error {
	ready, err := p.stagings.GetReadyForConsolidation(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("load READY staging for job %d: %w", job.ID, err)
	}

	if len(ready) == 0 {
		// Legal degenerate case: every row was discarded during review.
		log.Warn().Msg("No staging rows ready for consolidation")
		if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobCompleted, nil, nil); err != nil {
			return fmt.Errorf("transition job %d to COMPLETED: %w", job.ID, err)
		}
		return nil
	}

	created := 0
	for _, s := range ready {
		if _, err := p.contacts.CreateFromStaging(ctx, &s, job.UserID); err != nil {
			// Leave the row READY: a staging row may only become SUCCESS
			// once its contact exists.
			log.Warn().Err(err).Int64("staging_id", s.ID).Msg("Contact creation failed, leaving row READY")
			continue
		}
		if err := p.stagings.UpdateStatus(ctx, s.ID, domain.StagingSuccess); err != nil {
			return fmt.Errorf("mark staging %d SUCCESS: %w", s.ID, err)
		}
		created++
	}

	end := time.Now().UTC()
	if err := p.jobs.UpdateStatus(ctx, job.ID, domain.JobCompleted, nil, &end); err != nil {
		return fmt.Errorf("transition job %d to COMPLETED: %w", job.ID, err)
	}
	log.Info().Int("contacts_created", created).Msg("Consolidation complete")
	return nil
}

// markStagingReady flips a staging row to READY and auto-resolves any of
// its linked issues whose other rows are also out of ISSUE.
func (p *Processor) markStagingReady(ctx context.Context, stagingID int64) error {
	if err := p.stagings.UpdateStatus(ctx, stagingID, domain.StagingReady); err != nil {
		return fmt.Errorf("mark staging %d READY: %w", stagingID, err)
	}

	linked, err := p.issues.GetForStaging(ctx, stagingID)
	if err != nil {
		return fmt.Errorf("load issues for staging %d: %w", stagingID, err)
	}
	for _, issue := range linked {
		if issue.Resolved {
			continue
		}
		if _, err := p.issues.AutoResolveIfAllStagingResolved(ctx, issue.ID); err != nil {
			return fmt.Errorf("auto-resolve issue %d: %w", issue.ID, err)
		}
	}
	return nil
}

// reflagStaging records a revalidation failure: upsert the issue, reopen it
// if review had resolved it while linked rows still carry ISSUE, link the
// row, and flag the row ISSUE again.
func (p *Processor) reflagStaging(ctx context.Context, jobID int, s domain.Staging, result ValidationResult, log zerolog.Logger) error {
	key := NormalizeEmail(s.Email)
	if key == "" {
		key = fmt.Sprintf("staging_%d", s.ID)
	}

	issue, err := p.issues.GetOrCreate(ctx, jobID, result.Type, key, result.Message)
	if err != nil {
		return fmt.Errorf("get or create issue %s/%s: %w", result.Type, key, err)
	}

	// The reopen check runs before this row is linked and re-flagged: a
	// resolved issue only reopens when some other linked row still carries
	// ISSUE at this point.
	if issue.Resolved {
		n, err := p.issues.CountLinkedStagingWithStatus(ctx, issue.ID, domain.StagingIssue)
		if err != nil {
			return fmt.Errorf("count flagged rows for issue %d: %w", issue.ID, err)
		}
		if n > 0 {
			if err := p.issues.ClearResolution(ctx, issue.ID); err != nil {
				return fmt.Errorf("reopen issue %d: %w", issue.ID, err)
			}
			log.Info().
				Int("issue_id", issue.ID).
				Str("issue_key", logger.RedactEmail(key)).
				Int("flagged_staging_count", n).
				Msg("Issue reopened after revalidation failure")
		}
	}

	if err := p.issues.LinkStaging(ctx, issue.ID, s.ID); err != nil {
		return fmt.Errorf("link staging %d to issue %d: %w", s.ID, issue.ID, err)
	}
	if err := p.stagings.UpdateStatus(ctx, s.ID, domain.StagingIssue); err != nil {
		return fmt.Errorf("mark staging %d ISSUE: %w", s.ID, err)
	}
	return nil
}

// recordIssue upserts an issue for a freshly staged row and links the row
// to it. The row keeps its provisional ISSUE status.
func (p *Processor) recordIssue(ctx context.Context, jobID int, key string, stagingID int64, result ValidationResult) error {
	issue, err := p.issues.GetOrCreate(ctx, jobID, result.Type, key, result.Message)
	if err != nil {
		return fmt.Errorf("get or create issue %s/%s: %w", result.Type, key, err)
	}
	if err := p.issues.LinkStaging(ctx, issue.ID, stagingID); err != nil {
		return fmt.Errorf("link staging %d to issue %d: %w", stagingID, issue.ID, err)
	}
	return nil
}

// checkpoint writes processed_rows every progressEvery handled rows. A
// failed checkpoint is not fatal; the final metadata write supersedes it.
func (p *Processor) checkpoint(ctx context.Context, jobID, processed int, log zerolog.Logger) {
	if processed%p.progressEvery != 0 {
		return
	}
	if err := p.jobs.UpdateMetadata(ctx, jobID, nil, &processed, nil); err != nil {
		log.Warn().Err(err).Int("processed_rows", processed).Msg("Progress checkpoint failed")
	}
}

// failJob moves the job to FAILED after an unrecoverable error. The
// original error wins; a failure to record FAILED is only logged.
func (p *Processor) failJob(ctx context.Context, jobID int, log zerolog.Logger) {
	if err := p.jobs.UpdateStatus(ctx, jobID, domain.JobFailed, nil, nil); err != nil {
		log.Error().Err(err).Msg("Could not mark job FAILED")
	}
}

// duplicateEmails returns the normalized emails appearing in more than one
// row. Multiplicity alone decides; the non-email fields never participate.
// Rows with empty emails sit out.
func duplicateEmails(rows []map[string]string) map[string]struct{} {
	counts := make(map[string]int)
	for _, row := range rows {
		email := NormalizeEmail(row["email"])
		if email == "" {
			continue
		}
		counts[email]++
	}
	dups := make(map[string]struct{})
	for email, n := range counts {
		if n > 1 {
			dups[email] = struct{}{}
		}
	}
	return dups
}

// stagingRow rebuilds the validator's row shape from a staging record.
func stagingRow(s domain.Staging) map[string]string {
	return map[string]string{
		"email":      s.Email,
		"first_name": s.FirstName,
		"last_name":  s.LastName,
		"company":    s.Company,
	}
}
