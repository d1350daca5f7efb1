package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ignite/contact-ingest/internal/domain"
	"github.com/ignite/contact-ingest/internal/service/ingest"
)

func TestStagingRepo_Create_FillsGeneratedFields(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	created := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO staging").
		WithArgs(42, "john@acme.io", "John", "Doe", "Acme", "READY", "abc123").
		WillReturnRows(sqlmock.NewRows([]string{"staging_id", "staging_created_at"}).
			AddRow(int64(7), created))

	s := &domain.Staging{
		JobID:     42,
		Email:     "john@acme.io",
		FirstName: "John",
		LastName:  "Doe",
		Company:   "Acme",
		Status:    domain.StagingReady,
		RowHash:   "abc123",
	}

	repo := NewStagingRepo(db)
	if err := repo.Create(context.Background(), s); err != nil {
		t.Fatalf("Create() error: %v", err)
	}

	if s.ID != 7 {
		t.Errorf("ID = %d, want 7", s.ID)
	}
	if !s.CreatedAt.Equal(created) {
		t.Errorf("CreatedAt = %v, want %v", s.CreatedAt, created)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestStagingRepo_ExistsByHash(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(42, "abc123").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	repo := NewStagingRepo(db)
	exists, err := repo.ExistsByHash(context.Background(), 42, "abc123")
	if err != nil {
		t.Fatalf("ExistsByHash() error: %v", err)
	}
	if !exists {
		t.Error("ExistsByHash() = false, want true")
	}
}

func TestStagingRepo_GetByJob_OrderedByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM staging WHERE staging_job_id .+ ORDER BY staging_id").
		WithArgs(42).
		WillReturnRows(sqlmock.NewRows([]string{
			"staging_id", "staging_job_id", "staging_email", "staging_first_name",
			"staging_last_name", "staging_company", "staging_status",
			"staging_row_hash", "staging_created_at",
		}).
			AddRow(int64(1), 42, "a@x.io", "Ann", "Ames", "X", "READY", "h1", now).
			AddRow(int64(2), 42, "", "Bob", "Beam", "Y", "ISSUE", "h2", now))

	repo := NewStagingRepo(db)
	rows, err := repo.GetByJob(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetByJob() error: %v", err)
	}

	if len(rows) != 2 {
		t.Fatalf("GetByJob() returned %d rows, want 2", len(rows))
	}
	if rows[0].ID != 1 || rows[1].ID != 2 {
		t.Errorf("IDs = %d, %d, want 1, 2", rows[0].ID, rows[1].ID)
	}
	if rows[1].Email != "" || rows[1].Status != domain.StagingIssue {
		t.Errorf("Row 2 = email %q status %s, want empty email and ISSUE", rows[1].Email, rows[1].Status)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestStagingRepo_GetReadyForConsolidation_FiltersByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery("FROM staging WHERE staging_job_id .+ AND staging_status").
		WithArgs(42, "READY").
		WillReturnRows(sqlmock.NewRows([]string{
			"staging_id", "staging_job_id", "staging_email", "staging_first_name",
			"staging_last_name", "staging_company", "staging_status",
			"staging_row_hash", "staging_created_at",
		}).AddRow(int64(3), 42, "c@z.io", "Cy", "Cole", "Z", "READY", "h3", now))

	repo := NewStagingRepo(db)
	rows, err := repo.GetReadyForConsolidation(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetReadyForConsolidation() error: %v", err)
	}
	if len(rows) != 1 || rows[0].Status != domain.StagingReady {
		t.Errorf("GetReadyForConsolidation() = %d rows, want 1 READY row", len(rows))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("Unfulfilled expectations: %s", err)
	}
}

func TestStagingRepo_UpdateStatus_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("UPDATE staging SET staging_status").
		WithArgs(int64(99), "DISCARD").
		WillReturnResult(sqlmock.NewResult(0, 0))

	repo := NewStagingRepo(db)
	err = repo.UpdateStatus(context.Background(), 99, domain.StagingDiscard)
	if !errors.Is(err, ingest.ErrNotFound) {
		t.Errorf("UpdateStatus() error = %v, want ErrNotFound", err)
	}
}

func TestStagingRepo_CountByStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to create mock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(42, "ISSUE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	repo := NewStagingRepo(db)
	n, err := repo.CountByStatus(context.Background(), 42, domain.StagingIssue)
	if err != nil {
		t.Fatalf("CountByStatus() error: %v", err)
	}
	if n != 3 {
		t.Errorf("CountByStatus() = %d, want 3", n)
	}
}
