package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/contact-ingest/internal/domain"
)

// ContactRepo implements ingest.ContactRepository against PostgreSQL.
type ContactRepo struct{ db *sql.DB }

// NewContactRepo creates a Postgres-backed contact repository.
func NewContactRepo(db *sql.DB) *ContactRepo { return &ContactRepo{db: db} }

// ExistingEmails returns which of the given normalized emails the user
// already owns a contact for. Matching is case-insensitive and never
// crosses user boundaries.
func (r *ContactRepo) ExistingEmails(ctx context.Context, emails []string, userID string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(emails))
	if len(emails) == 0 {
		return out, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT LOWER(contact_email)
		FROM contacts
		WHERE contact_user_id = $1 AND LOWER(contact_email) = ANY($2)
	`, userID, pq.Array(emails))
	if err != nil {
		return nil, fmt.Errorf("look up existing emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan existing email: %w", err)
		}
		out[email] = struct{}{}
	}
	return out, nil
}

// CreateFromStaging materializes a contact from a staging row. Every
// contact column is NOT NULL, so empty fields are rejected here rather
// than left for the database to refuse.
func (r *ContactRepo) CreateFromStaging(ctx context.Context, s *domain.Staging, userID string) (*domain.Contact, error) {
	if err := checkContactFields(s, userID); err != nil {
		return nil, err
	}

	c := domain.Contact{
		StagingID: s.ID,
		UserID:    userID,
		Email:     s.Email,
		FirstName: s.FirstName,
		LastName:  s.LastName,
		Company:   s.Company,
	}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (staging_id, contact_user_id, contact_email,
		                      contact_first_name, contact_last_name, contact_company)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING contact_id, contact_created_at
	`, c.StagingID, c.UserID, c.Email, c.FirstName, c.LastName, c.Company,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	return &c, nil
}

// BatchCreateFromStaging creates contacts for every staging row that passes
// the field check and returns the ones created. Rows with missing fields
// are skipped, not failed; a database error aborts the batch.
func (r *ContactRepo) BatchCreateFromStaging(ctx context.Context, stagings []domain.Staging, userID string) ([]domain.Contact, error) {
	out := make([]domain.Contact, 0, len(stagings))
	for i := range stagings {
		s := &stagings[i]
		if checkContactFields(s, userID) != nil {
			continue
		}
		c, err := r.CreateFromStaging(ctx, s, userID)
		if err != nil {
			return out, err
		}
		out = append(out, *c)
	}
	return out, nil
}

func checkContactFields(s *domain.Staging, userID string) error {
	switch {
	case userID == "":
		return fmt.Errorf("contact for staging %d: empty user id", s.ID)
	case s.Email == "":
		return fmt.Errorf("contact for staging %d: empty email", s.ID)
	case s.FirstName == "":
		return fmt.Errorf("contact for staging %d: empty first name", s.ID)
	case s.LastName == "":
		return fmt.Errorf("contact for staging %d: empty last name", s.ID)
	case s.Company == "":
		return fmt.Errorf("contact for staging %d: empty company", s.ID)
	}
	return nil
}
