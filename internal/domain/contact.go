package domain

import "time"

// Contact is a finalized, user-owned record materialized from a SUCCESS
// staging row. Contacts are never mutated by the worker; duplicate and
// existence checks are always scoped to (UserID, Email).
type Contact struct {
	ID        int64     `json:"contact_id" db:"contact_id"`
	StagingID int64     `json:"staging_id" db:"staging_id"`
	UserID    string    `json:"user_id" db:"contact_user_id"`
	Email     string    `json:"email" db:"contact_email"`
	FirstName string    `json:"first_name" db:"contact_first_name"`
	LastName  string    `json:"last_name" db:"contact_last_name"`
	Company   string    `json:"company" db:"contact_company"`
	CreatedAt time.Time `json:"created_at" db:"contact_created_at"`
}
