package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ignite/contact-ingest/internal/domain"
)

// emailPattern is deliberately simple: it catches structural mistakes
// without attempting the full RFC 5322 grammar.
var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)

// requiredFields are the CSV columns every contact row must fill.
var requiredFields = []string{"email", "first_name", "last_name", "company"}

// ValidationResult reports the outcome of validating one row. When Valid
// is false, Type and Message describe the issue to record.
type ValidationResult struct {
	Valid   bool
	Type    domain.IssueType
	Message string
}

// NormalizeEmail lowercases and trims an email address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRow checks one row against the required-field, email-format,
// in-file duplicate and existing-contact rules, in that order; the first
// failure wins. duplicates and existing are pre-indexed sets of normalized
// emails supplied by the processor; the validator itself never touches the
// database.
func ValidateRow(row map[string]string, duplicates, existing map[string]struct{}) ValidationResult {
	for _, field := range requiredFields {
		if strings.TrimSpace(row[field]) == "" {
			return ValidationResult{
				Type:    domain.IssueMissingRequiredField,
				Message: fmt.Sprintf("Missing required field: %s", field),
			}
		}
	}

	email := strings.TrimSpace(row["email"])
	if !emailPattern.MatchString(email) {
		return ValidationResult{
			Type:    domain.IssueInvalidEmail,
			Message: fmt.Sprintf("Invalid email format: %s", email),
		}
	}

	normalized := NormalizeEmail(email)
	if _, ok := duplicates[normalized]; ok {
		return ValidationResult{
			Type:    domain.IssueDuplicateEmail,
			Message: fmt.Sprintf("Duplicate email in CSV: %s", email),
		}
	}
	if _, ok := existing[normalized]; ok {
		return ValidationResult{
			Type:    domain.IssueExistingEmail,
			Message: fmt.Sprintf("Email already exists in contacts: %s", email),
		}
	}

	return ValidationResult{Valid: true}
}
