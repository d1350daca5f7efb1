package ingest

import (
	"strings"
	"testing"

	"github.com/ignite/contact-ingest/internal/domain"
)

func validRow() map[string]string {
	return map[string]string{
		"email":      "ann@example.com",
		"first_name": "Ann",
		"last_name":  "Lee",
		"company":    "Acme",
	}
}

func emailSet(emails ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		set[e] = struct{}{}
	}
	return set
}

func TestValidateRow(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(map[string]string)
		duplicates map[string]struct{}
		existing   map[string]struct{}
		wantValid  bool
		wantType   domain.IssueType
	}{
		{
			name:      "valid row",
			mutate:    func(map[string]string) {},
			wantValid: true,
		},
		{
			name:     "missing email",
			mutate:   func(r map[string]string) { r["email"] = "" },
			wantType: domain.IssueMissingRequiredField,
		},
		{
			name:     "whitespace-only company",
			mutate:   func(r map[string]string) { r["company"] = "   " },
			wantType: domain.IssueMissingRequiredField,
		},
		{
			name:     "absent last_name key",
			mutate:   func(r map[string]string) { delete(r, "last_name") },
			wantType: domain.IssueMissingRequiredField,
		},
		{
			name:     "invalid email without at sign",
			mutate:   func(r map[string]string) { r["email"] = "not-an-email" },
			wantType: domain.IssueInvalidEmail,
		},
		{
			name:     "invalid email missing tld",
			mutate:   func(r map[string]string) { r["email"] = "ann@example" },
			wantType: domain.IssueInvalidEmail,
		},
		{
			name:     "invalid email single-letter tld",
			mutate:   func(r map[string]string) { r["email"] = "ann@example.c" },
			wantType: domain.IssueInvalidEmail,
		},
		{
			name:       "duplicate email",
			mutate:     func(map[string]string) {},
			duplicates: emailSet("ann@example.com"),
			wantType:   domain.IssueDuplicateEmail,
		},
		{
			name:       "duplicate check uses normalized email",
			mutate:     func(r map[string]string) { r["email"] = " ANN@Example.COM " },
			duplicates: emailSet("ann@example.com"),
			wantType:   domain.IssueDuplicateEmail,
		},
		{
			name:     "existing email",
			mutate:   func(map[string]string) {},
			existing: emailSet("ann@example.com"),
			wantType: domain.IssueExistingEmail,
		},
		{
			name:       "missing field wins over duplicate",
			mutate:     func(r map[string]string) { r["first_name"] = "" },
			duplicates: emailSet("ann@example.com"),
			wantType:   domain.IssueMissingRequiredField,
		},
		{
			name:       "duplicate wins over existing",
			mutate:     func(map[string]string) {},
			duplicates: emailSet("ann@example.com"),
			existing:   emailSet("ann@example.com"),
			wantType:   domain.IssueDuplicateEmail,
		},
		{
			name:      "surrounding whitespace is tolerated",
			mutate:    func(r map[string]string) { r["email"] = " ann@example.com " },
			wantValid: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := validRow()
			tt.mutate(row)

			got := ValidateRow(row, tt.duplicates, tt.existing)
			if got.Valid != tt.wantValid {
				t.Fatalf("Valid = %v, want %v (result %+v)", got.Valid, tt.wantValid, got)
			}
			if !tt.wantValid {
				if got.Type != tt.wantType {
					t.Errorf("Type = %s, want %s", got.Type, tt.wantType)
				}
				if got.Message == "" {
					t.Error("expected a non-empty message for invalid row")
				}
			}
		})
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Ann@Example.COM "); got != "ann@example.com" {
		t.Errorf("NormalizeEmail = %q, want ann@example.com", got)
	}
	if got := NormalizeEmail("   "); got != "" {
		t.Errorf("NormalizeEmail of whitespace = %q, want empty", got)
	}
}

func TestValidateRow_MessageNamesField(t *testing.T) {
	row := validRow()
	row["company"] = ""

	got := ValidateRow(row, nil, nil)
	if got.Valid {
		t.Fatal("expected invalid result")
	}
	if !strings.Contains(got.Message, "company") {
		t.Errorf("message %q should name the missing field", got.Message)
	}
}
