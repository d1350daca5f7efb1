package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// rowFingerprint is the canonical payload hashed into a row's fingerprint.
// Fields are declared in sorted key order so the serialized form is
// byte-stable regardless of how the input map was built.
type rowFingerprint struct {
	Company   string `json:"company"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	JobID     int    `json:"job_id"`
	LastName  string `json:"last_name"`
	RowNumber int    `json:"row_number"`
}

// RowHash computes the deterministic idempotency fingerprint for one CSV
// row. The email is normalized and the other fields trimmed first, so
// cosmetic differences in a re-uploaded file do not defeat resume.
func RowHash(jobID, rowNumber int, row map[string]string) string {
	payload := rowFingerprint{
		Company:   strings.TrimSpace(row["company"]),
		Email:     NormalizeEmail(row["email"]),
		FirstName: strings.TrimSpace(row["first_name"]),
		JobID:     jobID,
		LastName:  strings.TrimSpace(row["last_name"]),
		RowNumber: rowNumber,
	}
	b, _ := json.Marshal(payload)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
