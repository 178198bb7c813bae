package ledger

import (
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Status is the recorded outcome of an outreach attempt.
type Status string

const (
	// StatusSent marks an identity whose message was delivered to the
	// directory service. Sent identities are never contacted again.
	StatusSent Status = "sent"

	// StatusFailed marks an identity whose send was attempted and
	// failed. A later run may retry failed identities.
	StatusFailed Status = "failed"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	return s == StatusSent || s == StatusFailed
}

// Record is one durable ledger entry per contacted identity.
//
// Identity is the dedup key and is unique across the ledger. The
// descriptive fields are a snapshot taken at commit time; the ledger
// never reconciles changed attributes for an existing identity.
type Record struct {
	Identity    string    `json:"identity"`
	DisplayName string    `json:"display_name,omitempty"`
	Email       string    `json:"email,omitempty"`
	Status      Status    `json:"status"`
	RunID       string    `json:"run_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NormalizeIdentity canonicalizes an identity string for use as a
// ledger key.
//
// Identities derived from user-entered text (email addresses in
// particular) can differ in case, surrounding whitespace, and Unicode
// composition while naming the same person. All keys pass through NFC
// normalization and case folding before lookup or commit so those
// variants collapse to one entry.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}
