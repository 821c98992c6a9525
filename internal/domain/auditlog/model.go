package auditlog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

// Status is the closed outcome enum for audit entries. Free-text status
// matching is a migration hazard, so everything funnels through ParseStatus.
type Status string

const (
	StatusGranted Status = "Granted"
	StatusDenied  Status = "Denied"
	StatusFlagged Status = "Flagged"

	// Legacy statuses still present in rows written by earlier backends.
	// Accepted on read, never written by this engine.
	StatusApproved Status = "Approved"
	StatusSuccess  Status = "Success"
)

// ParseStatus validates a status string against the closed enum.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusGranted, StatusDenied, StatusFlagged, StatusApproved, StatusSuccess:
		return Status(s), nil
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Entry is one append-only audit record. Entries are never updated or
// deleted; corrections are written as new compensating entries.
type Entry struct {
	ID            uuid.UUID `db:"id" json:"id"`
	Timestamp     time.Time `db:"ts" json:"timestamp"`
	ActorName     string    `db:"actor_name" json:"actor_name"`
	ActorRole     auth.Role `db:"actor_role" json:"actor_role"`
	PatientName   string    `db:"patient_name" json:"patient_name"`
	Action        string    `db:"action" json:"action"`
	Justification string    `db:"justification" json:"justification,omitempty"`
	Status        Status    `db:"status" json:"status"`
}
