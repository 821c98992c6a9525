package access

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/domain/patient"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

// Tier is the access path a request comes in on. Each tier has its own
// validation rules and decision table.
type Tier string

const (
	TierNormal     Tier = "normal"
	TierRestricted Tier = "restricted"
	TierEmergency  Tier = "emergency"
	TierTemporary  Tier = "temporary"
)

func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierNormal, TierRestricted, TierEmergency, TierTemporary:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown access tier %q", s)
}

// Request is one access attempt, fully resolved: identity comes from the
// session and Inside from the network classifier, never from the client body.
type Request struct {
	Tier          Tier
	ActorName     string
	ActorRole     auth.Role
	PatientName   string
	Justification string
	Inside        bool
	ClientIP      string
}

// Decision is the outcome of one completed access request.
type Decision struct {
	Tier       Tier             `json:"tier"`
	Status     auditlog.Status  `json:"status"`
	Granted    bool             `json:"granted"`
	Message    string           `json:"message"`
	TrustScore int              `json:"trust_score"`
	Patient    *patient.Patient `json:"patient_data,omitempty"`
	ExpiresAt  *time.Time       `json:"expires_at,omitempty"`

	ActorName   string    `json:"actor_name"`
	ActorRole   auth.Role `json:"actor_role"`
	PatientName string    `json:"patient_name"`
}

// Policy holds the tunable decision parameters. All values come from
// configuration; nothing in the engine hard-codes a threshold or delta.
type Policy struct {
	NormalThreshold     int
	RestrictedThreshold int

	DeltaGrant     int
	DeltaDeny      int
	DeltaFlag      int
	DeltaJustified int

	EmergencyMinJustification int
	TempAccessTTL             time.Duration
}

// TempGrant is a time-boxed on-site access window for a nurse.
type TempGrant struct {
	ID          uuid.UUID `db:"id" json:"id"`
	NurseName   string    `db:"nurse_name" json:"nurse_name"`
	PatientName string    `db:"patient_name" json:"patient_name"`
	GrantedAt   time.Time `db:"granted_at" json:"granted_at"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
}

// RejectionError is a request the gateway refuses before doing any work.
// Rejected requests leave no audit entry and no trust score change.
type RejectionError struct {
	Reason string
}

func (e *RejectionError) Error() string { return e.Reason }

func reject(format string, args ...interface{}) *RejectionError {
	return &RejectionError{Reason: fmt.Sprintf(format, args...)}
}
