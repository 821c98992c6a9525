package patient

import (
	"time"

	"github.com/google/uuid"
)

// Patient is one clinical record. Records are looked up by name because the
// access tiers and the audit log key on patient name end to end.
type Patient struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email,omitempty"`
	Age            int       `db:"age" json:"age"`
	Gender         string    `db:"gender" json:"gender,omitempty"`
	Diagnosis      string    `db:"diagnosis" json:"diagnosis,omitempty"`
	Treatment      string    `db:"treatment" json:"treatment,omitempty"`
	Notes          string    `db:"notes" json:"notes,omitempty"`
	AssignedDoctor string    `db:"assigned_doctor" json:"assigned_doctor,omitempty"`
	LastUpdatedBy  string    `db:"last_updated_by" json:"last_updated_by,omitempty"`
	LastUpdatedAt  time.Time `db:"last_updated_at" json:"last_updated_at"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
