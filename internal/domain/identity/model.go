package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

// DefaultTrustScore is the standing a freshly enrolled principal starts with.
// It sits between the restricted and normal thresholds so new staff can work
// on-site but earn off-site access over time.
const DefaultTrustScore = 50

// Principal is one authenticated identity. Admins carry a password hash;
// everyone else authenticates through one-time codes.
type Principal struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Role         auth.Role `db:"role" json:"role"`
	PasswordHash string    `db:"password_hash" json:"-"`
	TrustScore   int       `db:"trust_score" json:"trust_score"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// Challenge is one pending OTP. A principal has at most one live challenge;
// issuing a new one replaces the previous.
type Challenge struct {
	PrincipalName string    `db:"principal_name" json:"-"`
	Code          string    `db:"code" json:"-"`
	ExpiresAt     time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the challenge is past its TTL at the given instant.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
