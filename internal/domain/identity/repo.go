package identity

import (
	"context"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

type PrincipalRepository interface {
	Create(ctx context.Context, p *Principal) error
	GetByName(ctx context.Context, name string) (*Principal, error)
	GetByEmail(ctx context.Context, email string) (*Principal, error)
	List(ctx context.Context, limit, offset int) ([]*Principal, int, error)
	UpdateRole(ctx context.Context, name string, role auth.Role) error
}

// ChallengeRepository holds pending OTPs, at most one per principal.
type ChallengeRepository interface {
	Put(ctx context.Context, c *Challenge) error
	Get(ctx context.Context, principalName string) (*Challenge, error)
	Delete(ctx context.Context, principalName string) error
}
