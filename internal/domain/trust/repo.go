package trust

import "context"

// ScoreRepository reads and adjusts per-principal trust scores. Adjust is
// relative and clamped; there is no absolute setter outside of enrollment.
type ScoreRepository interface {
	GetScore(ctx context.Context, principal string) (int, error)
	Adjust(ctx context.Context, principal string, delta int) (int, error)
}
