package trust

import (
	"context"
	"fmt"
)

type Service struct {
	repo ScoreRepository
}

func NewService(repo ScoreRepository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetScore(ctx context.Context, principal string) (int, error) {
	if principal == "" {
		return 0, fmt.Errorf("principal is required")
	}
	return s.repo.GetScore(ctx, principal)
}

// Adjust applies a relative delta to the principal's score. The store clamps
// the result into [MinScore, MaxScore].
func (s *Service) Adjust(ctx context.Context, principal string, delta int) (int, error) {
	if principal == "" {
		return 0, fmt.Errorf("principal is required")
	}
	return s.repo.Adjust(ctx, principal, delta)
}
