package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

type Service struct {
	repo EntryRepository
}

func NewService(repo EntryRepository) *Service {
	return &Service{repo: repo}
}

// Record appends one entry. Validation is strict because the log is the
// system of record for every access decision.
func (s *Service) Record(ctx context.Context, e *Entry) error {
	if e.ActorName == "" {
		return fmt.Errorf("actor_name is required")
	}
	if !e.ActorRole.Valid() {
		return fmt.Errorf("actor_role %q is not a known role", e.ActorRole)
	}
	if e.Action == "" {
		return fmt.Errorf("action is required")
	}
	if _, err := ParseStatus(string(e.Status)); err != nil {
		return err
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	return s.repo.Append(ctx, e)
}

func (s *Service) ListAll(ctx context.Context, limit, offset int) ([]*Entry, int, error) {
	return s.repo.List(ctx, limit, offset)
}

func (s *Service) ListByRole(ctx context.Context, role auth.Role, limit, offset int) ([]*Entry, int, error) {
	return s.repo.ListByRole(ctx, role, limit, offset)
}

func (s *Service) ListByActor(ctx context.Context, role auth.Role, name string, limit, offset int) ([]*Entry, int, error) {
	if name == "" {
		return nil, 0, fmt.Errorf("actor name is required")
	}
	return s.repo.ListByActor(ctx, role, name, limit, offset)
}

func (s *Service) ListByPatient(ctx context.Context, patientName string, limit, offset int) ([]*Entry, int, error) {
	if patientName == "" {
		return nil, 0, fmt.Errorf("patient name is required")
	}
	return s.repo.ListByPatient(ctx, patientName, limit, offset)
}
