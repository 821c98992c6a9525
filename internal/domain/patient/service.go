package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

// AuditRecorder is the slice of the audit log the patient service writes to.
type AuditRecorder interface {
	Record(ctx context.Context, e *auditlog.Entry) error
}

type Service struct {
	repo  Repository
	audit AuditRecorder
	log   zerolog.Logger
}

func NewService(repo Repository, audit AuditRecorder, log zerolog.Logger) *Service {
	return &Service{repo: repo, audit: audit, log: log}
}

func (s *Service) Create(ctx context.Context, p *Patient) (*Patient, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if p.Age < 0 || p.Age > 150 {
		return nil, fmt.Errorf("age %d is out of range", p.Age)
	}
	if existing, err := s.repo.GetByName(ctx, p.Name); err == nil && existing != nil {
		return nil, fmt.Errorf("patient %q already exists", p.Name)
	}

	p.LastUpdatedBy = auth.UserNameFromContext(ctx)
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, p.Name, "Created patient record")
	return p, nil
}

func (s *Service) GetByName(ctx context.Context, name string) (*Patient, error) {
	if name == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	return s.repo.GetByName(ctx, name)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Update merges the supplied fields into the existing record and stamps the
// updating principal from the session. Callers send only the fields they want
// changed; omitted fields keep their stored values rather than being blanked.
func (s *Service) Update(ctx context.Context, p *Patient) (*Patient, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("patient name is required")
	}
	if p.Age < 0 || p.Age > 150 {
		return nil, fmt.Errorf("age %d is out of range", p.Age)
	}

	existing, err := s.repo.GetByName(ctx, p.Name)
	if err != nil {
		return nil, err
	}

	merged := *existing
	if p.Email != "" {
		merged.Email = p.Email
	}
	if p.Age != 0 {
		merged.Age = p.Age
	}
	if p.Gender != "" {
		merged.Gender = p.Gender
	}
	if p.Diagnosis != "" {
		merged.Diagnosis = p.Diagnosis
	}
	if p.Treatment != "" {
		merged.Treatment = p.Treatment
	}
	if p.Notes != "" {
		merged.Notes = p.Notes
	}
	if p.AssignedDoctor != "" {
		merged.AssignedDoctor = p.AssignedDoctor
	}

	merged.LastUpdatedBy = auth.UserNameFromContext(ctx)
	merged.LastUpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, &merged); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, p.Name, "Updated patient record")
	return s.repo.GetByName(ctx, p.Name)
}

// recordAudit writes a trail entry for a record mutation. A failed append is
// logged but does not undo the mutation itself.
func (s *Service) recordAudit(ctx context.Context, patientName, action string) {
	entry := &auditlog.Entry{
		ActorName:   auth.UserNameFromContext(ctx),
		ActorRole:   auth.RoleFromContext(ctx),
		PatientName: patientName,
		Action:      action,
		Status:      auditlog.StatusGranted,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Str("patient", patientName).
			Str("action", action).
			Msg("failed to record audit entry for patient mutation")
	}
}
