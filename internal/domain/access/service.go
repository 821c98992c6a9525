package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/domain/patient"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

// PatientReader is the slice of the patient domain the engine reads from.
type PatientReader interface {
	GetByName(ctx context.Context, name string) (*patient.Patient, error)
}

// TrustStore reads and adjusts trust scores.
type TrustStore interface {
	GetScore(ctx context.Context, principal string) (int, error)
	Adjust(ctx context.Context, principal string, delta int) (int, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, e *auditlog.Entry) error
}

// Publisher receives every completed decision, e.g. for live dashboards.
type Publisher interface {
	PublishDecision(d *Decision)
}

// Notifier is told about denials and flagged accesses.
type Notifier interface {
	NotifyDecision(ctx context.Context, d *Decision)
}

// Service is the access decision engine. Every request runs the same
// pipeline: validate, decide, record exactly one audit entry, adjust trust,
// then re-read the score so the caller sees their post-decision standing.
type Service struct {
	policy   Policy
	patients PatientReader
	trust    TrustStore
	audit    AuditRecorder
	grants   TempGrantRepository
	pub      Publisher
	notify   Notifier
	log      zerolog.Logger

	now func() time.Time
}

func NewService(
	policy Policy,
	patients PatientReader,
	trust TrustStore,
	audit AuditRecorder,
	grants TempGrantRepository,
	pub Publisher,
	notify Notifier,
	log zerolog.Logger,
) *Service {
	return &Service{
		policy:   policy,
		patients: patients,
		trust:    trust,
		audit:    audit,
		grants:   grants,
		pub:      pub,
		notify:   notify,
		log:      log,
		now:      time.Now,
	}
}

// validate rejects malformed requests before the engine touches any store.
// A rejection here must leave zero side effects behind.
func (s *Service) validate(req *Request) *RejectionError {
	if req.PatientName == "" {
		return reject("patient name is required")
	}
	switch req.Tier {
	case TierNormal:
	case TierRestricted:
		if req.Inside {
			return reject("restricted access is only available from outside the hospital network")
		}
		if req.Justification == "" {
			return reject("restricted access requires a justification")
		}
	case TierEmergency:
		if len(req.Justification) < s.policy.EmergencyMinJustification {
			return reject("emergency justification must be at least %d characters", s.policy.EmergencyMinJustification)
		}
	case TierTemporary:
		if req.ActorRole != auth.RoleNurse {
			return reject("temporary access is only available to nurses")
		}
		if !req.Inside {
			return reject("temporary access is only available from inside the hospital network")
		}
	default:
		return reject("unknown access tier %q", req.Tier)
	}
	return nil
}

// Decide runs one access request through the engine. The returned error is
// either a *RejectionError (no side effects occurred) or an internal failure.
func (s *Service) Decide(ctx context.Context, req *Request) (*Decision, error) {
	if rej := s.validate(req); rej != nil {
		return nil, rej
	}

	p, err := s.patients.GetByName(ctx, req.PatientName)
	if errors.Is(err, patient.ErrNotFound) {
		return nil, reject("patient %q not found", req.PatientName)
	}
	if err != nil {
		return nil, fmt.Errorf("look up patient: %w", err)
	}

	score, err := s.trust.GetScore(ctx, req.ActorName)
	if err != nil {
		return nil, fmt.Errorf("read trust score: %w", err)
	}

	d := s.decide(ctx, req, score)
	d.ActorName = req.ActorName
	d.ActorRole = req.ActorRole
	d.PatientName = req.PatientName
	if d.Granted {
		d.Patient = p
	}

	s.settle(ctx, req, d)

	if s.pub != nil {
		s.pub.PublishDecision(d)
	}
	if s.notify != nil && d.Status != auditlog.StatusGranted {
		s.notify.NotifyDecision(ctx, d)
	}
	return d, nil
}

// decide applies the per-tier decision table to an already validated request.
func (s *Service) decide(ctx context.Context, req *Request, score int) *Decision {
	d := &Decision{Tier: req.Tier, TrustScore: score}

	switch req.Tier {
	case TierNormal:
		threshold := s.policy.NormalThreshold
		if !req.Inside {
			threshold = s.policy.RestrictedThreshold
		}
		if score >= threshold {
			d.Status = auditlog.StatusGranted
			d.Granted = true
			d.Message = "access granted"
			return d
		}
		if req.Inside {
			if g, err := s.grants.GetActive(ctx, req.ActorName, req.PatientName, s.now()); err == nil {
				d.Status = auditlog.StatusGranted
				d.Granted = true
				d.Message = "access granted under a temporary window"
				expires := g.ExpiresAt
				d.ExpiresAt = &expires
				return d
			}
		}
		d.Status = auditlog.StatusDenied
		d.Message = fmt.Sprintf("trust score %d is below the required threshold %d", score, threshold)

	case TierRestricted:
		if score >= s.policy.RestrictedThreshold {
			d.Status = auditlog.StatusGranted
			d.Granted = true
			d.Message = "restricted access granted"
		} else {
			d.Status = auditlog.StatusDenied
			d.Message = fmt.Sprintf("trust score %d is below the off-site threshold %d", score, s.policy.RestrictedThreshold)
		}

	case TierEmergency:
		// Emergency access always goes through, and always gets flagged
		// for review.
		d.Status = auditlog.StatusFlagged
		d.Granted = true
		d.Message = "emergency access granted and flagged for review"

	case TierTemporary:
		if score < s.policy.NormalThreshold {
			d.Status = auditlog.StatusDenied
			d.Message = fmt.Sprintf("trust score %d is below the required threshold %d", score, s.policy.NormalThreshold)
			return d
		}
		g := &TempGrant{
			NurseName:   req.ActorName,
			PatientName: req.PatientName,
			GrantedAt:   s.now().UTC(),
		}
		g.ExpiresAt = g.GrantedAt.Add(s.policy.TempAccessTTL)
		if err := s.grants.Create(ctx, g); err != nil {
			s.log.Error().Err(err).Str("nurse", req.ActorName).Msg("failed to store temp grant")
			d.Status = auditlog.StatusDenied
			d.Message = "temporary access is unavailable right now"
			return d
		}
		d.Status = auditlog.StatusGranted
		d.Granted = true
		d.Message = "temporary access granted"
		expires := g.ExpiresAt
		d.ExpiresAt = &expires
	}
	return d
}

// settle records the audit entry, applies the trust delta, and re-reads the
// score. An audit failure degrades a grant to a denial but never turns into
// an HTTP error; the decision already happened.
func (s *Service) settle(ctx context.Context, req *Request, d *Decision) {
	entry := &auditlog.Entry{
		ActorName:     req.ActorName,
		ActorRole:     req.ActorRole,
		PatientName:   req.PatientName,
		Action:        fmt.Sprintf("%s Access", strings.ToUpper(string(req.Tier))),
		Justification: req.Justification,
		Status:        d.Status,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Str("actor", req.ActorName).
			Str("tier", string(req.Tier)).
			Msg("audit append failed, degrading decision to denial")
		d.Granted = false
		d.Patient = nil
		d.Status = auditlog.StatusDenied
		d.Message = "access denied: the audit log is unavailable"
		s.refreshScore(ctx, req.ActorName, d)
		return
	}

	delta := s.delta(d.Status, req.Justification != "")
	if _, err := s.trust.Adjust(ctx, req.ActorName, delta); err != nil {
		s.log.Error().Err(err).Str("actor", req.ActorName).Msg("trust adjustment failed")
	}
	s.refreshScore(ctx, req.ActorName, d)
}

func (s *Service) delta(status auditlog.Status, justified bool) int {
	switch status {
	case auditlog.StatusGranted:
		return s.policy.DeltaGrant
	case auditlog.StatusDenied:
		return s.policy.DeltaDeny
	case auditlog.StatusFlagged:
		if justified {
			return s.policy.DeltaFlag + s.policy.DeltaJustified
		}
		return s.policy.DeltaFlag
	}
	return 0
}

// refreshScore re-reads the post-decision score so the response reflects the
// principal's current standing, not the score the decision was made against.
func (s *Service) refreshScore(ctx context.Context, actor string, d *Decision) {
	score, err := s.trust.GetScore(ctx, actor)
	if err != nil {
		s.log.Error().Err(err).Str("actor", actor).Msg("failed to re-read trust score")
		return
	}
	d.TrustScore = score
}
