package notification

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/medtrust/medtrust/internal/domain/access"
	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/domain/identity"
)

// DecisionNotifier tells the security contact about denials and flags.
type DecisionNotifier struct {
	center        *Center
	securityEmail string
	log           zerolog.Logger
}

func NewDecisionNotifier(center *Center, securityEmail string, log zerolog.Logger) *DecisionNotifier {
	return &DecisionNotifier{center: center, securityEmail: securityEmail, log: log}
}

func (n *DecisionNotifier) NotifyDecision(ctx context.Context, d *access.Decision) {
	templateID := TemplateAccessDenied
	if d.Status == auditlog.StatusFlagged {
		templateID = TemplateAccessFlagged
	}
	data := map[string]string{
		"tier":         string(d.Tier),
		"actor_name":   d.ActorName,
		"actor_role":   string(d.ActorRole),
		"patient_name": d.PatientName,
		"trust_score":  fmt.Sprintf("%d", d.TrustScore),
	}
	if _, err := n.center.SendFromTemplate(ctx, templateID, n.securityEmail, data); err != nil {
		n.log.Error().Err(err).Str("template", templateID).Msg("failed to send decision notice")
	}
}

// OTPSender delivers one-time codes to a principal's email address.
type OTPSender struct {
	center *Center
	ttl    string
}

func NewOTPSender(center *Center, ttl string) *OTPSender {
	return &OTPSender{center: center, ttl: ttl}
}

func (s *OTPSender) SendCode(ctx context.Context, p *identity.Principal, code string) error {
	if p.Email == "" {
		return fmt.Errorf("principal %q has no email address", p.Name)
	}
	_, err := s.center.SendFromTemplate(ctx, TemplateOTPCode, p.Email, map[string]string{
		"name": p.Name,
		"code": code,
		"ttl":  s.ttl,
	})
	return err
}

// LogEmailSender writes emails to the log instead of delivering them. Used in
// development and test environments without an SMTP relay.
type LogEmailSender struct {
	Log zerolog.Logger
}

func (s *LogEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.Log.Info().Str("to", to).Str("subject", subject).Str("body", body).Msg("email notice")
	return nil
}

// LogSMSSender writes SMS messages to the log instead of delivering them.
type LogSMSSender struct {
	Log zerolog.Logger
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.Log.Info().Str("to", to).Str("body", body).Msg("sms notice")
	return nil
}
