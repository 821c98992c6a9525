package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeActive    = errors.New("a code was already sent and has not expired yet")
)

// CodeSender delivers one-time codes to principals.
type CodeSender interface {
	SendCode(ctx context.Context, p *Principal, code string) error
}

type AuditRecorder interface {
	Record(ctx context.Context, e *auditlog.Entry) error
}

type Service struct {
	principals PrincipalRepository
	challenges ChallengeRepository
	sender     CodeSender
	audit      AuditRecorder
	session    auth.SessionConfig
	otpTTL     time.Duration
	log        zerolog.Logger

	now     func() time.Time
	genCode func() (string, error)
}

func NewService(
	principals PrincipalRepository,
	challenges ChallengeRepository,
	sender CodeSender,
	audit AuditRecorder,
	session auth.SessionConfig,
	otpTTL time.Duration,
	log zerolog.Logger,
) *Service {
	return &Service{
		principals: principals,
		challenges: challenges,
		sender:     sender,
		audit:      audit,
		session:    session,
		otpTTL:     otpTTL,
		log:        log,
		now:        time.Now,
		genCode:    generateCode,
	}
}

// generateCode produces a 6-digit numeric one-time code.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// LoginResult is what a login attempt produces: either a session token
// (password principals) or a pending OTP challenge.
type LoginResult struct {
	Token       string     `json:"token,omitempty"`
	OTPRequired bool       `json:"otp_required"`
	ExpiresAt   *time.Time `json:"otp_expires_at,omitempty"`
	Principal   *Principal `json:"principal,omitempty"`
}

// LoginWithPassword authenticates a password-carrying principal (admins) and
// issues a session token directly.
func (s *Service) LoginWithPassword(ctx context.Context, email, password string) (*LoginResult, error) {
	p, err := s.principals.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if p.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PasswordHash), []byte(password)); err != nil {
		s.recordLogin(ctx, p, "Password login failed", auditlog.StatusDenied)
		return nil, ErrInvalidCredentials
	}

	token, err := auth.IssueToken(s.session, p.ID.String(), p.Name, p.Role)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, p, "Password login", auditlog.StatusGranted)
	return &LoginResult{Token: token, Principal: p}, nil
}

// StartOTPLogin begins an OTP login for a named principal. The previous
// challenge, if any, is replaced. Admins never get the OTP path: their
// sessions require the password, so a name alone must not mint one.
func (s *Service) StartOTPLogin(ctx context.Context, name string) (*LoginResult, error) {
	p, err := s.principals.GetByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if p.Role == auth.RoleAdmin {
		s.recordLogin(ctx, p, "OTP login refused for admin", auditlog.StatusDenied)
		return nil, ErrInvalidCredentials
	}
	return s.issueChallenge(ctx, p)
}

// ResendOTP issues a fresh code only once the previous one has expired.
// Resending while a code is live would let a caller mint codes at will.
func (s *Service) ResendOTP(ctx context.Context, name string) (*LoginResult, error) {
	p, err := s.principals.GetByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if p.Role == auth.RoleAdmin {
		return nil, ErrInvalidCredentials
	}

	existing, err := s.challenges.Get(ctx, name)
	if err != nil && !errors.Is(err, ErrNoChallenge) {
		return nil, err
	}
	if existing != nil && !existing.Expired(s.now()) {
		return nil, ErrChallengeActive
	}
	return s.issueChallenge(ctx, p)
}

func (s *Service) issueChallenge(ctx context.Context, p *Principal) (*LoginResult, error) {
	code, err := s.genCode()
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	ch := &Challenge{
		PrincipalName: p.Name,
		Code:          code,
		ExpiresAt:     now.Add(s.otpTTL),
		CreatedAt:     now,
	}
	if err := s.challenges.Put(ctx, ch); err != nil {
		return nil, err
	}
	if err := s.sender.SendCode(ctx, p, code); err != nil {
		s.log.Error().Err(err).Str("principal", p.Name).Msg("failed to deliver otp")
		return nil, fmt.Errorf("deliver otp: %w", err)
	}
	expires := ch.ExpiresAt
	return &LoginResult{OTPRequired: true, ExpiresAt: &expires}, nil
}

// VerifyResult reports the outcome of an OTP verification. Expired and
// mismatched codes both come back verified=false rather than as errors.
type VerifyResult struct {
	Verified  bool       `json:"verified"`
	Token     string     `json:"token,omitempty"`
	Principal *Principal `json:"principal,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// VerifyOTP checks a submitted code. A correct, unexpired code consumes the
// challenge and yields a session token.
func (s *Service) VerifyOTP(ctx context.Context, name, code string) (*VerifyResult, error) {
	p, err := s.principals.GetByName(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return &VerifyResult{Verified: false, Reason: "unknown principal"}, nil
	}
	if err != nil {
		return nil, err
	}

	ch, err := s.challenges.Get(ctx, name)
	if errors.Is(err, ErrNoChallenge) {
		return &VerifyResult{Verified: false, Reason: "no code was requested"}, nil
	}
	if err != nil {
		return nil, err
	}

	if ch.Expired(s.now()) {
		s.recordLogin(ctx, p, "OTP verification failed: code expired", auditlog.StatusDenied)
		return &VerifyResult{Verified: false, Reason: "code expired"}, nil
	}
	if ch.Code != code {
		s.recordLogin(ctx, p, "OTP verification failed: wrong code", auditlog.StatusDenied)
		return &VerifyResult{Verified: false, Reason: "incorrect code"}, nil
	}

	if err := s.challenges.Delete(ctx, name); err != nil {
		s.log.Error().Err(err).Str("principal", name).Msg("failed to consume challenge")
	}

	token, err := auth.IssueToken(s.session, p.ID.String(), p.Name, p.Role)
	if err != nil {
		return nil, err
	}
	s.recordLogin(ctx, p, "OTP login", auditlog.StatusGranted)
	return &VerifyResult{Verified: true, Token: token, Principal: p}, nil
}

// Register enrolls a new principal. Password is optional and only meaningful
// for admins.
func (s *Service) Register(ctx context.Context, name, email string, role auth.Role, password string) (*Principal, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !role.Valid() {
		return nil, fmt.Errorf("role %q is not a known role", role)
	}
	if existing, err := s.principals.GetByName(ctx, name); err == nil && existing != nil {
		return nil, fmt.Errorf("principal %q already exists", name)
	}

	p := &Principal{
		Name:       name,
		Email:      email,
		Role:       role,
		TrustScore: DefaultTrustScore,
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		p.PasswordHash = string(hash)
	}
	if err := s.principals.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) AssignRole(ctx context.Context, name string, role auth.Role) error {
	if !role.Valid() {
		return fmt.Errorf("role %q is not a known role", role)
	}
	return s.principals.UpdateRole(ctx, name, role)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Principal, int, error) {
	return s.principals.List(ctx, limit, offset)
}

func (s *Service) recordLogin(ctx context.Context, p *Principal, action string, status auditlog.Status) {
	entry := &auditlog.Entry{
		ActorName: p.Name,
		ActorRole: p.Role,
		Action:    action,
		Status:    status,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.log.Error().Err(err).Str("principal", p.Name).Msg("failed to record login audit entry")
	}
}
