package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

type mockPrincipalRepo struct {
	byName map[string]*Principal
}

func newMockPrincipalRepo() *mockPrincipalRepo {
	return &mockPrincipalRepo{byName: map[string]*Principal{}}
}

func (m *mockPrincipalRepo) Create(ctx context.Context, p *Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	m.byName[p.Name] = p
	return nil
}

func (m *mockPrincipalRepo) GetByName(ctx context.Context, name string) (*Principal, error) {
	p, ok := m.byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPrincipalRepo) GetByEmail(ctx context.Context, email string) (*Principal, error) {
	for _, p := range m.byName {
		if p.Email == email {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPrincipalRepo) List(ctx context.Context, limit, offset int) ([]*Principal, int, error) {
	var out []*Principal
	for _, p := range m.byName {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockPrincipalRepo) UpdateRole(ctx context.Context, name string, role auth.Role) error {
	p, ok := m.byName[name]
	if !ok {
		return ErrNotFound
	}
	p.Role = role
	return nil
}

type mockChallengeRepo struct {
	byName map[string]*Challenge
}

func newMockChallengeRepo() *mockChallengeRepo {
	return &mockChallengeRepo{byName: map[string]*Challenge{}}
}

func (m *mockChallengeRepo) Put(ctx context.Context, c *Challenge) error {
	m.byName[c.PrincipalName] = c
	return nil
}

func (m *mockChallengeRepo) Get(ctx context.Context, name string) (*Challenge, error) {
	c, ok := m.byName[name]
	if !ok {
		return nil, ErrNoChallenge
	}
	return c, nil
}

func (m *mockChallengeRepo) Delete(ctx context.Context, name string) error {
	delete(m.byName, name)
	return nil
}

type mockSender struct {
	sent []string
}

func (m *mockSender) SendCode(ctx context.Context, p *Principal, code string) error {
	m.sent = append(m.sent, code)
	return nil
}

type mockAudit struct {
	entries []*auditlog.Entry
}

func (m *mockAudit) Record(ctx context.Context, e *auditlog.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

type fixture struct {
	svc        *Service
	principals *mockPrincipalRepo
	challenges *mockChallengeRepo
	sender     *mockSender
	audit      *mockAudit
	clock      *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	principals := newMockPrincipalRepo()
	challenges := newMockChallengeRepo()
	sender := &mockSender{}
	audit := &mockAudit{}
	session := auth.SessionConfig{Secret: []byte("test-secret"), TTL: time.Hour, Issuer: "medtrust"}
	svc := NewService(principals, challenges, sender, audit, session, 180*time.Second, zerolog.Nop())

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := &now
	svc.now = func() time.Time { return *clock }
	svc.genCode = func() (string, error) { return "123456", nil }

	return &fixture{svc: svc, principals: principals, challenges: challenges, sender: sender, audit: audit, clock: clock}
}

func (f *fixture) addPrincipal(name, email string, role auth.Role) *Principal {
	p := &Principal{ID: uuid.New(), Name: name, Email: email, Role: role, TrustScore: DefaultTrustScore}
	f.principals.byName[name] = p
	return p
}

func (f *fixture) advance(d time.Duration) {
	*f.clock = f.clock.Add(d)
}

func TestStartOTPLogin(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal("Dr. Adams", "adams@clinic.test", auth.RoleDoctor)

	res, err := f.svc.StartOTPLogin(context.Background(), "Dr. Adams")
	if err != nil {
		t.Fatalf("StartOTPLogin: %v", err)
	}
	if !res.OTPRequired {
		t.Error("expected otp_required")
	}
	if res.Token != "" {
		t.Error("token must not be issued before verification")
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != "123456" {
		t.Errorf("expected one code delivery, got %v", f.sender.sent)
	}
	ch := f.challenges.byName["Dr. Adams"]
	if ch == nil {
		t.Fatal("challenge not stored")
	}
	if got := ch.ExpiresAt.Sub(ch.CreatedAt); got != 180*time.Second {
		t.Errorf("expected 180s ttl, got %v", got)
	}
}

func TestStartOTPLoginUnknownPrincipal(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.StartOTPLogin(context.Background(), "ghost"); err != ErrInvalidCredentials {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestOTPLoginRefusedForAdmins(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal("Root", "admin@clinic.test", auth.RoleAdmin)
	ctx := context.Background()

	if _, err := f.svc.StartOTPLogin(ctx, "Root"); err != ErrInvalidCredentials {
		t.Errorf("admin OTP login should fail, got %v", err)
	}
	if _, err := f.svc.ResendOTP(ctx, "Root"); err != ErrInvalidCredentials {
		t.Errorf("admin OTP resend should fail, got %v", err)
	}
	if len(f.sender.sent) != 0 {
		t.Errorf("no code may be delivered to an admin, got %v", f.sender.sent)
	}
	if _, ok := f.challenges.byName["Root"]; ok {
		t.Error("no challenge may be stored for an admin")
	}
}

func TestVerifyOTPSuccess(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal("Dr. Adams", "adams@clinic.test", auth.RoleDoctor)
	ctx := context.Background()

	if _, err := f.svc.StartOTPLogin(ctx, "Dr. Adams"); err != nil {
		t.Fatalf("StartOTPLogin: %v", err)
	}
	res, err := f.svc.VerifyOTP(ctx, "Dr. Adams", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if !res.Verified || res.Token == "" {
		t.Fatalf("expected verified with token, got %+v", res)
	}
	if _, ok := f.challenges.byName["Dr. Adams"]; ok {
		t.Error("challenge must be consumed on success")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Status != auditlog.StatusGranted {
		t.Errorf("expected one granted login entry, got %+v", f.audit.entries)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal("Nina", "nina@clinic.test", auth.RoleNurse)
	ctx := context.Background()

	if _, err := f.svc.StartOTPLogin(ctx, "Nina"); err != nil {
		t.Fatalf("StartOTPLogin: %v", err)
	}
	res, err := f.svc.VerifyOTP(ctx, "Nina", "000000")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if res.Verified || res.Token != "" {
		t.Fatalf("wrong code must not verify: %+v", res)
	}
	if _, ok := f.challenges.byName["Nina"]; !ok {
		t.Error("challenge should survive a wrong guess")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Status != auditlog.StatusDenied {
		t.Errorf("expected denied audit entry, got %+v", f.audit.entries)
	}
}

func TestVerifyOTPExpired(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal("Nina", "nina@clinic.test", auth.RoleNurse)
	ctx := context.Background()

	if _, err := f.svc.StartOTPLogin(ctx, "Nina"); err != nil {
		t.Fatalf("StartOTPLogin: %v", err)
	}
	f.advance(181 * time.Second)

	res, err := f.svc.VerifyOTP(ctx, "Nina", "123456")
	if err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	if res.Verified {
		t.Error("expired code must not verify")
	}
	if res.Reason != "code expired" {
		t.Errorf("expected expiry reason, got %q", res.Reason)
	}
}

func TestResendOTPOnlyAfterExpiry(t *testing.T) {
	f := newFixture(t)
	f.addPrincipal("Nina", "nina@clinic.test", auth.RoleNurse)
	ctx := context.Background()

	if _, err := f.svc.StartOTPLogin(ctx, "Nina"); err != nil {
		t.Fatalf("StartOTPLogin: %v", err)
	}
	if _, err := f.svc.ResendOTP(ctx, "Nina"); err != ErrChallengeActive {
		t.Errorf("resend before expiry should fail, got %v", err)
	}

	f.advance(181 * time.Second)
	if _, err := f.svc.ResendOTP(ctx, "Nina"); err != nil {
		t.Errorf("resend after expiry: %v", err)
	}
	if len(f.sender.sent) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(f.sender.sent))
	}
}

func TestLoginWithPassword(t *testing.T) {
	f := newFixture(t)
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	admin := f.addPrincipal("Root", "admin@clinic.test", auth.RoleAdmin)
	admin.PasswordHash = string(hash)
	ctx := context.Background()

	res, err := f.svc.LoginWithPassword(ctx, "admin@clinic.test", "hunter2")
	if err != nil {
		t.Fatalf("LoginWithPassword: %v", err)
	}
	if res.Token == "" || res.OTPRequired {
		t.Fatalf("expected direct token, got %+v", res)
	}

	if _, err := f.svc.LoginWithPassword(ctx, "admin@clinic.test", "wrong"); err != ErrInvalidCredentials {
		t.Errorf("wrong password should fail, got %v", err)
	}
	if _, err := f.svc.LoginWithPassword(ctx, "nobody@clinic.test", "x"); err != ErrInvalidCredentials {
		t.Errorf("unknown email should fail, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Register(ctx, "Dr. Adams", "adams@clinic.test", auth.RoleDoctor, "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if p.TrustScore != DefaultTrustScore {
		t.Errorf("expected default trust score %d, got %d", DefaultTrustScore, p.TrustScore)
	}

	if _, err := f.svc.Register(ctx, "Dr. Adams", "other@clinic.test", auth.RoleDoctor, ""); err == nil {
		t.Error("duplicate name must be rejected")
	}
	if _, err := f.svc.Register(ctx, "X", "x@clinic.test", "superuser", ""); err == nil {
		t.Error("unknown role must be rejected")
	}
}
