package access

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/domain/patient"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

type mockPatients struct {
	byName map[string]*patient.Patient
	calls  int
}

func (m *mockPatients) GetByName(ctx context.Context, name string) (*patient.Patient, error) {
	m.calls++
	p, ok := m.byName[name]
	if !ok {
		return nil, patient.ErrNotFound
	}
	return p, nil
}

type mockTrust struct {
	scores  map[string]int
	reads   int
	adjusts int
}

func (m *mockTrust) GetScore(ctx context.Context, principal string) (int, error) {
	m.reads++
	return m.scores[principal], nil
}

func (m *mockTrust) Adjust(ctx context.Context, principal string, delta int) (int, error) {
	m.adjusts++
	v := m.scores[principal] + delta
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}
	m.scores[principal] = v
	return v, nil
}

type mockAuditRec struct {
	entries []*auditlog.Entry
	fail    bool
}

func (m *mockAuditRec) Record(ctx context.Context, e *auditlog.Entry) error {
	if m.fail {
		return errors.New("audit store down")
	}
	m.entries = append(m.entries, e)
	return nil
}

type mockGrants struct {
	grants []*TempGrant
}

func (m *mockGrants) Create(ctx context.Context, g *TempGrant) error {
	m.grants = append(m.grants, g)
	return nil
}

func (m *mockGrants) GetActive(ctx context.Context, nurse, patientName string, now time.Time) (*TempGrant, error) {
	for _, g := range m.grants {
		if g.NurseName == nurse && g.PatientName == patientName && g.ExpiresAt.After(now) {
			return g, nil
		}
	}
	return nil, ErrNoActiveGrant
}

type mockPublisher struct {
	decisions []*Decision
}

func (m *mockPublisher) PublishDecision(d *Decision) {
	m.decisions = append(m.decisions, d)
}

type mockNotifier struct {
	decisions []*Decision
}

func (m *mockNotifier) NotifyDecision(ctx context.Context, d *Decision) {
	m.decisions = append(m.decisions, d)
}

func testPolicy() Policy {
	return Policy{
		NormalThreshold:           50,
		RestrictedThreshold:       80,
		DeltaGrant:                2,
		DeltaDeny:                 -5,
		DeltaFlag:                 -10,
		DeltaJustified:            1,
		EmergencyMinJustification: 5,
		TempAccessTTL:             30 * time.Minute,
	}
}

type engineFixture struct {
	svc      *Service
	patients *mockPatients
	trust    *mockTrust
	audit    *mockAuditRec
	grants   *mockGrants
	pub      *mockPublisher
	notify   *mockNotifier
}

func newEngine(t *testing.T, score int) *engineFixture {
	t.Helper()
	f := &engineFixture{
		patients: &mockPatients{byName: map[string]*patient.Patient{
			"John Doe": {Name: "John Doe", Age: 42, Diagnosis: "Hypertension"},
		}},
		trust:  &mockTrust{scores: map[string]int{"Dr. Adams": score, "Nina": score}},
		audit:  &mockAuditRec{},
		grants: &mockGrants{},
		pub:    &mockPublisher{},
		notify: &mockNotifier{},
	}
	f.svc = NewService(testPolicy(), f.patients, f.trust, f.audit, f.grants, f.pub, f.notify, zerolog.Nop())
	return f
}

func doctorReq(tier Tier, inside bool) *Request {
	return &Request{
		Tier:        tier,
		ActorName:   "Dr. Adams",
		ActorRole:   auth.RoleDoctor,
		PatientName: "John Doe",
		Inside:      inside,
	}
}

func TestNormalAccessInside(t *testing.T) {
	f := newEngine(t, 60)
	d, err := f.svc.Decide(context.Background(), doctorReq(TierNormal, true))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Granted || d.Status != auditlog.StatusGranted {
		t.Fatalf("expected grant, got %+v", d)
	}
	if d.Patient == nil || d.Patient.Name != "John Doe" {
		t.Error("expected patient data on grant")
	}
	if d.TrustScore != 62 {
		t.Errorf("expected post-decision score 62, got %d", d.TrustScore)
	}
	if len(f.audit.entries) != 1 {
		t.Fatalf("expected exactly one audit entry, got %d", len(f.audit.entries))
	}
	if f.audit.entries[0].Status != auditlog.StatusGranted {
		t.Errorf("audit status = %q", f.audit.entries[0].Status)
	}
	if f.audit.entries[0].Action != "NORMAL Access" {
		t.Errorf("audit action = %q", f.audit.entries[0].Action)
	}
}

func TestNormalAccessInsideBelowThreshold(t *testing.T) {
	f := newEngine(t, 40)
	d, err := f.svc.Decide(context.Background(), doctorReq(TierNormal, true))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Granted {
		t.Fatal("expected denial")
	}
	if d.Patient != nil {
		t.Error("denied requests must not carry patient data")
	}
	if d.TrustScore != 35 {
		t.Errorf("expected post-denial score 35, got %d", d.TrustScore)
	}
	if len(f.notify.decisions) != 1 {
		t.Errorf("expected denial notification, got %d", len(f.notify.decisions))
	}
}

func TestNormalAccessOutsideUsesStricterThreshold(t *testing.T) {
	f := newEngine(t, 60)
	d, err := f.svc.Decide(context.Background(), doctorReq(TierNormal, false))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Granted {
		t.Error("score 60 must fail the off-site threshold")
	}

	f = newEngine(t, 85)
	d, err = f.svc.Decide(context.Background(), doctorReq(TierNormal, false))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Granted {
		t.Error("score 85 should pass the off-site threshold")
	}
}

func TestRestrictedInsideRejectedWithoutSideEffects(t *testing.T) {
	f := newEngine(t, 90)
	req := doctorReq(TierRestricted, true)
	req.Justification = "follow-up review"

	_, err := f.svc.Decide(context.Background(), req)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if f.patients.calls != 0 {
		t.Error("rejected request must not look up the patient")
	}
	if f.trust.reads != 0 || f.trust.adjusts != 0 {
		t.Error("rejected request must not touch trust scores")
	}
	if len(f.audit.entries) != 0 {
		t.Error("rejected request must not write an audit entry")
	}
	if len(f.pub.decisions) != 0 {
		t.Error("rejected request must not publish a decision")
	}
}

func TestRestrictedRequiresJustification(t *testing.T) {
	f := newEngine(t, 90)
	_, err := f.svc.Decide(context.Background(), doctorReq(TierRestricted, false))
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(f.audit.entries) != 0 {
		t.Error("rejected request must not write an audit entry")
	}
}

func TestRestrictedOutsideDecision(t *testing.T) {
	f := newEngine(t, 85)
	req := doctorReq(TierRestricted, false)
	req.Justification = "on-call consult"
	d, err := f.svc.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Granted {
		t.Errorf("score 85 should grant restricted access: %s", d.Message)
	}

	f = newEngine(t, 70)
	req = doctorReq(TierRestricted, false)
	req.Justification = "on-call consult"
	d, err = f.svc.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Granted {
		t.Error("score 70 must be denied restricted access")
	}
	if len(f.audit.entries) != 1 || f.audit.entries[0].Justification != "on-call consult" {
		t.Error("denial must still carry the justification into the audit log")
	}
}

func TestEmergencyJustificationTooShort(t *testing.T) {
	f := newEngine(t, 90)
	req := doctorReq(TierEmergency, true)
	req.Justification = "now"

	_, err := f.svc.Decide(context.Background(), req)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(f.audit.entries) != 0 || f.trust.adjusts != 0 {
		t.Error("short justification must leave no side effects")
	}
}

func TestEmergencyAlwaysFlagged(t *testing.T) {
	f := newEngine(t, 10)
	req := doctorReq(TierEmergency, true)
	req.Justification = "patient coding in ER"

	d, err := f.svc.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Granted || d.Status != auditlog.StatusFlagged {
		t.Fatalf("emergency must grant and flag, got %+v", d)
	}
	if d.Patient == nil {
		t.Error("flagged grant still returns patient data")
	}
	// Flag delta softened by the justified bonus: 10 - 10 + 1 = 1.
	if d.TrustScore != 1 {
		t.Errorf("expected post-flag score 1, got %d", d.TrustScore)
	}
	if len(f.notify.decisions) != 1 {
		t.Error("flagged access must notify")
	}
}

func TestTemporaryAccessValidation(t *testing.T) {
	f := newEngine(t, 60)

	req := doctorReq(TierTemporary, true)
	if _, err := f.svc.Decide(context.Background(), req); err == nil {
		t.Error("doctors must not request temporary access")
	}

	nurse := &Request{Tier: TierTemporary, ActorName: "Nina", ActorRole: auth.RoleNurse, PatientName: "John Doe", Inside: false}
	if _, err := f.svc.Decide(context.Background(), nurse); err == nil {
		t.Error("temporary access must be rejected from outside")
	}
	if len(f.grants.grants) != 0 {
		t.Error("rejected temp requests must not store grants")
	}
}

func TestTemporaryAccessGrant(t *testing.T) {
	f := newEngine(t, 60)
	req := &Request{Tier: TierTemporary, ActorName: "Nina", ActorRole: auth.RoleNurse, PatientName: "John Doe", Inside: true}

	d, err := f.svc.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Granted || d.ExpiresAt == nil {
		t.Fatalf("expected time-boxed grant, got %+v", d)
	}
	if len(f.grants.grants) != 1 {
		t.Fatalf("expected stored grant, got %d", len(f.grants.grants))
	}
	g := f.grants.grants[0]
	if got := g.ExpiresAt.Sub(g.GrantedAt); got != 30*time.Minute {
		t.Errorf("expected 30m window, got %v", got)
	}
}

func TestTemporaryAccessBelowThresholdDenied(t *testing.T) {
	f := newEngine(t, 30)
	req := &Request{Tier: TierTemporary, ActorName: "Nina", ActorRole: auth.RoleNurse, PatientName: "John Doe", Inside: true}

	d, err := f.svc.Decide(context.Background(), req)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Granted {
		t.Error("score 30 must be denied temporary access")
	}
	if len(f.grants.grants) != 0 {
		t.Error("denied temp requests must not store grants")
	}
}

func TestTempWindowCoversLowScoreNormalAccess(t *testing.T) {
	f := newEngine(t, 60)
	ctx := context.Background()

	grant := &Request{Tier: TierTemporary, ActorName: "Nina", ActorRole: auth.RoleNurse, PatientName: "John Doe", Inside: true}
	if _, err := f.svc.Decide(ctx, grant); err != nil {
		t.Fatalf("temp grant: %v", err)
	}

	// Denials elsewhere drag the score under the threshold while the
	// window is still open.
	f.trust.scores["Nina"] = 30

	normal := &Request{Tier: TierNormal, ActorName: "Nina", ActorRole: auth.RoleNurse, PatientName: "John Doe", Inside: true}
	d, err := f.svc.Decide(ctx, normal)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if !d.Granted {
		t.Errorf("active temp window should cover a low score: %s", d.Message)
	}
	if d.ExpiresAt == nil {
		t.Error("window-covered grant should expose its expiry")
	}
}

func TestMissingPatientNameRejected(t *testing.T) {
	f := newEngine(t, 90)
	req := doctorReq(TierNormal, true)
	req.PatientName = ""

	_, err := f.svc.Decide(context.Background(), req)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if f.patients.calls != 0 || len(f.audit.entries) != 0 {
		t.Error("missing patient name must leave no side effects")
	}
}

func TestUnknownPatientRejected(t *testing.T) {
	f := newEngine(t, 90)
	req := doctorReq(TierNormal, true)
	req.PatientName = "Ghost"

	_, err := f.svc.Decide(context.Background(), req)
	var rej *RejectionError
	if !errors.As(err, &rej) {
		t.Fatalf("expected rejection, got %v", err)
	}
	if len(f.audit.entries) != 0 || f.trust.adjusts != 0 {
		t.Error("unknown patient must not produce an audit entry or trust change")
	}
}

func TestAuditFailureDegradesGrant(t *testing.T) {
	f := newEngine(t, 60)
	f.audit.fail = true

	d, err := f.svc.Decide(context.Background(), doctorReq(TierNormal, true))
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.Granted {
		t.Error("a grant without an audit entry must degrade to a denial")
	}
	if d.Patient != nil {
		t.Error("degraded decision must not leak patient data")
	}
	if f.trust.adjusts != 0 {
		t.Error("no trust adjustment without an audit entry")
	}
	if d.TrustScore != 60 {
		t.Errorf("response still reports the current score, got %d", d.TrustScore)
	}
}

func TestEveryCompletedRequestIsPublished(t *testing.T) {
	f := newEngine(t, 60)
	ctx := context.Background()

	if _, err := f.svc.Decide(ctx, doctorReq(TierNormal, true)); err != nil {
		t.Fatalf("Decide: %v", err)
	}
	req := doctorReq(TierEmergency, true)
	req.Justification = "cardiac arrest"
	if _, err := f.svc.Decide(ctx, req); err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if len(f.pub.decisions) != 2 {
		t.Errorf("expected 2 published decisions, got %d", len(f.pub.decisions))
	}
	// Only the flagged one notifies.
	if len(f.notify.decisions) != 1 {
		t.Errorf("expected 1 notification, got %d", len(f.notify.decisions))
	}
}
