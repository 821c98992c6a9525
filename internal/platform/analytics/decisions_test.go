package analytics

import (
	"testing"

	"github.com/medtrust/medtrust/internal/domain/access"
	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

func decision(tier access.Tier, status auditlog.Status, role auth.Role, score int) *access.Decision {
	return &access.Decision{
		Tier:        tier,
		Status:      status,
		ActorName:   "Dr. Adams",
		ActorRole:   role,
		PatientName: "John Doe",
		TrustScore:  score,
	}
}

func TestTrackerAggregates(t *testing.T) {
	tr := NewDecisionTracker(10)

	tr.PublishDecision(decision(access.TierNormal, auditlog.StatusGranted, auth.RoleDoctor, 85))
	tr.PublishDecision(decision(access.TierNormal, auditlog.StatusDenied, auth.RoleNurse, 40))
	tr.PublishDecision(decision(access.TierEmergency, auditlog.StatusFlagged, auth.RoleDoctor, 55))

	o := tr.Overview()
	if o.TotalDecisions != 3 {
		t.Fatalf("total = %d", o.TotalDecisions)
	}
	if o.Granted != 1 || o.Denied != 1 || o.Flagged != 1 {
		t.Errorf("status counts wrong: %+v", o)
	}
	if o.ByTier["normal"] != 2 || o.ByTier["emergency"] != 1 {
		t.Errorf("tier counts wrong: %v", o.ByTier)
	}
	if o.ByRole["doctor"] != 2 || o.ByRole["nurse"] != 1 {
		t.Errorf("role counts wrong: %v", o.ByRole)
	}
	if o.TrustBuckets["high"] != 1 || o.TrustBuckets["medium"] != 1 || o.TrustBuckets["low"] != 1 {
		t.Errorf("trust buckets wrong: %v", o.TrustBuckets)
	}
	if o.DenialRate < 0.33 || o.DenialRate > 0.34 {
		t.Errorf("denial rate = %f", o.DenialRate)
	}
}

func TestRecentIsNewestFirst(t *testing.T) {
	tr := NewDecisionTracker(10)
	tr.PublishDecision(decision(access.TierNormal, auditlog.StatusGranted, auth.RoleDoctor, 60))
	tr.PublishDecision(decision(access.TierRestricted, auditlog.StatusDenied, auth.RoleDoctor, 55))

	o := tr.Overview()
	if len(o.Recent) != 2 {
		t.Fatalf("recent = %d", len(o.Recent))
	}
	if o.Recent[0].Tier != "restricted" {
		t.Errorf("expected newest first, got %q", o.Recent[0].Tier)
	}
}

func TestRecentRingWraps(t *testing.T) {
	tr := NewDecisionTracker(3)
	tiers := []access.Tier{access.TierNormal, access.TierRestricted, access.TierEmergency, access.TierTemporary}
	for _, tier := range tiers {
		tr.PublishDecision(decision(tier, auditlog.StatusGranted, auth.RoleNurse, 60))
	}

	o := tr.Overview()
	if len(o.Recent) != 3 {
		t.Fatalf("recent = %d", len(o.Recent))
	}
	if o.Recent[0].Tier != "temporary" {
		t.Errorf("expected newest first after wrap, got %q", o.Recent[0].Tier)
	}
	if o.TotalDecisions != 4 {
		t.Errorf("total should count evictions too, got %d", o.TotalDecisions)
	}
}
