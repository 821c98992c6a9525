// Package analytics aggregates access decisions in memory for the admin
// console: counts by tier, status, and role, plus a trust score histogram.
package analytics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/medtrust/medtrust/internal/domain/access"
	"github.com/medtrust/medtrust/internal/domain/auditlog"
	"github.com/medtrust/medtrust/internal/platform/auth"
)

// DecisionRecord is one decision as kept in the recent-activity buffer.
type DecisionRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Tier        string    `json:"tier"`
	Status      string    `json:"status"`
	ActorName   string    `json:"actor_name"`
	ActorRole   string    `json:"actor_role"`
	PatientName string    `json:"patient_name"`
	TrustScore  int       `json:"trust_score"`
}

// Overview is the aggregate the console renders.
type Overview struct {
	TotalDecisions int64             `json:"total_decisions"`
	Granted        int64             `json:"granted"`
	Denied         int64             `json:"denied"`
	Flagged        int64             `json:"flagged"`
	DenialRate     float64           `json:"denial_rate"`
	ByTier         map[string]int64  `json:"by_tier"`
	ByRole         map[string]int64  `json:"by_role"`
	TrustBuckets   map[string]int64  `json:"trust_buckets"`
	Recent         []*DecisionRecord `json:"recent"`
}

// DecisionTracker is a thread-safe aggregator over completed decisions. The
// recent buffer is a fixed-size ring so memory stays bounded.
type DecisionTracker struct {
	mu       sync.RWMutex
	byTier   map[string]int64
	byRole   map[string]int64
	byStatus map[string]int64
	buckets  map[string]int64

	recent   []*DecisionRecord
	writePos int
	full     bool

	total int64
}

func NewDecisionTracker(recentSize int) *DecisionTracker {
	if recentSize <= 0 {
		recentSize = 500
	}
	return &DecisionTracker{
		byTier:   make(map[string]int64),
		byRole:   make(map[string]int64),
		byStatus: make(map[string]int64),
		buckets:  make(map[string]int64),
		recent:   make([]*DecisionRecord, 0, recentSize),
	}
}

// PublishDecision records one completed decision.
func (t *DecisionTracker) PublishDecision(d *access.Decision) {
	atomic.AddInt64(&t.total, 1)

	rec := &DecisionRecord{
		Timestamp:   time.Now().UTC(),
		Tier:        string(d.Tier),
		Status:      string(d.Status),
		ActorName:   d.ActorName,
		ActorRole:   string(d.ActorRole),
		PatientName: d.PatientName,
		TrustScore:  d.TrustScore,
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.byTier[rec.Tier]++
	t.byRole[rec.ActorRole]++
	t.byStatus[rec.Status]++
	t.buckets[trustBucket(d.TrustScore)]++

	if len(t.recent) < cap(t.recent) {
		t.recent = append(t.recent, rec)
		return
	}
	t.recent[t.writePos] = rec
	t.writePos = (t.writePos + 1) % cap(t.recent)
	t.full = true
}

// trustBucket groups scores into the bands the console colors by.
func trustBucket(score int) string {
	switch {
	case score >= 80:
		return "high"
	case score >= 50:
		return "medium"
	default:
		return "low"
	}
}

// Overview snapshots the current aggregates, recent decisions newest first.
func (t *DecisionTracker) Overview() *Overview {
	t.mu.RLock()
	defer t.mu.RUnlock()

	o := &Overview{
		TotalDecisions: atomic.LoadInt64(&t.total),
		Granted:        t.byStatus[string(auditlog.StatusGranted)],
		Denied:         t.byStatus[string(auditlog.StatusDenied)],
		Flagged:        t.byStatus[string(auditlog.StatusFlagged)],
		ByTier:         make(map[string]int64, len(t.byTier)),
		ByRole:         make(map[string]int64, len(t.byRole)),
		TrustBuckets:   make(map[string]int64, len(t.buckets)),
	}
	for k, v := range t.byTier {
		o.ByTier[k] = v
	}
	for k, v := range t.byRole {
		o.ByRole[k] = v
	}
	for k, v := range t.buckets {
		o.TrustBuckets[k] = v
	}
	if o.TotalDecisions > 0 {
		o.DenialRate = float64(o.Denied) / float64(o.TotalDecisions)
	}

	n := len(t.recent)
	o.Recent = make([]*DecisionRecord, 0, n)
	for i := 0; i < n; i++ {
		idx := n - 1 - i
		if t.full {
			idx = (t.writePos + n - 1 - i) % n
		}
		o.Recent = append(o.Recent, t.recent[idx])
	}
	return o
}

// Handler exposes the aggregates to the admin console.
type Handler struct {
	tracker *DecisionTracker
}

func NewHandler(tracker *DecisionTracker) *Handler {
	return &Handler{tracker: tracker}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/analytics/access", h.Overview, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) Overview(c echo.Context) error {
	return c.JSON(http.StatusOK, h.tracker.Overview())
}
