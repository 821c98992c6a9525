package websocket

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/medtrust/medtrust/internal/domain/access"
	"github.com/medtrust/medtrust/internal/domain/auditlog"
)

// DecisionBroadcaster pushes completed access decisions onto the hub. Every
// decision lands on the decisions topic; denials and flags also hit alerts.
type DecisionBroadcaster struct {
	hub *Hub
	log zerolog.Logger
}

func NewDecisionBroadcaster(hub *Hub, log zerolog.Logger) *DecisionBroadcaster {
	return &DecisionBroadcaster{hub: hub, log: log}
}

type decisionPayload struct {
	Tier        string `json:"tier"`
	Status      string `json:"status"`
	ActorName   string `json:"actor_name"`
	ActorRole   string `json:"actor_role"`
	PatientName string `json:"patient_name"`
	TrustScore  int    `json:"trust_score"`
	Message     string `json:"message"`
}

func (b *DecisionBroadcaster) PublishDecision(d *access.Decision) {
	data, err := json.Marshal(decisionPayload{
		Tier:        string(d.Tier),
		Status:      string(d.Status),
		ActorName:   d.ActorName,
		ActorRole:   string(d.ActorRole),
		PatientName: d.PatientName,
		TrustScore:  d.TrustScore,
		Message:     d.Message,
	})
	if err != nil {
		b.log.Error().Err(err).Msg("failed to marshal decision payload")
		return
	}

	now := time.Now().UTC()
	b.hub.Broadcast(Event{Type: "access_decision", Topic: TopicDecisions, Timestamp: now, Data: data})
	if d.Status != auditlog.StatusGranted {
		b.hub.Broadcast(Event{Type: "security_alert", Topic: TopicAlerts, Timestamp: now, Data: data})
	}
}
