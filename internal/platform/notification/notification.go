// Package notification delivers security notices over email and SMS, with
// template rendering and an in-memory outbox the admin console can inspect.
package notification

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Notice is one outbound notification.
type Notice struct {
	ID         string            `json:"id"`
	Channel    Channel           `json:"channel"`
	Recipient  string            `json:"recipient"`
	Subject    string            `json:"subject,omitempty"`
	Body       string            `json:"body"`
	TemplateID string            `json:"template_id,omitempty"`
	Data       map[string]string `json:"data,omitempty"`
	Status     string            `json:"status"`
	CreatedAt  time.Time         `json:"created_at"`
	SentAt     *time.Time        `json:"sent_at,omitempty"`
	Error      string            `json:"error,omitempty"`
}

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Template is a reusable notice body with {{key}} placeholders.
type Template struct {
	ID      string  `json:"id"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
	Channel Channel `json:"channel"`
}

// Built-in template IDs.
const (
	TemplateOTPCode       = "otp-code"
	TemplateAccessDenied  = "access-denied"
	TemplateAccessFlagged = "access-flagged"
	TemplateTempAccess    = "temp-access-granted"
)

// TemplateEngine holds templates and renders them with data maps. Keys in the
// template with no matching data entry are left as-is.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{templates: make(map[string]*Template)}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      TemplateOTPCode,
			Subject: "Your verification code",
			Body:    "Hello {{name}}, your one-time login code is {{code}}. It expires in {{ttl}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateAccessDenied,
			Subject: "Access denied for {{actor_name}}",
			Body:    "A {{tier}} access request by {{actor_name}} ({{actor_role}}) for patient {{patient_name}} was denied. Current trust score: {{trust_score}}.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateAccessFlagged,
			Subject: "Emergency access flagged for review",
			Body:    "{{actor_name}} ({{actor_role}}) used emergency access for patient {{patient_name}}. The access was granted and flagged for review.",
			Channel: ChannelEmail,
		},
		{
			ID:      TemplateTempAccess,
			Subject: "Temporary access granted",
			Body:    "{{actor_name}} was granted a temporary access window for patient {{patient_name}}.",
			Channel: ChannelEmail,
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

func (e *TemplateEngine) Register(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

func (e *TemplateEngine) Render(templateID string, data map[string]string) (*Template, string, string, error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return nil, "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject, body := t.Subject, t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return t, subject, body, nil
}

// Center dispatches notices and keeps them in an in-memory outbox, newest
// first, capped so a chatty system cannot grow without bound.
type Center struct {
	email     EmailSender
	sms       SMSSender
	templates *TemplateEngine

	mu      sync.RWMutex
	outbox  []*Notice
	maxKept int
}

func NewCenter(email EmailSender, sms SMSSender, templates *TemplateEngine) *Center {
	return &Center{
		email:     email,
		sms:       sms,
		templates: templates,
		maxKept:   1000,
	}
}

// Send dispatches a notice through its channel and records the outcome.
func (c *Center) Send(ctx context.Context, n *Notice) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	n.CreatedAt = time.Now().UTC()
	n.Status = "pending"

	var sendErr error
	switch n.Channel {
	case ChannelEmail:
		sendErr = c.email.SendEmail(ctx, n.Recipient, n.Subject, n.Body)
	case ChannelSMS:
		sendErr = c.sms.SendSMS(ctx, n.Recipient, n.Body)
	default:
		sendErr = fmt.Errorf("unsupported channel %q", n.Channel)
	}

	if sendErr != nil {
		n.Status = "failed"
		n.Error = sendErr.Error()
	} else {
		n.Status = "sent"
		sentAt := time.Now().UTC()
		n.SentAt = &sentAt
	}

	c.store(n)
	return sendErr
}

// SendFromTemplate renders a template and sends the result.
func (c *Center) SendFromTemplate(ctx context.Context, templateID, recipient string, data map[string]string) (*Notice, error) {
	t, subject, body, err := c.templates.Render(templateID, data)
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}

	n := &Notice{
		Channel:    t.Channel,
		Recipient:  recipient,
		Subject:    subject,
		Body:       body,
		TemplateID: templateID,
		Data:       data,
	}
	if err := c.Send(ctx, n); err != nil {
		return n, err
	}
	return n, nil
}

func (c *Center) store(n *Notice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outbox = append([]*Notice{n}, c.outbox...)
	if len(c.outbox) > c.maxKept {
		c.outbox = c.outbox[:c.maxKept]
	}
}

// List returns the most recent notices, newest first.
func (c *Center) List(limit int) []*Notice {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if limit <= 0 || limit > len(c.outbox) {
		limit = len(c.outbox)
	}
	out := make([]*Notice, limit)
	copy(out, c.outbox[:limit])
	return out
}

// Handler exposes the outbox to the admin console.
type Handler struct {
	center *Center
}

func NewHandler(center *Center) *Handler {
	return &Handler{center: center}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.List, auth.RequireRole(auth.RoleAdmin))
}

func (h *Handler) List(c echo.Context) error {
	items := h.center.List(100)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"success":       true,
		"notifications": items,
	})
}
