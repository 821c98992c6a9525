package middleware

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/medtrust/medtrust/internal/platform/auth"
)

// AccessTrace captures who touched which route, from where, and with what
// outcome. Every request against the protected surface emits one.
type AccessTrace struct {
	UserID     string
	UserName   string
	UserRole   string
	Path       string
	Method     string
	IPAddress  string
	UserAgent  string
	RequestID  string
	StatusCode int
	Timestamp  time.Time
}

// TraceRecorder persists access traces. Decoupled from the concrete sink so
// tests can supply their own.
type TraceRecorder interface {
	RecordTrace(trace AccessTrace) error
}

// TraceRecorderFunc is a function adapter for TraceRecorder.
type TraceRecorderFunc func(trace AccessTrace) error

func (f TraceRecorderFunc) RecordTrace(trace AccessTrace) error {
	return f(trace)
}

// Audit returns middleware that emits a structured trace for every request
// to patient-data and access-control routes. The decision engines write the
// durable audit log entries themselves; this layer is the transport-level
// trail beneath them.
func Audit(logger zerolog.Logger, recorders ...TraceRecorder) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			path := req.URL.Path

			if !isAuditablePath(path) {
				return next(c)
			}

			// Run the handler first so the response status is known.
			err := next(c)

			ctx := req.Context()
			trace := AccessTrace{
				UserID:     auth.UserIDFromContext(ctx),
				UserName:   auth.UserNameFromContext(ctx),
				UserRole:   string(auth.RoleFromContext(ctx)),
				Path:       path,
				Method:     req.Method,
				IPAddress:  c.RealIP(),
				UserAgent:  req.UserAgent(),
				StatusCode: c.Response().Status,
				Timestamp:  time.Now().UTC(),
			}
			if rid, ok := c.Get("request_id").(string); ok {
				trace.RequestID = rid
			}

			if len(recorders) > 0 && recorders[0] != nil {
				if recErr := recorders[0].RecordTrace(trace); recErr != nil {
					logger.Error().Err(recErr).
						Str("request_id", trace.RequestID).
						Msg("failed to record access trace")
				}
			}

			logger.Info().
				Str("type", "access_trace").
				Str("request_id", trace.RequestID).
				Str("user_id", trace.UserID).
				Str("user_name", trace.UserName).
				Str("user_role", trace.UserRole).
				Str("method", trace.Method).
				Str("path", trace.Path).
				Str("remote_ip", trace.IPAddress).
				Int("status", trace.StatusCode).
				Msg("access")

			return err
		}
	}
}

var auditablePrefixes = []string{
	"/normal_access", "/restricted_access", "/emergency_access",
	"/request_temp_access", "/all_patients", "/get_patient",
	"/update_patient", "/add_patient", "/log_access", "/access_logs",
	"/all_doctor_access_logs", "/all_nurse_access_logs",
	"/doctor_access_logs", "/nurse_access_logs", "/patient_access_history",
	"/trust_score",
}

// isAuditablePath reports whether the route touches patient data or the
// access gateway.
func isAuditablePath(path string) bool {
	for _, p := range auditablePrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
