// Package audit records security and moderation events as JSON lines.
package audit

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gabrielmiguelok/crimedesk/pkg/logging"
	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

// Event types.
const (
	EventAuthFailure        = "auth_failure"
	EventAuthSuccess        = "auth_success"
	EventLogout             = "logout"
	EventUserRegistered     = "user_registered"
	EventCSRFViolation      = "csrf_violation"
	EventUnauthorizedAccess = "unauthorized_access"
	EventReportSubmitted    = "report_submitted"
	EventStatusChanged      = "status_changed"
	EventReportsExported    = "reports_exported"
)

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// SecurityEvent is one audit record.
type SecurityEvent struct {
	Timestamp time.Time      `json:"timestamp"`
	EventType string         `json:"event_type"`
	SourceIP  string         `json:"source_ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	UserID    int64          `json:"user_id,omitempty"`
	Username  string         `json:"username,omitempty"`
	Path      string         `json:"path,omitempty"`
	Method    string         `json:"method,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Severity  string         `json:"severity"`
}

// Logger is the interface for audit logging implementations.
type Logger interface {
	Log(event SecurityEvent)
	Close() error
}

// JSONLogger writes one JSON object per event.
type JSONLogger struct {
	encoder *json.Encoder
	writer  io.Writer
	mu      sync.Mutex
}

// NewJSONLogger creates a new JSON audit logger.
func NewJSONLogger(w io.Writer) *JSONLogger {
	return &JSONLogger{
		encoder: json.NewEncoder(w),
		writer:  w,
	}
}

// NewFileLogger appends to the file at path.
func NewFileLogger(path string) (*JSONLogger, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	return NewJSONLogger(f), nil
}

// Log records an event.
func (l *JSONLogger) Log(event SecurityEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.Severity == "" {
		event.Severity = SeverityInfo
	}

	if err := l.encoder.Encode(event); err != nil {
		logging.Error("audit: failed to encode event", logging.Err(err), logging.String("event", event.EventType))
	}
}

// Close closes the underlying writer when it is closable.
func (l *JSONLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.writer == os.Stdout || l.writer == os.Stderr {
		return nil
	}
	if closer, ok := l.writer.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// NopLogger discards events.
type NopLogger struct{}

func (NopLogger) Log(event SecurityEvent) {}
func (NopLogger) Close() error            { return nil }

// FromRequest fills the request fields of an event and the acting user, if any.
func FromRequest(r *http.Request, eventType, severity string) SecurityEvent {
	ev := SecurityEvent{
		EventType: eventType,
		SourceIP:  clientIP(r),
		UserAgent: r.UserAgent(),
		Path:      r.URL.Path,
		Method:    r.Method,
		Severity:  severity,
	}
	if auth := security.AuthFromContext(r.Context()); auth != nil {
		ev.UserID = auth.UserID
		ev.Username = auth.Username
	}
	return ev
}

// LogAuthFailure records a failed login.
func LogAuthFailure(logger Logger, r *http.Request, username, reason string) {
	ev := FromRequest(r, EventAuthFailure, SeverityWarning)
	ev.Username = username
	ev.Details = map[string]any{"reason": reason}
	logger.Log(ev)
}

// LogAuthSuccess records a successful login.
func LogAuthSuccess(logger Logger, r *http.Request, userID int64, username string) {
	ev := FromRequest(r, EventAuthSuccess, SeverityInfo)
	ev.UserID = userID
	ev.Username = username
	logger.Log(ev)
}

// LogCSRFViolation records a rejected forged request.
func LogCSRFViolation(logger Logger, r *http.Request, err error) {
	ev := FromRequest(r, EventCSRFViolation, SeverityWarning)
	ev.Details = map[string]any{"reason": err.Error()}
	logger.Log(ev)
}

// LogUnauthorized records an attempt to reach an admin endpoint.
func LogUnauthorized(logger Logger, r *http.Request) {
	logger.Log(FromRequest(r, EventUnauthorizedAccess, SeverityWarning))
}

// LogStatusChange records a report status transition.
func LogStatusChange(logger Logger, r *http.Request, reportID int64, from, to string) {
	ev := FromRequest(r, EventStatusChanged, SeverityInfo)
	ev.Details = map[string]any{"report_id": reportID, "old_status": from, "new_status": to}
	logger.Log(ev)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
