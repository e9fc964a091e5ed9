package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabrielmiguelok/crimedesk/pkg/security"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []SecurityEvent {
	t.Helper()
	var out []SecurityEvent
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev SecurityEvent
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		out = append(out, ev)
	}
	return out
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "192.0.2.7:4444"
	req.Header.Set("User-Agent", "test-agent")

	LogAuthFailure(l, req, "mallory", "bad password")
	LogCSRFViolation(l, req, errors.New("missing CSRF token"))

	events := decodeLines(t, &buf)
	require.Len(t, events, 2)

	assert.Equal(t, EventAuthFailure, events[0].EventType)
	assert.Equal(t, "192.0.2.7", events[0].SourceIP)
	assert.Equal(t, "test-agent", events[0].UserAgent)
	assert.Equal(t, "mallory", events[0].Username)
	assert.Equal(t, SeverityWarning, events[0].Severity)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Equal(t, EventCSRFViolation, events[1].EventType)
	assert.Equal(t, "missing CSRF token", events[1].Details["reason"])
}

func TestFromRequest_UsesAuthenticatedUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/update_status/3", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	req = req.WithContext(security.WithAuthContext(req.Context(), &security.AuthContext{UserID: 1, Username: "admin", Admin: true}))

	var buf bytes.Buffer
	LogStatusChange(NewJSONLogger(&buf), req, 3, "Pending", "Resolved")

	events := decodeLines(t, &buf)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, int64(1), ev.UserID)
	assert.Equal(t, "admin", ev.Username)
	assert.Equal(t, "203.0.113.9", ev.SourceIP)
	assert.Equal(t, "/update_status/3", ev.Path)
	assert.Equal(t, "Resolved", ev.Details["new_status"])
	assert.Equal(t, float64(3), ev.Details["report_id"])
}

func TestNopLogger(t *testing.T) {
	var l Logger = NopLogger{}
	l.Log(SecurityEvent{EventType: EventLogout})
	assert.NoError(t, l.Close())
}
