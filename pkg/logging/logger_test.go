package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlogLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(WithJSON(), WithOutput(&buf), WithLevel(slog.LevelDebug))

	logger.With(SocketID("abc")).Info("wizard transition", Step(2), Action("next"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "wizard transition", entry["msg"])
	assert.Equal(t, "abc", entry["socket_id"])
	assert.Equal(t, float64(2), entry["step"])
	assert.Equal(t, "next", entry["action"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(WithOutput(&buf), WithLevel(slog.LevelWarn))

	logger.Info("hidden")
	assert.Zero(t, buf.Len())

	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(WithOutput(&buf))

	var fromCtx Logger
	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = L(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/help", nil)
	req.Header.Set("X-Request-ID", "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.NotNil(t, fromCtx)
	assert.Contains(t, buf.String(), "request_id=req-1")
	assert.Contains(t, buf.String(), "status=418")
}

func TestDefaultLoggerFallback(t *testing.T) {
	assert.Equal(t, DefaultLogger, L(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
	NopLogger{}.With(Err(nil)).Error("ignored")
}

func TestRequestLoggerQuietPaths(t *testing.T) {
	var buf bytes.Buffer
	h := RequestLogger(NewSlogLogger(WithOutput(&buf)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Zero(t, buf.Len(), "probes log at debug")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Contains(t, buf.String(), "bytes=2")
}
