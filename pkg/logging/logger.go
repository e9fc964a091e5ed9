// Package logging provides structured logging on top of slog.
//
// Code logs through the Logger interface with typed fields. Request-scoped
// loggers travel in the context: RequestLogger installs one per request and
// L retrieves it, falling back to DefaultLogger.
package logging

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Logger is the interface for structured logging.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
}

// Field is one key/value pair of a log record.
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field             { return Field{Key: key, Value: value} }
func Int(key string, value int) Field            { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field          { return Field{Key: key, Value: value} }
func Duration(key string, d time.Duration) Field { return Field{Key: key, Value: d} }
func Any(key string, value any) Field            { return Field{Key: key, Value: value} }
func Err(err error) Field                        { return Field{Key: "error", Value: err} }

// Wizard and report fields share keys across packages so records can be
// joined on them.
func Step(n int) Field          { return Field{Key: "step", Value: n} }
func Action(name string) Field  { return Field{Key: "action", Value: name} }
func ReportID(id int64) Field   { return Field{Key: "report_id", Value: id} }
func UserID(id int64) Field     { return Field{Key: "user_id", Value: id} }
func SocketID(id string) Field  { return Field{Key: "socket_id", Value: id} }
func RequestID(id string) Field { return Field{Key: "request_id", Value: id} }

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

// SlogLogger implements Logger using slog.
type SlogLogger struct {
	logger *slog.Logger
}

type loggerConfig struct {
	level  slog.Level
	output io.Writer
	json   bool
}

// LoggerOption configures NewSlogLogger.
type LoggerOption func(*loggerConfig)

func WithLevel(level slog.Level) LoggerOption { return func(c *loggerConfig) { c.level = level } }
func WithOutput(w io.Writer) LoggerOption     { return func(c *loggerConfig) { c.output = w } }
func WithJSON() LoggerOption                  { return func(c *loggerConfig) { c.json = true } }

// NewSlogLogger writes text records at info level to stdout unless
// configured otherwise.
func NewSlogLogger(opts ...LoggerOption) *SlogLogger {
	cfg := &loggerConfig{level: slog.LevelInfo, output: os.Stdout}
	for _, opt := range opts {
		opt(cfg)
	}

	hopts := &slog.HandlerOptions{Level: cfg.level}
	var handler slog.Handler = slog.NewTextHandler(cfg.output, hopts)
	if cfg.json {
		handler = slog.NewJSONHandler(cfg.output, hopts)
	}
	return &SlogLogger{logger: slog.New(handler)}
}

func attrs(fields []Field) []any {
	out := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, f.Value)
	}
	return out
}

func (l *SlogLogger) Debug(msg string, fields ...Field) { l.logger.Debug(msg, attrs(fields)...) }
func (l *SlogLogger) Info(msg string, fields ...Field)  { l.logger.Info(msg, attrs(fields)...) }
func (l *SlogLogger) Warn(msg string, fields ...Field)  { l.logger.Warn(msg, attrs(fields)...) }
func (l *SlogLogger) Error(msg string, fields ...Field) { l.logger.Error(msg, attrs(fields)...) }

func (l *SlogLogger) With(fields ...Field) Logger {
	return &SlogLogger{logger: l.logger.With(attrs(fields)...)}
}

type loggerKey struct{}

// ContextWithLogger returns ctx carrying logger.
func ContextWithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// L returns the logger carried by ctx, or DefaultLogger.
func L(ctx context.Context) Logger {
	if logger, ok := ctx.Value(loggerKey{}).(Logger); ok && logger != nil {
		return logger
	}
	return DefaultLogger
}

// DefaultLogger is the process-wide logger. serve replaces it at startup.
var DefaultLogger Logger = NewSlogLogger()

func SetDefault(logger Logger) { DefaultLogger = logger }

func Debug(msg string, fields ...Field) { DefaultLogger.Debug(msg, fields...) }
func Info(msg string, fields ...Field)  { DefaultLogger.Info(msg, fields...) }
func Warn(msg string, fields ...Field)  { DefaultLogger.Warn(msg, fields...) }
func Error(msg string, fields ...Field) { DefaultLogger.Error(msg, fields...) }

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (l NopLogger) With(...Field) Logger { return l }

// quietPrefixes are logged at debug level: probes, scrapes and static files
// would otherwise drown the request log.
var quietPrefixes = []string{"/healthz", "/readyz", "/metrics", "/assets/"}

// RequestLogger gives every request a logger tagged with its request id
// and logs one line when it completes. The id is taken from X-Request-ID
// or generated, and echoed in the response.
func RequestLogger(logger Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			id := r.Header.Get("X-Request-ID")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", id)

			reqLog := logger.With(RequestID(id), String("method", r.Method), String("path", r.URL.Path))
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r.WithContext(ContextWithLogger(r.Context(), reqLog)))

			done := reqLog.Info
			if rw.status == http.StatusSwitchingProtocols || quiet(r.URL.Path) {
				done = reqLog.Debug
			}
			done("request completed",
				Int("status", rw.status),
				Int("bytes", rw.written),
				Duration("duration", time.Since(start)),
			)
		})
	}
}

func quiet(path string) bool {
	for _, p := range quietPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

type responseWriter struct {
	http.ResponseWriter
	status  int
	written int
}

func (rw *responseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Hijack lets live sockets upgrade through the logger.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("logging: response writer does not support hijacking")
	}
	rw.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
