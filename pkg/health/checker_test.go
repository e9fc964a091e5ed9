package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"
)

func TestRun_AllPass(t *testing.T) {
	hc := NewChecker("1.0.0")
	hc.Add("store", func(ctx context.Context) error { return nil }, time.Second)
	hc.AddCritical("uploads", func(ctx context.Context) error { return nil }, time.Second)

	report := hc.Run(context.Background())

	if report.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Errorf("Expected 2 checks, got %d", len(report.Checks))
	}
	for name, result := range report.Checks {
		if result.Status != StatusHealthy || result.Error != "" {
			t.Errorf("Check %s should be healthy, got %+v", name, result)
		}
	}
	if report.Version != "1.0.0" {
		t.Errorf("Expected version 1.0.0, got %s", report.Version)
	}
}

func TestRun_NonCriticalFailureDegrades(t *testing.T) {
	hc := NewChecker("")
	hc.Add("passing", func(ctx context.Context) error { return nil }, time.Second)
	hc.Add("failing", func(ctx context.Context) error { return errors.New("snapshot write failed") }, time.Second)

	report := hc.Run(context.Background())

	if report.Status != StatusDegraded {
		t.Errorf("Expected degraded, got %s", report.Status)
	}
	if report.Checks["failing"].Error != "snapshot write failed" {
		t.Errorf("Unexpected error: %q", report.Checks["failing"].Error)
	}
}

func TestRun_CriticalFailure(t *testing.T) {
	hc := NewChecker("")
	hc.Add("optional", func(ctx context.Context) error { return errors.New("x") }, time.Second)
	hc.AddCritical("uploads", func(ctx context.Context) error { return errors.New("gone") }, time.Second)

	if s := hc.Run(context.Background()).Status; s != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", s)
	}
}

func TestRun_Timeout(t *testing.T) {
	hc := NewChecker("")
	block := make(chan struct{})
	defer close(block)
	hc.AddCritical("slow", func(ctx context.Context) error {
		<-block
		return nil
	}, 20*time.Millisecond)

	report := hc.Run(context.Background())
	if report.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy on timeout, got %s", report.Status)
	}
	if report.Checks["slow"].Error != context.DeadlineExceeded.Error() {
		t.Errorf("Expected deadline error, got %q", report.Checks["slow"].Error)
	}
}

func TestLivenessHandler(t *testing.T) {
	hc := NewChecker("")
	rec := httptest.NewRecorder()
	hc.LivenessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "alive" {
		t.Errorf("Expected alive, got %v", body["status"])
	}
}

func TestReadinessHandler(t *testing.T) {
	healthy := NewChecker("")
	healthy.AddCritical("ok", func(ctx context.Context) error { return nil }, time.Second)

	rec := httptest.NewRecorder()
	healthy.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}

	broken := NewChecker("")
	broken.AddCritical("store", func(ctx context.Context) error { return errors.New("down") }, time.Second)

	rec = httptest.NewRecorder()
	broken.ReadinessHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}

	var report Report
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if report.Checks["store"].Error != "down" {
		t.Errorf("Unexpected report: %+v", report)
	}
}

func TestDirWritableCheck(t *testing.T) {
	dir := t.TempDir()
	if err := DirWritableCheck(dir)(context.Background()); err != nil {
		t.Errorf("Expected writable dir, got %v", err)
	}
	if err := DirWritableCheck(filepath.Join(dir, "missing"))(context.Background()); err == nil {
		t.Error("Expected error for missing dir")
	}
}

func TestCapacityCheck(t *testing.T) {
	n := 5
	check := CapacityCheck("live sessions", func() int { return n }, 10)

	if err := check(context.Background()); err != nil {
		t.Errorf("Expected no error at 5/10, got %v", err)
	}

	n = 10
	err := check(context.Background())
	var he *Error
	if !errors.As(err, &he) {
		t.Fatalf("Expected *Error, got %v", err)
	}
	if he.Details["current"] != 10 {
		t.Errorf("Expected current=10, got %v", he.Details["current"])
	}
}
