// Package metrics exposes crimedesk's Prometheus collectors.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gabrielmiguelok/crimedesk/pkg/router"
	"github.com/gabrielmiguelok/crimedesk/pkg/wizard"
)

const namespace = "crimedesk"

// Metrics owns a registry and every collector crimedesk records to.
type Metrics struct {
	registry *prometheus.Registry

	socketsActive  prometheus.Gauge
	socketsTotal   *prometheus.CounterVec
	socketLifetime prometheus.Histogram

	eventsTotal   *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec

	wizardActions *prometheus.CounterVec
	wizardBlocked *prometheus.CounterVec
	wizardSubmits prometheus.Counter

	reportsSubmitted prometheus.Counter
	statusChanges    *prometheus.CounterVec
	loginsTotal      *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

var _ router.Observer = (*Metrics)(nil)

// New creates collectors on a fresh registry, including Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		socketsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "sockets_active",
			Help:      "Number of open live sockets",
		}),
		socketsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "sockets_total",
			Help:      "Total live sockets opened by route",
		}, []string{"route"}),
		socketLifetime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "socket_lifetime_seconds",
			Help:      "How long live sockets stayed open",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8), // 1s to ~4.5h
		}),

		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "events_total",
			Help:      "Live events handled by route, event and result",
		}, []string{"route", "event", "result"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "event_duration_seconds",
			Help:      "Time spent handling a live event",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"event"}),

		wizardActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "actions_total",
			Help:      "Wizard actions by action and result",
		}, []string{"action", "result"}),
		wizardBlocked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "validation_failures_total",
			Help:      "Required fields that blocked a wizard action",
		}, []string{"field"}),
		wizardSubmits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wizard",
			Name:      "submits_allowed_total",
			Help:      "Submits the wizard let through to native submission",
		}),

		reportsSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "submitted_total",
			Help:      "Crime reports stored",
		}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reports",
			Name:      "status_changes_total",
			Help:      "Report status changes by new status",
		}, []string{"status"}),
		loginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code",
		}, []string{"method", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.socketsActive,
		m.socketsTotal,
		m.socketLifetime,
		m.eventsTotal,
		m.eventDuration,
		m.wizardActions,
		m.wizardBlocked,
		m.wizardSubmits,
		m.reportsSubmitted,
		m.statusChanges,
		m.loginsTotal,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware records request counts and latency.
func (m *Metrics) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return promhttp.InstrumentHandlerDuration(m.httpDuration,
			promhttp.InstrumentHandlerCounter(m.httpRequests, next))
	}
}

// SocketOpened implements router.Observer.
func (m *Metrics) SocketOpened(route string) {
	m.socketsActive.Inc()
	m.socketsTotal.WithLabelValues(route).Inc()
}

// SocketClosed implements router.Observer.
func (m *Metrics) SocketClosed(route string, lifetime time.Duration) {
	m.socketsActive.Dec()
	m.socketLifetime.Observe(lifetime.Seconds())
}

// EventHandled implements router.Observer.
func (m *Metrics) EventHandled(route, event string, took time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.eventsTotal.WithLabelValues(route, event, result).Inc()
	m.eventDuration.WithLabelValues(event).Observe(took.Seconds())
}

// WizardOutcome records one dispatched wizard action.
func (m *Metrics) WizardOutcome(out wizard.Outcome) {
	m.wizardActions.WithLabelValues(string(out.Action), outcomeResult(out)).Inc()
	for _, field := range out.Failed {
		m.wizardBlocked.WithLabelValues(field).Inc()
	}
	if out.Submit {
		m.wizardSubmits.Inc()
	}
}

func outcomeResult(out wizard.Outcome) string {
	switch {
	case out.Blocked():
		return "blocked"
	case out.Submit:
		return "submit"
	case out.Redirected:
		return "redirected"
	case out.Moved():
		return "moved"
	default:
		return "noop"
	}
}

// ReportSubmitted counts a stored report.
func (m *Metrics) ReportSubmitted() {
	m.reportsSubmitted.Inc()
}

// StatusChanged counts a status change to status.
func (m *Metrics) StatusChanged(status string) {
	m.statusChanges.WithLabelValues(status).Inc()
}

// Login counts a login attempt.
func (m *Metrics) Login(ok bool) {
	result := "failure"
	if ok {
		result = "success"
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}
