// Package metrics holds the Prometheus collectors shared by the gateway, the
// conversation engine and the keep-alive server. A nil *Metrics is valid and
// records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	ordersSaved     *prometheus.CounterVec
	saveFailures    prometheus.Counter
	backendErrors   *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	sessionsExpired prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		ordersSaved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pizzaria_orders_saved_total",
			Help: "Orders durably saved, by the backend reported as source.",
		}, []string{"source"}),
		saveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pizzaria_order_save_failures_total",
			Help: "Orders rejected by every backend.",
		}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pizzaria_backend_errors_total",
			Help: "Failed backend calls.",
		}, []string{"backend", "op"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pizzaria_sessions_active",
			Help: "Intake sessions currently held in memory.",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pizzaria_sessions_expired_total",
			Help: "Intake sessions discarded because they exceeded the idle threshold.",
		}),
	}
	m.Registry.MustRegister(
		m.ordersSaved, m.saveFailures, m.backendErrors, m.sessionsActive, m.sessionsExpired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) OrderSaved(source string) {
	if m == nil {
		return
	}
	m.ordersSaved.WithLabelValues(source).Inc()
}

func (m *Metrics) OrderSaveFailed() {
	if m == nil {
		return
	}
	m.saveFailures.Inc()
}

func (m *Metrics) BackendError(backend, op string) {
	if m == nil {
		return
	}
	m.backendErrors.WithLabelValues(backend, op).Inc()
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.sessionsActive.Set(float64(n))
}

func (m *Metrics) SessionExpired() {
	if m == nil {
		return
	}
	m.sessionsExpired.Inc()
}
