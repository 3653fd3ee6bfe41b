package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.OrderSaved("local")
	m.OrderSaveFailed()
	m.BackendError("remote", "save_order")
	m.SetSessions(3)
	m.SessionExpired()
}

func TestCounters(t *testing.T) {
	m := New()
	m.OrderSaved("remote")
	m.OrderSaved("remote")
	m.OrderSaved("local")
	m.BackendError("remote", "find_orders")
	m.SetSessions(2)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.ordersSaved.WithLabelValues("remote")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ordersSaved.WithLabelValues("local")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.backendErrors.WithLabelValues("remote", "find_orders")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.sessionsActive))
}
