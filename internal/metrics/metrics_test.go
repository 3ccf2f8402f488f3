package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRequest("ok", 10*time.Millisecond)
	m.ObserveRequest("ok", 20*time.Millisecond)
	m.ObserveExpert("tech", true, time.Millisecond)
	m.ObserveExpert("tech", false, time.Millisecond)
	m.ObserveFallback()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExpertCalls.WithLabelValues("tech", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExpertCalls.WithLabelValues("tech", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Fallbacks))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("ok", time.Second)
		m.ObserveExpert("x", true, time.Second)
		m.ObserveFallback()
	})
}
