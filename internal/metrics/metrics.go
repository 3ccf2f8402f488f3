// Package metrics exposes Prometheus instruments for the expert pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "expert_router"

// Metrics groups the pipeline's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	ExpertCalls     *prometheus.CounterVec
	ExpertDuration  *prometheus.HistogramVec
	Fallbacks       prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Processed requests by outcome.",
		}, []string{"outcome"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end processing time of a request.",
			Buckets:   prometheus.DefBuckets,
		}),
		ExpertCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expert_calls_total",
			Help:      "Backend calls per expert by outcome.",
		}, []string{"expert", "outcome"}),
		ExpertDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "expert_call_duration_seconds",
			Help:      "Backend call latency per expert.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"expert"}),
		Fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "routing_fallbacks_total",
			Help:      "Requests routed to the default expert because nothing matched.",
		}),
	}

	reg.MustRegister(m.Requests, m.RequestDuration, m.ExpertCalls, m.ExpertDuration, m.Fallbacks)
	return m
}

// ObserveRequest records one processed request.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
}

// ObserveExpert records one backend call for an expert.
func (m *Metrics) ObserveExpert(expertID string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.ExpertCalls.WithLabelValues(expertID, outcome).Inc()
	m.ExpertDuration.WithLabelValues(expertID).Observe(d.Seconds())
}

// ObserveFallback records a routing fallback.
func (m *Metrics) ObserveFallback() {
	if m == nil {
		return
	}
	m.Fallbacks.Inc()
}
