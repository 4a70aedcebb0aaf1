package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the pricing core. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	CacheLookups   *prometheus.CounterVec
	SourceRequests *prometheus.CounterVec
	SourceLatency  *prometheus.HistogramVec
}

// New creates the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultpricing",
			Name:      "cache_lookups_total",
			Help:      "Price cache lookups by result (hit, miss, stale).",
		}, []string{"result"}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vaultpricing",
			Name:      "source_requests_total",
			Help:      "Calls to the price source by operation and outcome.",
		}, []string{"op", "outcome"}),
		SourceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vaultpricing",
			Name:      "source_request_seconds",
			Help:      "Price source call latency.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.CacheLookups, m.SourceRequests, m.SourceLatency)
	}
	return m
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

// ObserveSource records one source call that started at start.
func (m *Metrics) ObserveSource(op, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.SourceRequests.WithLabelValues(op, outcome).Inc()
	m.SourceLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
