package remoteassets

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	KindAssets     = "assets"
	KindTags       = "tags"
	KindRenditions = "renditions"
	KindRendition  = "rendition"

	resultSuccess = "success"
	resultFailure = "failure"
	resultSkipped = "skipped"
)

// Metrics counts package transfers.
type Metrics struct {
	syncs    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// MustNewMetrics registers the collectors on reg and panics when they already exist.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	syncs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "remoteassets",
			Name:      "sync_total",
			Help:      "Package transfers from the remote server by kind and result.",
		},
		[]string{"kind", "result"},
	)
	duration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "remoteassets",
			Name:      "sync_duration_seconds",
			Help:      "Time spent on one package transfer.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"kind"},
	)
	inflight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "remoteassets",
			Name:      "sync_inflight",
			Help:      "Package transfers currently running.",
		},
	)

	for _, c := range []prometheus.Collector{syncs, duration, inflight} {
		reg.MustRegister(c)
	}
	return &Metrics{syncs: syncs, duration: duration, inflight: inflight}
}

// begin marks a transfer as running and returns the func that records its outcome
func (m *Metrics) begin(kind string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	start := time.Now()
	m.inflight.Inc()
	return func(err error) {
		m.inflight.Dec()
		m.duration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		result := resultSuccess
		if err != nil {
			result = resultFailure
		}
		m.syncs.WithLabelValues(kind, result).Inc()
	}
}

func (m *Metrics) skipped(kind string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(kind, resultSkipped).Inc()
}
