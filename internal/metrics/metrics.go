// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package metrics holds the Prometheus instruments for searches, the cache,
// and correlation. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the search and correlation pipeline.
type Metrics struct {
	// Adapter call latency by source and terminal state (ok, timeout, error).
	AdapterLatency *prometheus.HistogramVec

	// Adapter outcomes by source and state.
	AdapterOutcome *prometheus.CounterVec

	// Candidates rejected by the name validator, by source.
	ValidationRejected *prometheus.CounterVec

	// Cache lookups by kind (search, profile) and result (hit, miss, error).
	CacheLookups *prometheus.CounterVec

	// Whole-search latency, including cache lookups.
	SearchLatency prometheus.Histogram

	// Searches in which every source failed.
	SearchDegraded prometheus.Counter

	// Correlation profiles by strategy label.
	Classifications *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. A nil reg uses the
// default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		AdapterLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "diligence_adapter_duration_seconds",
			Help:    "Duration of adapter calls by source and outcome",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 10},
		}, []string{"source", "state"}),

		AdapterOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "diligence_adapter_outcomes_total",
			Help: "Adapter call outcomes by source and state",
		}, []string{"source", "state"}),

		ValidationRejected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "diligence_validation_rejected_total",
			Help: "Candidates rejected by the name validator by source",
		}, []string{"source"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "diligence_cache_lookups_total",
			Help: "Cache lookups by entry kind and result",
		}, []string{"kind", "result"}),

		SearchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "diligence_search_duration_seconds",
			Help:    "Duration of whole searches including cache lookups",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 4, 8, 10},
		}),

		SearchDegraded: f.NewCounter(prometheus.CounterOpts{
			Name: "diligence_search_degraded_total",
			Help: "Searches in which every source failed",
		}),

		Classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "diligence_correlation_classifications_total",
			Help: "Correlation profiles by strategy label",
		}, []string{"label"}),
	}
}

// ObserveAdapter records one adapter call.
func (m *Metrics) ObserveAdapter(source, state string, d time.Duration) {
	if m != nil {
		m.AdapterLatency.WithLabelValues(source, state).Observe(d.Seconds())
		m.AdapterOutcome.WithLabelValues(source, state).Inc()
	}
}

// AddRejected counts validator rejections for a source.
func (m *Metrics) AddRejected(source string, n int) {
	if m != nil && n > 0 {
		m.ValidationRejected.WithLabelValues(source).Add(float64(n))
	}
}

// IncCache records a cache lookup result: "hit", "miss", or "error".
func (m *Metrics) IncCache(kind, result string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(kind, result).Inc()
	}
}

// ObserveSearch records a whole search.
func (m *Metrics) ObserveSearch(d time.Duration, degraded bool) {
	if m != nil {
		m.SearchLatency.Observe(d.Seconds())
		if degraded {
			m.SearchDegraded.Inc()
		}
	}
}

// IncClassification counts a correlation profile by label.
func (m *Metrics) IncClassification(label string) {
	if m != nil {
		m.Classifications.WithLabelValues(label).Inc()
	}
}
