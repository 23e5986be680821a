// Package metrics exposes Prometheus instruments for usage decisions, quota
// store calls and the HTTP surface.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "usagegate"

// Decision outcomes.
const (
	OutcomeAllowed       = "allowed"
	OutcomeDenied        = "denied"
	OutcomeDegradedAllow = "degraded_allow"
	OutcomeDegradedDeny  = "degraded_deny"
)

// Metrics holds the registered instruments. All methods are safe on a nil
// receiver, so components can take an optional *Metrics.
type Metrics struct {
	decisions       *prometheus.CounterVec
	storeErrors     *prometheus.CounterVec
	storeDuration   *prometheus.HistogramVec
	tierResolutions *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpInFlight prometheus.Gauge
}

// New registers the instruments with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Usage gate decisions by feature, tier and outcome",
			},
			[]string{"feature", "tier", "outcome"},
		),
		storeErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Quota store calls that failed or timed out",
			},
			[]string{"feature", "operation"},
		),
		storeDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "store_duration_seconds",
				Help:      "Quota store call latency distribution",
				Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		tierResolutions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tier_resolutions_total",
				Help:      "Resolved tiers",
			},
			[]string{"tier"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency distribution",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		httpInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),
	}
}

func (m *Metrics) ObserveDecision(feature, tier, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(feature, tier, outcome).Inc()
}

func (m *Metrics) ObserveStoreCall(feature, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.storeDuration.WithLabelValues(operation).Observe(d.Seconds())
	if err != nil {
		m.storeErrors.WithLabelValues(feature, operation).Inc()
	}
}

func (m *Metrics) ObserveTier(tier string) {
	if m == nil {
		return
	}
	m.tierResolutions.WithLabelValues(tier).Inc()
}
