// Package metrics holds the Prometheus instruments for membership checks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "channel_gate"

// Verification results.
const (
	ResultJoined        = "joined"
	ResultMissing       = "missing"
	ResultNotConfigured = "not_configured"
)

// Check outcomes.
const (
	OutcomeQualifying = "qualifying"
	OutcomeNotMember  = "not_member"
	OutcomeError      = "error"
)

// Metrics groups the counters and histograms recorded by the bot.
type Metrics struct {
	Verifications  *prometheus.CounterVec
	Checks         *prometheus.CounterVec
	CheckDuration  prometheus.Histogram
	ChannelsConfig prometheus.Gauge
}

// New registers the instruments on reg. Passing nil registers on the default
// Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Verification requests by result.",
			},
			[]string{"result"},
		),
		Checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "membership_checks_total",
				Help:      "Per-channel membership lookups by outcome.",
			},
			[]string{"outcome"},
		),
		CheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "membership_check_duration_seconds",
			Help:      "Latency of a single membership lookup.",
			Buckets:   prometheus.DefBuckets,
		}),
		ChannelsConfig: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_configured",
			Help:      "Number of channels in the registry.",
		}),
	}
}

// ObserveVerification counts one verification request.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}

// ObserveCheck records the outcome and latency of one membership lookup.
func (m *Metrics) ObserveCheck(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Checks.WithLabelValues(outcome).Inc()
	m.CheckDuration.Observe(elapsed.Seconds())
}

// SetChannels records the registry size.
func (m *Metrics) SetChannels(n int) {
	if m == nil {
		return
	}
	m.ChannelsConfig.Set(float64(n))
}
