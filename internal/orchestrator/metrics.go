package orchestrator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for session execution.
type Metrics struct {
	SessionsStarted  prometheus.Counter
	SessionsFinished *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge

	ProviderCalls *prometheus.CounterVec
	Fallbacks     *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec

	SessionsEvicted prometheus.Counter
	SecretsRedacted prometheus.Counter
}

// NewMetrics creates and registers Prometheus metrics for the orchestrator.
//
// Metrics are registered once per process. All metrics are prefixed with
// "council_".
//
// Metrics:
//   - council_sessions_started_total
//   - council_sessions_finished_total{status}
//   - council_sessions_active
//   - council_provider_calls_total{provider,role,outcome}
//   - council_fallbacks_total{role,phase,kind}
//   - council_phase_duration_seconds{phase}
//   - council_sessions_evicted_total
//   - council_secrets_redacted_total
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "council_sessions_started_total",
				Help: "Total number of sessions started",
			}),
			SessionsFinished: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "council_sessions_finished_total",
					Help: "Total number of sessions that reached a terminal status",
				},
				[]string{"status"},
			),
			ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "council_sessions_active",
				Help: "Number of sessions currently running",
			}),
			ProviderCalls: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "council_provider_calls_total",
					Help: "Total number of provider calls",
				},
				[]string{"provider", "role", "outcome"}, // outcome: ok or a failure kind
			),
			Fallbacks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "council_fallbacks_total",
					Help: "Total number of fallback analyses substituted",
				},
				[]string{"role", "phase", "kind"},
			),
			PhaseDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "council_phase_duration_seconds",
					Help:    "Duration of a phase across all roles",
					Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
				},
				[]string{"phase"},
			),
			SessionsEvicted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "council_sessions_evicted_total",
				Help: "Total number of finished sessions evicted by the sweeper",
			}),
			SecretsRedacted: promauto.NewCounter(prometheus.CounterOpts{
				Name: "council_secrets_redacted_total",
				Help: "Total number of secrets scrubbed from incoming requests",
			}),
		}
	})
	return globalMetrics
}
