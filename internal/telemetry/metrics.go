// Package telemetry owns the Prometheus metrics for the prediction pipeline.
// Each Metrics instance carries its own registry so tests can inject
// isolated instances instead of sharing ambient global state.
package telemetry

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds every collector exported by the process.
type Metrics struct {
	registry *prometheus.Registry

	// Fetcher
	FetchOutcomes   *prometheus.CounterVec // signal, provenance
	ProviderLatency *prometheus.HistogramVec
	ProviderErrors  *prometheus.CounterVec
	RateExhausted   *prometheus.CounterVec
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter

	// Cycle controller
	CyclesTotal        prometheus.Counter
	CycleDuration      prometheus.Histogram
	PredictionsMade    prometheus.Counter
	FixturesSkipped    *prometheus.CounterVec // reason: duplicate|error
	SubmissionFailures prometheus.Counter
	ResolutionsMade    prometheus.Counter
}

// New creates a Metrics instance backed by a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		FetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footy_fetch_outcomes_total",
			Help: "Signal fetches by signal type and provenance",
		}, []string{"signal", "provenance"}),
		ProviderLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "footy_provider_latency_seconds",
			Help:    "Latency of real provider calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footy_provider_errors_total",
			Help: "Failed real provider calls by provider",
		}, []string{"provider"}),
		RateExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footy_rate_exhausted_total",
			Help: "Calls skipped because the provider rate budget was empty",
		}, []string{"provider"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footy_cache_hits_total",
			Help: "Signal cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footy_cache_misses_total",
			Help: "Signal cache misses",
		}),
		CyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footy_cycles_total",
			Help: "Completed agent cycles",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "footy_cycle_duration_seconds",
			Help:    "Duration of one full agent cycle",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		}),
		PredictionsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footy_predictions_total",
			Help: "Predictions generated",
		}),
		FixturesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "footy_fixtures_skipped_total",
			Help: "Fixtures skipped during a cycle by reason",
		}, []string{"reason"}),
		SubmissionFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footy_submission_failures_total",
			Help: "Predictions the recording boundary failed to accept",
		}),
		ResolutionsMade: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "footy_resolutions_total",
			Help: "Predictions reconciled against final results",
		}),
	}

	reg.MustRegister(
		m.FetchOutcomes, m.ProviderLatency, m.ProviderErrors, m.RateExhausted,
		m.CacheHits, m.CacheMisses,
		m.CyclesTotal, m.CycleDuration, m.PredictionsMade, m.FixturesSkipped,
		m.SubmissionFailures, m.ResolutionsMade,
	)
	return m
}

// Handler returns the HTTP handler exposing this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CounterValue reads the current value of a counter, resolving labeled
// collectors through the dto snapshot. Test helper.
func CounterValue(c prometheus.Counter) (float64, error) {
	var metric dto.Metric
	if err := c.Write(&metric); err != nil {
		return 0, fmt.Errorf("read counter: %w", err)
	}
	if metric.Counter == nil {
		return 0, fmt.Errorf("metric is not a counter")
	}
	return metric.Counter.GetValue(), nil
}
