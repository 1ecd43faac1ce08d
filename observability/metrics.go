package observability

import (
	"fmt"
	"maps"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/agentgraph/core"
)

// Metrics is an observer that records run, attempt and batch metrics.
//
// Usage:
//
//	reg := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(reg)
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
type Metrics struct {
	// Runs counts finished runs.
	// Labels: status (completed|incomplete|failed)
	Runs *prometheus.CounterVec

	// RunDuration measures run latency in seconds.
	// Labels: status
	// Buckets: 0.1s, 0.5s, 1s, 2s, 5s, 10s, 30s, 60s, 120s
	RunDuration *prometheus.HistogramVec

	// ActiveRuns is the number of runs in flight.
	ActiveRuns prometheus.Gauge

	// Attempts counts step attempts.
	// Labels: step, outcome (success|failure)
	Attempts *prometheus.CounterVec

	// Retries counts scheduled retries.
	// Labels: step, kind
	Retries *prometheus.CounterVec

	// AttemptDuration measures attempt latency in seconds.
	// Labels: step
	// Buckets: 0.01s, 0.05s, 0.1s, 0.5s, 1s, 5s, 10s, 30s, 60s
	AttemptDuration *prometheus.HistogramVec

	// Batches counts finished batches.
	Batches prometheus.Counter

	// BatchItems counts batch items by outcome.
	// Labels: status (completed|incomplete|failed)
	BatchItems *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics with reg. A nil reg uses the
// Prometheus default registerer, which must then only happen once per process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Metrics{
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_runs_total",
				Help: "Total number of finished runs by status",
			},
			[]string{"status"},
		),

		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgraph_run_duration_seconds",
				Help:    "Duration of runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"status"},
		),

		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentgraph_active_runs",
				Help: "Number of runs currently executing",
			},
		),

		Attempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_step_attempts_total",
				Help: "Total number of step attempts by step and outcome",
			},
			[]string{"step", "outcome"},
		),

		Retries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_step_retries_total",
				Help: "Total number of scheduled step retries by step and error kind",
			},
			[]string{"step", "kind"},
		),

		AttemptDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgraph_step_attempt_duration_seconds",
				Help:    "Duration of step attempts in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"step"},
		),

		Batches: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "agentgraph_batches_total",
				Help: "Total number of finished batches",
			},
		),

		BatchItems: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgraph_batch_items_total",
				Help: "Total number of batch items by outcome",
			},
			[]string{"status"},
		),
	}
}

// Observe implements core.Observer.
func (m *Metrics) Observe(e core.Event) {
	switch e.Type {
	case core.EventRunStart:
		m.ActiveRuns.Inc()
	case core.EventRunEnd:
		status := attrString(e.Attrs, "status")
		m.ActiveRuns.Dec()
		m.Runs.WithLabelValues(status).Inc()
		m.RunDuration.WithLabelValues(status).Observe(e.Duration.Seconds())
	case core.EventAttemptSuccess:
		m.Attempts.WithLabelValues(e.Step, "success").Inc()
		m.AttemptDuration.WithLabelValues(e.Step).Observe(e.Duration.Seconds())
	case core.EventAttemptFailure:
		m.Attempts.WithLabelValues(e.Step, "failure").Inc()
		m.AttemptDuration.WithLabelValues(e.Step).Observe(e.Duration.Seconds())
	case core.EventAttemptRetry:
		m.Retries.WithLabelValues(e.Step, string(e.Kind)).Inc()
	case core.EventBatchEnd:
		m.Batches.Inc()
		m.BatchItems.WithLabelValues("completed").Add(attrFloat(e.Attrs, "succeeded"))
		m.BatchItems.WithLabelValues("incomplete").Add(attrFloat(e.Attrs, "incomplete"))
		m.BatchItems.WithLabelValues("failed").Add(attrFloat(e.Attrs, "failed"))
	}
}

func attrString(attrs map[string]any, key string) string {
	v, ok := attrs[key]
	if !ok {
		return "unknown"
	}

	if s, ok := v.(string); ok {
		return s
	}

	return fmt.Sprint(v)
}

func attrFloat(attrs map[string]any, key string) float64 {
	switch v := attrs[key].(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}

func sortedAttrKeys(attrs map[string]any) []string {
	return slices.Sorted(maps.Keys(attrs))
}
