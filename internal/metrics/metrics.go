// Package metrics defines the Prometheus metrics reported by a backfill run.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics groups the collectors updated by the backfill loop. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	identifiers   prometheus.Gauge
	processed     prometheus.Gauge
	results       *prometheus.CounterVec
	records       prometheus.Counter
	fetchDuration prometheus.Histogram
	checkpoints   prometheus.Counter
	lastSuccess   prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		identifiers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glb_identifiers_total",
			Help: "Number of identifiers returned by the directory listing.",
		}),
		processed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glb_identifiers_processed",
			Help: "Number of identifiers in the processed set, including those resumed from a checkpoint.",
		}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "glb_fetch_results_total",
			Help: "Fetch attempts by outcome (success, empty, failure).",
		}, []string{"result"}),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glb_records_fetched_total",
			Help: "Records appended to the dataset during this run.",
		}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "glb_fetch_duration_seconds",
			Help:    "Duration of individual fetch calls.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "glb_checkpoints_written_total",
			Help: "Checkpoints persisted during this run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "glb_run_last_success_timestamp_seconds",
			Help: "Unix time at which the last run completed successfully.",
		}),
	}

	m.registry.MustRegister(
		m.identifiers,
		m.processed,
		m.results,
		m.records,
		m.fetchDuration,
		m.checkpoints,
		m.lastSuccess,
	)
	return m
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetIdentifiers records the size of the identifier list.
func (m *Metrics) SetIdentifiers(n int) {
	if m == nil {
		return
	}
	m.identifiers.Set(float64(n))
}

// SetProcessed records the current size of the processed set.
func (m *Metrics) SetProcessed(n int) {
	if m == nil {
		return
	}
	m.processed.Set(float64(n))
}

// ObserveFetch records one fetch outcome and its duration.
func (m *Metrics) ObserveFetch(result string, records int, d time.Duration) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(result).Inc()
	m.records.Add(float64(records))
	m.fetchDuration.Observe(d.Seconds())
}

// CheckpointWritten counts one persisted checkpoint.
func (m *Metrics) CheckpointWritten() {
	if m == nil {
		return
	}
	m.checkpoints.Inc()
}

// RunSucceeded stamps the completion time of a successful run.
func (m *Metrics) RunSucceeded(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccess.Set(float64(t.Unix()))
}

// Push sends the registry to a Pushgateway under the given job name.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("pushing metrics to %s: %w", url, err)
	}
	return nil
}
