// Package promcollector exports engine metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	mc := promcollector.New(reg)
//	eng, _ := maskedem.New(ds, cfg, maskedem.WithMetricsCollector(mc))
package promcollector

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/maskedem"
)

// Collector implements maskedem.MetricsCollector with Prometheus metrics.
type Collector struct {
	stepLatency *prometheus.HistogramVec
	reassigned  *prometheus.CounterVec
	clusters    prometheus.Gauge
	splits      *prometheus.CounterVec
	merges      prometheus.Counter
	degenerate  *prometheus.CounterVec
	runs        *prometheus.CounterVec
	iterations  prometheus.Histogram
	runLatency  prometheus.Histogram
}

// New creates a Collector and registers its metrics with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		stepLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "maskedem_step_duration_seconds",
			Help:    "Duration of EM steps",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),
		reassigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maskedem_points_reassigned_total",
			Help: "Points moved to another cluster",
		}, []string{"kind"}),
		clusters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "maskedem_clusters",
			Help: "Live non-noise clusters after the last step",
		}),
		splits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maskedem_splits_total",
			Help: "Split attempts by outcome",
		}, []string{"outcome"}),
		merges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maskedem_merges_total",
			Help: "Clusters merged away",
		}),
		degenerate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maskedem_degenerate_clusters_total",
			Help: "Clusters found degenerate",
		}, []string{"cluster"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maskedem_runs_total",
			Help: "Finished runs by status",
		}, []string{"status"}),
		iterations: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maskedem_run_iterations",
			Help:    "Iterations per finished run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		}),
		runLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maskedem_run_duration_seconds",
			Help:    "Duration of finished runs",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
	}
	reg.MustRegister(c.stepLatency, c.reassigned, c.clusters, c.splits, c.merges,
		c.degenerate, c.runs, c.iterations, c.runLatency)
	return c
}

// RecordStep implements maskedem.MetricsCollector.
func (c *Collector) RecordStep(kind maskedem.StepKind, reassigned, clusters int, d time.Duration) {
	c.stepLatency.WithLabelValues(kind.String()).Observe(d.Seconds())
	c.reassigned.WithLabelValues(kind.String()).Add(float64(reassigned))
	c.clusters.Set(float64(clusters))
}

// RecordSplit implements maskedem.MetricsCollector.
func (c *Collector) RecordSplit(accepted bool) {
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	c.splits.WithLabelValues(outcome).Inc()
}

// RecordMerge implements maskedem.MetricsCollector.
func (c *Collector) RecordMerge(count int) {
	c.merges.Add(float64(count))
}

// RecordDegenerate implements maskedem.MetricsCollector.
func (c *Collector) RecordDegenerate(clusterID int) {
	c.degenerate.WithLabelValues(strconv.Itoa(clusterID)).Inc()
}

// RecordRun implements maskedem.MetricsCollector.
func (c *Collector) RecordRun(status maskedem.Status, iterations int, d time.Duration) {
	c.runs.WithLabelValues(status.String()).Inc()
	c.iterations.Observe(float64(iterations))
	c.runLatency.Observe(d.Seconds())
}

var _ maskedem.MetricsCollector = (*Collector)(nil)
