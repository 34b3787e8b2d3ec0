package maskedem

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting clustering metrics.
// Implement this interface to integrate with monitoring systems; see the
// promcollector package for a Prometheus implementation.
type MetricsCollector interface {
	// RecordStep is called after each EM step.
	RecordStep(kind StepKind, reassigned, clusters int, duration time.Duration)

	// RecordSplit is called after each split attempt.
	RecordSplit(accepted bool)

	// RecordMerge is called with the number of merges performed in one pass.
	RecordMerge(count int)

	// RecordDegenerate is called whenever a cluster is found degenerate.
	RecordDegenerate(clusterID int)

	// RecordRun is called once a run reaches a terminal status.
	RecordRun(status Status, iterations int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStep(StepKind, int, int, time.Duration) {}
func (NoopMetricsCollector) RecordSplit(bool)                             {}
func (NoopMetricsCollector) RecordMerge(int)                              {}
func (NoopMetricsCollector) RecordDegenerate(int)                         {}
func (NoopMetricsCollector) RecordRun(Status, int, time.Duration)         {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	QuickSteps     atomic.Int64
	FullSteps      atomic.Int64
	Reassigned     atomic.Int64
	StepTotalNanos atomic.Int64
	SplitsAccepted atomic.Int64
	SplitsRejected atomic.Int64
	Merges         atomic.Int64
	Degenerate     atomic.Int64
	Runs           atomic.Int64
	LastClusters   atomic.Int64
	LastStatus     atomic.Int64
	LastIterations atomic.Int64
	RunTotalNanos  atomic.Int64
}

// RecordStep implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStep(kind StepKind, reassigned, clusters int, duration time.Duration) {
	if kind == FullStep {
		b.FullSteps.Add(1)
	} else {
		b.QuickSteps.Add(1)
	}
	b.Reassigned.Add(int64(reassigned))
	b.StepTotalNanos.Add(duration.Nanoseconds())
	b.LastClusters.Store(int64(clusters))
}

// RecordSplit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSplit(accepted bool) {
	if accepted {
		b.SplitsAccepted.Add(1)
	} else {
		b.SplitsRejected.Add(1)
	}
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(count int) {
	b.Merges.Add(int64(count))
}

// RecordDegenerate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDegenerate(int) {
	b.Degenerate.Add(1)
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(status Status, iterations int, duration time.Duration) {
	b.Runs.Add(1)
	b.LastStatus.Store(int64(status))
	b.LastIterations.Store(int64(iterations))
	b.RunTotalNanos.Add(duration.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	steps := b.QuickSteps.Load() + b.FullSteps.Load()
	var avg int64
	if steps > 0 {
		avg = b.StepTotalNanos.Load() / steps
	}
	return BasicMetricsStats{
		QuickSteps:     b.QuickSteps.Load(),
		FullSteps:      b.FullSteps.Load(),
		Reassigned:     b.Reassigned.Load(),
		StepAvgNanos:   avg,
		SplitsAccepted: b.SplitsAccepted.Load(),
		SplitsRejected: b.SplitsRejected.Load(),
		Merges:         b.Merges.Load(),
		Degenerate:     b.Degenerate.Load(),
		Runs:           b.Runs.Load(),
		LastClusters:   int(b.LastClusters.Load()),
		LastStatus:     Status(b.LastStatus.Load()),
		LastIterations: int(b.LastIterations.Load()),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	QuickSteps     int64
	FullSteps      int64
	Reassigned     int64
	StepAvgNanos   int64
	SplitsAccepted int64
	SplitsRejected int64
	Merges         int64
	Degenerate     int64
	Runs           int64
	LastClusters   int
	LastStatus     Status
	LastIterations int
}
