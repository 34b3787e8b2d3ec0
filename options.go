package maskedem

import (
	"log/slog"
	"math/rand/v2"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	rand             *rand.Rand
	runID            string
}

// Option configures Engine construction.
type Option func(*options)

// WithLogger configures structured logging for the engine.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := maskedem.NewJSONLogger(slog.LevelInfo)
//	eng, _ := maskedem.New(ds, cfg, maskedem.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
//	metrics := &maskedem.BasicMetricsCollector{}
//	eng, _ := maskedem.New(ds, cfg, maskedem.WithMetricsCollector(metrics))
//	// ... run ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithRand injects the random source used for random starting partitions.
// When unset, a PCG source seeded from Config.Seed is used, so runs with the
// same seed are reproducible.
func WithRand(r *rand.Rand) Option {
	return func(o *options) {
		o.rand = r
	}
}

// WithRunID sets the run id attached to log records and snapshots.
// When unset, a random UUID is generated.
func WithRunID(id string) Option {
	return func(o *options) {
		o.runID = id
	}
}
