package maskedem

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with clustering-specific helpers.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// NoopLogger creates a Logger that discards all log output.
func NoopLogger() *Logger {
	return NewLogger(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000),
	}))
}

// WithRunID adds a run id field to the logger.
func (l *Logger) WithRunID(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("run_id", id),
	}
}

// WithCluster adds a cluster id field to the logger.
func (l *Logger) WithCluster(id int) *Logger {
	return &Logger{
		Logger: l.Logger.With("cluster", id),
	}
}

// WithIteration adds an iteration field to the logger.
func (l *Logger) WithIteration(it int) *Logger {
	return &Logger{
		Logger: l.Logger.With("iteration", it),
	}
}

// LogStep logs a completed EM step.
func (l *Logger) LogStep(ctx context.Context, r StepResult) {
	l.DebugContext(ctx, "step completed",
		"iteration", r.Iteration,
		"kind", r.Kind.String(),
		"reassigned", r.Reassigned,
		"clusters", r.NumClusters,
		"score", r.Score,
		"state", r.State.String(),
		"duration", r.Duration,
	)
}

// LogProgress logs a coarse progress record.
func (l *Logger) LogProgress(ctx context.Context, r StepResult) {
	l.InfoContext(ctx, "clustering progress",
		"iteration", r.Iteration,
		"clusters", r.NumClusters,
		"score", r.Score,
	)
}

// LogSplit logs the outcome of one split attempt.
func (l *Logger) LogSplit(ctx context.Context, parent, child int, gain float64, accepted bool) {
	if accepted {
		l.InfoContext(ctx, "split accepted",
			"cluster", parent,
			"new_cluster", child,
			"gain", gain,
		)
		return
	}
	l.DebugContext(ctx, "split rejected",
		"cluster", parent,
		"gain", gain,
	)
}

// LogMerge logs the outcome of one merge attempt.
func (l *Logger) LogMerge(ctx context.Context, into, from int, distance, gain float64, accepted bool) {
	if accepted {
		l.DebugContext(ctx, "clusters merged",
			"into", into,
			"from", from,
			"distance", distance,
			"gain", gain,
		)
		return
	}
	l.DebugContext(ctx, "merge rejected",
		"into", into,
		"from", from,
		"distance", distance,
		"gain", gain,
	)
}

// LogDegenerate logs a degenerate cluster.
func (l *Logger) LogDegenerate(ctx context.Context, w *DegenerateClusterWarning) {
	l.WarnContext(ctx, "degenerate cluster",
		"cluster", w.ClusterID,
		"size", w.Size,
	)
}

// LogRun logs the end of a run.
func (l *Logger) LogRun(ctx context.Context, status Status, iterations, clusters int, duration time.Duration, err error) {
	if err != nil {
		l.WarnContext(ctx, "clustering finished",
			"status", status.String(),
			"iterations", iterations,
			"clusters", clusters,
			"duration", duration,
			"error", err,
		)
		return
	}
	l.InfoContext(ctx, "clustering finished",
		"status", status.String(),
		"iterations", iterations,
		"clusters", clusters,
		"duration", duration,
	)
}
