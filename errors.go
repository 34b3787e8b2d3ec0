package maskedem

import (
	"errors"
	"fmt"

	"github.com/hupe1980/maskedem/dataset"
)

var (
	// ErrInvalidData is matched by every error caused by malformed input.
	ErrInvalidData = dataset.ErrInvalidData

	// ErrInvalidConfig is matched by every ConfigError.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrTerminated is returned by Step once the engine reached a terminal state.
	ErrTerminated = errors.New("engine terminated")

	// ErrAborted is returned together with the best known result when the
	// context is cancelled between iterations.
	ErrAborted = errors.New("clustering aborted")

	// ErrDiverged is matched by every DivergenceError.
	ErrDiverged = errors.New("clustering diverged")

	// ErrSnapshotMismatch is returned by Restore when a snapshot does not fit the dataset.
	ErrSnapshotMismatch = errors.New("snapshot does not match dataset")
)

// InvalidDataError describes malformed dataset input.
type InvalidDataError = dataset.InvalidDataError

// ConfigError describes a configuration field outside its valid range.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ConfigError struct {
	Field  string
	Value  any
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid config: %s", e.Reason)
	}
	return fmt.Sprintf("invalid config: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.cause }

// Is reports whether target is ErrInvalidConfig.
func (e *ConfigError) Is(target error) bool { return target == ErrInvalidConfig }

// DegenerateClusterWarning reports a cluster whose regularized covariance is
// still not positive definite. The cluster is excluded from scoring until it
// is re-estimated with usable members. It is never fatal.
type DegenerateClusterWarning struct {
	ClusterID int
	Size      int
}

func (w *DegenerateClusterWarning) Error() string {
	return fmt.Sprintf("cluster %d (%d points) is degenerate and excluded from scoring", w.ClusterID, w.Size)
}

// DivergenceError reports an assignment oscillating between two states.
// It is returned alongside a Result carrying the best known assignment.
type DivergenceError struct {
	Iteration int
	Cycles    int
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("clustering diverged at iteration %d after %d assignment cycles", e.Iteration, e.Cycles)
}

// Is reports whether target is ErrDiverged.
func (e *DivergenceError) Is(target error) bool { return target == ErrDiverged }
