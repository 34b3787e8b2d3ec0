package maskedem

import (
	"fmt"
	"math"
	"slices"
)

// Snapshot is the resumable state of an engine. Cluster parameters are not
// part of it; they are re-estimated by the first step after Restore.
type Snapshot struct {
	RunID       string
	NumPoints   int
	NumFeatures int
	Iteration   int
	LastSplit   int
	NextID      int
	State       State
	Assignment  []int
	// BestAssignment is the best-scoring full-step assignment, if any.
	BestAssignment []int
	BestScore      float64
}

// Snapshot captures the current engine state. It returns nil before
// initialization.
func (e *Engine) Snapshot() *Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.initialized {
		return nil
	}
	return &Snapshot{
		RunID:          e.runID,
		NumPoints:      e.ds.NumPoints(),
		NumFeatures:    e.ds.NumFeatures(),
		Iteration:      e.iteration,
		LastSplit:      e.lastSplit,
		NextID:         e.nextID,
		State:          e.state,
		Assignment:     slices.Clone(e.assign),
		BestAssignment: slices.Clone(e.best),
		BestScore:      e.bestScore,
	}
}

// Restore replaces the engine state with s. The next step is a full step.
// It returns an error matching ErrSnapshotMismatch when s was taken on a
// dataset of a different shape or holds ids outside [0, NextID).
func (e *Engine) Restore(s *Snapshot) error {
	if s == nil {
		return fmt.Errorf("%w: nil snapshot", ErrSnapshotMismatch)
	}
	if s.NumPoints != e.ds.NumPoints() || s.NumFeatures != e.ds.NumFeatures() {
		return fmt.Errorf("%w: snapshot has %d points and %d features, dataset has %d and %d",
			ErrSnapshotMismatch, s.NumPoints, s.NumFeatures, e.ds.NumPoints(), e.ds.NumFeatures())
	}
	if err := checkAssignment(s.Assignment, s.NumPoints, s.NextID); err != nil {
		return err
	}
	if s.BestAssignment != nil {
		if err := checkAssignment(s.BestAssignment, s.NumPoints, s.NextID); err != nil {
			return err
		}
	}
	if s.Iteration < 0 || s.LastSplit < 0 || s.LastSplit > s.Iteration {
		return fmt.Errorf("%w: iteration %d, last split %d", ErrSnapshotMismatch, s.Iteration, s.LastSplit)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.resetRun(slices.Clone(s.Assignment), s.NextID)
	e.iteration = s.Iteration
	e.lastSplit = s.LastSplit
	e.state = s.State
	e.best = slices.Clone(s.BestAssignment)
	e.bestScore = s.BestScore
	if e.best == nil {
		e.bestScore = math.Inf(-1)
	}
	e.lastScore = e.bestScore
	return nil
}

func checkAssignment(assign []int, n, nextID int) error {
	if len(assign) != n {
		return fmt.Errorf("%w: assignment has %d entries, want %d", ErrSnapshotMismatch, len(assign), n)
	}
	for i, id := range assign {
		if id < 0 || id >= nextID {
			return fmt.Errorf("%w: point %d has cluster %d outside [0,%d)", ErrSnapshotMismatch, i, id, nextID)
		}
	}
	return nil
}
