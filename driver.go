package maskedem

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/maskedem/internal/hash"
	"github.com/hupe1980/maskedem/internal/model"
)

// State is the state of the EM driver.
type State int

const (
	// StateInitializing means no step has run since the starting assignment.
	StateInitializing State = iota
	// StateQuickStep means the last step was a quick step.
	StateQuickStep
	// StateFullStep means the last step was a full step.
	StateFullStep
	// StateConverged is terminal: a full step changed nothing.
	StateConverged
	// StateDiverged is terminal: the assignment oscillated too long.
	StateDiverged
	// StateMaxIterationsReached is terminal: the iteration bound was hit.
	StateMaxIterationsReached
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateQuickStep:
		return "quick_step"
	case StateFullStep:
		return "full_step"
	case StateConverged:
		return "converged"
	case StateDiverged:
		return "diverged"
	case StateMaxIterationsReached:
		return "max_iterations_reached"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further step can run.
func (s State) Terminal() bool {
	return s == StateConverged || s == StateDiverged || s == StateMaxIterationsReached
}

// Status is the outcome of Run.
type Status int

const (
	StatusConverged Status = iota
	StatusDiverged
	StatusAborted
	StatusMaxIterationsReached
)

func (s Status) String() string {
	switch s {
	case StatusConverged:
		return "converged"
	case StatusDiverged:
		return "diverged"
	case StatusAborted:
		return "aborted"
	case StatusMaxIterationsReached:
		return "max_iterations_reached"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// StepKind distinguishes quick and full steps.
type StepKind int

const (
	// QuickStep refreshes means and weights, keeps covariance factors and
	// scores every point against its candidate clusters only.
	QuickStep StepKind = iota
	// FullStep re-estimates every cluster, merges indistinguishable
	// clusters and scores every point against every cluster.
	FullStep
)

func (k StepKind) String() string {
	if k == FullStep {
		return "full"
	}
	return "quick"
}

// StepResult describes one EM iteration.
type StepResult struct {
	Iteration int
	Kind      StepKind
	State     State

	// Reassigned is the number of points whose cluster changed.
	Reassigned int
	// NumClusters is the number of live non-noise clusters after the step.
	NumClusters int
	// Merged is the number of clusters merged away.
	Merged int
	// SplitsAccepted is the number of splits applied after the step.
	SplitsAccepted int
	// Removed lists the clusters pruned because they lost every member.
	Removed []int
	// Score is the penalized log-likelihood of the new assignment under the
	// parameters it was scored with.
	Score float64

	Warnings []*DegenerateClusterWarning
	Duration time.Duration
}

// Result is the outcome of Run.
type Result struct {
	Assignment  []int
	Status      Status
	Iterations  int
	NumClusters int
	Score       float64
}

// Step advances the engine by one iteration, choosing a quick or full step
// from the schedule. The engine is initialized with ClusterMaskStarts first
// if needed. It returns a *DivergenceError when the step detects
// oscillation and ErrTerminated once the engine reached a terminal state.
func (e *Engine) Step(ctx context.Context) (StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step(ctx, e.scheduledKind())
}

// QuickStep runs one quick step regardless of the schedule. Without
// parameters from a previous full step it runs a full step instead.
func (e *Engine) QuickStep(ctx context.Context) (StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step(ctx, QuickStep)
}

// FullStep runs one full step regardless of the schedule.
func (e *Engine) FullStep(ctx context.Context) (StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step(ctx, FullStep)
}

// Run steps until the engine reaches a terminal state or ctx is done.
//
// The returned Result is never nil. On divergence the error is a
// *DivergenceError; on cancellation it matches both ErrAborted and the
// context error. Diverged and MaxIterationsReached results carry the
// best-scoring assignment seen on a full step.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			e.mu.Lock()
			res := e.result(StatusAborted)
			e.mu.Unlock()
			e.finish(ctx, res, start, err)
			return res, fmt.Errorf("%w: %w", ErrAborted, err)
		}

		e.mu.Lock()
		_, err := e.step(ctx, e.scheduledKind())
		state := e.state
		cycles := e.cycles
		var res *Result
		if state.Terminal() {
			res = e.result(statusOf(state))
		}
		e.mu.Unlock()

		if errors.Is(err, ErrTerminated) {
			err = nil
		}
		if err != nil {
			if res == nil {
				return nil, err
			}
			e.finish(ctx, res, start, err)
			return res, err
		}
		if res != nil {
			if res.Status == StatusDiverged && err == nil {
				err = &DivergenceError{Iteration: res.Iterations, Cycles: cycles}
			}
			e.finish(ctx, res, start, err)
			return res, err
		}
	}
}

func (e *Engine) finish(ctx context.Context, res *Result, start time.Time, err error) {
	d := time.Since(start)
	e.metrics.RecordRun(res.Status, res.Iterations, d)
	e.logger.LogRun(ctx, res.Status, res.Iterations, res.NumClusters, d, err)
}

func statusOf(s State) Status {
	switch s {
	case StateDiverged:
		return StatusDiverged
	case StateMaxIterationsReached:
		return StatusMaxIterationsReached
	default:
		return StatusConverged
	}
}

func (e *Engine) result(status Status) *Result {
	score := e.lastScore
	if status == StatusDiverged || status == StatusMaxIterationsReached {
		score = e.bestScore
	}
	return &Result{
		Assignment:  slices.Clone(e.assign),
		Status:      status,
		Iterations:  e.iteration,
		NumClusters: e.numClustersOrZero(),
		Score:       score,
	}
}

func (e *Engine) numClustersOrZero() int {
	if !e.initialized {
		return 0
	}
	return e.numClusters()
}

func (e *Engine) scheduledKind() StepKind {
	next := e.iteration + 1
	switch {
	case next == 1, e.forceFull, e.params == nil:
		return FullStep
	case e.splitDue(next):
		return FullStep
	case (next-1)%e.cfg.FullStepEvery == 0:
		return FullStep
	default:
		return QuickStep
	}
}

func (e *Engine) splitDue(iteration int) bool {
	return e.cfg.SplitEvery > 0 && iteration-e.lastSplit >= e.cfg.SplitEvery
}

func (e *Engine) step(ctx context.Context, kind StepKind) (StepResult, error) {
	if e.state.Terminal() {
		return StepResult{Iteration: e.iteration, State: e.state}, ErrTerminated
	}
	if !e.initialized {
		e.clusterMaskStarts(ctx)
	}
	if e.params == nil || e.candidates == nil {
		kind = FullStep
	}

	start := time.Now()
	e.iteration++
	e.forceFull = false
	before := slices.Clone(e.assign)

	r := StepResult{Iteration: e.iteration, Kind: kind}
	if kind == FullStep {
		e.fullStep(ctx, &r)
	} else {
		e.quickStep(&r)
	}

	for i, id := range e.assign {
		if before[i] != id {
			r.Reassigned++
		}
	}
	r.Removed = e.prune()
	e.lastScore = r.Score

	if kind == FullStep {
		if r.Score > e.bestScore {
			e.bestScore = r.Score
			e.best = slices.Clone(e.assign)
		}
		fixed := r.Reassigned == 0 && r.Merged == 0
		if e.splitDue(e.iteration) || (fixed && e.cfg.SplitEvery > 0) {
			e.lastSplit = e.iteration
			var score float64
			r.SplitsAccepted, score = e.splitRound(ctx)
			if r.SplitsAccepted > 0 && score > e.bestScore {
				e.bestScore = score
				e.best = slices.Clone(e.assign)
			}
		}
		if r.SplitsAccepted > 0 {
			e.forceFull = true
		} else if fixed {
			e.state = StateConverged
		}
	} else if r.Reassigned == 0 {
		// A quick step can only refine what the last full step selected.
		e.forceFull = true
	}

	var err error
	if !e.state.Terminal() {
		e.state = StateQuickStep
		if kind == FullStep {
			e.state = StateFullStep
		}
		if e.oscillating() {
			e.state = StateDiverged
			err = &DivergenceError{Iteration: e.iteration, Cycles: e.cycles}
		} else if e.iteration >= e.cfg.MaxIterations {
			e.state = StateMaxIterationsReached
		}
		if e.state == StateDiverged || e.state == StateMaxIterationsReached {
			e.restoreBest()
		}
	}

	r.State = e.state
	r.NumClusters = e.numClusters()
	r.Duration = time.Since(start)

	e.metrics.RecordStep(kind, r.Reassigned, r.NumClusters, r.Duration)
	e.logger.LogStep(ctx, r)
	e.progress.Do(func() { e.logger.LogProgress(ctx, r) })
	return r, err
}

// oscillating records the new assignment and reports whether it has cycled
// between two partitions more than OscillationLimit times in a row. Ids are
// compared after relabelling, so a cluster that is merged away and split off
// again under a fresh id still counts as the same partition.
func (e *Engine) oscillating() bool {
	cur := canonical(e.assign)
	fp := hash.Labels(cur)
	switch {
	case e.prev2 != nil && fp == e.prev2FP && fp != e.prevFP && slices.Equal(cur, e.prev2):
		e.cycles++
	case e.prev != nil && !slices.Equal(cur, e.prev):
		e.cycles = 0
	}
	e.prev2, e.prev2FP = e.prev, e.prevFP
	e.prev, e.prevFP = cur, fp
	return e.cycles > e.cfg.OscillationLimit
}

// canonical relabels non-noise ids 1, 2, ... in order of first occurrence.
func canonical(assign []int) []int {
	out := make([]int, len(assign))
	ids := make(map[int]int)
	for i, id := range assign {
		if id == NoiseClusterID {
			continue
		}
		c, ok := ids[id]
		if !ok {
			c = len(ids) + 1
			ids[id] = c
		}
		out[i] = c
	}
	return out
}

// restoreBest reinstates the best-scoring full-step assignment.
func (e *Engine) restoreBest() {
	if e.best == nil || slices.Equal(e.best, e.assign) {
		return
	}
	for i, id := range e.best {
		if !e.live.Contains(uint32(id)) {
			e.addCluster(id)
		}
		e.move(i, id)
	}
	e.prune()
	e.params = nil
	e.lastScore = e.bestScore
}

// fullStep re-estimates every live cluster, merges indistinguishable ones
// and reassigns every point against every scorable cluster.
func (e *Engine) fullStep(ctx context.Context, r *StepResult) {
	e.params = e.estimateAll()
	for _, id := range e.liveIDs() {
		p := e.params[id]
		if p.Degenerate && p.Size > 0 {
			w := &DegenerateClusterWarning{ClusterID: id, Size: p.Size}
			r.Warnings = append(r.Warnings, w)
			e.metrics.RecordDegenerate(id)
			e.logger.LogDegenerate(ctx, w)
		}
	}
	if e.cfg.MergeThreshold > 0 {
		r.Merged = e.mergeRound(ctx)
		if r.Merged > 0 {
			e.metrics.RecordMerge(r.Merged)
		}
	}
	r.Score = e.reassign(true)
}

// quickStep refreshes means and weights from the current members and
// reassigns every point among its candidate clusters.
func (e *Engine) quickStep(r *StepResult) {
	ids := e.liveIDs()
	fresh := make([]*model.Params, len(ids))

	var g errgroup.Group
	g.SetLimit(e.workers)
	for k, id := range ids {
		p, ok := e.params[id]
		m := e.members[id]
		g.Go(func() error {
			if ok {
				e.acc.RefreshMean(p, m)
			} else {
				fresh[k] = e.estimate(id)
			}
			return nil
		})
	}
	_ = g.Wait()

	for k, p := range fresh {
		if p != nil {
			e.params[ids[k]] = p
		}
	}
	e.setWeights(e.params)
	r.Score = e.reassign(false)
}
