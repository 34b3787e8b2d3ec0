package maskedem

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/maskedem/internal/model"
	"github.com/hupe1980/maskedem/testutil"
)

func TestStep_InitializesAndRunsFull(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(2))

	r, err := e.Step(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, r.Iteration)
	assert.Equal(t, FullStep, r.Kind)
	assert.Equal(t, 0, r.Reassigned)
	assert.Equal(t, 2, r.NumClusters)
	assert.Equal(t, StateConverged, r.State)
	assert.Equal(t, []int{1, 2}, e.ClusterIDs())

	_, err = e.Step(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)
	_, err = e.QuickStep(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)
	assert.Equal(t, 1, e.Iteration())
}

func TestQuickStep_Idempotent(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(4))
	ctx := context.Background()

	// The first step merges the random halves and cannot be a fixed point.
	r, err := e.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, FullStep, r.Kind)
	require.Positive(t, r.Merged)
	require.False(t, r.State.Terminal())

	for range 10 {
		r, err = e.QuickStep(ctx)
		require.NoError(t, err)
		require.Equal(t, QuickStep, r.Kind)
		if r.Reassigned == 0 {
			break
		}
	}
	require.Equal(t, 0, r.Reassigned)

	before := e.Clusters()
	r, err = e.QuickStep(ctx)
	require.NoError(t, err)
	assert.Equal(t, QuickStep, r.Kind)
	assert.Equal(t, StateQuickStep, r.State)
	assert.Equal(t, 0, r.Reassigned)
	assert.Equal(t, before, e.Clusters())
}

func TestQuickStep_WithoutParamsRunsFull(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(4))

	r, err := e.QuickStep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, FullStep, r.Kind)
}

func TestScheduledKind(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	cfg := testConfig(2)
	cfg.FullStepEvery = 3
	cfg.SplitEvery = 0
	e := newEngine(t, ds, cfg)

	assert.Equal(t, FullStep, e.scheduledKind(), "first iteration")

	e.params = map[int]*model.Params{}
	e.iteration = 5
	assert.Equal(t, QuickStep, e.scheduledKind())
	e.iteration = 6
	assert.Equal(t, FullStep, e.scheduledKind())

	e.iteration = 7
	e.forceFull = true
	assert.Equal(t, FullStep, e.scheduledKind())
	e.forceFull = false

	e.cfg.SplitEvery = 4
	e.lastSplit = 5
	assert.Equal(t, QuickStep, e.scheduledKind())
	e.iteration = 8
	assert.Equal(t, FullStep, e.scheduledKind(), "split due at 9")
}

func TestOscillating(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	cfg := testConfig(2)
	cfg.OscillationLimit = 2
	e := newEngine(t, ds, cfg)

	a := make([]int, ds.NumPoints())
	b := slices.Clone(a)
	b[0] = 1

	var got []bool
	for k := range 5 {
		e.assign = a
		if k%2 == 1 {
			e.assign = b
		}
		got = append(got, e.oscillating())
	}
	assert.Equal(t, []bool{false, false, false, false, true}, got)
	assert.Equal(t, 3, e.cycles)

	// Any other assignment breaks the cycle.
	c := slices.Clone(a)
	c[1] = 2
	e.assign = c
	assert.False(t, e.oscillating())
	assert.Equal(t, 0, e.cycles)
}

func TestOscillating_RelabelledPartitions(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	cfg := testConfig(2)
	cfg.OscillationLimit = 2
	e := newEngine(t, ds, cfg)

	n := ds.NumPoints()
	split := func(second int) []int {
		a := make([]int, n)
		for i := range a {
			a[i] = 1
			if i >= n/2 {
				a[i] = second
			}
		}
		return a
	}
	joined := split(1)

	// Each time the joined cluster splits again, the new half has a fresh id.
	seq := [][]int{split(2), joined, split(3), joined, split(4)}
	var got []bool
	for _, a := range seq {
		e.assign = a
		got = append(got, e.oscillating())
	}
	assert.Equal(t, []bool{false, false, false, false, true}, got)
	assert.Equal(t, 3, e.cycles)
}

func TestCanonical(t *testing.T) {
	assert.Equal(t, []int{1, 0, 2, 1, 3}, canonical([]int{7, 0, 3, 7, 9}))
	assert.Equal(t, canonical([]int{1, 1, 2}), canonical([]int{5, 5, 1}))
	assert.NotEqual(t, canonical([]int{1, 2, 2}), canonical([]int{1, 1, 2}))
}

func TestStep_AcceptedSplitIsRecordedAsBest(t *testing.T) {
	s := bimodal()
	ds, _ := generate(t, s)
	e := newEngine(t, ds, testConfig(1))
	ctx := context.Background()

	for range 50 {
		r, err := e.Step(ctx)
		require.NoError(t, err)
		if r.SplitsAccepted > 0 {
			e.mu.Lock()
			defer e.mu.Unlock()
			assert.Equal(t, e.assign, e.best)
			assert.False(t, math.IsInf(e.bestScore, -1))
			return
		}
		require.False(t, r.State.Terminal(), "terminated without a split")
	}
	t.Fatal("no split accepted")
}

func TestRun_MaxIterations(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	cfg := testConfig(4)
	cfg.MaxIterations = 1
	e := newEngine(t, ds, cfg)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusMaxIterationsReached, res.Status)
	assert.Equal(t, StateMaxIterationsReached, e.State())
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Assignment, ds.NumPoints())

	_, err = e.Step(context.Background())
	assert.ErrorIs(t, err, ErrTerminated)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx)
	require.NotNil(t, res)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 0, res.Iterations)
}

// cancelOnStep cancels a context after the first recorded step.
type cancelOnStep struct {
	NoopMetricsCollector
	cancel context.CancelFunc
}

func (c cancelOnStep) RecordStep(StepKind, int, int, time.Duration) { c.cancel() }

func TestRun_CancelledBetweenSteps(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := newEngine(t, ds, testConfig(4), WithMetricsCollector(cancelOnStep{cancel: cancel}))
	res, err := e.Run(ctx)
	assert.ErrorIs(t, err, ErrAborted)
	require.NotNil(t, res)
	assert.Equal(t, StatusAborted, res.Status)
	assert.Equal(t, 1, res.Iterations)
	assert.Len(t, res.Assignment, ds.NumPoints())

	// Aborting is not terminal; the run can be continued.
	assert.False(t, e.State().Terminal())
	res, err = e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, res.Status)
}

func TestRun_NonGaussianMasksTerminate(t *testing.T) {
	s := testutil.FourDNonGaussian()
	ds, _ := generate(t, s)
	cfg := testConfig(20)
	cfg.FullStepEvery = 1
	cfg.MaxIterations = 100
	e := newEngine(t, ds, cfg)

	res, err := e.Run(context.Background())
	require.NotNil(t, res)
	if err != nil {
		require.ErrorIs(t, err, ErrDiverged)
		var de *DivergenceError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, StatusDiverged, res.Status)
	}
	assert.Contains(t, []Status{StatusConverged, StatusDiverged, StatusMaxIterationsReached}, res.Status)
	assert.LessOrEqual(t, res.Iterations, cfg.MaxIterations)
	assert.Len(t, res.Assignment, ds.NumPoints())
	assert.True(t, e.State().Terminal())
}

func TestSplitRound_NeverRegresses(t *testing.T) {
	ds, _ := generate(t, testutil.FourDEasy())
	cfg := testConfig(4)
	cfg.SplitEvery = 1
	e := newEngine(t, ds, cfg)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, StatusConverged, res.Status)

	before := e.Score()
	assign := e.Clusters()
	ids := e.ClusterIDs()

	e.mu.Lock()
	accepted, score := e.splitRound(context.Background())
	e.mu.Unlock()

	if accepted == 0 {
		assert.Equal(t, assign, e.Clusters())
		assert.Equal(t, ids, e.ClusterIDs())
		assert.InDelta(t, before, e.Score(), 1e-6*(1+abs(before)))
		return
	}
	assert.Greater(t, score, before)
	assert.Greater(t, e.Score(), before)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestRun_RestoresBestOnDivergence(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(2))

	e.mu.Lock()
	e.clusterMaskStarts(context.Background())
	good := slices.Clone(e.assign)
	e.best = slices.Clone(good)
	e.bestScore = 1
	// Move every point to cluster 1 and pretend the run cycled.
	for i := range e.assign {
		e.move(i, 1)
	}
	e.restoreBest()
	e.mu.Unlock()

	assert.Equal(t, good, e.Clusters())
	assert.Equal(t, []int{1, 2}, e.ClusterIDs())
}

func TestRun_ConcurrentAccessors(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDEasy())
	cfg := testConfig(10)
	cfg.OscillationLimit = 1
	e := newEngine(t, ds, cfg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for !e.State().Terminal() {
			_ = e.Clusters()
			_ = e.Iteration()
			_ = e.Snapshot()
		}
	}()

	res, err := e.Run(context.Background())
	<-done
	if err != nil {
		var de *DivergenceError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, StatusDiverged, res.Status)
		return
	}
	assert.True(t, res.Status == StatusConverged || res.Status == StatusMaxIterationsReached)
}
