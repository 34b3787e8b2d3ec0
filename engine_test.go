package maskedem

import (
	"context"
	"fmt"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/maskedem/dataset"
	"github.com/hupe1980/maskedem/testutil"
)

func TestNew_Errors(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidData)

	var ide *InvalidDataError
	assert.ErrorAs(t, err, &ide)

	ds, _ := generate(t, testutil.TwoDTrivial())
	cfg := DefaultConfig()
	cfg.MaxIterations = 0
	_, err = New(ds, cfg)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestNew_EmptyDataset(t *testing.T) {
	ds, err := dataset.NewBuilder(2).Build()
	require.NoError(t, err)
	_, err = New(ds, DefaultConfig())
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestEngine_BeforeInitialization(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(2), WithRunID("run-a"))

	assert.Equal(t, "run-a", e.RunID())
	assert.Same(t, ds, e.Dataset())
	assert.Equal(t, 2, e.Config().NumStartingClusters)
	assert.Equal(t, StateInitializing, e.State())
	assert.Equal(t, 0, e.Iteration())
	assert.Nil(t, e.Clusters())
	assert.Nil(t, e.ClusterIDs())
	assert.Nil(t, e.Sizes())
	assert.Nil(t, e.Snapshot())
	assert.True(t, math.IsInf(e.Score(), -1))
}

func TestNew_GeneratesRunID(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	a := newEngine(t, ds, testConfig(2))
	b := newEngine(t, ds, testConfig(2))
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestRun_TwoCentres(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(10))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, StateConverged, e.State())
	assert.Equal(t, 2, res.NumClusters)
	assert.Len(t, e.ClusterIDs(), 2)
	require.NoError(t, testutil.WellClustered(res.Assignment, 2, 100, 0.02))

	for g := range 2 {
		_, n := testutil.Dominant(res.Assignment[g*100 : (g+1)*100])
		assert.GreaterOrEqual(t, n, 98)
	}
}

func TestRun_Separation(t *testing.T) {
	tests := []struct {
		scenario testutil.Scenario
		starts   int
		split    int
	}{
		{testutil.TwoDTrivial(), 10, 40},
		{testutil.TwoDEasy(), 10, 40},
		{testutil.TwoDEasy(), 20, 40},
		{testutil.TwoDTrivial(), 10, 1},
		{testutil.TwoDEasy(), 10, 1},
		{testutil.FourDTrivial(), 20, 40},
		{testutil.FourDEasy(), 20, 40},
	}
	seeds := []uint64{101, 202, 303, 404, 505}

	for _, tt := range tests {
		for _, seed := range seeds {
			name := fmt.Sprintf("%s/starts=%d/split=%d/seed=%d", tt.scenario.Name, tt.starts, tt.split, seed)
			t.Run(name, func(t *testing.T) {
				s := tt.scenario
				s.Seed = seed
				ds, _ := generate(t, s)
				cfg := testConfig(tt.starts)
				cfg.SplitEvery = tt.split
				cfg.Seed = seed
				e := newEngine(t, ds, cfg)

				res, err := e.Run(context.Background())
				require.NoError(t, err)
				assert.Equal(t, StatusConverged, res.Status)
				assert.Equal(t, len(s.Centres), res.NumClusters)
				assert.NoError(t, testutil.WellClustered(res.Assignment,
					len(s.Centres), s.PointsPerCentre, 0.02))
			})
		}
	}
}

func TestRun_TwoDEasyAcrossSeeds(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			s := testutil.TwoDEasy()
			s.Seed = seed
			ds, _ := generate(t, s)
			cfg := testConfig(10)
			cfg.Seed = seed
			e := newEngine(t, ds, cfg)

			res, err := e.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, StatusConverged, res.Status)
			assert.Equal(t, 2, res.NumClusters)
			assert.NoError(t, testutil.WellClustered(res.Assignment, 2, s.PointsPerCentre, 0.02))
		})
	}
}

func TestRun_SplitSeparatesSharedPattern(t *testing.T) {
	s := bimodal()
	ds, _ := generate(t, s)
	metrics := &BasicMetricsCollector{}
	e := newEngine(t, ds, testConfig(1), WithMetricsCollector(metrics))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusConverged, res.Status)
	assert.Equal(t, 2, res.NumClusters)
	assert.NoError(t, testutil.WellClustered(res.Assignment, 2, s.PointsPerCentre, 0.02))

	stats := metrics.GetStats()
	assert.GreaterOrEqual(t, stats.SplitsAccepted, int64(1))
	// The new cluster gets the next id.
	assert.Equal(t, []int{1, 2}, e.ClusterIDs())
}

func TestRun_Completeness(t *testing.T) {
	ds, _ := generate(t, testutil.FourDEasy())
	e := newEngine(t, ds, testConfig(20))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Assignment, ds.NumPoints())

	ids := e.ClusterIDs()
	assert.True(t, slices.IsSorted(ids))
	sizes := e.Sizes()
	for _, id := range res.Assignment {
		assert.GreaterOrEqual(t, id, 0)
		if id != NoiseClusterID {
			assert.Contains(t, ids, id)
			assert.Positive(t, sizes[id])
		}
	}
	for _, id := range ids {
		assert.Positive(t, sizes[id], "cluster %d has no members", id)
	}
	assert.Equal(t, len(ids), res.NumClusters)
}

func TestRun_Deterministic(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDEasy())

	run := func(workers int) *Result {
		cfg := testConfig(10)
		cfg.Workers = workers
		res, err := newEngine(t, ds, cfg).Run(context.Background())
		require.NoError(t, err)
		return res
	}

	a, b, c := run(1), run(1), run(8)
	assert.Equal(t, a.Assignment, b.Assignment)
	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Iterations, b.Iterations)
	assert.Equal(t, a.Assignment, c.Assignment)
	assert.Equal(t, a.Score, c.Score)
}

func TestScore_MatchesResult(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(2))

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, math.IsInf(e.Score(), 0))
	assert.InDelta(t, e.Score(), res.Score, 1e-6*math.Abs(res.Score)+1e-9)
}
