package maskedem

import (
	"context"
	"fmt"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/maskedem/testutil"
)

func TestMergeRound_JoinsHalvesOfOneGroup(t *testing.T) {
	ds, _ := generate(t, testutil.TwoDTrivial())
	e := newEngine(t, ds, testConfig(4))
	ctx := context.Background()
	require.NoError(t, e.ClusterMaskStarts(ctx))
	require.Equal(t, []int{1, 2, 3, 4}, e.ClusterIDs())

	e.mu.Lock()
	e.params = e.estimateAll()
	before := e.penalizedScore(e.params)
	merged := e.mergeRound(ctx)
	after := e.penalizedScore(e.params)
	e.mu.Unlock()

	assert.Equal(t, 2, merged)
	assert.Equal(t, []int{1, 2}, e.ClusterIDs())
	assert.Greater(t, after, before)
	assert.NoError(t, testutil.WellClustered(e.Clusters(), 2, 100, 0))
}

func TestMergeRound_KeepsSeparatedGroups(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			s := testutil.TwoDEasy()
			s.Seed = seed
			ds, labels := generate(t, s)

			cfg := testConfig(2)
			// Every pair is a candidate; only the score decides.
			cfg.MergeThreshold = 100
			e := newEngine(t, ds, cfg)

			assign := make([]int, len(labels))
			for i, l := range labels {
				assign[i] = l + 1
			}

			e.mu.Lock()
			e.resetRun(slices.Clone(assign), 3)
			e.params = e.estimateAll()
			merged := e.mergeRound(context.Background())
			e.mu.Unlock()

			assert.Zero(t, merged)
			assert.Equal(t, []int{1, 2}, e.ClusterIDs())
			assert.Equal(t, assign, e.Clusters())
		})
	}
}

func TestMergeRound_RejectedMergeRestoresWeights(t *testing.T) {
	s := testutil.TwoDEasy()
	ds, labels := generate(t, s)
	cfg := testConfig(2)
	cfg.MergeThreshold = 100
	e := newEngine(t, ds, cfg)

	assign := make([]int, len(labels))
	for i, l := range labels {
		assign[i] = l + 1
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetRun(assign, 3)
	e.params = e.estimateAll()
	want := map[int]float64{}
	for id, p := range e.params {
		want[id] = p.LogWeight
	}
	require.Zero(t, e.mergeRound(context.Background()))
	for id, p := range e.params {
		assert.InDelta(t, want[id], p.LogWeight, 1e-12, "cluster %d", id)
	}
}
