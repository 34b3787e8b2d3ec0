package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthetic_Shape(t *testing.T) {
	s := TwoDTrivial()
	ds, labels, err := s.Generate()
	require.NoError(t, err)

	assert.Equal(t, 200, ds.NumPoints())
	assert.Equal(t, 2, ds.NumFeatures())
	require.Len(t, labels, 200)
	assert.Equal(t, 0, labels[0])
	assert.Equal(t, 1, labels[199])

	// Each group keeps exactly its one unmasked feature.
	for i := range ds.NumPoints() {
		_, idx, w := ds.Unmasked(i)
		require.Len(t, idx, 1)
		assert.Equal(t, int32(labels[i]), idx[0])
		assert.Equal(t, 1.0, w[0])
	}
}

func TestSynthetic_Deterministic(t *testing.T) {
	c := FourDEasy().Centres
	rng := NewRNG(7)
	a, _, err := rng.Synthetic(4, 50, c)
	require.NoError(t, err)
	rng.Reset()
	b, _, err := rng.Synthetic(4, 50, c)
	require.NoError(t, err)

	for i := range a.NumPoints() {
		va, ia, wa := a.Unmasked(i)
		vb, ib, wb := b.Unmasked(i)
		assert.Equal(t, va, vb)
		assert.Equal(t, ia, ib)
		assert.Equal(t, wa, wb)
	}
	assert.Equal(t, uint64(7), rng.Seed())
}

func TestSynthetic_MasksClipped(t *testing.T) {
	ds, _, err := FourDEasy().Generate()
	require.NoError(t, err)
	for i := range ds.NumPoints() {
		_, _, w := ds.Unmasked(i)
		for _, v := range w {
			assert.Greater(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestSynthetic_Errors(t *testing.T) {
	rng := NewRNG(1)
	_, _, err := rng.Synthetic(0, 10, TwoDTrivial().Centres)
	assert.Error(t, err)

	_, _, err = rng.Synthetic(3, 10, TwoDTrivial().Centres)
	assert.ErrorContains(t, err, "want 3")
}

func TestWellClustered(t *testing.T) {
	assign := make([]int, 200)
	for i := range assign {
		assign[i] = 1 + i/100
	}
	require.NoError(t, WellClustered(assign, 2, 100, 0.02))

	assign[0], assign[1] = 2, 2
	assert.NoError(t, WellClustered(assign, 2, 100, 0.02))
	assign[2] = 2
	assert.Error(t, WellClustered(assign, 2, 100, 0.02))

	same := make([]int, 200)
	for i := range same {
		same[i] = 1
	}
	assert.ErrorContains(t, WellClustered(same, 2, 100, 0.02), "share")

	noise := make([]int, 200)
	assert.ErrorContains(t, WellClustered(noise, 2, 100, 0.02), "noise")
}

func TestDominant(t *testing.T) {
	id, n := Dominant([]int{3, 2, 3, 2, 5})
	assert.Equal(t, 2, id)
	assert.Equal(t, 2, n)
}

func TestScenarios(t *testing.T) {
	all := Scenarios()
	assert.Len(t, all, 5)
	assert.Contains(t, all, "4d-non-gaussian")
}
