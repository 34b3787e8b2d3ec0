package dataset

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSmall(t *testing.T) *Dataset {
	t.Helper()
	b := NewBuilder(2)
	require.NoError(t, b.Add([]float64{1, 5}, []float64{1, 0}))
	require.NoError(t, b.Add([]float64{2, 7}, []float64{0.5, 0}))
	require.NoError(t, b.Add([]float64{3, 4}, []float64{0, 1}))
	assert.Equal(t, 3, b.Len())
	ds, err := b.Build()
	require.NoError(t, err)
	return ds
}

func TestBuilder_NoiseStatistics(t *testing.T) {
	ds := buildSmall(t)

	assert.Equal(t, 3, ds.NumPoints())
	assert.Equal(t, 2, ds.NumFeatures())
	assert.Equal(t, 3, ds.NumEntries())
	assert.InDelta(t, 1.0, ds.MeanUnmasked(), 1e-12)

	assert.InDelta(t, 3.0, ds.NoiseMean(0), 1e-12)
	assert.InDelta(t, 0.0, ds.NoiseVariance(0), 1e-12)
	assert.InDelta(t, 6.0, ds.NoiseMean(1), 1e-12)
	assert.InDelta(t, 1.0, ds.NoiseVariance(1), 1e-12)
}

func TestBlended(t *testing.T) {
	ds := buildSmall(t)

	vals, corr, idx := ds.Blended(1)
	require.Equal(t, []int32{0}, idx)
	assert.InDelta(t, 2.5, vals[0], 1e-12)
	assert.InDelta(t, 0.25, corr[0], 1e-12)

	raw, ridx, w := ds.Unmasked(1)
	assert.Equal(t, []float64{2}, raw)
	assert.Equal(t, []int32{0}, ridx)
	assert.Equal(t, []float64{0.5}, w)

	// Full strength entries keep their value and have no correction.
	vals, corr, _ = ds.Blended(0)
	assert.Equal(t, 1.0, vals[0])
	assert.Equal(t, 0.0, corr[0])
}

func TestDensify(t *testing.T) {
	ds := buildSmall(t)
	dst := make([]float64, 2)

	ds.Densify(0, dst)
	assert.Equal(t, []float64{1, 6}, dst)

	ds.Densify(2, dst)
	assert.Equal(t, []float64{3, 4}, dst)
}

func TestNew_Validation(t *testing.T) {
	valid := func() Raw {
		return Raw{
			NumFeatures:   2,
			Values:        []float64{1, 2, 3},
			Indices:       []int{0, 1, 0},
			Weights:       []float64{1, 1, 0.5},
			Offsets:       []int{0, 2, 3},
			NoiseMean:     []float64{0, 0},
			NoiseVariance: []float64{1, 1},
		}
	}
	_, err := New(valid())
	require.NoError(t, err)

	tests := []struct {
		name    string
		mutate  func(r *Raw)
		point   int
		feature int
	}{
		{"NoFeatures", func(r *Raw) { r.NumFeatures = 0 }, -1, -1},
		{"OffsetsStart", func(r *Raw) { r.Offsets[0] = 1 }, 0, -1},
		{"NotMonotonic", func(r *Raw) { r.Offsets = []int{0, 3, 2}; r.Values = r.Values[:2]; r.Indices = r.Indices[:2]; r.Weights = r.Weights[:2] }, 1, -1},
		{"IndexOutOfRange", func(r *Raw) { r.Indices[1] = 2 }, 0, 2},
		{"DuplicateIndex", func(r *Raw) { r.Indices[1] = 0 }, 0, 0},
		{"WeightAboveOne", func(r *Raw) { r.Weights[2] = 1.5 }, 1, 0},
		{"NaNValue", func(r *Raw) { r.Values[0] = math.NaN() }, 0, 0},
		{"NegativeNoiseVariance", func(r *Raw) { r.NoiseVariance[1] = -1 }, -1, 1},
		{"NoiseLength", func(r *Raw) { r.NoiseMean = r.NoiseMean[:1] }, -1, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := valid()
			tt.mutate(&raw)
			_, err := New(raw)
			require.ErrorIs(t, err, ErrInvalidData)

			var ide *InvalidDataError
			require.ErrorAs(t, err, &ide)
			assert.Equal(t, tt.point, ide.Point)
			assert.Equal(t, tt.feature, ide.Feature)
		})
	}
}

func TestNew_NilWeightsMeanFullStrength(t *testing.T) {
	ds, err := New(Raw{
		NumFeatures:   1,
		Values:        []float64{4},
		Indices:       []int{0},
		Offsets:       []int{0, 1},
		NoiseMean:     []float64{0},
		NoiseVariance: []float64{0},
	})
	require.NoError(t, err)
	_, _, w := ds.Unmasked(0)
	assert.Equal(t, []float64{1}, w)
}

func TestBuilder_Errors(t *testing.T) {
	b := NewBuilder(2)
	err := b.Add([]float64{1}, []float64{1, 1})
	assert.ErrorIs(t, err, ErrInvalidData)

	err = b.Add([]float64{1, math.Inf(1)}, []float64{1, 0})
	var ide *InvalidDataError
	require.ErrorAs(t, err, &ide)
	assert.Equal(t, 1, ide.Feature)
}

func TestFromDense(t *testing.T) {
	ds, err := FromDense(
		[][]float64{{1, 2}, {3, 4}},
		[][]float64{{1, 2}, {-1, 1}},
	)
	require.NoError(t, err)
	// Masks are clipped into [0,1].
	_, idx, w := ds.Unmasked(0)
	assert.Equal(t, []int32{0, 1}, idx)
	assert.Equal(t, []float64{1, 1}, w)
	assert.Equal(t, 1, ds.NumUnmasked(1))

	_, err = FromDense([][]float64{{1}}, nil)
	assert.ErrorIs(t, err, ErrInvalidData)
	_, err = FromDense(nil, nil)
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestInvalidDataError_Message(t *testing.T) {
	assert.Equal(t, "invalid data: point 3, feature 1: bad", (&InvalidDataError{Point: 3, Feature: 1, Reason: "bad"}).Error())
	assert.Equal(t, "invalid data: bad", (&InvalidDataError{Point: -1, Feature: -1, Reason: "bad"}).Error())
}
