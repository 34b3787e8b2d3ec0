package dataset

import (
	"math"
)

// Raw is the flattened sparse input consumed by New.
//
// Point i owns the entries [Offsets[i], Offsets[i+1]) of Values, Indices and
// Weights. Features absent from a point's index set are fully masked.
type Raw struct {
	// NumFeatures is the global feature count F.
	NumFeatures int
	// Values holds the measured feature values of all unmasked entries.
	Values []float64
	// Indices holds the feature index of each entry in Values.
	Indices []int
	// Weights holds the mask strength in [0,1] of each entry.
	// A nil slice means every unmasked entry has strength 1.
	Weights []float64
	// Offsets has length N+1 with Offsets[0] == 0 and Offsets[N] == len(Values).
	Offsets []int
	// NoiseMean is the per-feature mean over points where the feature is masked.
	NoiseMean []float64
	// NoiseVariance is the per-feature variance over points where the feature is masked.
	NoiseVariance []float64
}

// Dataset is an immutable sparse masked point set.
//
// Besides the raw entries it keeps, per unmasked entry, the mask-blended value
// y = w*x + (1-w)*noiseMean and the second-moment correction
// w*x² + (1-w)*(noiseMean²+noiseVariance) - y². Masked features implicitly
// carry y = noiseMean and correction = noiseVariance.
//
// A Dataset is safe for concurrent read-only use by independent engines.
type Dataset struct {
	numFeatures int
	offsets     []int
	indices     []int32
	values      []float64
	weights     []float64
	blended     []float64
	corrections []float64

	noiseMean     []float64
	noiseVariance []float64

	meanUnmasked float64
}

// New validates raw and builds a Dataset.
//
// It returns an *InvalidDataError (matching ErrInvalidData) when offsets are
// not monotonic, an index is outside [0,F), an index repeats within a point,
// a weight lies outside [0,1], or a value is not finite.
func New(raw Raw) (*Dataset, error) {
	if err := validate(raw); err != nil {
		return nil, err
	}

	n := len(raw.Offsets) - 1
	total := raw.Offsets[n]

	d := &Dataset{
		numFeatures:   raw.NumFeatures,
		offsets:       append([]int(nil), raw.Offsets...),
		indices:       make([]int32, total),
		values:        append([]float64(nil), raw.Values[:total]...),
		weights:       make([]float64, total),
		blended:       make([]float64, total),
		corrections:   make([]float64, total),
		noiseMean:     append([]float64(nil), raw.NoiseMean...),
		noiseVariance: append([]float64(nil), raw.NoiseVariance...),
	}

	for j := 0; j < total; j++ {
		f := raw.Indices[j]
		d.indices[j] = int32(f)

		w := 1.0
		if raw.Weights != nil {
			w = raw.Weights[j]
		}
		d.weights[j] = w

		x := d.values[j]
		nm := d.noiseMean[f]
		nv := d.noiseVariance[f]

		y := w*x + (1-w)*nm
		z := w*x*x + (1-w)*(nm*nm+nv)
		c := z - y*y
		if c < 0 {
			// Rounding only; the exact value is w(1-w)(x-nm)² + (1-w)nv ≥ 0.
			c = 0
		}
		d.blended[j] = y
		d.corrections[j] = c
	}

	if n > 0 {
		d.meanUnmasked = float64(total) / float64(n)
	}

	return d, nil
}

// NumPoints returns N.
func (d *Dataset) NumPoints() int { return len(d.offsets) - 1 }

// NumFeatures returns F.
func (d *Dataset) NumFeatures() int { return d.numFeatures }

// NumEntries returns the total number of unmasked entries.
func (d *Dataset) NumEntries() int { return d.offsets[len(d.offsets)-1] }

// MeanUnmasked returns the average number of unmasked features per point.
func (d *Dataset) MeanUnmasked() float64 { return d.meanUnmasked }

// Unmasked returns the raw values, feature indices and mask strengths of
// point i. The returned slices alias internal storage and must not be modified.
func (d *Dataset) Unmasked(i int) (values []float64, indices []int32, weights []float64) {
	lo, hi := d.offsets[i], d.offsets[i+1]
	return d.values[lo:hi], d.indices[lo:hi], d.weights[lo:hi]
}

// Blended returns the mask-blended values and correction terms of point i
// together with their feature indices. The slices alias internal storage.
func (d *Dataset) Blended(i int) (values []float64, corrections []float64, indices []int32) {
	lo, hi := d.offsets[i], d.offsets[i+1]
	return d.blended[lo:hi], d.corrections[lo:hi], d.indices[lo:hi]
}

// NumUnmasked returns the number of unmasked entries of point i.
func (d *Dataset) NumUnmasked(i int) int {
	return d.offsets[i+1] - d.offsets[i]
}

// NoiseMean returns the noise mean of feature f.
func (d *Dataset) NoiseMean(f int) float64 { return d.noiseMean[f] }

// NoiseVariance returns the noise variance of feature f.
func (d *Dataset) NoiseVariance(f int) float64 { return d.noiseVariance[f] }

// NoiseMeans returns the noise mean vector. The slice aliases internal storage.
func (d *Dataset) NoiseMeans() []float64 { return d.noiseMean }

// NoiseVariances returns the noise variance vector. The slice aliases internal storage.
func (d *Dataset) NoiseVariances() []float64 { return d.noiseVariance }

// Densify writes the blended representation of point i into dst (length F):
// noise means for masked features, blended values for unmasked ones.
func (d *Dataset) Densify(i int, dst []float64) {
	copy(dst, d.noiseMean)
	lo, hi := d.offsets[i], d.offsets[i+1]
	for j := lo; j < hi; j++ {
		dst[d.indices[j]] = d.blended[j]
	}
}

func validate(raw Raw) error {
	if raw.NumFeatures <= 0 {
		return &InvalidDataError{Point: -1, Feature: -1, Reason: "number of features must be positive"}
	}
	if len(raw.Offsets) == 0 {
		return &InvalidDataError{Point: -1, Feature: -1, Reason: "offsets must have length N+1"}
	}
	if raw.Offsets[0] != 0 {
		return &InvalidDataError{Point: 0, Feature: -1, Reason: "offsets must start at 0"}
	}
	if len(raw.NoiseMean) != raw.NumFeatures || len(raw.NoiseVariance) != raw.NumFeatures {
		return &InvalidDataError{Point: -1, Feature: -1, Reason: "noise statistics must have one entry per feature"}
	}
	for f := range raw.NumFeatures {
		if !isFinite(raw.NoiseMean[f]) {
			return &InvalidDataError{Point: -1, Feature: f, Reason: "noise mean is not finite"}
		}
		if !isFinite(raw.NoiseVariance[f]) || raw.NoiseVariance[f] < 0 {
			return &InvalidDataError{Point: -1, Feature: f, Reason: "noise variance must be finite and non-negative"}
		}
	}

	n := len(raw.Offsets) - 1
	for i := range n {
		if raw.Offsets[i+1] < raw.Offsets[i] {
			return &InvalidDataError{Point: i, Feature: -1, Reason: "offsets are not monotonic"}
		}
	}
	total := raw.Offsets[n]
	if total != len(raw.Values) || total != len(raw.Indices) {
		return &InvalidDataError{Point: -1, Feature: -1, Reason: "offsets do not cover values and indices"}
	}
	if raw.Weights != nil && len(raw.Weights) != total {
		return &InvalidDataError{Point: -1, Feature: -1, Reason: "weights length does not match values"}
	}

	// seen[f] == i+1 marks feature f as already used by point i.
	seen := make([]int, raw.NumFeatures)
	for i := range n {
		for j := raw.Offsets[i]; j < raw.Offsets[i+1]; j++ {
			f := raw.Indices[j]
			if f < 0 || f >= raw.NumFeatures {
				return &InvalidDataError{Point: i, Feature: f, Reason: "feature index out of range"}
			}
			if seen[f] == i+1 {
				return &InvalidDataError{Point: i, Feature: f, Reason: "duplicate feature index"}
			}
			seen[f] = i + 1
			if !isFinite(raw.Values[j]) {
				return &InvalidDataError{Point: i, Feature: f, Reason: "value is not finite"}
			}
			if raw.Weights != nil {
				w := raw.Weights[j]
				if !isFinite(w) || w < 0 || w > 1 {
					return &InvalidDataError{Point: i, Feature: f, Reason: "mask strength outside [0,1]"}
				}
			}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
