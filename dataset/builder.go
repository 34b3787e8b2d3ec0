package dataset

// Builder assembles a Dataset from dense per-point feature and mask rows.
//
// Entries whose mask is zero are dropped from the sparse representation and
// feed the per-feature noise statistics instead.
type Builder struct {
	numFeatures int

	values  []float64
	indices []int
	weights []float64
	offsets []int

	// Welford accumulators over masked entries, per feature.
	noiseCount []float64
	noiseMean  []float64
	noiseM2    []float64
}

// NewBuilder creates a Builder for points with numFeatures features.
func NewBuilder(numFeatures int) *Builder {
	return &Builder{
		numFeatures: numFeatures,
		offsets:     []int{0},
		noiseCount:  make([]float64, max(numFeatures, 0)),
		noiseMean:   make([]float64, max(numFeatures, 0)),
		noiseM2:     make([]float64, max(numFeatures, 0)),
	}
}

// Add appends one point. features and mask must both have length F; mask
// values are clipped into [0,1].
func (b *Builder) Add(features, mask []float64) error {
	point := len(b.offsets) - 1
	if len(features) != b.numFeatures || len(mask) != b.numFeatures {
		return &InvalidDataError{Point: point, Feature: -1, Reason: "row length does not match number of features"}
	}

	for f, x := range features {
		w := min(max(mask[f], 0), 1)
		if w > 0 {
			b.values = append(b.values, x)
			b.indices = append(b.indices, f)
			b.weights = append(b.weights, w)
			continue
		}
		if !isFinite(x) {
			return &InvalidDataError{Point: point, Feature: f, Reason: "value is not finite"}
		}
		b.noiseCount[f]++
		delta := x - b.noiseMean[f]
		b.noiseMean[f] += delta / b.noiseCount[f]
		b.noiseM2[f] += delta * (x - b.noiseMean[f])
	}
	b.offsets = append(b.offsets, len(b.values))
	return nil
}

// Len returns the number of points added so far.
func (b *Builder) Len() int { return len(b.offsets) - 1 }

// Raw returns the flattened representation with noise statistics filled in.
// Features that were never masked get zero noise mean and variance.
func (b *Builder) Raw() Raw {
	variance := make([]float64, b.numFeatures)
	for f := range variance {
		if b.noiseCount[f] > 0 {
			// Population variance, matching mean(x²) - mean(x)².
			variance[f] = b.noiseM2[f] / b.noiseCount[f]
		}
	}
	return Raw{
		NumFeatures:   b.numFeatures,
		Values:        b.values,
		Indices:       b.indices,
		Weights:       b.weights,
		Offsets:       b.offsets,
		NoiseMean:     append([]float64(nil), b.noiseMean...),
		NoiseVariance: variance,
	}
}

// Build validates the accumulated points and returns the Dataset.
func (b *Builder) Build() (*Dataset, error) {
	return New(b.Raw())
}

// FromDense builds a Dataset from dense feature and mask matrices of shape N×F.
func FromDense(features, masks [][]float64) (*Dataset, error) {
	if len(features) != len(masks) {
		return nil, &InvalidDataError{Point: -1, Feature: -1, Reason: "features and masks differ in number of rows"}
	}
	if len(features) == 0 {
		return nil, &InvalidDataError{Point: -1, Feature: -1, Reason: "no points"}
	}
	b := NewBuilder(len(features[0]))
	for i := range features {
		if err := b.Add(features[i], masks[i]); err != nil {
			return nil, err
		}
	}
	return b.Build()
}
