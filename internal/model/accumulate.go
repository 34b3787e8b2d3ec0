package model

import (
	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/maskedem/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Accumulator estimates cluster parameters from member sets.
//
// Masked features contribute the noise mean to the first moment and the
// noise variance to the diagonal of the second moment, so a cluster whose
// members never observe a feature still has a well-defined variance there.
//
// An Accumulator is safe for concurrent use: every call allocates its own
// scratch space.
type Accumulator struct {
	ds    *dataset.Dataset
	ridge float64
}

// NewAccumulator creates an Accumulator that adds ridge*I to every covariance.
func NewAccumulator(ds *dataset.Dataset, ridge float64) *Accumulator {
	return &Accumulator{ds: ds, ridge: ridge}
}

// Dataset returns the dataset the accumulator reads from.
func (a *Accumulator) Dataset() *dataset.Dataset { return a.ds }

// Estimate computes mean, covariance and the Cholesky-derived terms of the
// cluster formed by members. An empty member set yields a degenerate cluster.
//
// The covariance is accumulated in two passes (mean first, then centered
// outer products) to avoid cancellation on large clusters.
func (a *Accumulator) Estimate(id int, members *roaring.Bitmap) *Params {
	p := &Params{ID: id, Size: int(members.GetCardinality())}
	if p.Size == 0 {
		p.Degenerate = true
		return p
	}

	nf := a.ds.NumFeatures()
	noiseMean := a.ds.NoiseMeans()
	noiseVar := a.ds.NoiseVariances()
	n := float64(p.Size)

	mean, entries := a.mean(members)
	p.EffectiveDims = float64(entries) / n
	p.setMean(mean, noiseMean)

	scatter := mat.NewSymDense(nf, nil)
	diff := make([]float64, nf)
	diffVec := mat.NewVecDense(nf, diff)

	// corrections[f] starts from the all-masked contribution and is adjusted
	// by every unmasked entry.
	corrections := make([]float64, nf)
	for f := range corrections {
		corrections[f] = n * noiseVar[f]
	}

	it := members.Iterator()
	for it.HasNext() {
		i := int(it.Next())
		a.ds.Densify(i, diff)
		floats.Sub(diff, mean)
		scatter.SymRankOne(scatter, 1, diffVec)

		_, corr, idx := a.ds.Blended(i)
		for j, f := range idx {
			corrections[f] += corr[j] - noiseVar[f]
		}
	}

	scatter.ScaleSym(1/n, scatter)
	for f := range nf {
		scatter.SetSym(f, f, scatter.At(f, f)+corrections[f]/n+a.ridge)
	}
	p.Cov = scatter
	p.factorize(noiseVar)
	return p
}

// Noise returns the fixed parameters of the noise cluster: the noise mean
// and a diagonal covariance of noise variances plus the ridge.
func (a *Accumulator) Noise(size int) *Params {
	nf := a.ds.NumFeatures()
	noiseVar := a.ds.NoiseVariances()

	p := &Params{ID: NoiseClusterID, Size: size}
	p.setMean(append([]float64(nil), a.ds.NoiseMeans()...), a.ds.NoiseMeans())

	cov := mat.NewSymDense(nf, nil)
	for f := range nf {
		cov.SetSym(f, f, noiseVar[f]+a.ridge)
	}
	p.Cov = cov
	p.factorize(noiseVar)
	return p
}

// RefreshMean recomputes the mean of p from members while keeping its
// covariance factor. It is the cheap half of an estimate.
func (a *Accumulator) RefreshMean(p *Params, members *roaring.Bitmap) {
	p.Size = int(members.GetCardinality())
	if p.ID == NoiseClusterID || p.Size == 0 {
		return
	}
	mean, entries := a.mean(members)
	p.EffectiveDims = float64(entries) / float64(p.Size)
	p.setMean(mean, a.ds.NoiseMeans())
}

// mean returns the blended mean of members and their total unmasked entry count.
// Masked features contribute the noise mean, so only deviations from it are summed.
func (a *Accumulator) mean(members *roaring.Bitmap) ([]float64, int) {
	noiseMean := a.ds.NoiseMeans()
	sum := make([]float64, a.ds.NumFeatures())
	entries := 0

	it := members.Iterator()
	for it.HasNext() {
		vals, _, idx := a.ds.Blended(int(it.Next()))
		for j, f := range idx {
			sum[f] += vals[j] - noiseMean[f]
		}
		entries += len(idx)
	}

	n := float64(members.GetCardinality())
	for f := range sum {
		sum[f] = noiseMean[f] + sum[f]/n
	}
	return sum, entries
}
