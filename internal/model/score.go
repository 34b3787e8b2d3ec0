package model

import (
	"math"

	"github.com/hupe1980/maskedem/dataset"
	"gonum.org/v1/gonum/mat"
)

// ScoreFloor is the lowest log-likelihood ever reported. Non-finite or
// smaller values are clamped to it so that comparisons stay well-defined.
const ScoreFloor = -1e300

var log2Pi = math.Log(2 * math.Pi)

// Scratch is per-goroutine working memory for LogLikelihood.
type Scratch struct {
	diff []float64
	vec  *mat.VecDense
}

// NewScratch allocates scratch space for numFeatures features.
func NewScratch(numFeatures int) *Scratch {
	diff := make([]float64, numFeatures)
	return &Scratch{diff: diff, vec: mat.NewVecDense(numFeatures, diff)}
}

// LogLikelihood returns the log-likelihood of point i under cluster p,
// including the mixture weight:
//
//	log w - ½(F·log 2π + log|Σ| + (y-μ)ᵀΣ⁻¹(y-μ) + Σ_f c_f·(Σ⁻¹)_ff)
//
// where y is the blended point and c its per-feature correction. Masked
// features use the noise mean and noise variance, exactly as in Estimate.
// p must not be degenerate.
func LogLikelihood(ds *dataset.Dataset, p *Params, i int, s *Scratch) float64 {
	noiseVar := ds.NoiseVariances()

	copy(s.diff, p.noiseDiff)
	corr := p.noiseCorr

	vals, corrs, idx := ds.Blended(i)
	for j, f := range idx {
		s.diff[f] = vals[j] - p.Mean[f]
		corr += (corrs[j] - noiseVar[f]) * p.InvDiag[f]
	}

	quad := mat.Inner(s.vec, p.Inv, s.vec)
	nf := float64(len(s.diff))
	ll := p.LogWeight - 0.5*(nf*log2Pi+p.LogDet+quad+corr)
	return clampScore(ll)
}

func clampScore(v float64) float64 {
	if math.IsNaN(v) || v < ScoreFloor {
		return ScoreFloor
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}

// Penalizer computes the complexity penalty of a cluster:
// K·params + KLogN·params·ln(N)/2.
type Penalizer struct {
	K      float64
	KLogN  float64
	Points int
}

// Penalty returns the penalty attributed to p.
func (pz Penalizer) Penalty(p *Params) float64 {
	np := p.NumParams()
	if np == 0 {
		return 0
	}
	pen := pz.K * np
	if pz.Points > 1 {
		pen += pz.KLogN * np * math.Log(float64(pz.Points)) / 2
	}
	return pen
}
