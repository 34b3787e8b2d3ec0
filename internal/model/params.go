package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NoiseClusterID is the reserved id of the noise cluster.
const NoiseClusterID = 0

// Params holds the Gaussian estimate of one cluster.
//
// Mean, Cov, Inv, InvDiag and LogDet are valid only when Degenerate is false.
type Params struct {
	ID   int
	Size int

	Mean []float64
	Cov  *mat.SymDense
	Inv  *mat.SymDense

	InvDiag []float64
	LogDet  float64

	// LogWeight is the log mixture weight, set by the caller once all
	// cluster sizes are known.
	LogWeight float64

	// EffectiveDims is the mean number of unmasked features over members.
	EffectiveDims float64

	Degenerate bool

	// noiseDiff[f] = noiseMean[f] - Mean[f], the residual of a masked feature.
	noiseDiff []float64
	// noiseCorr = Σ_f noiseVariance[f] * InvDiag[f], the correction of a
	// point with every feature masked.
	noiseCorr float64
}

// NumParams returns the number of free parameters attributed to the cluster.
// The noise cluster is fixed and has none.
func (p *Params) NumParams() float64 {
	if p.ID == NoiseClusterID {
		return 0
	}
	d := p.EffectiveDims
	return d*(d+1)/2 + d + 1
}

// SetWeight sets the log mixture weight from a cluster share in (0,1].
func (p *Params) SetWeight(share float64) {
	if share <= 0 {
		p.LogWeight = math.Inf(-1)
		return
	}
	p.LogWeight = math.Log(share)
}

// factorize computes the inverse, its diagonal and the log-determinant of
// Cov. It flags the cluster degenerate when Cov is not positive definite.
func (p *Params) factorize(noiseVariance []float64) {
	var chol mat.Cholesky
	if ok := chol.Factorize(p.Cov); !ok {
		p.Degenerate = true
		return
	}
	logDet := chol.LogDet()
	if math.IsNaN(logDet) || math.IsInf(logDet, 0) {
		p.Degenerate = true
		return
	}

	n := p.Cov.SymmetricDim()
	inv := mat.NewSymDense(n, nil)
	if err := chol.InverseTo(inv); err != nil {
		p.Degenerate = true
		return
	}

	p.Inv = inv
	p.LogDet = logDet
	p.InvDiag = make([]float64, n)
	p.noiseCorr = 0
	for f := range n {
		p.InvDiag[f] = inv.At(f, f)
		p.noiseCorr += noiseVariance[f] * p.InvDiag[f]
	}
	p.Degenerate = false
}

func (p *Params) setMean(mean, noiseMean []float64) {
	p.Mean = mean
	if p.noiseDiff == nil {
		p.noiseDiff = make([]float64, len(mean))
	}
	for f := range mean {
		p.noiseDiff[f] = noiseMean[f] - mean[f]
	}
}
