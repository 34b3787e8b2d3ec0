package model

import (
	"math"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/maskedem/dataset"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CenterDistanceSq returns the squared Mahalanobis distance between the
// means of a and b under their size-weighted pooled covariance.
//
// The search is cut short once the distance provably exceeds limitSq:
// d² ≥ ‖Δ‖² / λmax ≥ ‖Δ‖² / tr(pooled). In that case +Inf is returned.
// It also returns +Inf when either cluster is degenerate or the pooled
// covariance cannot be factorized.
func CenterDistanceSq(a, b *Params, limitSq float64) float64 {
	if a.Degenerate || b.Degenerate || a.Size == 0 || b.Size == 0 {
		return math.Inf(1)
	}

	nf := len(a.Mean)
	wa := float64(a.Size) / float64(a.Size+b.Size)
	wb := 1 - wa

	delta := make([]float64, nf)
	floats.SubTo(delta, a.Mean, b.Mean)
	norm := floats.Dot(delta, delta)

	trace := 0.0
	for f := range nf {
		trace += wa*a.Cov.At(f, f) + wb*b.Cov.At(f, f)
	}
	if trace <= 0 || norm/trace >= limitSq {
		return math.Inf(1)
	}

	pooled := mat.NewSymDense(nf, nil)
	pooled.AddSym(scaled(a.Cov, wa), scaled(b.Cov, wb))

	var chol mat.Cholesky
	if ok := chol.Factorize(pooled); !ok {
		return math.Inf(1)
	}
	dv := mat.NewVecDense(nf, delta)
	var sol mat.VecDense
	if err := chol.SolveVecTo(&sol, dv); err != nil {
		return math.Inf(1)
	}
	return mat.Dot(dv, &sol)
}

func scaled(s *mat.SymDense, f float64) *mat.SymDense {
	out := mat.NewSymDense(s.SymmetricDim(), nil)
	out.ScaleSym(f, s)
	return out
}

// PrincipalDirection returns the unit eigenvector of the largest eigenvalue
// of the members' scatter matrix (blended values only, without noise
// corrections). It returns nil when the scatter has no positive variance.
func PrincipalDirection(ds *dataset.Dataset, members *roaring.Bitmap, mean []float64) []float64 {
	nf := ds.NumFeatures()
	scatter := mat.NewSymDense(nf, nil)
	diff := make([]float64, nf)
	diffVec := mat.NewVecDense(nf, diff)

	it := members.Iterator()
	for it.HasNext() {
		ds.Densify(int(it.Next()), diff)
		floats.Sub(diff, mean)
		scatter.SymRankOne(scatter, 1, diffVec)
	}

	var es mat.EigenSym
	if ok := es.Factorize(scatter, true); !ok {
		return nil
	}
	values := es.Values(nil)
	top := len(values) - 1
	if top < 0 || values[top] <= 0 {
		return nil
	}
	var vectors mat.Dense
	es.VectorsTo(&vectors)
	return mat.Col(nil, top, &vectors)
}

// Project returns (y_i - mean)·dir for the blended point i.
func Project(ds *dataset.Dataset, i int, mean, dir []float64) float64 {
	noiseMean := ds.NoiseMeans()
	var s float64
	for f := range dir {
		s += (noiseMean[f] - mean[f]) * dir[f]
	}
	vals, _, idx := ds.Blended(i)
	for j, f := range idx {
		s += (vals[j] - noiseMean[f]) * dir[f]
	}
	return s
}
