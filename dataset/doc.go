// Package dataset provides the immutable sparse masked point set consumed by
// the clustering engine.
//
// Every point stores only its unmasked features in one contiguous arena
// addressed through an offsets array of length N+1. Per-feature noise
// statistics (mean and variance over masked occurrences) are fixed at
// construction and stand in for masked dimensions during estimation and
// scoring.
//
//	b := dataset.NewBuilder(4)
//	_ = b.Add([]float64{1, 1, 0, 0}, []float64{1, 0.5, 0, 0})
//	ds, err := b.Build()
package dataset
