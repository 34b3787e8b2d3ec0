// Package testutil provides synthetic masked data for tests, benchmarks and
// the command line tool.
//
// Points are drawn around a list of centres. Each centre carries a per
// feature mean and standard deviation for the values and for the masks;
// masks are clipped into [0,1] so a zero mean with zero spread marks the
// feature as fully masked for that centre.
//
//	rng := testutil.NewRNG(42)
//	ds, labels, err := rng.Synthetic(2, 100, testutil.TwoDTrivial().Centres)
//
// # Checking a clustering
//
//	err := testutil.WellClustered(assignment, 2, 100, 0.02)
package testutil
