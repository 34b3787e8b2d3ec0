package maskedem

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/maskedem/dataset"
	"github.com/hupe1980/maskedem/testutil"
)

func generate(t *testing.T, s testutil.Scenario) (*dataset.Dataset, []int) {
	t.Helper()
	ds, labels, err := s.Generate()
	require.NoError(t, err)
	return ds, labels
}

func testConfig(starts int) Config {
	cfg := DefaultConfig()
	cfg.NumStartingClusters = starts
	cfg.MaxIterations = 200
	cfg.Seed = 1
	return cfg
}

func newEngine(t *testing.T, ds *dataset.Dataset, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(ds, cfg, opts...)
	require.NoError(t, err)
	return e
}

// bimodal has two groups sharing one mask pattern, so only a split can
// separate them.
func bimodal() testutil.Scenario {
	return testutil.Scenario{
		Name:            "bimodal",
		Seed:            11,
		NumFeatures:     2,
		PointsPerCentre: 150,
		Centres: []testutil.Centre{
			{FeatureMean: []float64{1, 0}, FeatureStd: []float64{0.05, 0.05}, MaskMean: []float64{1, 1}, MaskStd: []float64{0, 0}},
			{FeatureMean: []float64{0, 1}, FeatureStd: []float64{0.05, 0.05}, MaskMean: []float64{1, 1}, MaskStd: []float64{0, 0}},
		},
	}
}
