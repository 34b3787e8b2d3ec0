package testutil

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/hupe1980/maskedem/dataset"
)

// RNG wraps a seeded generator. It is safe for concurrent use.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
	seed uint64
}

// NewRNG creates a new RNG with the given seed.
func NewRNG(seed uint64) *RNG {
	return &RNG{rand: newSource(seed), seed: seed}
}

func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
}

// Reset rewinds the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand = newSource(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() uint64 {
	return r.seed
}

// NormFloat64 returns a standard normal sample.
func (r *RNG) NormFloat64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.NormFloat64()
}

// Centre describes one generating group.
type Centre struct {
	FeatureMean []float64 `yaml:"feature_mean"`
	FeatureStd  []float64 `yaml:"feature_std"`
	MaskMean    []float64 `yaml:"mask_mean"`
	MaskStd     []float64 `yaml:"mask_std"`
}

func (c Centre) check(numFeatures int) error {
	for name, v := range map[string][]float64{
		"feature_mean": c.FeatureMean,
		"feature_std":  c.FeatureStd,
		"mask_mean":    c.MaskMean,
		"mask_std":     c.MaskStd,
	} {
		if len(v) != numFeatures {
			return fmt.Errorf("testutil: %s has %d entries, want %d", name, len(v), numFeatures)
		}
	}
	return nil
}

// Synthetic draws perCentre points around every centre, in centre order, and
// returns the dataset together with the generating centre of each point.
func (r *RNG) Synthetic(numFeatures, perCentre int, centres []Centre) (*dataset.Dataset, []int, error) {
	if numFeatures <= 0 || perCentre <= 0 || len(centres) == 0 {
		return nil, nil, fmt.Errorf("testutil: need features, points and centres, got %d, %d, %d",
			numFeatures, perCentre, len(centres))
	}
	for _, c := range centres {
		if err := c.check(numFeatures); err != nil {
			return nil, nil, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b := dataset.NewBuilder(numFeatures)
	labels := make([]int, 0, perCentre*len(centres))
	features := make([]float64, numFeatures)
	mask := make([]float64, numFeatures)
	for label, c := range centres {
		for range perCentre {
			for f := range numFeatures {
				features[f] = r.rand.NormFloat64()*c.FeatureStd[f] + c.FeatureMean[f]
				mask[f] = min(max(r.rand.NormFloat64()*c.MaskStd[f]+c.MaskMean[f], 0), 1)
			}
			if err := b.Add(features, mask); err != nil {
				return nil, nil, err
			}
			labels = append(labels, label)
		}
	}

	ds, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	return ds, labels, nil
}

// Scenario is a complete synthetic input, loadable from YAML.
type Scenario struct {
	Name            string   `yaml:"name"`
	Seed            uint64   `yaml:"seed"`
	NumFeatures     int      `yaml:"num_features"`
	PointsPerCentre int      `yaml:"points_per_centre"`
	Centres         []Centre `yaml:"centres"`
}

// Generate draws the scenario with its own seed.
func (s Scenario) Generate() (*dataset.Dataset, []int, error) {
	return NewRNG(s.Seed).Synthetic(s.NumFeatures, s.PointsPerCentre, s.Centres)
}

func repeat(v float64, n int) []float64 {
	return slices.Repeat([]float64{v}, n)
}

// TwoDTrivial has two well separated groups with exact masks.
func TwoDTrivial() Scenario {
	return Scenario{
		Name:            "2d-trivial",
		Seed:            1,
		NumFeatures:     2,
		PointsPerCentre: 100,
		Centres: []Centre{
			{FeatureMean: []float64{1, 0}, FeatureStd: repeat(0.01, 2), MaskMean: []float64{1, 0}, MaskStd: repeat(0, 2)},
			{FeatureMean: []float64{0, 1}, FeatureStd: repeat(0.01, 2), MaskMean: []float64{0, 1}, MaskStd: repeat(0, 2)},
		},
	}
}

// TwoDEasy adds a little spread to the masks of TwoDTrivial.
func TwoDEasy() Scenario {
	return Scenario{
		Name:            "2d-easy",
		Seed:            2,
		NumFeatures:     2,
		PointsPerCentre: 100,
		Centres: []Centre{
			{FeatureMean: []float64{1, 0}, FeatureStd: repeat(0.01, 2), MaskMean: []float64{0.5, 0}, MaskStd: []float64{0.01, 0}},
			{FeatureMean: []float64{0, 1}, FeatureStd: repeat(0.01, 2), MaskMean: []float64{0, 0.5}, MaskStd: []float64{0, 0.01}},
		},
	}
}

func fourD(name string, seed uint64, maskStd [4][]float64) Scenario {
	means := [4][]float64{{1, 1, 0, 0}, {0, 1, 1, 0}, {0, 0, 1, 1}, {1, 0, 0, 1}}
	masks := [4][]float64{{1.5, 0.5, 0, 0}, {0, 0.5, 1.5, 0}, {0, 0, 0.5, 1.5}, {1.5, 0, 0, 1.5}}
	s := Scenario{Name: name, Seed: seed, NumFeatures: 4, PointsPerCentre: 1000}
	for i := range means {
		s.Centres = append(s.Centres, Centre{
			FeatureMean: means[i],
			FeatureStd:  repeat(0.1, 4),
			MaskMean:    masks[i],
			MaskStd:     maskStd[i],
		})
	}
	return s
}

// FourDTrivial has four groups on overlapping feature pairs with exact masks.
func FourDTrivial() Scenario {
	z := repeat(0, 4)
	return fourD("4d-trivial", 3, [4][]float64{z, z, z, z})
}

// FourDEasy adds mask spread on the unmasked features of FourDTrivial.
func FourDEasy() Scenario {
	return fourD("4d-easy", 4, [4][]float64{
		{0.05, 0.05, 0, 0},
		{0, 0.05, 0.05, 0},
		{0, 0, 0.05, 0.05},
		{0.05, 0, 0, 0.05},
	})
}

// FourDNonGaussian leaks small mask values onto features each group does not
// own, which makes the corrected data non-Gaussian.
func FourDNonGaussian() Scenario {
	return fourD("4d-non-gaussian", 5, [4][]float64{
		{0.05, 0.05, 0.01, 0},
		{0, 0.05, 0.05, 0.01},
		{0.01, 0, 0.05, 0.05},
		{0.05, 0, 0.01, 0.05},
	})
}

// Scenarios returns the built-in scenarios by name.
func Scenarios() map[string]Scenario {
	out := make(map[string]Scenario)
	for _, s := range []Scenario{TwoDTrivial(), TwoDEasy(), FourDTrivial(), FourDEasy(), FourDNonGaussian()} {
		out[s.Name] = s
	}
	return out
}

// WellClustered checks an assignment of points generated group by group, as
// Synthetic does. Every group must have a dominant non-noise cluster holding
// all but at most fraction*perCentre of its points, and dominant clusters
// must be distinct.
func WellClustered(assign []int, numCentres, perCentre int, fraction float64) error {
	if len(assign) != numCentres*perCentre {
		return fmt.Errorf("testutil: assignment has %d points, want %d", len(assign), numCentres*perCentre)
	}
	limit := fraction * float64(perCentre)
	seen := make(map[int]int, numCentres)
	for g := range numCentres {
		dominant, count := Dominant(assign[g*perCentre : (g+1)*perCentre])
		if dominant == 0 {
			return fmt.Errorf("testutil: group %d is dominated by noise", g)
		}
		if miss := perCentre - count; float64(miss) > limit {
			return fmt.Errorf("testutil: group %d has %d points outside cluster %d", g, miss, dominant)
		}
		if other, ok := seen[dominant]; ok {
			return fmt.Errorf("testutil: groups %d and %d share cluster %d", other, g, dominant)
		}
		seen[dominant] = g
	}
	return nil
}

// Dominant returns the most frequent id in ids and its count. Ties go to the
// lowest id.
func Dominant(ids []int) (id, count int) {
	counts := make(map[int]int)
	for _, v := range ids {
		counts[v]++
	}
	id = -1
	for v, c := range counts {
		if c > count || (c == count && v < id) {
			id, count = v, c
		}
	}
	return id, count
}
