package maskedem

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config controls the masked EM engine. Use DefaultConfig as a starting point;
// the zero value is not valid.
type Config struct {
	// NumStartingClusters is the number of clusters created by the mask starts.
	NumStartingClusters int `yaml:"num_starting_clusters" validate:"gt=0"`

	// PointsForClusterMask is the minimum mask strength for a feature to count
	// as unmasked when grouping points by mask pattern.
	PointsForClusterMask float64 `yaml:"points_for_cluster_mask" validate:"gte=0,lte=1"`

	// FullStepEvery forces a full step every n iterations; the rest are quick.
	FullStepEvery int `yaml:"full_step_every" validate:"gte=1"`

	// SplitEvery attempts cluster splits every n iterations. 0 disables splitting.
	SplitEvery int `yaml:"split_every" validate:"gte=0"`

	// MaxIterations bounds the EM loop.
	MaxIterations int `yaml:"max_iterations" validate:"gt=0"`

	// RidgePrior is added to the diagonal of every covariance.
	RidgePrior float64 `yaml:"ridge_prior" validate:"gte=0"`

	// MixturePrior smooths the mixture weights: (n_c + α) / (N + α·K).
	MixturePrior float64 `yaml:"mixture_prior" validate:"gte=0"`

	// PenaltyK is the per-parameter penalty.
	PenaltyK float64 `yaml:"penalty_k" validate:"gte=0"`

	// PenaltyKLogN is the per-parameter penalty scaled by ln(N)/2 (BIC).
	PenaltyKLogN float64 `yaml:"penalty_k_log_n" validate:"gte=0"`

	// DistThresh selects the quick-step candidates of a point: clusters whose
	// log-likelihood on the last full step was within DistThresh of the best.
	DistThresh float64 `yaml:"dist_thresh" validate:"gt=0"`

	// SplitMargin is the penalized score gain a split must exceed.
	SplitMargin float64 `yaml:"split_margin" validate:"gte=0"`

	// MaxSplitIterations bounds the local EM run on a split candidate.
	MaxSplitIterations int `yaml:"max_split_iterations" validate:"gt=0"`

	// MergeThreshold selects merge candidates: clusters whose centers are
	// closer than this Mahalanobis distance under their pooled covariance. A
	// candidate merge is kept only if it raises the penalized score. 0
	// disables merging.
	MergeThreshold float64 `yaml:"merge_threshold" validate:"gte=0"`

	// OscillationLimit is the number of consecutive A→B→A assignment cycles
	// tolerated before the run is declared diverged.
	OscillationLimit int `yaml:"oscillation_limit" validate:"gt=0"`

	// Seed seeds the random source used for random starting partitions.
	Seed uint64 `yaml:"seed"`

	// Workers bounds the parallelism of estimation and scoring.
	// 0 means runtime.GOMAXPROCS(0).
	Workers int `yaml:"workers" validate:"gte=0"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		NumStartingClusters:  500,
		PointsForClusterMask: 0,
		FullStepEvery:        20,
		SplitEvery:           40,
		MaxIterations:        1000,
		RidgePrior:           1e-6,
		MixturePrior:         1,
		PenaltyK:             0,
		PenaltyKLogN:         1,
		DistThresh:           math.Log(1000),
		SplitMargin:          0,
		MaxSplitIterations:   10,
		MergeThreshold:       2,
		OscillationLimit:     10,
	}
}

var configValidate = validator.New()

// Validate checks every field against its documented range.
// It returns a *ConfigError matching ErrInvalidConfig.
func (c Config) Validate() error {
	err := configValidate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ConfigError{
			Field:  fe.Field(),
			Value:  fe.Value(),
			Reason: fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()),
			cause:  err,
		}
	}
	return &ConfigError{Reason: err.Error(), cause: err}
}

// LoadConfig reads a YAML document over DefaultConfig and validates the result.
// Keys absent from the document keep their defaults.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, &ConfigError{Reason: "decode yaml", cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
