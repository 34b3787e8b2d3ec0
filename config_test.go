package maskedem

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"NumStartingClusters", func(c *Config) { c.NumStartingClusters = 0 }, "NumStartingClusters"},
		{"PointsForClusterMask", func(c *Config) { c.PointsForClusterMask = 1.5 }, "PointsForClusterMask"},
		{"FullStepEvery", func(c *Config) { c.FullStepEvery = 0 }, "FullStepEvery"},
		{"SplitEvery", func(c *Config) { c.SplitEvery = -1 }, "SplitEvery"},
		{"MaxIterations", func(c *Config) { c.MaxIterations = 0 }, "MaxIterations"},
		{"RidgePrior", func(c *Config) { c.RidgePrior = -1 }, "RidgePrior"},
		{"DistThresh", func(c *Config) { c.DistThresh = 0 }, "DistThresh"},
		{"OscillationLimit", func(c *Config) { c.OscillationLimit = 0 }, "OscillationLimit"},
		{"Workers", func(c *Config) { c.Workers = -2 }, "Workers"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.ErrorIs(t, err, ErrInvalidConfig)

			var ce *ConfigError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Error(), tt.field)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("num_starting_clusters: 7\nsplit_every: 0\nseed: 42\n"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.NumStartingClusters)
	assert.Equal(t, 0, cfg.SplitEvery)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, DefaultConfig().MaxIterations, cfg.MaxIterations)

	cfg, err = LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = LoadConfig(strings.NewReader("no_such_option: 1\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = LoadConfig(strings.NewReader("full_step_every: 0\n"))
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "FullStepEvery", ce.Field)
}
