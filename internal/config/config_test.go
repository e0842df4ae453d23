package config_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/qrscale/internal/config"
)

func TestLoadMinimal(t *testing.T) {
	cfg, err := config.Load("../../testdata/minimal.yaml")
	require.NoError(t, err)
	assert.Equal(t, "synth", cfg.Dataset)
	assert.Equal(t, []string{"zxing"}, cfg.Decoders)
	assert.Equal(t, "datasets", cfg.DatasetsDir)
	assert.Equal(t, "outputs", cfg.OutputsDir)
	assert.Equal(t, 1, cfg.Iterations)
	assert.Equal(t, 2, cfg.ModuleBinStepPx)
	assert.Equal(t, config.OnMissingAbort, cfg.OnMissingDecoder)
	assert.Equal(t, "127.0.0.1:8000", cfg.Server.Addr)

	levels, err := cfg.Scales.Levels()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 2}, levels)
}

func TestLoadFull(t *testing.T) {
	cfg, err := config.Load("../../testdata/full.yaml")
	require.NoError(t, err)
	assert.Len(t, cfg.Decoders, 3)
	assert.Equal(t, 3, cfg.Iterations)
	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, 25, cfg.ParetoMinSamples)
	assert.Equal(t, config.OnMissingSkip, cfg.OnMissingDecoder)
	assert.Equal(t, int64(64), cfg.Server.MaxUploadMB)

	levels, err := cfg.Scales.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 20)
	assert.Equal(t, 0.1, levels[0])
	assert.Equal(t, 2.0, levels[19])
}

func TestDefault(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"opencv", "zxing"}, cfg.Decoders)

	levels, err := cfg.Scales.Levels()
	require.NoError(t, err)
	require.Len(t, levels, 20)
	assert.Equal(t, 0.05, levels[0])
	assert.Equal(t, 1.0, levels[19])
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := config.LoadOrDefault(filepath.Join(t.TempDir(), "qrscale.yaml"), true)
	require.NoError(t, err)
	assert.Equal(t, "outputs", cfg.OutputsDir)

	_, err = config.LoadOrDefault(filepath.Join(t.TempDir(), "qrscale.yaml"), false)
	assert.Error(t, err)
}

func TestLoadMissing(t *testing.T) {
	_, err := config.Load("nonexistent.yaml")
	assert.Error(t, err)
}

func TestLoadInvalid(t *testing.T) {
	_, err := config.Load("../../testdata/invalid.yaml")
	assert.Error(t, err)
}

func TestLoadBadScales(t *testing.T) {
	_, err := config.Load("../../testdata/bad_scales.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scales")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errSub string
	}{
		{"unknown decoder", func(c *config.Config) { c.Decoders = []string{"quirc"} }, "unknown decoder"},
		{"duplicate decoder", func(c *config.Config) { c.Decoders = []string{"zxing", "zxing"} }, "twice"},
		{"zero iterations", func(c *config.Config) { c.Iterations = 0 }, "iterations"},
		{"zero parallel", func(c *config.Config) { c.Parallel = 0 }, "parallel"},
		{"zero bin step", func(c *config.Config) { c.ModuleBinStepPx = 0 }, "module_bin_step_px"},
		{"bad policy", func(c *config.Config) { c.OnMissingDecoder = "ignore" }, "on_missing_decoder"},
		{"negative scale", func(c *config.Config) { c.Scales.Values = []float64{-1} }, "scales"},
		{"bad range", func(c *config.Config) { c.Scales.Count = 0 }, "scales"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSub)
		})
	}
}
