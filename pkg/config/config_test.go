package config

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stereocorr/pkg/correlate"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stereo.yaml")

	cfg := DefaultConfig()
	cfg.Correlation.SearchRange = SearchRange{MinX: -10, MaxX: 40, MinY: -1, MaxY: 1}
	cfg.Correlation.Type = "ncc"
	cfg.Pyramid.Levels = 3
	cfg.Pyramid.MaskMinValid = 3
	cfg.Cleanup.Threshold = 1.5
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "maskMinValid: 3")
	assert.Contains(t, string(data), "minMatchFraction: 0.5")
}

func TestLoadConfigPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yaml")
	yml := "correlation:\n  kernelWidth: 9\n  kernelHeight: 7\npyramid:\n  levels: 2\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 9, cfg.Correlation.KernelWidth)
	assert.Equal(t, 2, cfg.Pyramid.Levels)
	assert.Equal(t, 1.2, cfg.Pyramid.BlurSigma)
	assert.Equal(t, 5, cfg.Cleanup.HalfWindowX)
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pyramid: [unterminated"), 0644))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"inverted range", func(c *Config) { c.Correlation.SearchRange.MinX = 50 }},
		{"zero kernel", func(c *Config) { c.Correlation.KernelHeight = 0 }},
		{"even kernel", func(c *Config) { c.Correlation.KernelWidth = 24 }},
		{"negative blur", func(c *Config) { c.Correlation.CostBlur = -1 }},
		{"no levels", func(c *Config) { c.Pyramid.Levels = 0 }},
		{"mask rule", func(c *Config) { c.Pyramid.MaskMinValid = 5 }},
		{"density", func(c *Config) { c.Pyramid.MinSubregionDensity = 1.5 }},
		{"cleanup fraction", func(c *Config) { c.Cleanup.MinMatchFraction = -0.1 }},
		{"cost type", func(c *Config) { c.Correlation.Type = "census" }},
		{"pre-filter", func(c *Config) { c.Correlation.PreFilter = "median" }},
	}
	require.NoError(t, DefaultConfig().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Correlation.KernelWidth = 11
	cfg.Correlation.KernelHeight = 9
	cfg.Correlation.Type = "sqdiff"
	cfg.Processing.NumCores = 3

	opts, err := cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, image.Pt(11, 9), opts.KernelSize)
	assert.Equal(t, correlate.SqDiff, opts.CorrelatorType)
	assert.Equal(t, 3, opts.NumWorkers)
	assert.Equal(t, -32.0, opts.SearchRange.Min.X)
	assert.Equal(t, 2.0, opts.SearchRange.Max.Y)
	assert.Equal(t, cfg.Cleanup, opts.Cleanup)

	pre, err := cfg.PreFilter()
	require.NoError(t, err)
	assert.NotNil(t, pre)

	cfg.Pyramid.Levels = -1
	_, err = cfg.Options()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
