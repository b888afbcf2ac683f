// Package config provides configuration loading and management for stereocorr.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"image"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"

	"stereocorr/pkg/correlate"
	"stereocorr/pkg/disparity"
	"stereocorr/pkg/stereo"
)

// ErrInvalidConfig is returned by Validate for out of range settings.
var ErrInvalidConfig = errors.New("invalid configuration")

// SearchRange is the disparity range in full resolution pixels
type SearchRange struct {
	MinX float64 `yaml:"minX"`
	MinY float64 `yaml:"minY"`
	MaxX float64 `yaml:"maxX"`
	MaxY float64 `yaml:"maxY"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Correlation parameters
	Correlation struct {
		// SearchRange bounds the disparities searched at full resolution
		SearchRange SearchRange `yaml:"searchRange"`

		// KernelWidth and KernelHeight are the matching window size in pixels
		KernelWidth  int `yaml:"kernelWidth"`
		KernelHeight int `yaml:"kernelHeight"`

		// XCorrThreshold is the left/right consistency tolerance; negative disables it
		XCorrThreshold float64 `yaml:"xcorrThreshold"`

		// CostBlur smooths the matching cost over this radius
		CostBlur int `yaml:"costBlur"`

		// Type is the matching cost: absdiff, sqdiff or ncc
		Type string `yaml:"type"`

		// PreFilter is applied to both patches: none, log or slog
		PreFilter string `yaml:"preFilter"`

		// PreFilterSigma is the Gaussian width of the log and slog filters
		PreFilterSigma float64 `yaml:"preFilterSigma"`
	} `yaml:"correlation"`

	// Pyramid parameters
	Pyramid struct {
		// Levels is the number of pyramid levels, 1 disables refinement
		Levels int `yaml:"levels"`

		stereo.PyramidOptions `yaml:",inline"`

		// MinSubregionDim is the smallest block the subdivider produces
		MinSubregionDim int `yaml:"minSubregionDim"`

		// MaxSubregionDim is the largest block matched in one go
		MaxSubregionDim int `yaml:"maxSubregionDim"`

		// MinSubregionDensity is the prior coverage below which blocks are split
		MinSubregionDensity float64 `yaml:"minSubregionDensity"`

		// SearchMargin widens ranges derived from the coarser level
		SearchMargin float64 `yaml:"searchMargin"`
	} `yaml:"pyramid"`

	// Cleanup holds the outlier rejection parameters
	Cleanup disparity.CleanupParams `yaml:"cleanup"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many regions are matched in parallel
		NumCores int `yaml:"numCores"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// WriteDebugImages writes per level disparity images and block overlays
		WriteDebugImages bool `yaml:"writeDebugImages"`

		// DebugDir is the directory debug images are written to
		DebugDir string `yaml:"debugDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default correlation parameters
	cfg.Correlation.SearchRange = SearchRange{MinX: -32, MinY: -2, MaxX: 32, MaxY: 2}
	cfg.Correlation.KernelWidth = 25
	cfg.Correlation.KernelHeight = 25
	cfg.Correlation.XCorrThreshold = 1
	cfg.Correlation.CostBlur = 0
	cfg.Correlation.Type = correlate.AbsDiff.String()
	cfg.Correlation.PreFilter = "log"
	cfg.Correlation.PreFilterSigma = 1.4

	// Set default pyramid parameters
	cfg.Pyramid.Levels = 4
	cfg.Pyramid.PyramidOptions = stereo.DefaultPyramidOptions()
	cfg.Pyramid.MinSubregionDim = 128
	cfg.Pyramid.MaxSubregionDim = 512
	cfg.Pyramid.MinSubregionDensity = 0.9
	cfg.Pyramid.SearchMargin = 2

	cfg.Cleanup = disparity.DefaultCleanup()

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default

	// Set default output parameters
	cfg.Output.WriteDebugImages = false
	cfg.Output.DebugDir = "debug"
	cfg.Output.Verbose = true

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "error reading config file")
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "error parsing config file")
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, "error creating config directory")
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "error marshaling config")
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return errors.Wrap(err, "error writing config file")
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks that every setting is usable
func (c *Config) Validate() error {
	sr := c.Correlation.SearchRange
	switch {
	case sr.MinX > sr.MaxX || sr.MinY > sr.MaxY:
		return errors.Wrapf(ErrInvalidConfig, "search range [%g,%g]x[%g,%g] is inverted", sr.MinX, sr.MaxX, sr.MinY, sr.MaxY)
	case c.Correlation.KernelWidth < 1 || c.Correlation.KernelHeight < 1:
		return errors.Wrapf(ErrInvalidConfig, "kernel %dx%d must be positive", c.Correlation.KernelWidth, c.Correlation.KernelHeight)
	case c.Correlation.KernelWidth%2 == 0 || c.Correlation.KernelHeight%2 == 0:
		return errors.Wrapf(ErrInvalidConfig, "kernel %dx%d must have odd sides", c.Correlation.KernelWidth, c.Correlation.KernelHeight)
	case c.Correlation.CostBlur < 0:
		return errors.Wrapf(ErrInvalidConfig, "cost blur %d is negative", c.Correlation.CostBlur)
	case c.Pyramid.Levels < 1:
		return errors.Wrapf(ErrInvalidConfig, "pyramid levels %d must be at least 1", c.Pyramid.Levels)
	case c.Pyramid.BlurSigma <= 0:
		return errors.Wrapf(ErrInvalidConfig, "blur sigma %g must be positive", c.Pyramid.BlurSigma)
	case c.Pyramid.MaskMinValid < 1 || c.Pyramid.MaskMinValid > 4:
		return errors.Wrapf(ErrInvalidConfig, "mask rule needs 1 to 4 valid pixels, got %d", c.Pyramid.MaskMinValid)
	case c.Pyramid.MinSubregionDim < 1:
		return errors.Wrapf(ErrInvalidConfig, "minimum subregion dimension %d must be positive", c.Pyramid.MinSubregionDim)
	case c.Pyramid.MinSubregionDensity < 0 || c.Pyramid.MinSubregionDensity > 1:
		return errors.Wrapf(ErrInvalidConfig, "subregion density %g outside [0,1]", c.Pyramid.MinSubregionDensity)
	case c.Cleanup.HalfWindowX < 0 || c.Cleanup.HalfWindowY < 0:
		return errors.Wrapf(ErrInvalidConfig, "cleanup window %dx%d is negative", c.Cleanup.HalfWindowX, c.Cleanup.HalfWindowY)
	case c.Cleanup.MinMatchFraction < 0 || c.Cleanup.MinMatchFraction > 1:
		return errors.Wrapf(ErrInvalidConfig, "cleanup match fraction %g outside [0,1]", c.Cleanup.MinMatchFraction)
	}
	if _, err := correlate.ParseType(c.Correlation.Type); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	if _, err := correlate.PreFilterByName(c.Correlation.PreFilter, c.Correlation.PreFilterSigma); err != nil {
		return errors.Wrap(ErrInvalidConfig, err.Error())
	}
	return nil
}

// Options converts the configuration into correlator options
func (c *Config) Options() (stereo.Options, error) {
	if err := c.Validate(); err != nil {
		return stereo.Options{}, err
	}
	typ, _ := correlate.ParseType(c.Correlation.Type)
	sr := c.Correlation.SearchRange

	opts := stereo.DefaultOptions(r2.Box{
		Min: r2.Vec{X: sr.MinX, Y: sr.MinY},
		Max: r2.Vec{X: sr.MaxX, Y: sr.MaxY},
	}, image.Pt(c.Correlation.KernelWidth, c.Correlation.KernelHeight))
	opts.XCorrThreshold = c.Correlation.XCorrThreshold
	opts.CostBlur = c.Correlation.CostBlur
	opts.CorrelatorType = typ
	opts.PyramidLevels = c.Pyramid.Levels
	opts.Pyramid = c.Pyramid.PyramidOptions
	opts.MinSubregionDim = c.Pyramid.MinSubregionDim
	opts.MaxSubregionDim = c.Pyramid.MaxSubregionDim
	opts.MinSubregionDensity = c.Pyramid.MinSubregionDensity
	opts.SearchMargin = c.Pyramid.SearchMargin
	opts.Cleanup = c.Cleanup
	if c.Processing.NumCores > 0 {
		opts.NumWorkers = c.Processing.NumCores
	}
	return opts, nil
}

// PreFilter returns the configured patch pre-filter
func (c *Config) PreFilter() (correlate.PreFilter, error) {
	return correlate.PreFilterByName(c.Correlation.PreFilter, c.Correlation.PreFilterSigma)
}
