package stereo

import (
	"image"
	"log"
	"runtime"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"

	"stereocorr/pkg/correlate"
	"stereocorr/pkg/disparity"
)

// Options configures a PyramidCorrelator.
type Options struct {
	// SearchRange is the full resolution disparity range to search
	SearchRange r2.Box

	// KernelSize is the matching window, in pixels; both sides must be odd
	KernelSize image.Point

	// XCorrThreshold is the left/right consistency tolerance, negative to
	// disable the check
	XCorrThreshold float64

	// CostBlur smooths the matching cost over this radius; 0 leaves it
	// unsmoothed
	CostBlur int

	// CorrelatorType selects the matching cost
	CorrelatorType correlate.Type

	// PyramidLevels is the number of pyramid levels; values below 1 run a
	// single level
	PyramidLevels int

	// MinSubregionDim, MaxSubregionDim and MinSubregionDensity drive the
	// region subdivider
	MinSubregionDim     int
	MaxSubregionDim     int
	MinSubregionDensity float64

	// SearchMargin widens locally estimated search ranges, in level pixels
	SearchMargin float64

	Pyramid PyramidOptions
	Cleanup disparity.CleanupParams

	// NumWorkers bounds the number of regions matched concurrently
	NumWorkers int

	// Matcher replaces the block matcher built from the fields above
	Matcher correlate.Matcher

	// Logger receives per level summaries; nil discards them
	Logger *log.Logger
}

// DefaultOptions returns options for searchRange and kernel with 4
// pyramid levels, 128 pixel minimum blocks, absolute difference cost and
// the default cleanup.
func DefaultOptions(searchRange r2.Box, kernel image.Point) Options {
	return Options{
		SearchRange:         searchRange,
		KernelSize:          kernel,
		XCorrThreshold:      1,
		CostBlur:            0,
		CorrelatorType:      correlate.AbsDiff,
		PyramidLevels:       4,
		MinSubregionDim:     128,
		MaxSubregionDim:     512,
		MinSubregionDensity: 0.9,
		SearchMargin:        2,
		Pyramid:             DefaultPyramidOptions(),
		Cleanup:             disparity.DefaultCleanup(),
		NumWorkers:          runtime.NumCPU(),
	}
}

func (o Options) validate() error {
	if o.SearchRange.Min.X > o.SearchRange.Max.X || o.SearchRange.Min.Y > o.SearchRange.Max.Y {
		return errors.Errorf("search range min %v exceeds max %v", o.SearchRange.Min, o.SearchRange.Max)
	}
	if o.KernelSize.X < 1 || o.KernelSize.Y < 1 {
		return errors.Errorf("kernel size %v must be positive", o.KernelSize)
	}
	if o.KernelSize.X%2 == 0 || o.KernelSize.Y%2 == 0 {
		return errors.Errorf("kernel size %v must be odd", o.KernelSize)
	}
	if o.MinSubregionDim < 1 {
		return errors.Errorf("minimum subregion dimension %d must be positive", o.MinSubregionDim)
	}
	if o.MaxSubregionDim > 0 && o.MaxSubregionDim < o.MinSubregionDim {
		return errors.Errorf("maximum subregion dimension %d below minimum %d", o.MaxSubregionDim, o.MinSubregionDim)
	}
	if o.Pyramid.MaskMinValid < 1 || o.Pyramid.MaskMinValid > 4 {
		return errors.Errorf("mask rule needs 1 to 4 valid pixels, got %d", o.Pyramid.MaskMinValid)
	}
	return nil
}
