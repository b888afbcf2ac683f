package models

import (
	"fmt"
	"image"

	"gonum.org/v1/gonum/spatial/r2"
)

// Region is one block of a pyramid level together with the disparity
// window searched for it. Regions of a level never overlap and together
// cover the level.
type Region struct {
	// Box is the block in level pixel coordinates
	Box image.Rectangle

	// Search is the candidate disparity range, in level pixels
	Search r2.Box
}

func (r Region) String() string {
	return fmt.Sprintf("%v search [%.2f,%.2f]x[%.2f,%.2f]", r.Box,
		r.Search.Min.X, r.Search.Max.X, r.Search.Min.Y, r.Search.Max.Y)
}

// LevelReport summarises what happened at one pyramid level
type LevelReport struct {
	// Level is the pyramid index, 0 being full resolution
	Level int

	// Width and Height are the level dimensions
	Width, Height int

	// Regions is the number of blocks the level was split into
	Regions int

	// Skipped counts regions whose right image work area was empty
	Skipped int

	// Valid is the number of valid pixels after fusion
	Valid int

	// Filled counts pixels taken from the coarser level during fusion
	Filled int
}

// Coverage is the fraction of the level holding a valid disparity.
func (lr LevelReport) Coverage() float64 {
	if lr.Width*lr.Height == 0 {
		return 0
	}
	return float64(lr.Valid) / float64(lr.Width*lr.Height)
}
