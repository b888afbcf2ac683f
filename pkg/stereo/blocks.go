package stereo

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"stereocorr/pkg/correlate"
)

// BlockGeometry describes how one block is handed to the correlator.
type BlockGeometry struct {
	// Left is the left image crop: the block grown by half a kernel
	Left image.Rectangle

	// Right is the right image crop covering every candidate of Window
	Right image.Rectangle

	// Adjusted is the search range after dropping disparities that cannot
	// land any block pixel inside the right image
	Adjusted r2.Box

	// Window is the integer search range relative to the crops
	Window correlate.Window

	// Offset is added to every disparity the correlator returns to get
	// back to level disparities
	Offset r2.Vec
}

// ComputeMatchingBlocks works out the crops and window for block b with
// search range s. ok is false when the area of the right image the block
// could match against is empty, in which case the block is skipped.
func ComputeMatchingBlocks(b image.Rectangle, s r2.Box, rightBounds image.Rectangle, kernel image.Point) (BlockGeometry, bool) {
	work := image.Rectangle{
		Min: image.Pt(b.Min.X+int(math.Floor(s.Min.X)), b.Min.Y+int(math.Floor(s.Min.Y))),
		Max: image.Pt(b.Max.X+int(math.Ceil(s.Max.X)), b.Max.Y+int(math.Ceil(s.Max.Y))),
	}
	if b.Empty() || work.Intersect(rightBounds).Empty() {
		return BlockGeometry{}, false
	}

	coverable := r2.Box{
		Min: r2.Vec{X: float64(rightBounds.Min.X - (b.Max.X - 1)), Y: float64(rightBounds.Min.Y - (b.Max.Y - 1))},
		Max: r2.Vec{X: float64(rightBounds.Max.X - 1 - b.Min.X), Y: float64(rightBounds.Max.Y - 1 - b.Min.Y)},
	}
	adj, ok := intersectBox(s, coverable)
	if !ok {
		return BlockGeometry{}, false
	}

	minX, minY := int(math.Floor(adj.Min.X)), int(math.Floor(adj.Min.Y))
	maxX, maxY := int(math.Ceil(adj.Max.X)), int(math.Ceil(adj.Max.Y))

	hx, hy := kernel.X/2, kernel.Y/2
	left := image.Rect(b.Min.X-hx, b.Min.Y-hy, b.Max.X+hx, b.Max.Y+hy)
	right := image.Rectangle{
		Min: left.Min.Add(image.Pt(minX, minY)),
		Max: left.Max.Add(image.Pt(maxX, maxY)),
	}
	return BlockGeometry{
		Left:     left,
		Right:    right,
		Adjusted: adj,
		Window:   correlate.Window{MaxX: maxX - minX, MaxY: maxY - minY},
		Offset:   r2.Vec{X: float64(minX), Y: float64(minY)},
	}, true
}
