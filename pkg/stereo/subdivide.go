package stereo

import (
	"image"
	"sort"

	"stereocorr/pkg/disparity"
	"stereocorr/pkg/imgproc"
)

// SubdivideOptions bounds the block sizes produced by Subdivide.
type SubdivideOptions struct {
	// MinDim is the smallest block side a split may produce
	MinDim int

	// MaxDim is the largest block side kept without splitting; 0 means no
	// ceiling
	MaxDim int

	// MinDensity is the fraction of a block's footprint that must be
	// covered by padded valid data for it to be matched as one unit
	MinDensity float64
}

// ValidPad marks every pixel of prev that is valid or lies within half a
// kernel of a valid pixel. Blocks over such pixels may still be filled in
// at the finer level, so they should not be treated as empty.
func ValidPad(prev *disparity.Map, kernel image.Point) *imgproc.Mask {
	return imgproc.BoxDilate(prev.ValidMask(), kernel.X/2, kernel.Y/2)
}

// Subdivide partitions extent into blocks. With no previous level the
// whole extent is one block. Otherwise blocks are split into quadrants
// while they exceed MaxDim or while too little of their footprint in pad
// is covered, as long as the quadrants stay at least MinDim wide and high.
// Blocks whose footprint has no padded data at all are left whole. The
// result is sorted top to bottom, left to right.
func Subdivide(prev *disparity.Map, pad *imgproc.Mask, extent image.Rectangle, opts SubdivideOptions) []image.Rectangle {
	if extent.Empty() {
		return nil
	}
	if prev == nil || pad == nil {
		return []image.Rectangle{extent}
	}

	var out []image.Rectangle
	stack := []image.Rectangle{extent}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !shouldSplit(b, pad, opts) {
			out = append(out, b)
			continue
		}
		stack = append(stack, quadrants(b)...)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Min.Y != out[j].Min.Y {
			return out[i].Min.Y < out[j].Min.Y
		}
		return out[i].Min.X < out[j].Min.X
	})
	return out
}

func shouldSplit(b image.Rectangle, pad *imgproc.Mask, opts SubdivideOptions) bool {
	if b.Dx()/2 < opts.MinDim || b.Dy()/2 < opts.MinDim || b.Dx() < 2 || b.Dy() < 2 {
		return false
	}
	if opts.MaxDim > 0 && (b.Dx() > opts.MaxDim || b.Dy() > opts.MaxDim) {
		return true
	}

	fp := footprint(b).Intersect(pad.Bounds())
	area := fp.Dx() * fp.Dy()
	if area == 0 {
		return false
	}
	padded := pad.CountIn(fp)
	if padded == 0 {
		return false
	}
	return float64(padded)/float64(area) < opts.MinDensity
}

func quadrants(b image.Rectangle) []image.Rectangle {
	mx := b.Min.X + b.Dx()/2
	my := b.Min.Y + b.Dy()/2
	return []image.Rectangle{
		image.Rect(b.Min.X, b.Min.Y, mx, my),
		image.Rect(mx, b.Min.Y, b.Max.X, my),
		image.Rect(b.Min.X, my, mx, b.Max.Y),
		image.Rect(mx, my, b.Max.X, b.Max.Y),
	}
}
