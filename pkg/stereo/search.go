package stereo

import (
	"image"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"stereocorr/pkg/disparity"
)

// LevelSearchRange scales the full resolution search range down to
// pyramid level n.
func LevelSearchRange(initial r2.Box, n int) r2.Box {
	return scaleBox(initial, 1/math.Pow(2, float64(n)))
}

// SearchRanges assigns a search range to every block of a level. Without
// a previous level every block gets global. Otherwise the valid
// disparities of prev under the block are bounded, scaled to this level,
// grown by margin and clamped to global. Blocks without prior data fall
// back to global.
func SearchRanges(prev *disparity.Map, boxes []image.Rectangle, global r2.Box, margin float64) []r2.Box {
	out := make([]r2.Box, len(boxes))
	for i, b := range boxes {
		out[i] = global
		if prev == nil {
			continue
		}
		local, ok := prev.Range(footprint(b))
		if !ok {
			continue
		}
		local = growBox(scaleBox(local, 2), margin)
		if clamped, ok := intersectBox(local, global); ok {
			out[i] = clamped
		}
	}
	return out
}

// footprint maps a block onto the next coarser level.
func footprint(b image.Rectangle) image.Rectangle {
	return image.Rectangle{
		Min: image.Pt(floorDiv2(b.Min.X), floorDiv2(b.Min.Y)),
		Max: image.Pt(floorDiv2(b.Max.X+1), floorDiv2(b.Max.Y+1)),
	}
}

func floorDiv2(v int) int {
	if v < 0 {
		return -((-v + 1) / 2)
	}
	return v / 2
}

func scaleBox(b r2.Box, f float64) r2.Box {
	return r2.Box{Min: r2.Scale(f, b.Min), Max: r2.Scale(f, b.Max)}
}

func growBox(b r2.Box, margin float64) r2.Box {
	m := r2.Vec{X: margin, Y: margin}
	return r2.Box{Min: r2.Sub(b.Min, m), Max: r2.Add(b.Max, m)}
}

func intersectBox(a, b r2.Box) (r2.Box, bool) {
	out := r2.Box{
		Min: r2.Vec{X: math.Max(a.Min.X, b.Min.X), Y: math.Max(a.Min.Y, b.Min.Y)},
		Max: r2.Vec{X: math.Min(a.Max.X, b.Max.X), Y: math.Min(a.Max.Y, b.Max.Y)},
	}
	return out, out.Min.X <= out.Max.X && out.Min.Y <= out.Max.Y
}
