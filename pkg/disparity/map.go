// Package disparity holds dense disparity maps and the post filters that
// operate on them: masking, upsampling, hole filling and outlier rejection.
package disparity

import (
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r2"

	"stereocorr/pkg/imgproc"
)

// Pixel is one disparity sample. D carries no meaning unless Valid is set.
type Pixel struct {
	D     r2.Vec
	Valid bool
}

// ValidPixel builds a valid pixel with offset (dx, dy).
func ValidPixel(dx, dy float64) Pixel { return Pixel{D: r2.Vec{X: dx, Y: dy}, Valid: true} }

// Map is a dense grid of disparity pixels in row-major order.
type Map struct {
	Width  int
	Height int
	Pix    []Pixel
}

// New allocates a w x h map in which every pixel is invalid.
func New(w, h int) *Map {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Map{Width: w, Height: h, Pix: make([]Pixel, w*h)}
}

func (m *Map) At(x, y int) Pixel     { return m.Pix[y*m.Width+x] }
func (m *Map) Set(x, y int, p Pixel) { m.Pix[y*m.Width+x] = p }
func (m *Map) Invalidate(x, y int)   { m.Pix[y*m.Width+x] = Pixel{} }

func (m *Map) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// Clone returns a deep copy of the map.
func (m *Map) Clone() *Map {
	out := &Map{Width: m.Width, Height: m.Height, Pix: make([]Pixel, len(m.Pix))}
	copy(out.Pix, m.Pix)
	return out
}

// CountValid returns the number of valid pixels.
func (m *Map) CountValid() int {
	n := 0
	for _, p := range m.Pix {
		if p.Valid {
			n++
		}
	}
	return n
}

// ValidMask returns the validity of every pixel as a mask.
func (m *Map) ValidMask() *imgproc.Mask {
	mask := imgproc.NewMask(m.Width, m.Height, false)
	for i, p := range m.Pix {
		mask.Valid[i] = p.Valid
	}
	return mask
}

// Crop copies r into a new map whose origin is r.Min. Pixels of r that lie
// outside m are invalid.
func (m *Map) Crop(r image.Rectangle) *Map {
	out := New(r.Dx(), r.Dy())
	src := r.Intersect(m.Bounds())
	for y := src.Min.Y; y < src.Max.Y; y++ {
		for x := src.Min.X; x < src.Max.X; x++ {
			out.Pix[(y-r.Min.Y)*out.Width+(x-r.Min.X)] = m.Pix[y*m.Width+x]
		}
	}
	return out
}

// Paste copies the pixels of src, starting at srcMin, into the dstRect
// area of m, clipped to both maps. Only m is written.
func (m *Map) Paste(dstRect image.Rectangle, src *Map, srcMin image.Point) {
	origin := dstRect.Min
	dstRect = dstRect.Intersect(m.Bounds())
	for y := dstRect.Min.Y; y < dstRect.Max.Y; y++ {
		sy := srcMin.Y + y - origin.Y
		if sy < 0 || sy >= src.Height {
			continue
		}
		for x := dstRect.Min.X; x < dstRect.Max.X; x++ {
			sx := srcMin.X + x - origin.X
			if sx < 0 || sx >= src.Width {
				continue
			}
			m.Pix[y*m.Width+x] = src.Pix[sy*src.Width+sx]
		}
	}
}

// AddOffset shifts every valid disparity by off, in place.
func (m *Map) AddOffset(off r2.Vec) {
	for i := range m.Pix {
		if m.Pix[i].Valid {
			m.Pix[i].D = r2.Add(m.Pix[i].D, off)
		}
	}
}

// Range returns the bounding box of the valid disparities in r. ok is
// false when r holds no valid pixel.
func (m *Map) Range(r image.Rectangle) (box r2.Box, ok bool) {
	r = r.Intersect(m.Bounds())
	var xs, ys []float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if p := m.Pix[y*m.Width+x]; p.Valid {
				xs = append(xs, p.D.X)
				ys = append(ys, p.D.Y)
			}
		}
	}
	if len(xs) == 0 {
		return r2.Box{}, false
	}
	return r2.Box{
		Min: r2.Vec{X: floats.Min(xs), Y: floats.Min(ys)},
		Max: r2.Vec{X: floats.Max(xs), Y: floats.Max(ys)},
	}, true
}

// Upsample2x doubles the map in both directions with nearest neighbour
// sampling, scaling each valid disparity by two to match the new
// resolution.
func Upsample2x(m *Map) *Map {
	out := New(2*m.Width, 2*m.Height)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			p := m.Pix[(y/2)*m.Width+x/2]
			if p.Valid {
				p.D = r2.Scale(2, p.D)
			}
			out.Pix[y*out.Width+x] = p
		}
	}
	return out
}

// ApplyMasks invalidates, in place, every pixel whose left image pixel is
// nodata or whose matched right image pixel (rounded) is nodata or falls
// outside the right image.
func (m *Map) ApplyMasks(left, right *imgproc.Mask) {
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			i := y*m.Width + x
			p := m.Pix[i]
			if !p.Valid {
				continue
			}
			if !left.AtExt(x, y, imgproc.ZeroEdge) {
				m.Pix[i] = Pixel{}
				continue
			}
			rx := x + int(math.Round(p.D.X))
			ry := y + int(math.Round(p.D.Y))
			if !right.AtExt(rx, ry, imgproc.ZeroEdge) {
				m.Pix[i] = Pixel{}
			}
		}
	}
}

// Intersect returns a copy of a that keeps a's values only where both a
// and b are valid. The maps must have the same size.
func Intersect(a, b *Map) *Map {
	out := a.Clone()
	for i := range out.Pix {
		if !b.Pix[i].Valid {
			out.Pix[i].Valid = false
		}
	}
	return out
}

// Invert returns a copy of m with validity flipped. Pixels that become
// valid keep whatever offset they carried.
func Invert(m *Map) *Map {
	out := m.Clone()
	for i := range out.Pix {
		out.Pix[i].Valid = !out.Pix[i].Valid
	}
	return out
}

// FillFrom writes, in place, the valid pixels of src into every pixel of m
// that is invalid. Valid pixels of m are never touched. The maps must have
// the same size. It returns the number of pixels filled.
func (m *Map) FillFrom(src *Map) int {
	filled := 0
	for i, p := range m.Pix {
		if !p.Valid && src.Pix[i].Valid {
			m.Pix[i] = src.Pix[i]
			filled++
		}
	}
	return filled
}
