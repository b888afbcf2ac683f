// Package imgproc provides the single-channel float images and validity
// masks the stereo correlator works on, together with the pixel filters
// (convolution, Gaussian blur, subsampling, edge extension) it needs.
package imgproc

import (
	"image"

	"golang.org/x/image/draw"
)

// Image is a single-channel float image stored in row-major order.
// Values loaded from files are in the 0-1 range.
type Image struct {
	Width  int
	Height int
	Pix    []float64
}

// Mask marks usable (true) and nodata (false) pixels of an image.
type Mask struct {
	Width  int
	Height int
	Valid  []bool
}

// NewImage allocates a zeroed w x h image.
func NewImage(w, h int) *Image {
	return &Image{Width: w, Height: h, Pix: make([]float64, w*h)}
}

// NewConstantImage allocates a w x h image with every pixel set to v.
func NewConstantImage(w, h int, v float64) *Image {
	img := NewImage(w, h)
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func (img *Image) At(x, y int) float64     { return img.Pix[y*img.Width+x] }
func (img *Image) Set(x, y int, v float64) { img.Pix[y*img.Width+x] = v }

// Bounds returns the image extent with its origin at (0,0).
func (img *Image) Bounds() image.Rectangle { return image.Rect(0, 0, img.Width, img.Height) }

// Clone returns a deep copy of the image.
func (img *Image) Clone() *Image {
	out := &Image{Width: img.Width, Height: img.Height, Pix: make([]float64, len(img.Pix))}
	copy(out.Pix, img.Pix)
	return out
}

// AtExt reads a pixel, resolving out of bounds coordinates with ext.
func (img *Image) AtExt(x, y int, ext EdgeExtension) float64 {
	xi, okx := ext.index(x, img.Width)
	yi, oky := ext.index(y, img.Height)
	if !okx || !oky {
		return 0
	}
	return img.Pix[yi*img.Width+xi]
}

// Crop copies the pixels of r into a new image whose origin is r.Min.
// Pixels of r outside the image are produced by ext.
func (img *Image) Crop(r image.Rectangle, ext EdgeExtension) *Image {
	out := NewImage(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			out.Pix[y*out.Width+x] = img.AtExt(r.Min.X+x, r.Min.Y+y, ext)
		}
	}
	return out
}

// NewMask allocates a w x h mask with every pixel set to valid.
func NewMask(w, h int, valid bool) *Mask {
	m := &Mask{Width: w, Height: h, Valid: make([]bool, w*h)}
	if valid {
		for i := range m.Valid {
			m.Valid[i] = true
		}
	}
	return m
}

func (m *Mask) At(x, y int) bool     { return m.Valid[y*m.Width+x] }
func (m *Mask) Set(x, y int, v bool) { m.Valid[y*m.Width+x] = v }

func (m *Mask) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// AtExt reads a mask pixel, resolving out of bounds coordinates with ext.
// ZeroEdge reports out of bounds pixels as invalid.
func (m *Mask) AtExt(x, y int, ext EdgeExtension) bool {
	xi, okx := ext.index(x, m.Width)
	yi, oky := ext.index(y, m.Height)
	if !okx || !oky {
		return false
	}
	return m.Valid[yi*m.Width+xi]
}

// Count returns the number of valid pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Valid {
		if v {
			n++
		}
	}
	return n
}

// CountIn returns the number of valid pixels inside r. Parts of r outside
// the mask count as invalid.
func (m *Mask) CountIn(r image.Rectangle) int {
	r = r.Intersect(m.Bounds())
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			if m.Valid[y*m.Width+x] {
				n++
			}
		}
	}
	return n
}

// SameSize reports whether the image and mask share dimensions.
func SameSize(a, b image.Rectangle) bool {
	return a.Dx() == b.Dx() && a.Dy() == b.Dy()
}

// FromImage converts any decoded image into a float image (luminance in
// 0-1) and a mask that is valid wherever the source alpha is non-zero.
func FromImage(src image.Image) (*Image, *Mask) {
	b := src.Bounds()
	gray := image.NewGray16(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(gray, gray.Bounds(), src, b.Min, draw.Src)

	img := NewImage(b.Dx(), b.Dy())
	mask := NewMask(b.Dx(), b.Dy(), false)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			img.Pix[y*img.Width+x] = float64(gray.Gray16At(x, y).Y) / 65535.0
			_, _, _, a := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			mask.Valid[y*img.Width+x] = a > 0
		}
	}
	return img, mask
}

// MaskFromImage builds a mask that is valid wherever src is non-zero.
func MaskFromImage(src image.Image) *Mask {
	b := src.Bounds()
	m := NewMask(b.Dx(), b.Dy(), false)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, bl, _ := src.At(b.Min.X+x, b.Min.Y+y).RGBA()
			m.Valid[y*m.Width+x] = r|g|bl != 0
		}
	}
	return m
}
