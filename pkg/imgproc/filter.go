package imgproc

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// EdgeExtension decides what a filter sees outside the image.
type EdgeExtension int

const (
	// ZeroEdge reads zero (or invalid, for masks) outside the image.
	ZeroEdge EdgeExtension = iota
	// ConstantEdge repeats the nearest edge pixel.
	ConstantEdge
	// ReflectEdge mirrors the image about its edge pixels, without
	// repeating them.
	ReflectEdge
)

func (e EdgeExtension) String() string {
	switch e {
	case ZeroEdge:
		return "zero"
	case ConstantEdge:
		return "constant"
	case ReflectEdge:
		return "reflect"
	}
	return "unknown"
}

// index maps i into [0,n). The bool is false when the pixel lies outside
// and the extension supplies no data for it.
func (e EdgeExtension) index(i, n int) (int, bool) {
	if i >= 0 && i < n {
		return i, true
	}
	if n == 0 {
		return 0, false
	}
	switch e {
	case ConstantEdge:
		if i < 0 {
			return 0, true
		}
		return n - 1, true
	case ReflectEdge:
		return reflectIndex(i, n), true
	}
	return 0, false
}

func reflectIndex(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}

// GaussianKernel returns a normalised 1D Gaussian of radius ceil(3*sigma).
func GaussianKernel(sigma float64) []float64 {
	if sigma <= 0 {
		return []float64{1}
	}
	radius := int(math.Ceil(3 * sigma))
	k := make([]float64, 2*radius+1)
	for i := range k {
		d := float64(i - radius)
		k[i] = math.Exp(-d * d / (2 * sigma * sigma))
	}
	floats.Scale(1/floats.Sum(k), k)
	return k
}

// SeparableConvolve filters img with kx along rows then ky along columns.
// Both kernels must have odd length and are centred on the output pixel.
func SeparableConvolve(img *Image, kx, ky []float64, ext EdgeExtension) *Image {
	w, h := img.Width, img.Height
	rx, ry := len(kx)/2, len(ky)/2

	tmp := NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for i, kv := range kx {
				sum += kv * img.AtExt(x+i-rx, y, ext)
			}
			tmp.Pix[y*w+x] = sum
		}
	}

	out := NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sum := 0.0
			for i, kv := range ky {
				sum += kv * tmp.AtExt(x, y+i-ry, ext)
			}
			out.Pix[y*w+x] = sum
		}
	}
	return out
}

// GaussianBlur smooths img with a Gaussian of the given sigma, repeating
// edge pixels outside the image.
func GaussianBlur(img *Image, sigma float64) *Image {
	k := GaussianKernel(sigma)
	return SeparableConvolve(img, k, k, ConstantEdge)
}

// Laplacian applies the 4-neighbour discrete Laplacian.
func Laplacian(img *Image) *Image {
	out := NewImage(img.Width, img.Height)
	for y := 0; y < img.Height; y++ {
		for x := 0; x < img.Width; x++ {
			v := img.AtExt(x-1, y, ConstantEdge) + img.AtExt(x+1, y, ConstantEdge) +
				img.AtExt(x, y-1, ConstantEdge) + img.AtExt(x, y+1, ConstantEdge) -
				4*img.Pix[y*img.Width+x]
			out.Pix[y*img.Width+x] = v
		}
	}
	return out
}

// HalfSize is the size of a 2x subsampled dimension.
func HalfSize(n int) int { return (n + 1) / 2 }

// Subsample2 keeps every second pixel in both directions.
func Subsample2(img *Image) *Image {
	out := NewImage(HalfSize(img.Width), HalfSize(img.Height))
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			out.Pix[y*out.Width+x] = img.Pix[2*y*img.Width+2*x]
		}
	}
	return out
}

// SubsampleMask halves a mask. Each output pixel looks at its 2x2 source
// block (zero extended past the edge) and is valid when at least minValid
// of those four pixels are valid.
func SubsampleMask(m *Mask, minValid int) *Mask {
	out := NewMask(HalfSize(m.Width), HalfSize(m.Height), false)
	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			count := 0
			for dy := 0; dy < 2; dy++ {
				for dx := 0; dx < 2; dx++ {
					if m.AtExt(2*x+dx, 2*y+dy, ZeroEdge) {
						count++
					}
				}
			}
			out.Valid[y*out.Width+x] = count >= minValid
		}
	}
	return out
}

// ResizeMask returns the w x h mask anchored at the origin, filling any
// new pixels with ext.
func ResizeMask(m *Mask, w, h int, ext EdgeExtension) *Mask {
	if m.Width == w && m.Height == h {
		return m
	}
	out := NewMask(w, h, false)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out.Valid[y*w+x] = m.AtExt(x, y, ext)
		}
	}
	return out
}

// ValidMean returns the mean of the valid pixels of img, sampled on a 2x
// subsampled preview. It is 0 when no sampled pixel is valid.
func ValidMean(img *Image, mask *Mask) float64 {
	var values []float64
	for y := 0; y < img.Height; y += 2 {
		for x := 0; x < img.Width; x += 2 {
			if mask.Valid[y*img.Width+x] {
				values = append(values, img.Pix[y*img.Width+x])
			}
		}
	}
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// FillInvalid returns a copy of img with every invalid pixel set to v.
func FillInvalid(img *Image, mask *Mask, v float64) *Image {
	out := img.Clone()
	for i, ok := range mask.Valid {
		if !ok {
			out.Pix[i] = v
		}
	}
	return out
}

// BoxDilate marks a pixel valid when any pixel within hx columns and hy
// rows of it is valid in m.
func BoxDilate(m *Mask, hx, hy int) *Mask {
	w, h := m.Width, m.Height
	rows := make([]int, w*h)
	for y := 0; y < h; y++ {
		prefix := make([]int, w+1)
		for x := 0; x < w; x++ {
			prefix[x+1] = prefix[x]
			if m.Valid[y*w+x] {
				prefix[x+1]++
			}
		}
		for x := 0; x < w; x++ {
			lo, hi := max(x-hx, 0), min(x+hx+1, w)
			rows[y*w+x] = prefix[hi] - prefix[lo]
		}
	}

	out := NewMask(w, h, false)
	for x := 0; x < w; x++ {
		prefix := make([]int, h+1)
		for y := 0; y < h; y++ {
			prefix[y+1] = prefix[y] + rows[y*w+x]
		}
		for y := 0; y < h; y++ {
			lo, hi := max(y-hy, 0), min(y+hy+1, h)
			out.Valid[y*w+x] = prefix[hi]-prefix[lo] > 0
		}
	}
	return out
}
