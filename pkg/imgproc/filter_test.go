package imgproc

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func rampImage(w, h int) *Image {
	img := NewImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, float64(x+10*y))
		}
	}
	return img
}

func TestGaussianKernel(t *testing.T) {
	k := GaussianKernel(1.2)
	require.Len(t, k, 9)
	assert.InDelta(t, 1.0, floats.Sum(k), 1e-12)
	assert.Equal(t, k[0], k[8])
	assert.Greater(t, k[4], k[3])

	assert.Equal(t, []float64{1}, GaussianKernel(0))
}

func TestEdgeExtension(t *testing.T) {
	img := rampImage(4, 3)

	assert.Equal(t, 0.0, img.AtExt(-1, 0, ZeroEdge))
	assert.Equal(t, img.At(0, 0), img.AtExt(-3, -2, ConstantEdge))
	assert.Equal(t, img.At(3, 2), img.AtExt(9, 7, ConstantEdge))

	// reflect does not repeat the edge pixel
	assert.Equal(t, img.At(1, 0), img.AtExt(-1, 0, ReflectEdge))
	assert.Equal(t, img.At(2, 0), img.AtExt(4, 0, ReflectEdge))
	assert.Equal(t, img.At(0, 1), img.AtExt(6, 1, ReflectEdge))
	assert.Equal(t, img.At(0, 1), img.AtExt(0, 3, ReflectEdge))
}

func TestCrop(t *testing.T) {
	img := rampImage(5, 5)
	c := img.Crop(image.Rect(-1, 3, 2, 6), ReflectEdge)
	require.Equal(t, 3, c.Width)
	require.Equal(t, 3, c.Height)
	assert.Equal(t, img.At(1, 3), c.At(0, 0))
	assert.Equal(t, img.At(1, 4), c.At(2, 1))
	assert.Equal(t, img.At(0, 3), c.At(1, 2))

	z := img.Crop(image.Rect(4, 4, 6, 6), ZeroEdge)
	assert.Equal(t, []float64{img.At(4, 4), 0, 0, 0}, z.Pix)
}

func TestGaussianBlurKeepsFlatImage(t *testing.T) {
	img := NewConstantImage(17, 11, 0.25)
	out := GaussianBlur(img, 1.2)
	for _, v := range out.Pix {
		assert.InDelta(t, 0.25, v, 1e-12)
	}
}

func TestSubsample2(t *testing.T) {
	img := rampImage(5, 4)
	out := Subsample2(img)
	require.Equal(t, 3, out.Width)
	require.Equal(t, 2, out.Height)
	assert.Equal(t, img.At(4, 2), out.At(2, 1))
}

func TestSubsampleMask(t *testing.T) {
	m := NewMask(4, 2, false)
	// block (0,0): one valid pixel, block (1,0): two valid pixels
	m.Set(0, 0, true)
	m.Set(2, 0, true)
	m.Set(3, 1, true)

	out := SubsampleMask(m, 2)
	require.Equal(t, 2, out.Width)
	require.Equal(t, 1, out.Height)
	assert.False(t, out.At(0, 0))
	assert.True(t, out.At(1, 0))

	// odd sizes zero extend, so a lone edge column never survives
	odd := SubsampleMask(NewMask(3, 3, true), 2)
	assert.True(t, odd.At(0, 0))
	assert.True(t, odd.At(1, 0))
	assert.False(t, odd.At(1, 1))
}

func TestResizeMask(t *testing.T) {
	m := NewMask(2, 2, true)
	m.Set(1, 1, false)
	out := ResizeMask(m, 3, 3, ConstantEdge)
	assert.True(t, out.At(2, 0))
	assert.False(t, out.At(2, 2))
	assert.Same(t, m, ResizeMask(m, 2, 2, ZeroEdge))
}

func TestValidMeanAndFill(t *testing.T) {
	img := NewConstantImage(4, 4, 1)
	mask := NewMask(4, 4, true)
	img.Set(2, 2, 9)
	mask.Set(2, 2, false)
	assert.InDelta(t, 1.0, ValidMean(img, mask), 1e-12)

	filled := FillInvalid(img, mask, 0.5)
	assert.Equal(t, 0.5, filled.At(2, 2))
	assert.Equal(t, 9.0, img.At(2, 2))

	assert.Equal(t, 0.0, ValidMean(img, NewMask(4, 4, false)))
}

func TestBoxDilate(t *testing.T) {
	m := NewMask(7, 5, false)
	m.Set(3, 2, true)
	out := BoxDilate(m, 1, 2)
	assert.Equal(t, 3*5, out.Count())
	assert.True(t, out.At(2, 0))
	assert.False(t, out.At(1, 2))
}

func TestFromImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(2, 2, 4, 3))
	src.Set(2, 2, color.NRGBA{255, 255, 255, 255})
	src.Set(3, 2, color.NRGBA{0, 0, 0, 0})

	img, mask := FromImage(src)
	require.Equal(t, 2, img.Width)
	assert.InDelta(t, 1.0, img.At(0, 0), 1e-6)
	assert.True(t, mask.At(0, 0))
	assert.False(t, mask.At(1, 0))
}
