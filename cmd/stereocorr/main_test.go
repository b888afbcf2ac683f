package main

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stereocorr/internal/models"
	"stereocorr/pkg/disparity"
	"stereocorr/pkg/stereo"
)

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestWriteBinary(t *testing.T) {
	m := disparity.New(2, 1)
	m.Set(1, 0, disparity.ValidPixel(1.5, -0.25))
	path := filepath.Join(t.TempDir(), "d.bin")
	require.NoError(t, writeBinary(path, m))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 8+2*3*4)
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[0:]))
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(data[4:]))

	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[off:])) }
	assert.Equal(t, float32(0), f32(16), "invalid pixel")
	assert.Equal(t, float32(1.5), f32(20))
	assert.Equal(t, float32(-0.25), f32(24))
	assert.Equal(t, float32(1), f32(28))
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("device full") }

func TestWriteBinaryReportsWriteErrors(t *testing.T) {
	m := disparity.New(4, 4)
	// the buffered writer only touches the destination on flush
	err := encodeBinary(failingWriter{}, m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device full")

	err = writeBinary(filepath.Join(t.TempDir(), "missing", "d.bin"), m)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	reports := []models.LevelReport{{Level: 0, Width: 4, Height: 4, Regions: 1, Valid: 12}}
	path := filepath.Join(dir, "report.html")
	require.NoError(t, writeReport(path, reports))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "L0 4x4")

	assert.Error(t, writeReport(filepath.Join(dir, "missing", "report.html"), reports))
}

func TestLoadInput(t *testing.T) {
	dir := t.TempDir()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	img.Set(0, 0, color.NRGBA{})
	img.Set(3, 2, color.NRGBA{A: 255})
	writePNG(t, filepath.Join(dir, "left.png"), img)

	mask := image.NewGray(image.Rect(0, 0, 4, 3))
	for i := range mask.Pix {
		mask.Pix[i] = 255
	}
	mask.SetGray(1, 0, color.Gray{})
	writePNG(t, filepath.Join(dir, "mask.png"), mask)

	got, m, err := loadInput(filepath.Join(dir, "left.png"), filepath.Join(dir, "mask.png"), 0)
	require.NoError(t, err)
	assert.Equal(t, 4, got.Width)
	assert.False(t, m.At(0, 0), "transparent")
	assert.False(t, m.At(1, 0), "masked out")
	assert.False(t, m.At(3, 2), "nodata")
	assert.True(t, m.At(2, 1))
	assert.Equal(t, 9, m.Count())

	_, m, err = loadInput(filepath.Join(dir, "left.png"), "", math.NaN())
	require.NoError(t, err)
	assert.Equal(t, 11, m.Count())

	writePNG(t, filepath.Join(dir, "small.png"), image.NewGray(image.Rect(0, 0, 2, 2)))
	_, _, err = loadInput(filepath.Join(dir, "left.png"), filepath.Join(dir, "small.png"), math.NaN())
	assert.ErrorIs(t, err, stereo.ErrDimensionMismatch)

	_, _, err = loadInput(filepath.Join(dir, "missing.png"), "", math.NaN())
	assert.Error(t, err)
}
