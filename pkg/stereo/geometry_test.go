package stereo

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r2"

	"stereocorr/pkg/correlate"
	"stereocorr/pkg/disparity"
	"stereocorr/pkg/imgproc"
)

func box(minX, minY, maxX, maxY float64) r2.Box {
	return r2.Box{Min: r2.Vec{X: minX, Y: minY}, Max: r2.Vec{X: maxX, Y: maxY}}
}

func filledMap(w, h int, d r2.Vec) *disparity.Map {
	m := disparity.New(w, h)
	for i := range m.Pix {
		m.Pix[i] = disparity.ValidPixel(d.X, d.Y)
	}
	return m
}

// assertPartition checks that boxes tile extent exactly.
func assertPartition(t *testing.T, extent image.Rectangle, boxes []image.Rectangle) {
	t.Helper()
	cover := make(map[image.Point]int)
	for _, b := range boxes {
		require.True(t, b.In(extent), "%v outside %v", b, extent)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				cover[image.Pt(x, y)]++
			}
		}
	}
	assert.Equal(t, extent.Dx()*extent.Dy(), len(cover))
	for p, n := range cover {
		if n != 1 {
			t.Fatalf("pixel %v covered %d times", p, n)
		}
	}
}

func TestSubdivideWithoutPrior(t *testing.T) {
	extent := image.Rect(0, 0, 300, 200)
	assert.Equal(t, []image.Rectangle{extent}, Subdivide(nil, nil, extent, SubdivideOptions{MinDim: 16, MaxDim: 64}))
	assert.Empty(t, Subdivide(nil, nil, image.Rectangle{}, SubdivideOptions{MinDim: 16}))
}

func TestSubdivideSplitsLargeBlocks(t *testing.T) {
	prev := filledMap(100, 60, r2.Vec{})
	pad := ValidPad(prev, image.Pt(7, 7))
	extent := image.Rect(0, 0, 200, 120)

	boxes := Subdivide(prev, pad, extent, SubdivideOptions{MinDim: 16, MaxDim: 64, MinDensity: 0.9})
	assertPartition(t, extent, boxes)
	for _, b := range boxes {
		assert.LessOrEqual(t, b.Dx(), 64)
		assert.LessOrEqual(t, b.Dy(), 64)
	}
	for i := 1; i < len(boxes); i++ {
		a, b := boxes[i-1].Min, boxes[i].Min
		assert.True(t, a.Y < b.Y || (a.Y == b.Y && a.X < b.X), "not sorted: %v before %v", a, b)
	}
}

func TestSubdivideFollowsDensity(t *testing.T) {
	// left half of the coarser level is valid, right half empty
	prev := disparity.New(64, 64)
	for y := 0; y < 64; y++ {
		for x := 0; x < 24; x++ {
			prev.Set(x, y, disparity.ValidPixel(1, 0))
		}
	}
	pad := ValidPad(prev, image.Pt(1, 1))
	extent := image.Rect(0, 0, 128, 128)
	opts := SubdivideOptions{MinDim: 16, MinDensity: 0.9}

	boxes := Subdivide(prev, pad, extent, opts)
	assertPartition(t, extent, boxes)
	assert.Greater(t, len(boxes), 4)

	// fully dense and fully empty areas stay whole
	dense := filledMap(64, 64, r2.Vec{})
	assert.Equal(t, []image.Rectangle{extent}, Subdivide(dense, ValidPad(dense, image.Pt(1, 1)), extent, opts))
	empty := disparity.New(64, 64)
	assert.Equal(t, []image.Rectangle{extent}, Subdivide(empty, ValidPad(empty, image.Pt(1, 1)), extent, opts))
}

func TestSubdivideStopsAtMinDim(t *testing.T) {
	prev := disparity.New(8, 8)
	prev.Set(0, 0, disparity.ValidPixel(0, 0))
	extent := image.Rect(0, 0, 16, 16)

	boxes := Subdivide(prev, ValidPad(prev, image.Pt(1, 1)), extent, SubdivideOptions{MinDim: 4, MinDensity: 0.9})
	assertPartition(t, extent, boxes)
	for _, b := range boxes {
		assert.GreaterOrEqual(t, b.Dx(), 4)
		assert.GreaterOrEqual(t, b.Dy(), 4)
	}
}

func TestValidPad(t *testing.T) {
	prev := disparity.New(10, 10)
	prev.Set(5, 5, disparity.ValidPixel(0, 0))
	pad := ValidPad(prev, image.Pt(5, 3))
	assert.Equal(t, 5*3, pad.Count())
	assert.True(t, pad.At(3, 4))
	assert.False(t, pad.At(2, 5))
}

func TestLevelSearchRange(t *testing.T) {
	initial := box(-8, -2, 16, 2)
	assert.Equal(t, initial, LevelSearchRange(initial, 0))
	assert.Equal(t, box(-1, -0.25, 2, 0.25), LevelSearchRange(initial, 3))
}

func TestSearchRanges(t *testing.T) {
	global := box(-10, -2, 10, 2)
	boxes := []image.Rectangle{image.Rect(0, 0, 8, 8), image.Rect(8, 0, 16, 8)}

	assert.Equal(t, []r2.Box{global, global}, SearchRanges(nil, boxes, global, 1))

	prev := disparity.New(8, 4)
	prev.Set(1, 1, disparity.ValidPixel(1, 0))
	prev.Set(2, 2, disparity.ValidPixel(2, 0.5))
	prev.Set(6, 1, disparity.ValidPixel(-5, 0))

	got := SearchRanges(prev, boxes, global, 1)
	require.Len(t, got, 2)
	assert.Equal(t, box(1, -1, 5, 2), got[0])
	// grown range is clamped to the level range
	assert.Equal(t, box(-10, -1, -9, 1), got[1])

	// no prior data under the block falls back to the level range
	assert.Equal(t, []r2.Box{global}, SearchRanges(prev, []image.Rectangle{image.Rect(0, 6, 8, 8)}, global, 1))
}

func TestFootprint(t *testing.T) {
	assert.Equal(t, image.Rect(0, 0, 4, 4), footprint(image.Rect(0, 0, 8, 8)))
	assert.Equal(t, image.Rect(1, 1, 3, 3), footprint(image.Rect(3, 3, 5, 5)))
	assert.Equal(t, image.Rect(-1, 0, 2, 3), footprint(image.Rect(-1, 0, 3, 5)))
}

func TestComputeMatchingBlocks(t *testing.T) {
	rb := image.Rect(0, 0, 100, 80)
	kernel := image.Pt(7, 5)

	g, ok := ComputeMatchingBlocks(image.Rect(10, 10, 30, 20), box(-2.5, -1, 3.2, 1), rb, kernel)
	require.True(t, ok)
	assert.Equal(t, image.Rect(7, 8, 33, 22), g.Left)
	assert.Equal(t, box(-2.5, -1, 3.2, 1), g.Adjusted)
	assert.Equal(t, correlate.Window{MaxX: 7, MaxY: 2}, g.Window)
	assert.Equal(t, r2.Vec{X: -3, Y: -1}, g.Offset)
	assert.Equal(t, image.Rect(4, 7, 37, 23), g.Right)
	assert.Equal(t, g.Left.Dx()+g.Window.MaxX, g.Right.Dx())
	assert.Equal(t, g.Left.Dy()+g.Window.MaxY, g.Right.Dy())
}

func TestComputeMatchingBlocksClipsRange(t *testing.T) {
	rb := image.Rect(0, 0, 50, 50)

	// only disparities that keep some block pixel inside the right image
	g, ok := ComputeMatchingBlocks(image.Rect(40, 0, 50, 10), box(-5, 0, 20, 0), rb, image.Pt(3, 3))
	require.True(t, ok)
	assert.Equal(t, box(-5, 0, 9, 0), g.Adjusted)
	assert.Equal(t, r2.Vec{X: -5}, g.Offset)
	assert.Equal(t, 14, g.Window.MaxX)

	// a block that can only land outside the right image is skipped
	_, ok = ComputeMatchingBlocks(image.Rect(40, 0, 50, 10), box(12, 0, 20, 0), rb, image.Pt(3, 3))
	assert.False(t, ok)
	_, ok = ComputeMatchingBlocks(image.Rectangle{}, box(0, 0, 1, 1), rb, image.Pt(3, 3))
	assert.False(t, ok)
}

func TestFuseLevelFillsHolesOnly(t *testing.T) {
	mask := imgproc.NewMask(8, 8, true)
	cleanup := disparity.CleanupParams{HalfWindowX: 1, HalfWindowY: 1, Threshold: 1, MinMatchFraction: 0}

	raw := filledMap(8, 8, r2.Vec{})
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			raw.Invalidate(x, y)
		}
	}
	prev := filledMap(4, 4, r2.Vec{Y: 0.5})

	fused, filled := FuseLevel(raw, prev, mask, mask, cleanup, true)
	assert.Equal(t, 32, filled)
	assert.Equal(t, 64, fused.CountValid())
	assert.Equal(t, r2.Vec{Y: 1}, fused.At(2, 1).D, "hole takes the upsampled coarse value")
	assert.Equal(t, r2.Vec{}, fused.At(2, 6).D, "valid fine data is kept")

	fused, filled = FuseLevel(raw, prev, mask, mask, cleanup, false)
	assert.Zero(t, filled)
	assert.Equal(t, 32, fused.CountValid())
}

func TestFuseLevelAppliesMasks(t *testing.T) {
	left := imgproc.NewMask(8, 8, true)
	right := imgproc.NewMask(8, 8, true)
	left.Set(0, 0, false)
	cleanup := disparity.CleanupParams{HalfWindowX: 1, HalfWindowY: 1, Threshold: 1, MinMatchFraction: 0}

	fused, filled := FuseLevel(filledMap(8, 8, r2.Vec{X: 2}), nil, left, right, cleanup, true)
	assert.Zero(t, filled)
	assert.False(t, fused.At(0, 0).Valid)
	// matches landing outside the right image are dropped
	assert.False(t, fused.At(6, 3).Valid)
	assert.True(t, fused.At(5, 3).Valid)
}
