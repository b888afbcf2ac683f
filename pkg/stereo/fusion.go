package stereo

import (
	"stereocorr/pkg/disparity"
	"stereocorr/pkg/imgproc"
)

// FuseLevel turns the raw stitched map of a level into the map handed to
// the next finer level. Outliers are rejected and the masks applied. When
// fillHoles is set and prev is not nil, pixels the level failed to match
// are taken from the upsampled coarser result; valid pixels of the level
// are never replaced. It returns the fused map and the number of pixels
// taken from prev.
func FuseLevel(raw, prev *disparity.Map, leftMask, rightMask *imgproc.Mask, cleanup disparity.CleanupParams, fillHoles bool) (*disparity.Map, int) {
	clean := disparity.CleanUp(raw, cleanup)
	clean.ApplyMasks(leftMask, rightMask)
	if !fillHoles || prev == nil {
		return clean, 0
	}

	old := disparity.Upsample2x(prev).Crop(clean.Bounds())
	holes := disparity.Intersect(old, disparity.Invert(clean))
	filled := clean.FillFrom(holes)
	clean.ApplyMasks(leftMask, rightMask)
	return clean, filled
}
