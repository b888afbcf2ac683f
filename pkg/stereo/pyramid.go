package stereo

import (
	"github.com/pkg/errors"

	"stereocorr/pkg/imgproc"
)

// ErrDimensionMismatch is returned when the input images and masks do not
// all share the same dimensions.
var ErrDimensionMismatch = errors.New("input dimensions do not match")

// PyramidOptions controls how the image pyramid is built.
type PyramidOptions struct {
	// BlurSigma is the Gaussian applied before each 2x subsample
	BlurSigma float64 `yaml:"blurSigma"`

	// MaskMinValid is how many of the four source pixels must be valid
	// for a subsampled mask pixel to be valid
	MaskMinValid int `yaml:"maskMinValid"`
}

// DefaultPyramidOptions returns sigma 1.2 and the "more than one of four"
// mask rule.
func DefaultPyramidOptions() PyramidOptions {
	return PyramidOptions{BlurSigma: 1.2, MaskMinValid: 2}
}

// Pyramid holds the left and right images and masks at every level.
// Index 0 is full resolution, index k is subsampled 2^k times.
type Pyramid struct {
	Left       []*imgproc.Image
	Right      []*imgproc.Image
	LeftMasks  []*imgproc.Mask
	RightMasks []*imgproc.Mask
}

// Levels returns the number of pyramid levels.
func (p *Pyramid) Levels() int { return len(p.Left) }

// BuildPyramid builds levels pyramid levels from the inputs. Nodata pixels
// of level 0 are replaced by the mean of the valid pixels so that blurring
// does not pull garbage into valid areas. levels below 1 build a single
// level. The inputs are not modified.
func BuildPyramid(left, right *imgproc.Image, leftMask, rightMask *imgproc.Mask, levels int, opts PyramidOptions) (*Pyramid, error) {
	if left == nil || right == nil || leftMask == nil || rightMask == nil {
		return nil, errors.New("pyramid inputs must not be nil")
	}
	if !imgproc.SameSize(left.Bounds(), right.Bounds()) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "left image %v, right image %v", left.Bounds().Size(), right.Bounds().Size())
	}
	if !imgproc.SameSize(left.Bounds(), leftMask.Bounds()) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "left image %v, left mask %v", left.Bounds().Size(), leftMask.Bounds().Size())
	}
	if !imgproc.SameSize(left.Bounds(), rightMask.Bounds()) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "left image %v, right mask %v", left.Bounds().Size(), rightMask.Bounds().Size())
	}
	if levels < 1 {
		levels = 1
	}

	p := &Pyramid{
		Left:       make([]*imgproc.Image, levels),
		Right:      make([]*imgproc.Image, levels),
		LeftMasks:  make([]*imgproc.Mask, levels),
		RightMasks: make([]*imgproc.Mask, levels),
	}
	p.Left[0] = imgproc.FillInvalid(left, leftMask, imgproc.ValidMean(left, leftMask))
	p.Right[0] = imgproc.FillInvalid(right, rightMask, imgproc.ValidMean(right, rightMask))
	p.LeftMasks[0] = leftMask
	p.RightMasks[0] = rightMask

	for n := 1; n < levels; n++ {
		p.Left[n] = imgproc.Subsample2(imgproc.GaussianBlur(p.Left[n-1], opts.BlurSigma))
		p.Right[n] = imgproc.Subsample2(imgproc.GaussianBlur(p.Right[n-1], opts.BlurSigma))

		w, h := p.Left[n].Width, p.Left[n].Height
		p.LeftMasks[n] = imgproc.ResizeMask(imgproc.SubsampleMask(p.LeftMasks[n-1], opts.MaskMinValid), w, h, imgproc.ConstantEdge)
		p.RightMasks[n] = imgproc.ResizeMask(imgproc.SubsampleMask(p.RightMasks[n-1], opts.MaskMinValid), w, h, imgproc.ConstantEdge)
	}
	return p, nil
}
