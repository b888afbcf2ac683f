// Package correlate implements the patch correlator used at every pyramid
// level: given a left patch, a right patch and an integer search window it
// produces a disparity for every left pixel it can match.
package correlate

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"stereocorr/pkg/disparity"
	"stereocorr/pkg/imgproc"
)

// ErrPatchTooSmall is returned when a patch cannot hold a single kernel.
var ErrPatchTooSmall = errors.New("patch smaller than the correlation kernel")

// Window is an inclusive integer search range. A left pixel (x,y) is
// compared with right pixels (x+dx, y+dy) for MinX <= dx <= MaxX and
// MinY <= dy <= MaxY.
type Window struct {
	MinX, MinY int
	MaxX, MaxY int
}

// Cols is the number of horizontal candidates.
func (w Window) Cols() int { return w.MaxX - w.MinX + 1 }

// Rows is the number of vertical candidates.
func (w Window) Rows() int { return w.MaxY - w.MinY + 1 }

// Empty reports whether the window holds no candidate.
func (w Window) Empty() bool { return w.Cols() <= 0 || w.Rows() <= 0 }

func (w Window) String() string {
	return fmt.Sprintf("[%d,%d]x[%d,%d]", w.MinX, w.MaxX, w.MinY, w.MaxY)
}

// Matcher is the patch correlator contract. Match returns a map with the
// dimensions of left; pixels it could not match are invalid. It must be
// deterministic and safe to call from several goroutines at once.
type Matcher interface {
	Match(left, right *imgproc.Image, w Window, pre PreFilter) (*disparity.Map, error)
}

// Type selects the matching cost.
type Type int

const (
	// AbsDiff sums absolute differences over the kernel.
	AbsDiff Type = iota
	// SqDiff sums squared differences over the kernel.
	SqDiff
	// NormXCorr uses one minus the normalised cross correlation.
	NormXCorr
)

func (t Type) String() string {
	switch t {
	case AbsDiff:
		return "absdiff"
	case SqDiff:
		return "sqdiff"
	case NormXCorr:
		return "ncc"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a config name onto a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "", "absdiff", "abs_diff":
		return AbsDiff, nil
	case "sqdiff", "sq_diff":
		return SqDiff, nil
	case "ncc", "normxcorr", "cross_corr":
		return NormXCorr, nil
	}
	return AbsDiff, errors.Errorf("unknown correlator type %q", name)
}
