// Package stereo computes dense disparity maps between a rectified stereo
// pair by block matching over an image pyramid. Each level is matched in
// independent regions whose search ranges come from the coarser level's
// result, and holes left at a level are filled from the coarser answer.
package stereo

import (
	"context"
	"image"
	"io"
	"log"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"stereocorr/internal/models"
	"stereocorr/pkg/correlate"
	"stereocorr/pkg/disparity"
	"stereocorr/pkg/imgproc"
)

// DebugSink receives every fused level. Errors it returns are logged and
// otherwise ignored.
type DebugSink interface {
	WriteLevel(level int, m *disparity.Map, regions []models.Region) error
}

// ProgressFunc is called after each region of a level has been matched.
type ProgressFunc func(level, completed, total int)

// PyramidCorrelator computes disparity maps with the pyramid scheme.
type PyramidCorrelator struct {
	opts     Options
	matcher  correlate.Matcher
	logger   *log.Logger
	debug    DebugSink
	progress ProgressFunc
}

// NewPyramidCorrelator validates opts and builds a correlator.
func NewPyramidCorrelator(opts Options) (*PyramidCorrelator, error) {
	if err := opts.validate(); err != nil {
		return nil, errors.Wrap(err, "invalid correlator options")
	}
	if opts.PyramidLevels < 1 {
		opts.PyramidLevels = 1
	}
	if opts.NumWorkers < 1 {
		opts.NumWorkers = 1
	}

	pc := &PyramidCorrelator{opts: opts, matcher: opts.Matcher, logger: opts.Logger}
	if pc.matcher == nil {
		pc.matcher = correlate.NewBlockMatcher(opts.CorrelatorType, opts.KernelSize, opts.XCorrThreshold, opts.CostBlur)
	}
	if pc.logger == nil {
		pc.logger = log.New(io.Discard, "", 0)
	}
	return pc, nil
}

// Options returns the options the correlator runs with.
func (pc *PyramidCorrelator) Options() Options { return pc.opts }

// SetDebugSink installs a sink that receives every fused level.
func (pc *PyramidCorrelator) SetDebugSink(sink DebugSink) { pc.debug = sink }

// SetProgressCallback installs a per region progress callback.
func (pc *PyramidCorrelator) SetProgressCallback(fn ProgressFunc) { pc.progress = fn }

// Correlate matches left against right and returns the full resolution
// disparity map. A valid pixel at (x, y) holding d means left (x, y)
// corresponds to right (x+d.X, y+d.Y). pre is applied to both patches
// before matching; nil leaves them untouched.
func (pc *PyramidCorrelator) Correlate(ctx context.Context, left, right *imgproc.Image, leftMask, rightMask *imgproc.Mask, pre correlate.PreFilter) (*disparity.Map, error) {
	m, _, err := pc.CorrelateWithReport(ctx, left, right, leftMask, rightMask, pre)
	return m, err
}

// CorrelateWithReport is Correlate that also returns one report per level,
// coarsest first.
func (pc *PyramidCorrelator) CorrelateWithReport(ctx context.Context, left, right *imgproc.Image, leftMask, rightMask *imgproc.Mask, pre correlate.PreFilter) (*disparity.Map, []models.LevelReport, error) {
	pyr, err := BuildPyramid(left, right, leftMask, rightMask, pc.opts.PyramidLevels, pc.opts.Pyramid)
	if err != nil {
		return nil, nil, err
	}

	subOpts := SubdivideOptions{
		MinDim:     pc.opts.MinSubregionDim,
		MaxDim:     pc.opts.MaxSubregionDim,
		MinDensity: pc.opts.MinSubregionDensity,
	}
	coarsest := pyr.Levels() - 1
	reports := make([]models.LevelReport, 0, pyr.Levels())

	var prev *disparity.Map
	for n := coarsest; n >= 0; n-- {
		if err := ctx.Err(); err != nil {
			return nil, reports, err
		}
		extent := pyr.Left[n].Bounds()
		global := LevelSearchRange(pc.opts.SearchRange, n)

		var pad *imgproc.Mask
		if prev != nil {
			pad = ValidPad(prev, pc.opts.KernelSize)
		}
		boxes := Subdivide(prev, pad, extent, subOpts)
		ranges := SearchRanges(prev, boxes, global, pc.opts.SearchMargin)
		regions := make([]models.Region, len(boxes))
		for i := range boxes {
			regions[i] = models.Region{Box: boxes[i], Search: ranges[i]}
		}

		raw := disparity.New(extent.Dx(), extent.Dy())
		skipped, err := pc.correlateLevel(ctx, n, pyr, regions, raw, pre)
		if err != nil {
			return nil, reports, errors.Wrapf(err, "level %d", n)
		}

		fused, filled := FuseLevel(raw, prev, pyr.LeftMasks[n], pyr.RightMasks[n], pc.opts.Cleanup, n != coarsest && n != 0)
		report := models.LevelReport{
			Level:   n,
			Width:   extent.Dx(),
			Height:  extent.Dy(),
			Regions: len(regions),
			Skipped: skipped,
			Valid:   fused.CountValid(),
			Filled:  filled,
		}
		reports = append(reports, report)
		pc.logger.Printf("Level %d (%dx%d): %d regions, %d skipped, %.1f%% valid, %d filled from level %d",
			n, report.Width, report.Height, report.Regions, report.Skipped, 100*report.Coverage(), filled, n+1)

		if pc.debug != nil {
			if err := pc.debug.WriteLevel(n, fused, regions); err != nil {
				pc.logger.Printf("Warning: failed to write debug output for level %d: %v", n, err)
			}
		}
		prev = fused
	}
	return prev, reports, nil
}

// correlateLevel matches every region of level n into out. Regions write
// disjoint rectangles of out, so they run concurrently without locking.
// It returns the number of regions skipped for lack of overlap with the
// right image.
func (pc *PyramidCorrelator) correlateLevel(ctx context.Context, n int, pyr *Pyramid, regions []models.Region, out *disparity.Map, pre correlate.PreFilter) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pc.opts.NumWorkers)

	var mu sync.Mutex
	completed, skipped := 0, 0
	for _, region := range regions {
		region := region
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ok, err := pc.correlateRegion(n, pyr, region, out, pre)
			if err != nil {
				return errors.Wrapf(err, "region %v", region.Box)
			}

			mu.Lock()
			defer mu.Unlock()
			completed++
			if !ok {
				skipped++
			}
			if pc.progress != nil {
				pc.progress(n, completed, len(regions))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return skipped, err
	}
	return skipped, nil
}

// correlateRegion matches one region and pastes the result into out. ok
// is false when the region had nothing to match against.
func (pc *PyramidCorrelator) correlateRegion(n int, pyr *Pyramid, region models.Region, out *disparity.Map, pre correlate.PreFilter) (bool, error) {
	geom, ok := ComputeMatchingBlocks(region.Box, region.Search, pyr.Right[n].Bounds(), pc.opts.KernelSize)
	if !ok {
		return false, nil
	}

	left := pyr.Left[n].Crop(geom.Left, imgproc.ReflectEdge)
	right := pyr.Right[n].Crop(geom.Right, imgproc.ReflectEdge)
	m, err := pc.matcher.Match(left, right, geom.Window, pre)
	if err != nil {
		return false, err
	}
	m.AddOffset(geom.Offset)

	interior := image.Pt(pc.opts.KernelSize.X/2, pc.opts.KernelSize.Y/2)
	out.Paste(region.Box, m, interior)
	return true, nil
}
