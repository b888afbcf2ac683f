package correlate

import (
	"image"
	"math"

	"github.com/pkg/errors"

	"stereocorr/pkg/disparity"
	"stereocorr/pkg/imgproc"
)

// BlockMatcher is a winner-take-all block matcher. Costs are aggregated
// over KernelSize with integral images, optionally smoothed over CostBlur
// pixels, and every match is verified by matching back from the right
// patch. Threshold is the largest disagreement (in pixels, per axis)
// allowed between the two directions; a negative Threshold disables the
// check. KernelSize sides are expected to be odd; an even side is
// widened by one pixel around the centre.
type BlockMatcher struct {
	Type       Type
	KernelSize image.Point
	Threshold  float64
	CostBlur   int
}

// NewBlockMatcher returns a matcher for the given cost and kernel.
func NewBlockMatcher(typ Type, kernel image.Point, threshold float64, costBlur int) *BlockMatcher {
	return &BlockMatcher{Type: typ, KernelSize: kernel, Threshold: threshold, CostBlur: costBlur}
}

// Match implements Matcher.
func (bm *BlockMatcher) Match(left, right *imgproc.Image, w Window, pre PreFilter) (*disparity.Map, error) {
	hx, hy := bm.KernelSize.X/2, bm.KernelSize.Y/2
	if left.Width < 2*hx+1 || left.Height < 2*hy+1 {
		return nil, errors.Wrapf(ErrPatchTooSmall, "left patch %dx%d, kernel %v", left.Width, left.Height, bm.KernelSize)
	}
	if right.Width < 2*hx+1 || right.Height < 2*hy+1 {
		return nil, errors.Wrapf(ErrPatchTooSmall, "right patch %dx%d, kernel %v", right.Width, right.Height, bm.KernelSize)
	}
	if w.Empty() {
		return nil, errors.Errorf("empty search window %s", w)
	}
	if pre == nil {
		pre = NullFilter
	}
	l, r := pre(left), pre(right)

	vol := bm.costVolume(l, r, w, hx, hy)
	fwd := vol.bestForward()
	var rev []int
	if bm.Threshold >= 0 {
		rev = vol.bestReverse(r.Width, r.Height)
	}

	out := disparity.New(left.Width, left.Height)
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			i := y*l.Width + x
			best := fwd[i]
			if best < 0 {
				continue
			}
			dx, dy := vol.offset(best)
			if rev != nil {
				qx, qy := x+dx, y+dy
				back := rev[qy*r.Width+qx]
				if back < 0 {
					continue
				}
				bx, by := vol.offset(back)
				if math.Abs(float64(bx-dx)) > bm.Threshold || math.Abs(float64(by-dy)) > bm.Threshold {
					continue
				}
			}
			sx, sy := vol.subpixel(best, i)
			out.Pix[i] = disparity.ValidPixel(float64(dx)+sx, float64(dy)+sy)
		}
	}
	return out, nil
}

// costVolume holds one cost slice per candidate, indexed by left pixel.
// Positions where the kernel does not fit in both patches hold +Inf.
type costVolume struct {
	w      Window
	width  int
	height int
	slices [][]float64
}

func (v *costVolume) offset(k int) (int, int) {
	return v.w.MinX + k%v.w.Cols(), v.w.MinY + k/v.w.Cols()
}

// closer reports whether candidate a lies nearer the window centre than b.
// Equal costs are resolved this way so flat areas settle on the middle of
// the search range.
func (v *costVolume) closer(a, b int) bool {
	cx := float64(v.w.Cols()-1) / 2
	cy := float64(v.w.Rows()-1) / 2
	ax, ay := float64(a%v.w.Cols())-cx, float64(a/v.w.Cols())-cy
	bx, by := float64(b%v.w.Cols())-cx, float64(b/v.w.Cols())-cy
	return ax*ax+ay*ay < bx*bx+by*by
}

func (v *costVolume) better(cost float64, k int, bestCost float64, best int) bool {
	if math.IsInf(cost, 1) {
		return false
	}
	if best < 0 || cost < bestCost {
		return true
	}
	return cost == bestCost && v.closer(k, best)
}

func (v *costVolume) bestForward() []int {
	out := make([]int, v.width*v.height)
	for i := range out {
		best, bestCost := -1, math.Inf(1)
		for k, s := range v.slices {
			if v.better(s[i], k, bestCost, best) {
				best, bestCost = k, s[i]
			}
		}
		out[i] = best
	}
	return out
}

// bestReverse finds, for every right pixel, the candidate whose left pixel
// matches it best.
func (v *costVolume) bestReverse(rw, rh int) []int {
	out := make([]int, rw*rh)
	for i := range out {
		out[i] = -1
	}
	bestCost := make([]float64, rw*rh)
	for k, s := range v.slices {
		dx, dy := v.offset(k)
		for y := 0; y < v.height; y++ {
			qy := y + dy
			if qy < 0 || qy >= rh {
				continue
			}
			for x := 0; x < v.width; x++ {
				qx := x + dx
				if qx < 0 || qx >= rw {
					continue
				}
				q := qy*rw + qx
				if v.better(s[y*v.width+x], k, bestCost[q], out[q]) {
					out[q], bestCost[q] = k, s[y*v.width+x]
				}
			}
		}
	}
	return out
}

// subpixel fits a parabola through the best cost and its neighbours along
// each axis. Offsets are limited to half a pixel.
func (v *costVolume) subpixel(best, i int) (float64, float64) {
	cols, rows := v.w.Cols(), v.w.Rows()
	bx, by := best%cols, best/cols
	c0 := v.slices[best][i]

	fit := func(lo, hi int, ok bool) float64 {
		if !ok {
			return 0
		}
		cm, cp := v.slices[lo][i], v.slices[hi][i]
		if math.IsInf(cm, 1) || math.IsInf(cp, 1) {
			return 0
		}
		denom := cm - 2*c0 + cp
		if denom <= 0 {
			return 0
		}
		off := (cm - cp) / (2 * denom)
		return math.Max(-0.5, math.Min(0.5, off))
	}
	sx := fit(best-1, best+1, bx > 0 && bx < cols-1)
	sy := fit(best-cols, best+cols, by > 0 && by < rows-1)
	return sx, sy
}

func (bm *BlockMatcher) costVolume(l, r *imgproc.Image, w Window, hx, hy int) *costVolume {
	vol := &costVolume{w: w, width: l.Width, height: l.Height}
	vol.slices = make([][]float64, w.Cols()*w.Rows())

	var sumL, sumL2 *integral
	if bm.Type == NormXCorr {
		sumL = newIntegral(l.Width, l.Height, func(x, y int) float64 { return l.At(x, y) })
		sumL2 = newIntegral(l.Width, l.Height, func(x, y int) float64 { v := l.At(x, y); return v * v })
	}

	for k := range vol.slices {
		dx, dy := vol.offset(k)
		shifted := func(x, y int) (float64, bool) {
			rx, ry := x+dx, y+dy
			if rx < 0 || ry < 0 || rx >= r.Width || ry >= r.Height {
				return 0, false
			}
			return r.At(rx, ry), true
		}

		var sums []*integral
		switch bm.Type {
		case AbsDiff, SqDiff:
			sq := bm.Type == SqDiff
			sums = []*integral{newIntegral(l.Width, l.Height, func(x, y int) float64 {
				rv, ok := shifted(x, y)
				if !ok {
					return 0
				}
				d := l.At(x, y) - rv
				if sq {
					return d * d
				}
				return math.Abs(d)
			})}
		case NormXCorr:
			rv := func(x, y int) float64 { v, _ := shifted(x, y); return v }
			sums = []*integral{
				newIntegral(l.Width, l.Height, rv),
				newIntegral(l.Width, l.Height, func(x, y int) float64 { v := rv(x, y); return v * v }),
				newIntegral(l.Width, l.Height, func(x, y int) float64 { return l.At(x, y) * rv(x, y) }),
			}
		}

		slice := make([]float64, l.Width*l.Height)
		n := float64((2*hx + 1) * (2*hy + 1))
		for y := 0; y < l.Height; y++ {
			for x := 0; x < l.Width; x++ {
				x0, y0, x1, y1 := x-hx, y-hy, x+hx+1, y+hy+1
				if x0 < 0 || y0 < 0 || x1 > l.Width || y1 > l.Height ||
					x0+dx < 0 || y0+dy < 0 || x1+dx > r.Width || y1+dy > r.Height {
					slice[y*l.Width+x] = math.Inf(1)
					continue
				}
				if bm.Type != NormXCorr {
					slice[y*l.Width+x] = sums[0].sum(x0, y0, x1, y1)
					continue
				}
				sl, sl2 := sumL.sum(x0, y0, x1, y1), sumL2.sum(x0, y0, x1, y1)
				sr, sr2, slr := sums[0].sum(x0, y0, x1, y1), sums[1].sum(x0, y0, x1, y1), sums[2].sum(x0, y0, x1, y1)
				denom := (n*sl2 - sl*sl) * (n*sr2 - sr*sr)
				if denom <= 1e-12 {
					slice[y*l.Width+x] = 1
					continue
				}
				slice[y*l.Width+x] = 1 - (n*slr-sl*sr)/math.Sqrt(denom)
			}
		}
		if bm.CostBlur > 0 {
			slice = blurCost(slice, l.Width, l.Height, bm.CostBlur)
		}
		vol.slices[k] = slice
	}
	return vol
}

// blurCost averages each finite cost with the finite costs within radius.
func blurCost(c []float64, w, h, radius int) []float64 {
	out := make([]float64, len(c))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if math.IsInf(c[y*w+x], 1) {
				out[y*w+x] = c[y*w+x]
				continue
			}
			sum, n := 0.0, 0
			for j := max(y-radius, 0); j < min(y+radius+1, h); j++ {
				for i := max(x-radius, 0); i < min(x+radius+1, w); i++ {
					if v := c[j*w+i]; !math.IsInf(v, 1) {
						sum += v
						n++
					}
				}
			}
			out[y*w+x] = sum / float64(n)
		}
	}
	return out
}

// integral is a summed-area table with a zero row and column in front.
type integral struct {
	stride int
	s      []float64
}

func newIntegral(w, h int, f func(x, y int) float64) *integral {
	in := &integral{stride: w + 1, s: make([]float64, (w+1)*(h+1))}
	for y := 0; y < h; y++ {
		row := 0.0
		for x := 0; x < w; x++ {
			row += f(x, y)
			in.s[(y+1)*in.stride+x+1] = in.s[y*in.stride+x+1] + row
		}
	}
	return in
}

// sum returns the total over [x0,x1) x [y0,y1).
func (in *integral) sum(x0, y0, x1, y1 int) float64 {
	return in.s[y1*in.stride+x1] - in.s[y0*in.stride+x1] - in.s[y1*in.stride+x0] + in.s[y0*in.stride+x0]
}
