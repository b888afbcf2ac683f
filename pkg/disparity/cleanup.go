package disparity

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// CleanupParams controls outlier rejection. A valid pixel survives when at
// least MinMatchFraction of the valid pixels in its window agree with it to
// within Threshold on both axes.
type CleanupParams struct {
	HalfWindowX      int     `yaml:"halfWindowX"`
	HalfWindowY      int     `yaml:"halfWindowY"`
	Threshold        float64 `yaml:"threshold"`
	MinMatchFraction float64 `yaml:"minMatchFraction"`
}

// DefaultCleanup returns the settings that work well on the lower
// resolution pyramid levels.
func DefaultCleanup() CleanupParams {
	return CleanupParams{
		HalfWindowX:      5,
		HalfWindowY:      5,
		Threshold:        3.0,
		MinMatchFraction: 0.5,
	}
}

// CleanUp returns a copy of m with locally inconsistent disparities
// invalidated. Pixels with no valid neighbour in the window are rejected.
func CleanUp(m *Map, p CleanupParams) *Map {
	out := m.Clone()
	for y := 0; y < m.Height; y++ {
		y0, y1 := max(y-p.HalfWindowY, 0), min(y+p.HalfWindowY+1, m.Height)
		for x := 0; x < m.Width; x++ {
			center := m.Pix[y*m.Width+x]
			if !center.Valid {
				continue
			}
			x0, x1 := max(x-p.HalfWindowX, 0), min(x+p.HalfWindowX+1, m.Width)

			total, matched := 0, 0
			for j := y0; j < y1; j++ {
				for i := x0; i < x1; i++ {
					if i == x && j == y {
						continue
					}
					q := m.Pix[j*m.Width+i]
					if !q.Valid {
						continue
					}
					total++
					if math.Abs(q.D.X-center.D.X) <= p.Threshold && math.Abs(q.D.Y-center.D.Y) <= p.Threshold {
						matched++
					}
				}
			}
			if total == 0 || float64(matched)/float64(total) < p.MinMatchFraction {
				out.Invalidate(x, y)
			}
		}
	}
	return out
}

// Stats summarises the valid pixels of a map.
type Stats struct {
	Valid    int
	Coverage float64
	MeanX    float64
	MeanY    float64
	StdDevX  float64
	StdDevY  float64
}

// ComputeStats returns the coverage and per-axis mean and standard
// deviation of the valid disparities.
func ComputeStats(m *Map) Stats {
	var xs, ys []float64
	for _, p := range m.Pix {
		if p.Valid {
			xs = append(xs, p.D.X)
			ys = append(ys, p.D.Y)
		}
	}
	s := Stats{Valid: len(xs)}
	if len(m.Pix) > 0 {
		s.Coverage = float64(len(xs)) / float64(len(m.Pix))
	}
	if len(xs) == 0 {
		return s
	}
	s.MeanX, s.StdDevX = stat.MeanStdDev(xs, nil)
	s.MeanY, s.StdDevY = stat.MeanStdDev(ys, nil)
	if len(xs) == 1 {
		s.StdDevX, s.StdDevY = 0, 0
	}
	return s
}
