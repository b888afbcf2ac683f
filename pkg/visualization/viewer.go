// Package visualization renders disparity maps as images and writes the
// per level debug output of the pyramid correlator.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"

	"stereocorr/pkg/disparity"
)

// Viewer renders one disparity map
type Viewer struct {
	// disp is the map being rendered
	disp *disparity.Map

	// valid component ranges, used to stretch the gray images
	minX, maxX float64
	minY, maxY float64

	// maxMag is the largest valid disparity magnitude
	maxMag float64
}

// NewViewer creates a viewer for m
func NewViewer(m *disparity.Map) *Viewer {
	v := &Viewer{disp: m}
	if r, ok := m.Range(m.Bounds()); ok {
		v.minX, v.maxX = r.Min.X, r.Max.X
		v.minY, v.maxY = r.Min.Y, r.Max.Y
	}

	mags := []float64{0}
	for _, p := range m.Pix {
		if p.Valid {
			mags = append(mags, math.Hypot(p.D.X, p.D.Y))
		}
	}
	v.maxMag = floats.Max(mags)
	return v
}

// ExtractComponent renders the horizontal ("x") or vertical ("y") disparity
// as a 16 bit gray image stretched over the valid range. Invalid pixels are
// black and valid pixels never are.
func (v *Viewer) ExtractComponent(axis string) (*image.Gray16, error) {
	var lo, hi float64
	var get func(disparity.Pixel) float64
	switch axis {
	case "x", "X":
		lo, hi = v.minX, v.maxX
		get = func(p disparity.Pixel) float64 { return p.D.X }
	case "y", "Y":
		lo, hi = v.minY, v.maxY
		get = func(p disparity.Pixel) float64 { return p.D.Y }
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x or y)", axis)
	}

	img := image.NewGray16(v.disp.Bounds())
	for y := 0; y < v.disp.Height; y++ {
		for x := 0; x < v.disp.Width; x++ {
			p := v.disp.At(x, y)
			if !p.Valid {
				continue
			}
			t := 0.5
			if hi > lo {
				t = (get(p) - lo) / (hi - lo)
			}
			img.SetGray16(x, y, color.Gray16{Y: uint16(1 + math.Round(t*65534))})
		}
	}
	return img, nil
}

// ColorImage renders direction as hue and magnitude as brightness.
// Invalid pixels are black.
func (v *Viewer) ColorImage() *image.RGBA {
	img := image.NewRGBA(v.disp.Bounds())
	for y := 0; y < v.disp.Height; y++ {
		for x := 0; x < v.disp.Width; x++ {
			p := v.disp.At(x, y)
			if !p.Valid {
				img.Set(x, y, color.Black)
				continue
			}
			hue := math.Atan2(p.D.Y, p.D.X) * 180 / math.Pi
			if hue < 0 {
				hue += 360
			}
			val := 1.0
			if v.maxMag > 0 {
				val = 0.25 + 0.75*math.Hypot(p.D.X, p.D.Y)/v.maxMag
			}
			r, g, b := colorful.Hsv(hue, 1, val).Clamped().RGB255()
			img.Set(x, y, color.RGBA{R: r, G: g, B: b, A: 255})
		}
	}
	return img
}

// SaveImage saves an image as PNG
func SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return errors.Wrapf(err, "encoding %s", filename)
	}
	return nil
}

// SaveComponents writes <prefix>-H.png and <prefix>-V.png
func (v *Viewer) SaveComponents(prefix string) error {
	for _, c := range []struct{ axis, suffix string }{{"x", "H"}, {"y", "V"}} {
		img, err := v.ExtractComponent(c.axis)
		if err != nil {
			return err
		}
		if err := SaveImage(img, fmt.Sprintf("%s-%s.png", prefix, c.suffix)); err != nil {
			return err
		}
	}
	return nil
}
