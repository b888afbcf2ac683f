package visualization

import (
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"stereocorr/internal/models"
	"stereocorr/pkg/disparity"
)

// histogramBins is the number of bins of the disparity histogram
const histogramBins = 40

// DebugWriter writes the disparity images, a block overlay and a histogram
// of every pyramid level it is given.
type DebugWriter struct {
	// Dir is the output directory, created on first use
	Dir string

	// Prefix starts every file name
	Prefix string

	// FullSize is the full resolution image size the overlays are scaled
	// up to; zero keeps the level size
	FullSize image.Point
}

// NewDebugWriter creates a writer for dir and prefix
func NewDebugWriter(dir, prefix string, fullSize image.Point) *DebugWriter {
	return &DebugWriter{Dir: dir, Prefix: prefix, FullSize: fullSize}
}

func (w *DebugWriter) path(kind string, level int) string {
	return filepath.Join(w.Dir, fmt.Sprintf("%s-%s-%d.png", w.Prefix, kind, level))
}

// WriteLevel writes <prefix>-H-<n>.png, -V-<n>.png, -blocks-<n>.png and,
// when the level has valid pixels, -hist-<n>.png.
func (w *DebugWriter) WriteLevel(level int, m *disparity.Map, regions []models.Region) error {
	if err := os.MkdirAll(w.Dir, 0755); err != nil {
		return errors.Wrap(err, "creating debug directory")
	}

	v := NewViewer(m)
	for _, c := range []struct{ axis, kind string }{{"x", "H"}, {"y", "V"}} {
		img, err := v.ExtractComponent(c.axis)
		if err != nil {
			return err
		}
		if err := SaveImage(img, w.path(c.kind, level)); err != nil {
			return err
		}
	}

	if err := SaveImage(w.blockOverlay(v, regions), w.path("blocks", level)); err != nil {
		return err
	}
	if m.CountValid() == 0 {
		return nil
	}
	return w.histogram(m, level)
}

// blockOverlay draws the region boxes and their search ranges over the
// colour rendering of the level.
func (w *DebugWriter) blockOverlay(v *Viewer, regions []models.Region) image.Image {
	dc := gg.NewContextForImage(v.ColorImage())
	dc.SetLineWidth(1)
	for _, r := range regions {
		dc.SetRGB(1, 1, 1)
		dc.DrawRectangle(float64(r.Box.Min.X)+0.5, float64(r.Box.Min.Y)+0.5, float64(r.Box.Dx()-1), float64(r.Box.Dy()-1))
		dc.Stroke()
		if r.Box.Dx() >= 48 && r.Box.Dy() >= 16 {
			dc.SetRGB(1, 1, 0)
			dc.DrawString(fmt.Sprintf("%.0f:%.0f", r.Search.Min.X, r.Search.Max.X), float64(r.Box.Min.X)+3, float64(r.Box.Min.Y)+13)
		}
	}

	img := dc.Image()
	if w.FullSize.X > 0 && w.FullSize.Y > 0 && img.Bounds().Size() != w.FullSize {
		img = resize.Resize(uint(w.FullSize.X), uint(w.FullSize.Y), img, resize.NearestNeighbor)
	}
	return img
}

// histogram plots the distribution of the valid horizontal disparities.
func (w *DebugWriter) histogram(m *disparity.Map, level int) error {
	vals := make(plotter.Values, 0, m.CountValid())
	for _, p := range m.Pix {
		if p.Valid {
			vals = append(vals, p.D.X)
		}
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Horizontal disparity, level %d", level)
	p.X.Label.Text = "disparity (level pixels)"
	p.Y.Label.Text = "pixels"

	h, err := plotter.NewHist(vals, histogramBins)
	if err != nil {
		return errors.Wrap(err, "building histogram")
	}
	p.Add(h)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, w.path("hist", level)); err != nil {
		return errors.Wrap(err, "saving histogram")
	}
	return nil
}
