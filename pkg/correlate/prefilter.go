package correlate

import (
	"strings"

	"github.com/pkg/errors"

	"stereocorr/pkg/imgproc"
)

// PreFilter is applied to both patches before any cost is computed. It
// must not modify its input.
type PreFilter func(*imgproc.Image) *imgproc.Image

// NullFilter passes the patch through unchanged.
func NullFilter(img *imgproc.Image) *imgproc.Image { return img }

// LaplacianOfGaussian removes the local mean and most illumination
// differences between the two images.
func LaplacianOfGaussian(sigma float64) PreFilter {
	return func(img *imgproc.Image) *imgproc.Image {
		return imgproc.Laplacian(imgproc.GaussianBlur(img, sigma))
	}
}

// SignOfLaplacian keeps only the sign of the Laplacian of Gaussian, which
// makes matching insensitive to contrast.
func SignOfLaplacian(sigma float64) PreFilter {
	lapl := LaplacianOfGaussian(sigma)
	return func(img *imgproc.Image) *imgproc.Image {
		out := lapl(img)
		for i, v := range out.Pix {
			switch {
			case v > 0:
				out.Pix[i] = 1
			case v < 0:
				out.Pix[i] = -1
			}
		}
		return out
	}
}

// PreFilterByName returns the pre-filter for a config name.
func PreFilterByName(name string, sigma float64) (PreFilter, error) {
	switch strings.ToLower(name) {
	case "", "none", "null":
		return NullFilter, nil
	case "log":
		return LaplacianOfGaussian(sigma), nil
	case "slog":
		return SignOfLaplacian(sigma), nil
	}
	return nil, errors.Errorf("unknown pre-filter %q", name)
}
