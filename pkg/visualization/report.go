package visualization

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/pkg/errors"

	"stereocorr/internal/models"
)

// RenderLevelReport writes an HTML page charting, per pyramid level, the
// valid coverage after fusion and the share of pixels filled from the
// coarser level.
func RenderLevelReport(w io.Writer, title string, reports []models.LevelReport) error {
	x := make([]string, 0, len(reports))
	coverage := make([]opts.BarData, 0, len(reports))
	filled := make([]opts.BarData, 0, len(reports))
	for _, r := range reports {
		x = append(x, fmt.Sprintf("L%d %dx%d", r.Level, r.Width, r.Height))
		coverage = append(coverage, opts.BarData{Value: percent(r.Valid, r.Width*r.Height)})
		filled = append(filled, opts.BarData{Value: percent(r.Filled, r.Width*r.Height)})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d levels", len(reports))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "% of level", Min: 0, Max: 100}),
	)
	bar.SetXAxis(x).
		AddSeries("valid", coverage, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("filled from coarser", filled)

	page := components.NewPage()
	page.AddCharts(bar)
	if err := page.Render(w); err != nil {
		return errors.Wrap(err, "rendering level report")
	}
	return nil
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(int(1000*float64(n)/float64(total)+0.5)) / 10
}
