package query

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// PlotHourly renders the hourly counts of res as a bar chart. The image
// format follows the extension of path (.png, .svg, .pdf).
func PlotHourly(res *Result, path string) error {
	if len(res.Hourly) == 0 {
		return fmt.Errorf("plot hourly: no buckets")
	}

	values := make(plotter.Values, len(res.Hourly))
	names := make([]string, len(res.Hourly))
	for i, h := range res.Hourly {
		values[i] = float64(h.Count)
		names[i] = h.Hour.Format("15:04")
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Unique vehicles per hour, %s", res.Start.Format("2006-01-02"))
	p.Y.Label.Text = "vehicles"
	p.Y.Min = 0

	bars, err := plotter.NewBarChart(values, vg.Points(18))
	if err != nil {
		return fmt.Errorf("plot hourly: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)

	width := vg.Length(len(values)) * 0.6 * vg.Inch
	if width < 6*vg.Inch {
		width = 6 * vg.Inch
	}
	if err := p.Save(width, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot %s: %w", path, err)
	}
	return nil
}
