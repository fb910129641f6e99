package registration

import (
	"fmt"
	"image/color"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveResidualPlot renders a per-landmark bar chart of the residual
// distances to a PNG file, with the mean error drawn as a horizontal
// reference line. Useful when deciding which landmark to re-digitize
// after a poor registration.
func SaveResidualPlot(result *Result, path string) error {
	p, err := buildResidualPlot(result)
	if err != nil {
		return err
	}
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("saving residual plot: %w", err)
	}
	return nil
}

// WriteResidualPlotPNG renders the residual bar chart as PNG to w.
func WriteResidualPlotPNG(result *Result, w io.Writer) error {
	p, err := buildResidualPlot(result)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("rendering residual plot: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("writing residual plot: %w", err)
	}
	return nil
}

func buildResidualPlot(result *Result) (*plot.Plot, error) {
	if result == nil || len(result.Residuals) == 0 {
		return nil, fmt.Errorf("no residuals to plot")
	}

	p := plot.New()
	p.Title.Text = "Registration residuals by landmark"
	p.Y.Label.Text = "residual distance"
	p.Y.Min = 0

	values := make(plotter.Values, len(result.Residuals))
	labels := make([]string, len(result.Residuals))
	for i, res := range result.Residuals {
		values[i] = res.Distance
		labels[i] = res.Name
		if labels[i] == "" {
			labels[i] = fmt.Sprintf("#%d", i)
		}
	}

	bars, err := plotter.NewBarChart(values, vg.Points(24))
	if err != nil {
		return nil, fmt.Errorf("building residual bars: %w", err)
	}
	bars.LineStyle.Width = 0
	bars.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	p.Add(bars)
	p.NominalX(labels...)

	mean := plotter.XYs{
		{X: -0.5, Y: result.Error},
		{X: float64(len(result.Residuals)) - 0.5, Y: result.Error},
	}
	meanLine, err := plotter.NewLine(mean)
	if err != nil {
		return nil, fmt.Errorf("building mean line: %w", err)
	}
	meanLine.Width = vg.Points(1)
	meanLine.Color = color.RGBA{R: 200, G: 60, B: 60, A: 255}
	meanLine.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
	p.Add(meanLine)
	p.Legend.Add("mean error", meanLine)
	p.Legend.Top = true

	return p, nil
}
