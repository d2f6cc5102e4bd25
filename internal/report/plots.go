// Package report renders evaluation artifacts as figures and terminal charts.
// Every renderer treats empty input as a no-op.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/tensorplex-labs/molgan/internal/classifier"
	"github.com/tensorplex-labs/molgan/internal/gan"
	"github.com/tensorplex-labs/molgan/internal/projection"
)

const (
	figureSide = 6 * vg.Inch
	barWidth   = 8
)

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create figure directory: %w", err)
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Scatter plots the points of a single projection method, real and synthetic
// in separate series, after min-max scaling both axes to [0,1]. It reports
// whether a file was written.
func Scatter(path, title string, points []projection.Point) (bool, error) {
	if len(points) == 0 {
		return false, nil
	}
	positives, synthetic := scatterSeries(points)

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "component 1 (scaled)"
	p.Y.Label.Text = "component 2 (scaled)"

	var series []interface{}
	if len(positives) > 0 {
		series = append(series, string(projection.Real), positives)
	}
	if len(synthetic) > 0 {
		series = append(series, string(projection.Synthetic), synthetic)
	}
	if err := plotutil.AddScatters(p, series...); err != nil {
		return false, fmt.Errorf("add scatters: %w", err)
	}
	if err := save(p, figureSide, figureSide, path); err != nil {
		return false, err
	}
	return true, nil
}

// scatterSeries scales points to the unit square and splits them by provenance.
func scatterSeries(points []projection.Point) (positives, synthetic plotter.XYs) {
	for _, pt := range projection.ScalePoints(points) {
		xy := plotter.XY{X: pt.X, Y: pt.Y}
		if pt.Provenance == projection.Synthetic {
			synthetic = append(synthetic, xy)
		} else {
			positives = append(positives, xy)
		}
	}
	return positives, synthetic
}

// ImportanceChart draws a bar per feature in the given order.
func ImportanceChart(path string, features []classifier.FeatureImportance) (bool, error) {
	if len(features) == 0 {
		return false, nil
	}

	values := make(plotter.Values, len(features))
	names := make([]string, len(features))
	for i, f := range features {
		values[i] = f.Importance
		names[i] = fmt.Sprintf("%d", f.Bit)
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Top %d fingerprint bits by importance", len(features))
	p.X.Label.Text = "bit"
	p.Y.Label.Text = "importance"

	bars, err := plotter.NewBarChart(values, vg.Points(barWidth))
	if err != nil {
		return false, fmt.Errorf("bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)

	if err := save(p, 10*vg.Inch, 4*vg.Inch, path); err != nil {
		return false, err
	}
	return true, nil
}

// LossCurve plots per-epoch discriminator and generator losses.
func LossCurve(path string, epochs []gan.EpochStats) (bool, error) {
	if len(epochs) == 0 {
		return false, nil
	}

	d := make(plotter.XYs, len(epochs))
	g := make(plotter.XYs, len(epochs))
	for i, e := range epochs {
		d[i] = plotter.XY{X: float64(e.Epoch), Y: e.MeanDLoss}
		g[i] = plotter.XY{X: float64(e.Epoch), Y: e.MeanGLoss}
	}

	p := plot.New()
	p.Title.Text = "Adversarial training loss"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "loss"
	if err := plotutil.AddLinePoints(p, "discriminator", d, "generator", g); err != nil {
		return false, fmt.Errorf("add lines: %w", err)
	}
	if err := save(p, 8*vg.Inch, 4*vg.Inch, path); err != nil {
		return false, err
	}
	return true, nil
}
