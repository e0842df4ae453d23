// Package chart renders per-decoder accuracy and latency curves.
package chart

import (
	"fmt"
	"path/filepath"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/signalnine/qrscale/internal/result"
)

const (
	width  = 6 * vg.Inch
	height = 4 * vg.Inch
)

// Render writes accuracy.png and time.png for one decoder's stats into dir,
// next to a stats.json holding the plotted series.
func Render(dir, decoder string, stats []result.AggregateStat) error {
	if err := result.WriteStats(dir, stats); err != nil {
		return err
	}
	if err := renderLine(
		filepath.Join(dir, result.AccuracyPlot),
		fmt.Sprintf("%s: success rate vs scale", decoder),
		"success rate",
		series(stats, func(s result.AggregateStat) float64 { return s.SuccessRate }),
		&axisRange{0, 1.05},
	); err != nil {
		return errors.Wrap(err, "accuracy chart")
	}
	if err := renderLine(
		filepath.Join(dir, result.TimePlot),
		fmt.Sprintf("%s: mean decode time vs scale", decoder),
		"mean time (ms)",
		series(stats, func(s result.AggregateStat) float64 { return s.MeanTimeMs }),
		nil,
	); err != nil {
		return errors.Wrap(err, "time chart")
	}
	return nil
}

type axisRange struct {
	min, max float64
}

func series(stats []result.AggregateStat, y func(result.AggregateStat) float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(stats))
	for _, s := range stats {
		if s.SampleCount == 0 {
			continue
		}
		xys = append(xys, plotter.XY{X: s.Scale, Y: y(s)})
	}
	return xys
}

func renderLine(path, title, yLabel string, xys plotter.XYs, yRange *axisRange) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "scale factor"
	p.Y.Label.Text = yLabel
	p.Add(plotter.NewGrid())

	if len(xys) > 0 {
		line, points, err := plotter.NewLinePoints(xys)
		if err != nil {
			return err
		}
		p.Add(line, points)
	}
	if yRange != nil {
		p.Y.Min, p.Y.Max = yRange.min, yRange.max
	}
	return p.Save(width, height, path)
}
