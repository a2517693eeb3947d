package report

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/config"
)

var (
	ttcColor        = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	vulnerableColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	vehicleColor    = color.RGBA{R: 255, G: 127, B: 14, A: 255}
)

// TimelinePlot builds a TTC-vs-time plot of a simulation run with the
// imminent thresholds drawn as horizontal dashed lines.
func TimelinePlot(timeline []simulation.StepResult, constants config.SafetyConstants) (*plot.Plot, error) {
	pts := make(plotter.XYs, 0, len(timeline))
	for _, sr := range timeline {
		if sr.Result == nil {
			continue
		}
		pts = append(pts, plotter.XY{X: sr.Elapsed.Seconds(), Y: plottedTTC(sr.Result.MinTTC)})
	}
	if len(pts) == 0 {
		return nil, fmt.Errorf("timeline has no evaluated steps")
	}

	p := plot.New()
	last := timeline[len(timeline)-1]
	p.Title.Text = fmt.Sprintf("Minimum TTC (stop: %s)", last.Reason)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "TTC (s)"
	p.Y.Min = 0
	p.Y.Max = TTCCeiling

	ttc, err := plotter.NewLine(pts)
	if err != nil {
		return nil, fmt.Errorf("ttc line: %w", err)
	}
	ttc.Color = ttcColor
	ttc.Width = vg.Points(1.5)
	p.Add(ttc)
	p.Legend.Add("min TTC", ttc)

	for _, th := range []struct {
		name  string
		value float64
		color color.Color
	}{
		{"vulnerable threshold", constants.VulnerableTTCThreshold, vulnerableColor},
		{"vehicle threshold", constants.VehicleTTCThreshold, vehicleColor},
	} {
		v := th.value
		fn := plotter.NewFunction(func(float64) float64 { return v })
		fn.Color = th.color
		fn.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		fn.Width = vg.Points(1)
		p.Add(fn)
		p.Legend.Add(th.name, fn)
	}

	p.X.Min = 0
	p.X.Max = last.Elapsed.Seconds()
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

// WriteTimelinePNG writes the timeline plot as a PNG to w.
func WriteTimelinePNG(w io.Writer, timeline []simulation.StepResult, constants config.SafetyConstants) error {
	p, err := TimelinePlot(timeline, constants)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(10*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// SaveTimelinePNG writes the timeline plot to path.
func SaveTimelinePNG(path string, timeline []simulation.StepResult, constants config.SafetyConstants) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteTimelinePNG(f, timeline, constants); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
