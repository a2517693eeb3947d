package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/config"
)

// AssetsHost is where rendered pages load the echarts scripts from.
var AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// TTCCeiling is the plotted value for an infinite TTC, in seconds.
const TTCCeiling = 10.0

func plottedTTC(t aeb.TTC) float64 {
	if t.IsInf() || t.Seconds() > TTCCeiling {
		return TTCCeiling
	}
	return t.Seconds()
}

// ValidationDashboard renders an HTML page comparing each requirement's
// observed value against its target, plus the latency distribution.
func ValidationDashboard(w io.Writer, r *simulation.ValidationReport) error {
	if r == nil || len(r.Requirements) == 0 {
		return fmt.Errorf("validation report has no requirements")
	}

	names := r.Names()
	observed := make([]opts.BarData, 0, len(names))
	targets := make([]opts.BarData, 0, len(names))
	for _, n := range names {
		req := r.Requirements[n]
		color := "#2e7d32"
		if !req.Passed {
			color = "#c62828"
		}
		observed = append(observed, opts.BarData{
			Name:      n,
			Value:     req.Observed,
			ItemStyle: &opts.ItemStyle{Color: color},
		})
		targets = append(targets, opts.BarData{Name: n, Value: req.Target})
	}

	verdict := "PASS"
	if !r.Passed() {
		verdict = "FAIL"
	}
	reqs := charts.NewBar()
	reqs.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "AEB Requirement Validation", Width: "100%", Height: "560px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Requirements: %s", verdict),
			Subtitle: fmt.Sprintf("run=%s seed=%d trials=%d", r.ID, r.Seed, r.Trials),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30, Interval: "0"}}),
	)
	reqs.SetXAxis(names).
		AddSeries("observed", observed, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("target", targets)

	ms := func(d time.Duration) float64 { return float64(d) / float64(time.Millisecond) }
	lat := charts.NewBar()
	lat.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "360px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Decision latency (ms)", Subtitle: fmt.Sprintf("samples=%d", r.Latency.Samples)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	lat.SetXAxis([]string{"mean", "p50", "p95", "p99", "max"}).
		AddSeries("latency", []opts.BarData{
			{Value: ms(r.Latency.Mean)},
			{Value: ms(r.Latency.P50)},
			{Value: ms(r.Latency.P95)},
			{Value: ms(r.Latency.P99)},
			{Value: ms(r.Latency.Max)},
		}, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(reqs, lat)
	return page.Render(w)
}

// TimelineChart renders an HTML line chart of minimum TTC over a simulation
// run, with the imminent thresholds marked and the action taken at every
// tick.
func TimelineChart(w io.Writer, timeline []simulation.StepResult, constants config.SafetyConstants) error {
	if len(timeline) == 0 {
		return fmt.Errorf("timeline is empty")
	}

	xs := make([]string, 0, len(timeline))
	ttc := make([]opts.LineData, 0, len(timeline))
	severity := make([]opts.LineData, 0, len(timeline))
	for _, sr := range timeline {
		xs = append(xs, fmt.Sprintf("%.2f", sr.Elapsed.Seconds()))
		if sr.Result == nil {
			ttc = append(ttc, opts.LineData{Value: "-"})
			severity = append(severity, opts.LineData{Value: "-"})
			continue
		}
		ttc = append(ttc, opts.LineData{Value: plottedTTC(sr.Result.MinTTC), Name: string(sr.Result.Action)})
		severity = append(severity, opts.LineData{Value: sr.Result.Action.Severity(), Name: string(sr.Result.Action)})
	}

	last := timeline[len(timeline)-1]
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "AEB Simulation Timeline", Width: "100%", Height: "560px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Minimum TTC",
			Subtitle: fmt.Sprintf("steps=%d elapsed=%s stop=%s", last.Step, last.Elapsed, last.Reason),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Right: "10%"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "t (s)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "TTC (s)", Min: 0, Max: TTCCeiling}),
	)
	line.SetXAxis(xs).
		AddSeries("min TTC", ttc,
			charts.WithMarkLineNameYAxisItemOpts(
				opts.MarkLineNameYAxisItem{Name: "vulnerable", YAxis: constants.VulnerableTTCThreshold},
				opts.MarkLineNameYAxisItem{Name: "vehicle", YAxis: constants.VehicleTTCThreshold},
			),
		).
		AddSeries("action severity", severity,
			charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
		)

	page := components.NewPage()
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(line)
	return page.Render(w)
}
