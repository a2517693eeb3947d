package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/banshee-data/aeb/internal/aeb/l1sensing"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/api"
	"github.com/banshee-data/aeb/internal/report"
	"github.com/banshee-data/aeb/internal/security"
	"github.com/banshee-data/aeb/internal/timeutil"
	"github.com/banshee-data/aeb/internal/units"
)

func runSimulate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	scenario := fs.String("scenario", "pedestrian_crossing", "Builtin scenario name, or random")
	seed := fs.Uint64("seed", 0, "Seed for the random scenario and the sensor model")
	configPath := fs.String("config", "", "Safety configuration JSON file")
	egoKPH := fs.Float64("ego-kph", 0, "Ego speed in km/h (default from configuration)")
	realtime := fs.Bool("realtime", false, "Pace ticks in wall-clock time")
	quiet := fs.Bool("quiet", false, "Only print the final outcome")
	pngPath := fs.String("png", "", "Write a TTC timeline PNG to this path")
	htmlPath := fs.String("html", "", "Write an interactive TTC timeline to this path")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	constants, err := loadConstants(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	objects, err := api.ResolveScenario(constants, *scenario, *seed)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v (builtins: %v)\n", err, simulation.BuiltinNames())
		return exitUsage
	}
	for _, p := range []string{*pngPath, *htmlPath} {
		if p == "" {
			continue
		}
		if err := security.ValidateOutputPath(p); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
	}

	var opts []pipeline.Option
	if *seed != 0 {
		opts = append(opts, pipeline.WithRandomSource(l1sensing.NewSeededSource(*seed)))
	}
	if *egoKPH > 0 {
		mps, err := units.ToMPS(*egoKPH, units.KPH)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		opts = append(opts, pipeline.WithEgoSpeed(mps))
	}
	runner := simulation.NewRunner(pipeline.NewSystem(constants, opts...), timeutil.RealClock{})

	sim, err := runner.Animate(*scenario, objects)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "Simulation %s: %s, %d object(s)\n", sim.ID(), *scenario, len(objects))

	last, err := sim.Run(ctx, simulation.RunOptions{Realtime: *realtime}, func(sr simulation.StepResult) error {
		if *quiet || sr.Result == nil {
			return nil
		}
		fmt.Fprintf(stdout, "t=%5.2fs  %-15s  state=%-8s  min_ttc=%s\n",
			sr.Elapsed.Seconds(), sr.Result.Action, sr.Result.State, sr.Result.MinTTC)
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	fmt.Fprintf(stdout, "Stopped: %s after %d step(s), %s simulated\n", last.Reason, last.Step, last.Elapsed)

	m := runner.Metrics()
	fmt.Fprintf(stdout, "Threat scenarios: %d  Brake events: %d\n", m.ThreatScenarios, m.BrakeEvents)

	timeline := sim.Timeline()
	if *pngPath != "" {
		if err := report.SaveTimelinePNG(*pngPath, timeline, constants); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	if *htmlPath != "" {
		if err := writeOutput(*htmlPath, func(w io.Writer) error {
			return report.TimelineChart(w, timeline, constants)
		}); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}
	return exitOK
}
