package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/report"
)

func runValidate(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	trials := fs.Int("trials", 1000, "Monte Carlo trials per requirement probe")
	seed := fs.Uint64("seed", 0, "Random seed; 0 picks one and prints it")
	weather := fs.String("weather", "", "Comma-separated weather conditions to check (default all)")
	configPath := fs.String("config", "", "Safety configuration JSON file")
	htmlPath := fs.String("html", "", "Write an HTML dashboard to this path")
	asJSON := fs.Bool("json", false, "Print the report as JSON")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *trials <= 0 {
		fmt.Fprintln(stderr, "Error: --trials must be positive")
		return exitUsage
	}

	constants, err := loadConstants(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	weathers, err := parseWeatherList(*weather)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	rep, err := simulation.Validate(ctx, constants, simulation.ValidationOptions{
		Trials:   *trials,
		Seed:     *seed,
		Weathers: weathers,
	})
	if err != nil {
		fmt.Fprintf(stderr, "Validation failed to run: %v\n", err)
		return exitFailure
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			*simulation.ValidationReport
			Passed bool `json:"passed"`
		}{rep, rep.Passed()}); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	} else {
		printReport(stdout, rep)
	}

	if *htmlPath != "" {
		if err := writeOutput(*htmlPath, func(w io.Writer) error {
			return report.ValidationDashboard(w, rep)
		}); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}

	if !rep.Passed() {
		return exitFailure
	}
	return exitOK
}

func parseWeatherList(s string) ([]aeb.WeatherCondition, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []aeb.WeatherCondition
	for _, part := range strings.Split(s, ",") {
		w, err := aeb.ParseWeather(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, nil
}

func printReport(w io.Writer, rep *simulation.ValidationReport) {
	fmt.Fprintf(w, "Validation run %s (seed %d, %d trials per probe)\n\n", rep.ID, rep.Seed, rep.Trials)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REQUIREMENT\tTARGET\tOBSERVED\tSAMPLES\tRESULT")
	for _, req := range rep.Ordered() {
		result := "PASS"
		if !req.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s %.4f\t%.4f\t%d\t%s\n", req.Name, req.Comparator, req.Target, req.Observed, req.Samples, result)
	}
	_ = tw.Flush()

	l := rep.Latency
	fmt.Fprintf(w, "\nDecision latency over %d samples: mean %s, p95 %s, p99 %s, max %s\n",
		l.Samples, l.Mean, l.P95, l.P99, l.Max)
	if rep.Passed() {
		fmt.Fprintln(w, "Overall: PASS")
	} else {
		fmt.Fprintln(w, "Overall: FAIL")
	}
}
