package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/l1sensing"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/httputil"
	"github.com/banshee-data/aeb/internal/units"
)

func runEvaluate(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Safety configuration JSON file")
	weather := fs.String("weather", "", "Weather condition; overrides a frame's weather")
	egoKPH := fs.Float64("ego-kph", 0, "Ego speed in km/h (default from configuration)")
	seed := fs.Uint64("seed", 0, "Seed the sensor model for a reproducible result")
	server := fs.String("server", "", "Evaluate on a running aebd at this base URL instead of locally")
	timeout := fs.Duration("timeout", 10*time.Second, "Request timeout with --server")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() > 1 {
		fmt.Fprintln(stderr, "Error: evaluate takes at most one scene file")
		return exitUsage
	}

	data, err := readScene(fs.Arg(0), stdin)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}

	if *server != "" {
		return evaluateRemote(ctx, *server, *weather, *timeout, data, stdout, stderr)
	}

	constants, err := loadConstants(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	var frame aeb.Frame
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		frame, err = aeb.ParseFrame(trimmed)
	} else {
		frame.Objects, err = aeb.ParseScene(trimmed)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	if *weather != "" {
		w, err := aeb.ParseWeather(*weather)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitUsage
		}
		frame.Weather = w
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
	sys := pipeline.NewSystem(constants, opts...)
	if frame.Weather != "" {
		if err := sys.SetWeather(frame.Weather); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
	}

	res, err := sys.ProcessScenario(frame.Objects)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	return exitOK
}

// readScene reads the scene from path, or from stdin when path is empty or
// "-".
func readScene(path string, stdin io.Reader) ([]byte, error) {
	r := stdin
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open scene: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, httputil.MaxSceneBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read scene: %w", err)
	}
	if len(data) > httputil.MaxSceneBytes {
		return nil, fmt.Errorf("scene larger than %d bytes", httputil.MaxSceneBytes)
	}
	return data, nil
}

func evaluateRemote(ctx context.Context, server, weather string, timeout time.Duration, data []byte, stdout, stderr io.Writer) int {
	body := data
	if weather != "" {
		// Wrap a bare scene in a frame so the server applies the weather.
		if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
			framed, err := json.Marshal(struct {
				Weather string          `json:"weather"`
				Objects json.RawMessage `json:"objects"`
			}{weather, trimmed})
			if err != nil {
				fmt.Fprintf(stderr, "Error: %v\n", err)
				return exitFailure
			}
			body = framed
		}
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var res json.RawMessage
	url := strings.TrimRight(server, "/") + "/api/evaluate?name=cli"
	if err := httputil.PostJSON(ctx, http.DefaultClient, url, body, &res); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitFailure
	}
	var out bytes.Buffer
	if err := json.Indent(&out, res, "", "  "); err != nil {
		fmt.Fprintf(stderr, "Error: malformed response: %v\n", err)
		return exitFailure
	}
	out.WriteByte('\n')
	_, _ = out.WriteTo(stdout)
	return exitOK
}
