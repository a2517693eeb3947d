package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/monitoring"
	"github.com/banshee-data/aeb/internal/security"
	"github.com/banshee-data/aeb/internal/version"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("aeb", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { printUsage(stderr) }
	logFormat := fs.String("log-format", "console", "Log format: json or console")
	logLevel := fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	logger, err := monitoring.NewLogger(*logFormat, *logLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}
	monitoring.SetLogger(logger)
	defer func() {
		_ = logger.Sync()
		monitoring.SetLogger(nil)
	}()

	if fs.NArg() < 1 {
		printUsage(stderr)
		return exitUsage
	}

	command, rest := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "validate":
		return runValidate(ctx, rest, stdout, stderr)
	case "evaluate":
		return runEvaluate(ctx, rest, stdin, stdout, stderr)
	case "simulate":
		return runSimulate(ctx, rest, stdout, stderr)
	case "version":
		fmt.Fprintf(stdout, "aeb version %s\n", version.Get())
		return exitOK
	case "help":
		printUsage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", command)
		printUsage(stderr)
		return exitUsage
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `aeb - autonomous emergency braking decision core

Usage: aeb [--log-format console|json] [--log-level warn] <command> [options]

Commands:
  validate   Run the Monte Carlo requirement validation and print the report
  evaluate   Evaluate one scene (JSON array or frame) locally or on a server
  simulate   Animate a builtin or random scenario until it stops
  version    Show version
  help       Show this help message

Examples:
  # Validate every requirement with a fixed seed, writing a dashboard
  aeb validate --trials 5000 --seed 42 --html validation.html

  # Evaluate a scene from a file against a running aebd
  aeb evaluate --server http://localhost:8080 scene.json

  # Animate the crossing pedestrian and plot TTC over time
  aeb simulate --scenario pedestrian_crossing --png crossing.png

validate exits 1 when any requirement fails.`)
}

// loadConstants returns the defaults, or the constants of the config file at
// path when one is given.
func loadConstants(path string) (config.SafetyConstants, error) {
	if path == "" {
		return config.DefaultConstants(), nil
	}
	cfg, err := config.LoadSafetyConfig(path)
	if err != nil {
		return config.SafetyConstants{}, err
	}
	return cfg.Constants(), nil
}

// writeOutput creates path, which must sit under the working or temp
// directory, and fills it with write.
func writeOutput(path string, write func(io.Writer) error) (err error) {
	if err := security.ValidateOutputPath(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close %s: %w", path, cerr)
		}
	}()
	return write(f)
}
