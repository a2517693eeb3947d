package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/api"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/db"
	"github.com/banshee-data/aeb/internal/monitoring"
	"github.com/banshee-data/aeb/internal/serialmux"
	"github.com/banshee-data/aeb/internal/timeutil"
	"github.com/banshee-data/aeb/internal/units"
)

type daemonConfig struct {
	DBPath         string
	ConfigPath     string
	EgoKPH         float64
	SerialPort     string
	BaudRate       int
	FrameRate      int
	ReplayFile     string
	ReplayInterval time.Duration
	MaxTrials      int
	Clock          timeutil.Clock
}

// daemon holds everything aebd wires together. feed is nil when no
// perception unit is attached.
type daemon struct {
	store   *db.DB
	runner  *simulation.Runner
	health  *api.HealthBridge
	mux     serialmux.SerialMuxInterface
	feed    *serialmux.Feed
	handler http.Handler
}

func newDaemon(ctx context.Context, cfg daemonConfig) (_ *daemon, err error) {
	constants := config.DefaultConstants()
	if cfg.ConfigPath != "" {
		sc, err := config.LoadSafetyConfig(cfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		constants = sc.Constants()
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}

	d := &daemon{health: api.NewHealthBridge()}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	opts := []pipeline.Option{pipeline.WithObserver(d.health), pipeline.WithClock(cfg.Clock)}
	if cfg.DBPath != "" {
		d.store, err = db.NewDB(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		opts = append(opts, pipeline.WithEventSink(d.store))
	}
	if cfg.EgoKPH > 0 {
		mps, err := units.ToMPS(cfg.EgoKPH, units.KPH)
		if err != nil {
			return nil, err
		}
		opts = append(opts, pipeline.WithEgoSpeed(mps))
	}
	d.runner = simulation.NewRunner(pipeline.NewSystem(constants, opts...), cfg.Clock)

	switch {
	case cfg.ReplayFile != "":
		lines, err := readReplayLines(cfg.ReplayFile)
		if err != nil {
			return nil, err
		}
		d.mux = serialmux.NewReplaySerialMux(ctx, lines, cfg.ReplayInterval)
	case cfg.SerialPort != "":
		m, err := serialmux.NewRealSerialMux(cfg.SerialPort, serialmux.PortOptions{BaudRate: cfg.BaudRate})
		if err != nil {
			return nil, fmt.Errorf("failed to open perception unit: %w", err)
		}
		d.mux = m
	default:
		d.mux = serialmux.NewDisabledSerialMux()
	}

	var feed *serialmux.Feed
	if cfg.ReplayFile != "" || cfg.SerialPort != "" {
		if err := d.mux.Initialize(serialmux.FeedOptions{RateHz: cfg.FrameRate, Now: cfg.Clock.Now}); err != nil {
			return nil, fmt.Errorf("failed to initialise perception unit: %w", err)
		}
		feed = serialmux.NewFeed(d.mux, d.handleFrame)
		d.feed = feed
	}

	server := api.NewServer(d.runner, api.Options{
		Store:               d.store,
		Feed:                feed,
		Clock:               cfg.Clock,
		MaxValidationTrials: cfg.MaxTrials,
	})
	mux := server.ServeMux()
	d.mux.AttachAdminRoutes(mux)
	if d.store != nil {
		if err := d.store.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	d.handler = api.LoggingMiddleware(mux)
	return d, nil
}

// handleFrame evaluates one frame from the perception unit. A frame's
// weather becomes the system weather.
func (d *daemon) handleFrame(frame aeb.Frame) error {
	if frame.Weather != "" {
		if err := d.runner.WithSystem(func(sys *pipeline.System) error {
			return sys.SetWeather(frame.Weather)
		}); err != nil {
			return err
		}
	}
	res, err := d.runner.RunOnce("serial", frame.Objects)
	if err != nil {
		return fmt.Errorf("frame %d: %w", frame.Seq, err)
	}
	if res.Braking {
		monitoring.Logger().Warn("emergency brake",
			zap.Uint64("seq", frame.Seq),
			zap.String("state", string(res.State)),
			zap.Stringer("min_ttc", res.MinTTC),
		)
	}
	return nil
}

func (d *daemon) Close() error {
	var errs []error
	if d.mux != nil {
		errs = append(errs, d.mux.Close())
	}
	if d.store != nil {
		errs = append(errs, d.store.Close())
	}
	return errors.Join(errs...)
}

// readReplayLines returns the non-blank lines of path, skipping # comments.
func readReplayLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read replay file: %w", err)
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("replay file %s has no frames", path)
	}
	return lines, nil
}
