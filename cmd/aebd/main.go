package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/banshee-data/aeb/internal/monitoring"
	"github.com/banshee-data/aeb/internal/serialmux"
	"github.com/banshee-data/aeb/internal/version"
)

var (
	listen         = flag.String("listen", ":8080", "HTTP listen address")
	grpcListen     = flag.String("grpc-listen", ":8081", "gRPC health listen address (empty disables)")
	dbPath         = flag.String("db-path", "aeb.db", "SQLite database path (empty keeps events in memory only)")
	configPath     = flag.String("config", "", "Safety configuration JSON file")
	egoKPH         = flag.Float64("ego-kph", 0, "Ego speed in km/h (default from configuration)")
	serialPort     = flag.String("serial-port", "", "Serial port of the perception unit (empty disables the feed)")
	baudRate       = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	frameRate      = flag.Int("frame-rate", 20, "Frame rate requested from the perception unit (Hz)")
	replayFile     = flag.String("replay", "", "Replay frame lines from this file instead of a serial port")
	replayInterval = flag.Duration("replay-interval", 50*time.Millisecond, "Delay between replayed lines")
	maxTrials      = flag.Int("max-validation-trials", 20000, "Largest trial count /api/validate accepts")
	logFormat      = flag.String("log-format", "json", "Log format: json or console")
	logLevel       = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	if *serialPort != "" && *replayFile != "" {
		log.Fatal("--serial-port and --replay are mutually exclusive")
	}

	logger, err := monitoring.NewLogger(*logFormat, *logLevel)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	monitoring.SetLogger(logger)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := newDaemon(ctx, daemonConfig{
		DBPath:         *dbPath,
		ConfigPath:     *configPath,
		EgoKPH:         *egoKPH,
		SerialPort:     *serialPort,
		BaudRate:       *baudRate,
		FrameRate:      *frameRate,
		ReplayFile:     *replayFile,
		ReplayInterval: *replayInterval,
		MaxTrials:      *maxTrials,
	})
	if err != nil {
		logger.Fatal("failed to start", zap.Error(err))
	}
	defer d.Close()

	logger.Info("aebd starting",
		zap.Stringer("version", version.Get()),
		zap.String("listen", *listen),
		zap.String("grpc_listen", *grpcListen),
		zap.String("db_path", *dbPath),
		zap.Bool("feed", d.feed != nil),
	)

	var wg sync.WaitGroup

	// Serial IO and frame handling.
	if d.feed != nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if err := d.mux.Monitor(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("serial monitor stopped", zap.Error(err))
			}
			logger.Info("monitor routine terminated")
		}()
		go func() {
			defer wg.Done()
			if err := d.feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("frame feed stopped", zap.Error(err))
			}
			logger.Info("feed routine terminated")
		}()
	}

	// gRPC health.
	if *grpcListen != "" {
		lis, err := net.Listen("tcp", *grpcListen)
		if err != nil {
			logger.Fatal("failed to listen for gRPC", zap.Error(err))
		}
		gs := grpc.NewServer()
		d.health.Register(gs)

		wg.Add(1)
		go func() {
			defer wg.Done()
			go func() {
				if err := gs.Serve(lis); err != nil {
					logger.Warn("gRPC server stopped", zap.Error(err))
				}
			}()
			<-ctx.Done()
			d.health.Shutdown()
			gs.GracefulStop()
			logger.Info("gRPC server routine stopped")
		}()
	}

	// HTTP server.
	wg.Add(1)
	go func() {
		defer wg.Done()
		server := &http.Server{
			Addr:              *listen,
			Handler:           d.handler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("failed to start server", zap.Error(err))
			}
		}()

		<-ctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown error", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Warn("HTTP server force close error", zap.Error(err))
			}
		}
		logger.Info("HTTP server routine stopped")
	}()

	wg.Wait()
	logger.Info("graceful shutdown complete")
}
