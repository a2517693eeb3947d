// Package api is the HTTP boundary of the decision core. It serves one-shot
// evaluations, the event log, run metrics, requirement validation and a
// websocket stream of simulation ticks. All evaluations go through a
// simulation.Runner, which serialises access to the shared System.
package api

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/db"
	"github.com/banshee-data/aeb/internal/monitoring"
	"github.com/banshee-data/aeb/internal/serialmux"
	"github.com/banshee-data/aeb/internal/timeutil"
)

// Options are the optional collaborators of a Server.
type Options struct {
	// Store persists validation runs and serves the event history. Without
	// it, events come from the in-memory log.
	Store *db.DB
	// Feed, when set, has its counters reported by /api/metrics.
	Feed *serialmux.Feed
	// Clock paces realtime websocket simulations; nil selects the real clock.
	Clock timeutil.Clock
	// MaxValidationTrials caps the trials a client may request.
	MaxValidationTrials int
}

const defaultMaxValidationTrials = 20000

type Server struct {
	runner    *simulation.Runner
	constants config.SafetyConstants
	store     *db.DB
	feed      *serialmux.Feed
	clock     timeutil.Clock
	maxTrials int
	upgrader  websocket.Upgrader

	mu         sync.Mutex
	lastReport *simulation.ValidationReport
}

func NewServer(runner *simulation.Runner, opts Options) *Server {
	s := &Server{
		runner:    runner,
		store:     opts.Store,
		feed:      opts.Feed,
		clock:     opts.Clock,
		maxTrials: opts.MaxValidationTrials,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	if s.maxTrials <= 0 {
		s.maxTrials = defaultMaxValidationTrials
	}
	_ = runner.WithSystem(func(sys *pipeline.System) error {
		s.constants = sys.Constants()
		return nil
	})
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack hands the connection to the websocket upgrader.
func (lrw *loggingResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := lrw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	lrw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

// LoggingMiddleware logs method, path, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logger().Info("http request",
			zap.String("component", "api"),
			zap.String("status", strconv.Itoa(lrw.statusCode)),
			zap.String("method", r.Method),
			zap.String("uri", r.RequestURI),
			zap.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/1e6),
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /sample-decision", s.sampleDecision)
	mux.HandleFunc("POST /api/evaluate", s.evaluate)
	mux.HandleFunc("GET /api/events", s.listEvents)
	mux.HandleFunc("GET /api/metrics", s.metrics)
	mux.HandleFunc("GET /api/settings", s.showSettings)
	mux.HandleFunc("POST /api/settings", s.updateSettings)
	mux.HandleFunc("GET /api/history", s.listHistory)
	mux.HandleFunc("DELETE /api/history", s.clearHistory)
	mux.HandleFunc("POST /api/history/{index}/replay", s.replay)
	mux.HandleFunc("POST /api/validate", s.validate)
	mux.HandleFunc("GET /api/validation-runs", s.listValidationRuns)
	mux.HandleFunc("GET /api/validation-runs/{id}", s.showValidationRun)
	mux.HandleFunc("GET /api/charts/validation", s.validationChart)
	mux.HandleFunc("GET /ws/simulate", s.simulateWS)
	return mux
}
