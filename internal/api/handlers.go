package api

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/l1sensing"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/aeb/simulation"
	"github.com/banshee-data/aeb/internal/db"
	"github.com/banshee-data/aeb/internal/httputil"
	"github.com/banshee-data/aeb/internal/serialmux"
	"github.com/banshee-data/aeb/internal/units"
	"github.com/banshee-data/aeb/internal/version"
)

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"version": version.Get(),
	})
}

// samplePedestrian is a pedestrian 12 m straight ahead, standing still.
func samplePedestrian() []aeb.GroundTruthObject {
	return []aeb.GroundTruthObject{simulation.NewObject(1, aeb.ClassPedestrian, 12, 0, 0, 0)}
}

func (s *Server) sampleDecision(w http.ResponseWriter, r *http.Request) {
	res, err := s.runner.RunOnce("sample_decision", samplePedestrian())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}

// evaluate accepts either a bare JSON array of object descriptors or a
// frame envelope {"weather": ..., "objects": [...]}. A frame's weather
// becomes the system weather for this and later evaluations.
func (s *Server) evaluate(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.ReadBody(w, r, httputil.MaxSceneBytes)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var frame aeb.Frame
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] == '{' {
		frame, err = aeb.ParseFrame(trimmed)
	} else {
		frame.Objects, err = aeb.ParseScene(trimmed)
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if frame.Weather != "" {
		if err := s.runner.WithSystem(func(sys *pipeline.System) error {
			return sys.SetWeather(frame.Weather)
		}); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "api"
	}
	res, err := s.runner.RunOnce(name, frame.Objects)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}

func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.EventFilter{Kind: pipeline.EventKind(q.Get("kind"))}
	if filter.Kind != "" && filter.Kind != pipeline.EventEmergencyBrake && filter.Kind != pipeline.EventLatencyViolation {
		httputil.BadRequest(w, fmt.Sprintf("unknown event kind %q", filter.Kind))
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httputil.BadRequest(w, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			httputil.BadRequest(w, "since must be an RFC 3339 timestamp")
			return
		}
		filter.Since = t
	}

	if s.store != nil {
		events, err := s.store.ListEvents(filter)
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, events)
		return
	}

	var events []pipeline.Event
	_ = s.runner.WithSystem(func(sys *pipeline.System) error {
		events = sys.Events()
		return nil
	})
	httputil.WriteJSONOK(w, filterEvents(events, filter))
}

// filterEvents applies filter to the in-memory log, newest first, matching
// what the store returns.
func filterEvents(events []pipeline.Event, f db.EventFilter) []pipeline.Event {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	out := make([]pipeline.Event, 0, min(limit, len(events)))
	for i := len(events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := events[i]
		if f.Kind != "" && ev.Kind != f.Kind {
			continue
		}
		if !f.Since.IsZero() && ev.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

type metricsResponse struct {
	Runner       simulation.Metrics          `json:"runner"`
	Counters     pipeline.Counters           `json:"counters"`
	Performance  *pipeline.PerformanceReport `json:"performance,omitempty"`
	Feed         *serialmux.FeedStats        `json:"feed,omitempty"`
	StoredEvents map[pipeline.EventKind]int  `json:"stored_events,omitempty"`
	FeedStatus   map[string]any              `json:"feed_status,omitempty"`
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	resp := metricsResponse{Runner: s.runner.Metrics()}
	_ = s.runner.WithSystem(func(sys *pipeline.System) error {
		resp.Counters = sys.Counters()
		if rep, err := sys.PerformanceReport(); err == nil {
			rep.Events = nil
			resp.Performance = &rep
		} else if !errors.Is(err, pipeline.ErrNoData) {
			return err
		}
		return nil
	})
	if s.feed != nil {
		stats := s.feed.Stats()
		resp.Feed = &stats
		resp.FeedStatus = s.feed.Status()
	}
	if s.store != nil {
		counts, err := s.store.EventCounts()
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		resp.StoredEvents = counts
	}
	httputil.WriteJSONOK(w, resp)
}

type settingsResponse struct {
	Weather                aeb.WeatherCondition        `json:"weather"`
	DegradationEnabled     bool                        `json:"degradation_enabled"`
	DegradationProbability float64                     `json:"degradation_probability"`
	EgoSpeedMPS            float64                     `json:"ego_speed_mps"`
	EgoSpeedKPH            float64                     `json:"ego_speed_kph"`
	Modalities             map[l1sensing.Modality]bool `json:"modalities"`
}

// settingsUpdate changes the system's environment. Absent fields are left
// as they are. Modalities listed in FailModalities are failed after any
// restore.
type settingsUpdate struct {
	Weather                *string  `json:"weather,omitempty"`
	DegradationEnabled     *bool    `json:"degradation_enabled,omitempty"`
	DegradationProbability *float64 `json:"degradation_probability,omitempty"`
	EgoSpeed               *float64 `json:"ego_speed,omitempty"`
	EgoSpeedUnits          string   `json:"ego_speed_units,omitempty"`
	RestoreModalities      bool     `json:"restore_modalities,omitempty"`
	FailModalities         []string `json:"fail_modalities,omitempty"`
}

func currentSettings(sys *pipeline.System) settingsResponse {
	env := sys.Environment()
	return settingsResponse{
		Weather:                env.Weather,
		DegradationEnabled:     env.DegradationEnabled,
		DegradationProbability: env.DegradationProbability,
		EgoSpeedMPS:            sys.EgoSpeed(),
		EgoSpeedKPH:            units.ConvertSpeed(sys.EgoSpeed(), units.KPH),
		Modalities:             sys.Modalities(),
	}
}

func (s *Server) showSettings(w http.ResponseWriter, r *http.Request) {
	var resp settingsResponse
	_ = s.runner.WithSystem(func(sys *pipeline.System) error {
		resp = currentSettings(sys)
		return nil
	})
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) updateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := httputil.DecodeJSON(w, r, 64<<10, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	// Parse everything before touching the system so a bad request changes
	// nothing.
	var weather aeb.WeatherCondition
	if req.Weather != nil {
		wc, err := aeb.ParseWeather(*req.Weather)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		weather = wc
	}
	var egoMPS *float64
	if req.EgoSpeed != nil {
		u := req.EgoSpeedUnits
		if u == "" {
			u = units.MPS
		}
		v, err := units.ToMPS(*req.EgoSpeed, u)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			httputil.BadRequest(w, "ego_speed must be a finite non-negative speed")
			return
		}
		egoMPS = &v
	}
	if p := req.DegradationProbability; p != nil && (math.IsNaN(*p) || *p < 0 || *p > 1) {
		httputil.BadRequest(w, "degradation_probability must be between 0 and 1")
		return
	}
	failed := make([]l1sensing.Modality, 0, len(req.FailModalities))
	for _, name := range req.FailModalities {
		m, err := l1sensing.ParseModality(name)
		if err != nil {
			httputil.BadRequest(w, err.Error())
			return
		}
		failed = append(failed, m)
	}

	var resp settingsResponse
	err := s.runner.WithSystem(func(sys *pipeline.System) error {
		env := sys.Environment()
		enabled, p := env.DegradationEnabled, env.DegradationProbability
		if req.DegradationEnabled != nil {
			enabled = *req.DegradationEnabled
		}
		if req.DegradationProbability != nil {
			p = *req.DegradationProbability
		}
		if err := sys.SetDegradation(enabled, p); err != nil {
			return err
		}
		if egoMPS != nil {
			if err := sys.SetEgoSpeed(*egoMPS); err != nil {
				return err
			}
		}
		if weather != "" {
			if err := sys.SetWeather(weather); err != nil {
				return err
			}
		}
		if req.RestoreModalities {
			sys.RestoreModalities()
		}
		for _, m := range failed {
			if err := sys.FailModality(m); err != nil {
				return err
			}
		}
		resp = currentSettings(sys)
		return nil
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSONOK(w, resp)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, s.runner.History())
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	s.runner.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) replay(w http.ResponseWriter, r *http.Request) {
	i, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		httputil.BadRequest(w, "index must be an integer")
		return
	}
	res, err := s.runner.Replay(i)
	if errors.Is(err, simulation.ErrHistoryIndex) {
		httputil.NotFound(w, err.Error())
		return
	}
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSONOK(w, res)
}
