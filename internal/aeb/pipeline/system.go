package pipeline

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/l1sensing"
	"github.com/banshee-data/aeb/internal/aeb/l2threat"
	"github.com/banshee-data/aeb/internal/aeb/l3decision"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/timeutil"
)

// Result is the outcome of one evaluation. The embedded DecisionResult
// fields are flattened into the JSON form.
type Result struct {
	aeb.DecisionResult
	DetectedObjectCount int                  `json:"detected_object_count"`
	Detected            []aeb.DetectedObject `json:"detected_objects"`
	InRangeCount        int                  `json:"in_range_count"`
	Threat              aeb.ThreatMetrics    `json:"threat"`
	SensorHealthy       bool                 `json:"sensor_healthy"`
	SensorReliability   float64              `json:"sensor_reliability"`
	SensorFault         string               `json:"sensor_fault,omitempty"`
	Weather             aeb.WeatherCondition `json:"weather"`
	EvaluatedAt         time.Time            `json:"evaluated_at"`
}

// Option configures a System.
type Option func(*System)

// WithClock sets the clock used for latency measurement and timestamps.
func WithClock(c timeutil.Clock) Option {
	return func(s *System) { s.clock = c }
}

// WithRandomSource sets the sensor stage's random source.
func WithRandomSource(r l1sensing.RandomSource) Option {
	return func(s *System) { s.rng = r }
}

// WithEgoSpeed overrides the configured ego speed (m/s).
func WithEgoSpeed(mps float64) Option {
	return func(s *System) { s.egoSpeed = mps }
}

// WithEventSink adds a sink that receives every new event.
func WithEventSink(sink EventSink) Option {
	return func(s *System) { s.sinks = append(s.sinks, sink) }
}

// WithObserver adds an observer that sees every successful result.
func WithObserver(o Observer) Option {
	return func(s *System) { s.observers = append(s.observers, o) }
}

// WithAssessmentStage replaces the L2 threat assessment stage.
func WithAssessmentStage(a AssessmentStage) Option {
	return func(s *System) { s.assessment = a }
}

// WithDecisionStage replaces the L3 decision stage.
func WithDecisionStage(d DecisionStage) Option {
	return func(s *System) { s.decision = d }
}

// System is the orchestrator: it validates input, runs the stages in order
// and records the outcome. It is not safe for concurrent use; hosts that
// share one System across goroutines must serialise calls.
type System struct {
	constants config.SafetyConstants
	clock     timeutil.Clock
	rng       l1sensing.RandomSource

	sensor     *l1sensing.Sensor
	assessment AssessmentStage
	decision   DecisionStage

	env      l1sensing.Environment
	egoSpeed float64

	log       EventLog
	counters  Counters
	sinks     []EventSink
	observers []Observer
}

// NewSystem builds a System from constants. Weather starts clear and
// degradation disabled.
func NewSystem(constants config.SafetyConstants, opts ...Option) *System {
	s := &System{
		constants: constants,
		egoSpeed:  constants.EgoSpeed,
		env: l1sensing.Environment{
			Weather:                aeb.WeatherClear,
			DegradationProbability: constants.DegradationProbability,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	s.sensor = l1sensing.NewSensor(constants, s.rng)
	if s.assessment == nil {
		s.assessment = l2threat.NewAssessor(constants)
	}
	if s.decision == nil {
		s.decision = l3decision.NewEngine(constants, s.clock)
	}
	return s
}

// Constants returns the safety constants the system was built with.
func (s *System) Constants() config.SafetyConstants { return s.constants }

// Environment returns the current sensing environment.
func (s *System) Environment() l1sensing.Environment { return s.env }

// EgoSpeed returns the ego speed in m/s.
func (s *System) EgoSpeed() float64 { return s.egoSpeed }

// SetWeather changes the weather used for subsequent evaluations.
func (s *System) SetWeather(w aeb.WeatherCondition) error {
	if !w.Valid() {
		return &aeb.InputError{Index: -1, Field: "weather", Reason: fmt.Sprintf("unknown weather condition %q", w)}
	}
	if w != s.env.Weather {
		diagf("weather %s -> %s", s.env.Weather, w)
	}
	s.env.Weather = w
	return nil
}

// SetDegradation enables or disables the degradation trial and sets its
// probability.
func (s *System) SetDegradation(enabled bool, probability float64) error {
	if math.IsNaN(probability) || probability < 0 || probability > 1 {
		return &aeb.InputError{Index: -1, Field: "degradation_probability",
			Reason: fmt.Sprintf("must be between 0 and 1, got %v", probability)}
	}
	s.env.DegradationEnabled = enabled
	s.env.DegradationProbability = probability
	diagf("degradation enabled=%t p=%.2f", enabled, probability)
	return nil
}

// SetEgoSpeed changes the ego speed (m/s).
func (s *System) SetEgoSpeed(mps float64) error {
	if math.IsNaN(mps) || math.IsInf(mps, 0) || mps < 0 {
		return &aeb.InputError{Index: -1, Field: "ego_speed", Reason: fmt.Sprintf("must be a finite non-negative speed, got %v", mps)}
	}
	s.egoSpeed = mps
	return nil
}

// FailModality marks one sensor modality as failed.
func (s *System) FailModality(m l1sensing.Modality) error {
	return s.sensor.SetOperational(m, false)
}

// RestoreModalities marks every sensor modality operational again.
func (s *System) RestoreModalities() {
	s.sensor.RestoreAll()
}

// Modalities returns the sensor modality status table.
func (s *System) Modalities() map[l1sensing.Modality]bool {
	return s.sensor.Operational()
}

// ProcessScenario runs one evaluation: validate, sense, assess, decide, log.
//
// Invalid input returns an error wrapping aeb.ErrInvalidInput before any
// stage runs. Any stage error aborts the evaluation and is returned; the
// event log and counters are only touched once a decision exists.
func (s *System) ProcessScenario(objects []aeb.GroundTruthObject) (*Result, error) {
	start := s.clock.Now()

	if err := aeb.ValidateScene(objects); err != nil {
		return nil, err
	}

	det, err := s.sensor.Detect(objects, s.env)
	if err != nil {
		return nil, fmt.Errorf("sensing: %w", err)
	}

	threat := s.assessment.Assess(det.Objects, s.egoSpeed)

	decision, err := s.decision.Decide(l3decision.Input{
		Threat:        threat,
		SensorHealthy: det.Healthy,
		StartedAt:     start,
	})
	if err != nil {
		opsf("evaluation aborted: %v", err)
		return nil, fmt.Errorf("decision: %w", err)
	}

	res := &Result{
		DecisionResult:      decision,
		DetectedObjectCount: len(det.Objects),
		Detected:            det.Objects,
		InRangeCount:        det.InRange,
		Threat:              threat,
		SensorHealthy:       det.Healthy,
		SensorReliability:   det.Reliability,
		SensorFault:         det.Reason,
		Weather:             s.env.Weather,
		EvaluatedAt:         start,
	}
	s.record(res)
	return res, nil
}

func (s *System) record(res *Result) {
	s.counters.observe(res)

	first := s.log.Len()
	if res.Action == aeb.ActionEmergencyBrake {
		s.log.append(s.newEvent(EventEmergencyBrake, res, res.Message))
	}
	if res.LatencyViolation {
		s.log.append(s.newEvent(EventLatencyViolation, res,
			fmt.Sprintf("decision latency %s exceeded budget %s", res.Latency, s.constants.MaxDecisionLatency)))
	}

	for _, ev := range s.log.Since(first) {
		for _, sink := range s.sinks {
			if err := sink.RecordEvent(ev); err != nil {
				s.counters.SinkErrors++
				opsf("event sink failed for %s event %s: %v", ev.Kind, ev.ID, err)
			}
		}
	}
	for _, o := range s.observers {
		o.ObserveResult(res)
	}
}

func (s *System) newEvent(kind EventKind, res *Result, summary string) Event {
	ev := Event{
		ID:        uuid.New().String(),
		Timestamp: res.EvaluatedAt,
		Kind:      kind,
		Cause:     res.Cause,
		Action:    res.Action,
		State:     res.State,
		MinTTC:    res.MinTTC,
		Weather:   res.Weather,
		Summary:   summary,
		Latency:   res.Latency,
		Budget:    s.constants.MaxDecisionLatency,
	}
	if c := res.Threat.Critical; c != nil {
		ev.ObjectClass = c.Class
		ev.ObjectDistance = c.Distance
	}
	return ev
}

// Events returns a copy of the event log.
func (s *System) Events() []Event { return s.log.Events() }

// EventCount returns the number of logged events.
func (s *System) EventCount() int { return s.log.Len() }
