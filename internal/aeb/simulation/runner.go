package simulation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/timeutil"
)

// Metrics counts what a Runner has done. An animated run counts its threat
// and its brake at most once, however many ticks see them.
type Metrics struct {
	ScenariosRun    int `json:"scenarios_run"`
	ThreatScenarios int `json:"threat_scenarios"`
	BrakeEvents     int `json:"brake_events"`
}

// ScenarioRecord is one entry of the scenario history.
type ScenarioRecord struct {
	ID         string                  `json:"id"`
	Name       string                  `json:"name"`
	RecordedAt time.Time               `json:"recorded_at"`
	Objects    []aeb.GroundTruthObject `json:"objects"`
	Animated   bool                    `json:"animated"`
	Action     aeb.Action              `json:"action,omitempty"`
	MinTTC     aeb.TTC                 `json:"min_ttc"`
}

// Runner owns a System on behalf of a presentation layer: it runs one-shot
// and animated scenarios, keeps the bounded history and the run metrics.
// Its methods are safe for concurrent use; evaluations on the shared System
// are serialised.
type Runner struct {
	mu      sync.Mutex // guards history and metrics
	sysMu   sync.Mutex // serialises System access
	system  *pipeline.System
	clock   timeutil.Clock
	history *History[ScenarioRecord]
	metrics Metrics
}

// NewRunner wraps system. The history capacity comes from the system's
// constants.
func NewRunner(system *pipeline.System, clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		system:  system,
		clock:   clock,
		history: NewHistory[ScenarioRecord](system.Constants().HistoryCapacity),
	}
}

// WithSystem runs fn while holding the System lock, for hosts that need to
// change settings or read the event log without racing a simulation.
func (r *Runner) WithSystem(fn func(*pipeline.System) error) error {
	r.sysMu.Lock()
	defer r.sysMu.Unlock()
	return fn(r.system)
}

// RunOnce evaluates a scene once and records it.
func (r *Runner) RunOnce(name string, objects []aeb.GroundTruthObject) (*pipeline.Result, error) {
	res, err := r.evaluate(objects)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.countLocked(res)
	r.history.Push(ScenarioRecord{
		ID:         uuid.New().String(),
		Name:       name,
		RecordedAt: r.clock.Now(),
		Objects:    aeb.CloneScene(objects),
		Action:     res.Action,
		MinTTC:     res.MinTTC,
	})
	return res, nil
}

func (r *Runner) countLocked(res *pipeline.Result) {
	r.metrics.ScenariosRun++
	if isThreat(res) {
		r.metrics.ThreatScenarios++
	}
	if res.Braking {
		r.metrics.BrakeEvents++
	}
}

func isThreat(res *pipeline.Result) bool {
	return res.Threat.Level != aeb.ThreatNone || res.State == aeb.StateFailsafe
}

func (r *Runner) evaluate(objects []aeb.GroundTruthObject) (*pipeline.Result, error) {
	r.sysMu.Lock()
	defer r.sysMu.Unlock()
	return r.system.ProcessScenario(objects)
}

// Animate records a scene and returns a Simulation of it wired into the
// runner's metrics. Reset on the returned Simulation starts a new run that
// is counted again.
func (r *Runner) Animate(name string, objects []aeb.GroundTruthObject) (*Simulation, error) {
	sim, err := New(r.system, objects)
	if err != nil {
		return nil, err
	}
	sim.locker = &r.sysMu

	var sawThreat, sawBrake bool
	sim.onReset = append(sim.onReset, func() {
		sawThreat, sawBrake = false, false
		r.mu.Lock()
		r.metrics.ScenariosRun++
		r.mu.Unlock()
	})
	sim.OnStep(func(sr StepResult) {
		if sr.Result == nil {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if !sawThreat && isThreat(sr.Result) {
			sawThreat = true
			r.metrics.ThreatScenarios++
		}
		if !sawBrake && sr.Result.Braking {
			sawBrake = true
			r.metrics.BrakeEvents++
		}
	})

	r.mu.Lock()
	r.metrics.ScenariosRun++
	r.history.Push(ScenarioRecord{
		ID:         sim.ID(),
		Name:       name,
		RecordedAt: r.clock.Now(),
		Objects:    aeb.CloneScene(objects),
		Animated:   true,
		MinTTC:     aeb.NoCollision,
	})
	r.mu.Unlock()
	return sim, nil
}

// Replay re-evaluates the i-th history entry (oldest first). The replay
// counts towards the metrics but does not add a new history entry.
func (r *Runner) Replay(i int) (*pipeline.Result, error) {
	r.mu.Lock()
	rec, ok := r.history.At(i)
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrHistoryIndex, i)
	}

	res, err := r.evaluate(rec.Objects)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countLocked(res)
	return res, nil
}

// History returns the recorded scenarios, oldest first.
func (r *Runner) History() []ScenarioRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.history.Items()
}

// ClearHistory empties the history. Metrics are kept.
func (r *Runner) ClearHistory() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history.Clear()
}

// Metrics returns a snapshot of the run metrics.
func (r *Runner) Metrics() Metrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metrics
}
