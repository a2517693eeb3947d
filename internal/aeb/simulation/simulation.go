package simulation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/timeutil"
)

// StopReason says why a simulation run ended.
type StopReason string

const (
	StopNone           StopReason = ""
	StopEmergencyBrake StopReason = "emergency_brake"
	StopCollision      StopReason = "collision"
	StopMaxTime        StopReason = "max_time"
	StopCancelled      StopReason = "cancelled"
)

var (
	// ErrStopped is returned by Step once the run is terminal. Reset starts
	// a new run.
	ErrStopped = errors.New("simulation stopped")
	// ErrInvalidStep is returned for a non-positive step duration.
	ErrInvalidStep = errors.New("step duration must be positive")
	// ErrHistoryIndex is returned by Runner.Replay for an index outside the
	// history.
	ErrHistoryIndex = errors.New("history index out of range")
)

// StepResult is the outcome of one tick.
type StepResult struct {
	Step     int                     `json:"step"`
	Elapsed  time.Duration           `json:"elapsed_ns"`
	Objects  []aeb.GroundTruthObject `json:"objects"`
	Result   *pipeline.Result        `json:"result,omitempty"` // nil for a cancelled tick
	Terminal bool                    `json:"terminal"`
	Reason   StopReason              `json:"reason,omitempty"`
}

// Simulation advances a scene through time against a System.
//
// Step, Reset and Run must be called from one goroutine. Cancel may be
// called from any goroutine; it takes effect at the next tick boundary.
type Simulation struct {
	id        string
	system    *pipeline.System
	constants config.SafetyConstants
	locker    sync.Locker

	initial []aeb.GroundTruthObject
	objects []aeb.GroundTruthObject
	elapsed time.Duration
	steps   int
	stopped bool
	reason  StopReason

	cancelled atomic.Bool
	timeline  []StepResult
	hooks     []func(StepResult)
	onReset   []func()
}

// New returns a simulation of objects against system. The scene is
// validated up front so a bad scene never starts a run.
func New(system *pipeline.System, objects []aeb.GroundTruthObject) (*Simulation, error) {
	if err := aeb.ValidateScene(objects); err != nil {
		return nil, err
	}
	s := &Simulation{
		id:        uuid.New().String(),
		system:    system,
		constants: system.Constants(),
		initial:   aeb.CloneScene(objects),
	}
	s.Reset()
	return s, nil
}

// ID identifies the run.
func (s *Simulation) ID() string { return s.id }

// Objects returns a copy of the current object states.
func (s *Simulation) Objects() []aeb.GroundTruthObject { return aeb.CloneScene(s.objects) }

// Elapsed returns the simulated time so far.
func (s *Simulation) Elapsed() time.Duration { return s.elapsed }

// Stopped reports whether the run is terminal and why.
func (s *Simulation) Stopped() (bool, StopReason) { return s.stopped, s.reason }

// Timeline returns every StepResult of the current run.
func (s *Simulation) Timeline() []StepResult {
	out := make([]StepResult, len(s.timeline))
	copy(out, s.timeline)
	return out
}

// OnStep registers a callback invoked after every tick, terminal or not.
func (s *Simulation) OnStep(fn func(StepResult)) { s.hooks = append(s.hooks, fn) }

// Reset restores the initial scene and clears the run state, including a
// pending cancellation.
func (s *Simulation) Reset() {
	s.objects = aeb.CloneScene(s.initial)
	s.elapsed = 0
	s.steps = 0
	s.stopped = false
	s.reason = StopNone
	s.timeline = nil
	s.cancelled.Store(false)
	for _, fn := range s.onReset {
		fn()
	}
}

// Cancel requests the run stop at the next tick boundary.
func (s *Simulation) Cancel() { s.cancelled.Store(true) }

// Step advances the scene by dt, evaluates it, and reports whether the run
// is now terminal. A pending cancellation ends the run without advancing.
func (s *Simulation) Step(dt time.Duration) (StepResult, error) {
	if s.stopped {
		return StepResult{}, fmt.Errorf("%w: %s", ErrStopped, s.reason)
	}
	if s.cancelled.Load() {
		return s.finish(StepResult{Step: s.steps, Elapsed: s.elapsed, Objects: s.Objects()}, StopCancelled), nil
	}
	if dt <= 0 {
		return StepResult{}, fmt.Errorf("%w: %s", ErrInvalidStep, dt)
	}

	prev := s.Objects()
	res, err := s.tick(dt)
	if err != nil {
		// Roll back so the caller may retry the same tick.
		s.objects = prev
		return StepResult{}, err
	}
	s.elapsed += dt
	s.steps++

	sr := StepResult{Step: s.steps, Elapsed: s.elapsed, Objects: s.Objects(), Result: res}
	switch {
	case res.Action == aeb.ActionEmergencyBrake:
		return s.finish(sr, StopEmergencyBrake), nil
	case s.collided(prev):
		return s.finish(sr, StopCollision), nil
	case s.elapsed >= s.constants.MaxSimulationTime:
		return s.finish(sr, StopMaxTime), nil
	}
	tracef("sim %s step %d t=%s action=%s min_ttc=%s", s.id, s.steps, s.elapsed, res.Action, res.MinTTC)
	s.emit(sr)
	return sr, nil
}

// tick advances and evaluates the scene under the system lock, so the ego
// speed used for motion is the one the evaluation sees.
func (s *Simulation) tick(dt time.Duration) (*pipeline.Result, error) {
	if s.locker != nil {
		s.locker.Lock()
		defer s.locker.Unlock()
	}
	s.advance(dt)
	return s.system.ProcessScenario(s.objects)
}

// advance moves every object by its velocity relative to the ego vehicle.
func (s *Simulation) advance(dt time.Duration) {
	secs := dt.Seconds()
	ego := s.system.EgoSpeed()
	for i := range s.objects {
		o := &s.objects[i]
		o.Position.X += (o.Velocity.X - ego) * secs
		o.Position.Y += o.Velocity.Y * secs
	}
}

// collided reports whether any in-path object entered the collision zone
// this tick, including objects that jumped across it in one step.
func (s *Simulation) collided(prev []aeb.GroundTruthObject) bool {
	cd := s.constants.CollisionDistance
	hw := s.constants.PathHalfWidth
	for i, o := range s.objects {
		if hw > 0 && math.Abs(o.Position.Y) > hw {
			continue
		}
		if math.Abs(o.Position.X) <= cd {
			return true
		}
		if prev[i].Position.X > cd && o.Position.X < -cd {
			return true
		}
	}
	return false
}

func (s *Simulation) finish(sr StepResult, reason StopReason) StepResult {
	s.stopped = true
	s.reason = reason
	sr.Terminal = true
	sr.Reason = reason
	diagf("sim %s stopped after %d steps (%s): %s", s.id, s.steps, s.elapsed, reason)
	s.emit(sr)
	return sr
}

func (s *Simulation) emit(sr StepResult) {
	s.timeline = append(s.timeline, sr)
	for _, fn := range s.hooks {
		fn(sr)
	}
}

// RunOptions controls Run.
type RunOptions struct {
	// Step is the tick length; zero selects the configured simulation tick.
	Step time.Duration
	// Realtime paces ticks on Clock instead of running flat out.
	Realtime bool
	Clock    timeutil.Clock
}

// Run steps until the run is terminal, calling fn after every tick. Context
// cancellation is checked at tick boundaries and ends the run with
// StopCancelled; Run then returns the context's error. An error from fn
// aborts the run and is returned.
func (s *Simulation) Run(ctx context.Context, opts RunOptions, fn func(StepResult) error) (StepResult, error) {
	dt := opts.Step
	if dt <= 0 {
		dt = s.constants.SimulationTick
	}

	var ticks <-chan time.Time
	if opts.Realtime {
		clock := opts.Clock
		if clock == nil {
			clock = timeutil.RealClock{}
		}
		ticker := clock.NewTicker(dt)
		defer ticker.Stop()
		ticks = ticker.C()
	}

	for {
		if ctx.Err() != nil {
			s.Cancel()
		}
		sr, err := s.Step(dt)
		if err != nil {
			return sr, err
		}
		if fn != nil {
			if err := fn(sr); err != nil {
				return sr, err
			}
		}
		if sr.Terminal {
			if sr.Reason == StopCancelled && ctx.Err() != nil {
				return sr, ctx.Err()
			}
			return sr, nil
		}
		if ticks != nil {
			select {
			case <-ctx.Done():
			case <-ticks:
			}
		}
	}
}
