package l3decision

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/timeutil"
)

// Input is everything a decision depends on.
type Input struct {
	Threat        aeb.ThreatMetrics
	SensorHealthy bool
	// StartedAt is when the evaluation began. Latency is measured from here
	// so the budget covers sensing and assessment too. Zero means "now".
	StartedAt time.Time
}

type outcome struct {
	action aeb.Action
	state  aeb.SystemState
	cause  aeb.Cause
}

// decisionTable maps the scenario threat level of a healthy sensor run onto
// its outcome. An unhealthy run bypasses the table (see failsafeOutcome).
var decisionTable = map[aeb.ThreatLevel]outcome{
	aeb.ThreatImminent: {aeb.ActionEmergencyBrake, aeb.StateBraking, aeb.CauseThreat},
	aeb.ThreatMonitor:  {aeb.ActionWarning, aeb.StateWarning, aeb.CauseNone},
	aeb.ThreatNone:     {aeb.ActionMonitor, aeb.StateNormal, aeb.CauseNone},
}

var failsafeOutcome = outcome{aeb.ActionEmergencyBrake, aeb.StateFailsafe, aeb.CauseFailsafe}

// Engine turns threat metrics and sensor health into a DecisionResult.
type Engine struct {
	constants config.SafetyConstants
	clock     timeutil.Clock
}

// NewEngine returns an engine. A nil clock selects the real clock.
func NewEngine(constants config.SafetyConstants, clock timeutil.Clock) *Engine {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Engine{constants: constants, clock: clock}
}

// Decide applies the rules in order: fail-safe, imminent threat, warning
// window, monitor. It returns ErrInternalFault if the threat metrics are
// inconsistent; it never guesses a decision.
func (e *Engine) Decide(in Input) (aeb.DecisionResult, error) {
	start := in.StartedAt
	if start.IsZero() {
		start = e.clock.Now()
	}

	if err := checkThreat(in.Threat); err != nil {
		return aeb.DecisionResult{}, err
	}

	var (
		oc      outcome
		ttc     = in.Threat.MinTTC
		message string
	)
	switch {
	case !in.SensorHealthy:
		oc = failsafeOutcome
		message = "FAIL-SAFE: sensor degradation, emergency braking engaged"
	default:
		var ok bool
		oc, ok = decisionTable[in.Threat.Level]
		if !ok {
			return aeb.DecisionResult{}, fmt.Errorf("%w: unknown threat level %d", aeb.ErrInternalFault, in.Threat.Level)
		}
		if c := in.Threat.Critical; c != nil && in.Threat.Level != aeb.ThreatNone {
			ttc = c.TTC
		}
		message = e.message(oc.action, in.Threat)
	}

	res := aeb.DecisionResult{
		Action:  oc.action,
		Warning: oc.action == aeb.ActionWarning || oc.action == aeb.ActionEmergencyBrake,
		Braking: oc.action == aeb.ActionEmergencyBrake,
		Message: message,
		State:   oc.state,
		MinTTC:  ttc,
		Cause:   oc.cause,
	}

	res.Latency = e.clock.Since(start)
	if res.Latency > e.constants.MaxDecisionLatency {
		res.LatencyViolation = true
		opsf("decision latency %s exceeded budget %s (action=%s)", res.Latency, e.constants.MaxDecisionLatency, res.Action)
	}

	switch res.State {
	case aeb.StateFailsafe:
		opsf("fail-safe engaged: %s", res.Message)
	case aeb.StateBraking:
		diagf("%s", res.Message)
	default:
		tracef("action=%s state=%s min_ttc=%s latency=%s", res.Action, res.State, res.MinTTC, res.Latency)
	}
	return res, nil
}

func (e *Engine) message(action aeb.Action, m aeb.ThreatMetrics) string {
	switch action {
	case aeb.ActionEmergencyBrake:
		return fmt.Sprintf("EMERGENCY BRAKING - %s TTC: %.2fs", m.Critical.Class, m.Critical.TTC.Seconds())
	case aeb.ActionWarning:
		return fmt.Sprintf("COLLISION WARNING - %s TTC: %.2fs", m.Critical.Class, m.Critical.TTC.Seconds())
	default:
		return "Monitoring - no immediate threats"
	}
}

// checkThreat rejects metrics no correct assessment could have produced.
func checkThreat(m aeb.ThreatMetrics) error {
	for _, t := range []aeb.TTC{m.MinTTC, m.MinTTCAll} {
		if math.IsNaN(float64(t)) || t < 0 {
			return fmt.Errorf("%w: invalid minimum TTC %v", aeb.ErrInternalFault, float64(t))
		}
	}
	if m.Level != aeb.ThreatNone && m.Critical == nil {
		return fmt.Errorf("%w: threat level %s without a critical object", aeb.ErrInternalFault, m.Level)
	}
	if c := m.Critical; c != nil {
		if math.IsNaN(float64(c.TTC)) || c.TTC < 0 {
			return fmt.Errorf("%w: invalid TTC %v for object %d", aeb.ErrInternalFault, float64(c.TTC), c.ObjectID)
		}
		if c.Level != m.Level {
			return fmt.Errorf("%w: critical object level %s disagrees with scenario level %s", aeb.ErrInternalFault, c.Level, m.Level)
		}
	}
	return nil
}
