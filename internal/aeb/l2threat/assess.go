package l2threat

import (
	"math"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/config"
)

// Assessor classifies detected objects against the safety thresholds.
type Assessor struct {
	constants config.SafetyConstants
}

// NewAssessor returns an assessor bound to constants.
func NewAssessor(constants config.SafetyConstants) *Assessor {
	return &Assessor{constants: constants}
}

// InPath reports whether a lateral offset lies inside the ego path corridor.
// A non-positive half-width disables the corridor.
func (a *Assessor) InPath(lateral float64) bool {
	hw := a.constants.PathHalfWidth
	return hw <= 0 || math.Abs(lateral) <= hw
}

// Classify maps a TTC onto a threat level for class.
func (a *Assessor) Classify(class aeb.ObjectClass, ttc aeb.TTC) aeb.ThreatLevel {
	if ttc.IsInf() {
		return aeb.ThreatNone
	}
	t := ttc.Seconds()
	if t <= a.constants.TTCThreshold(class) {
		return aeb.ThreatImminent
	}
	warn := a.constants.WarningThreshold(class)
	if t < warn || (a.constants.WarningWindowInclusive && t == warn) {
		return aeb.ThreatMonitor
	}
	return aeb.ThreatNone
}

// Assess computes per-object and scenario threat metrics for the detected
// objects at the given ego speed.
func (a *Assessor) Assess(detected []aeb.DetectedObject, egoSpeed float64) aeb.ThreatMetrics {
	m := aeb.EmptyThreat()
	if len(detected) == 0 {
		return m
	}
	m.Objects = make([]aeb.ObjectThreat, 0, len(detected))

	critical := -1
	for _, obj := range detected {
		closing := ClosingSpeed(egoSpeed, obj.Velocity.X)
		ttc := TimeToCollision(obj.Position.X, closing)
		ot := aeb.ObjectThreat{
			ObjectID:     obj.ID,
			Class:        obj.Class,
			Distance:     obj.Position.X,
			ClosingSpeed: closing,
			TTC:          ttc,
			InPath:       a.InPath(obj.Position.Y),
		}
		m.MinTTCAll = minTTC(m.MinTTCAll, ttc)
		if ot.InPath {
			ot.Level = a.Classify(obj.Class, ttc)
			m.MinTTC = minTTC(m.MinTTC, ttc)
		}
		tracef("object %d (%s) d=%.2fm closing=%.2fm/s ttc=%s in_path=%t level=%s",
			obj.ID, obj.Class, ot.Distance, closing, ttc, ot.InPath, ot.Level)

		m.Objects = append(m.Objects, ot)
		if ot.InPath && (critical < 0 || moreCritical(ot, m.Objects[critical])) {
			critical = len(m.Objects) - 1
		}
	}

	if critical >= 0 {
		c := m.Objects[critical]
		m.Critical = &c
		m.Level = c.Level
		m.WorstClass = c.Class
	}
	return m
}

// moreCritical orders in-path objects by level, then by TTC, then prefers
// vulnerable road users.
func moreCritical(a, b aeb.ObjectThreat) bool {
	if a.Level != b.Level {
		return a.Level > b.Level
	}
	if a.TTC != b.TTC {
		return a.TTC < b.TTC
	}
	return a.Class.IsVulnerable() && !b.Class.IsVulnerable()
}
