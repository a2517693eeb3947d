package pipeline

import (
	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/l3decision"
)

// AssessmentStage computes threat metrics for detected objects (L2).
type AssessmentStage interface {
	Assess(detected []aeb.DetectedObject, egoSpeed float64) aeb.ThreatMetrics
}

// DecisionStage maps threat metrics and sensor health onto a command (L3).
type DecisionStage interface {
	Decide(in l3decision.Input) (aeb.DecisionResult, error)
}

// EventSink receives every event appended to the event log. It is an
// adapter, so implementations live outside the core (e.g. internal/db).
// A sink error is logged and counted; it never changes a decision.
type EventSink interface {
	RecordEvent(ev Event) error
}

// Observer is notified after every successful evaluation.
type Observer interface {
	ObserveResult(res *Result)
}
