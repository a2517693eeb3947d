package aeb

import "time"

// DecisionResult is the output of the decision engine for one evaluation.
type DecisionResult struct {
	Action  Action      `json:"action"`
	Warning bool        `json:"warning"`
	Braking bool        `json:"braking"`
	Message string      `json:"message"`
	State   SystemState `json:"state"`
	// MinTTC is the TTC the decision was taken on: the critical object's TTC
	// for warnings and brakes, the in-path minimum otherwise.
	MinTTC           TTC           `json:"min_ttc"`
	Cause            Cause         `json:"cause"`
	Latency          time.Duration `json:"latency_ns"`
	LatencyViolation bool          `json:"latency_violation"`
}
