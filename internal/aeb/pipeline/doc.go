// Package pipeline is the composition root of the emergency braking core.
//
// System wires L1 sensing, L2 threat assessment and L3 decision into a
// single synchronous evaluation (ProcessScenario), owns the append-only
// event log and the performance counters, and fans results out to adapter
// sinks (persistence) and observers (health reporting).
//
// None of the layer packages import pipeline. Adapters such as internal/db
// and internal/api depend on it, never the reverse.
package pipeline
