// Package l3decision owns Layer 3 (Decision), the safety-critical mapping
// from threat classification and sensor health to a braking command.
//
// The engine is stateless per call: identical inputs always give the same
// action and state. It measures its own latency against the configured
// budget and flags violations without changing the decision.
//
// Dependency rule: L3 may depend on L1-L2, the aeb model, config, timeutil
// and monitoring.
package l3decision
