// Package l2threat owns Layer 2 (Threat Assessment).
//
// It computes a time-to-collision for each detected object against the ego
// vehicle's speed, filters objects outside the ego path corridor, and
// classifies every object and the scenario as a whole as imminent, monitor
// or none using the class-specific thresholds.
//
// The stage is pure: no randomness, no clock, no retained state.
//
// Dependency rule: L2 may depend on the aeb model, config and monitoring.
package l2threat
