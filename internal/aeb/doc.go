// Package aeb holds the shared domain model for the emergency braking core:
// object classes, weather conditions, ground-truth and detected objects,
// threat metrics and the decision record produced for every evaluation.
//
// The layer packages build on these types:
//
//	l1sensing  ground truth -> detected objects + sensor health
//	l2threat   detected objects -> time-to-collision + threat level
//	l3decision threat level + sensor health -> action / state
//	pipeline   composes L1..L3, owns the event log
//	simulation time-stepped harness and requirement validation
//
// Dependency rule: this package imports only the standard library. Layer
// packages may import it; it never imports them.
package aeb
