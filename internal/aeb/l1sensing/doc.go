// Package l1sensing owns Layer 1 (Sensing) of the emergency braking core.
//
// It turns ground-truth objects into the objects the sensor suite actually
// reports for one evaluation, applying the hard detection range cutoff, the
// weighted random detection trial, position noise, and the sensor-health
// checks (modality failures and the degradation trial).
//
// Dependency rule: L1 may depend on the aeb model, config and monitoring
// only. It must not depend on threat assessment or decision packages.
package l1sensing
