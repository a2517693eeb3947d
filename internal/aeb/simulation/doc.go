// Package simulation drives the decision core through time and through
// Monte Carlo requirement checks.
//
// A Simulation advances a scene by fixed steps and stops on the first
// emergency brake, a collision, the simulated-time cap, or cancellation.
// Runner wraps a System with a bounded scenario history and run metrics for
// presentation layers. Validate runs the requirement probes.
//
// Nothing here knows about timers, widgets or sockets: hosts call Step or
// Run and render the StepResults however they like.
package simulation
