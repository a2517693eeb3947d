package simulation

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("simulation")

// opsf logs to the ops stream (actionable warnings, failed requirements).
func opsf(format string, args ...interface{}) { streams.Opsf(format, args...) }

// diagf logs to the diag stream (day-to-day diagnostics).
func diagf(format string, args ...interface{}) { streams.Diagf(format, args...) }

// tracef logs to the trace stream (per-tick telemetry).
func tracef(format string, args ...interface{}) { streams.Tracef(format, args...) }
