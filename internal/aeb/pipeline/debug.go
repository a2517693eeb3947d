package pipeline

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("pipeline")

// opsf logs to the ops stream (actionable warnings, sink failures).
func opsf(format string, args ...interface{}) { streams.Opsf(format, args...) }

// diagf logs to the diag stream (day-to-day diagnostics).
func diagf(format string, args ...interface{}) { streams.Diagf(format, args...) }

// tracef logs to the trace stream (per-evaluation telemetry).
func tracef(format string, args ...interface{}) { streams.Tracef(format, args...) }
