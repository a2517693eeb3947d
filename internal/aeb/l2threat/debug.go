package l2threat

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("l2threat")

// opsf logs to the ops stream (actionable warnings, inconsistent input).
func opsf(format string, args ...interface{}) { streams.Opsf(format, args...) }

// diagf logs to the diag stream (day-to-day diagnostics).
func diagf(format string, args ...interface{}) { streams.Diagf(format, args...) }

// tracef logs to the trace stream (per-object TTC telemetry).
func tracef(format string, args ...interface{}) { streams.Tracef(format, args...) }
