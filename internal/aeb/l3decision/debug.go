package l3decision

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("l3decision")

// opsf logs to the ops stream (actionable warnings, fail-safe engagements).
func opsf(format string, args ...interface{}) { streams.Opsf(format, args...) }

// diagf logs to the diag stream (day-to-day diagnostics).
func diagf(format string, args ...interface{}) { streams.Diagf(format, args...) }

// tracef logs to the trace stream (per-decision telemetry).
func tracef(format string, args ...interface{}) { streams.Tracef(format, args...) }
