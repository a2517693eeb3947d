package l1sensing

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("l1sensing")

// opsf logs to the ops stream (actionable warnings, sensor faults).
func opsf(format string, args ...interface{}) { streams.Opsf(format, args...) }

// diagf logs to the diag stream (day-to-day diagnostics).
func diagf(format string, args ...interface{}) { streams.Diagf(format, args...) }

// tracef logs to the trace stream (per-object detection telemetry).
func tracef(format string, args ...interface{}) { streams.Tracef(format, args...) }
