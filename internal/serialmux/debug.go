package serialmux

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("serialmux")

func opsf(format string, args ...interface{})   { streams.Opsf(format, args...) }
func diagf(format string, args ...interface{})  { streams.Diagf(format, args...) }
func tracef(format string, args ...interface{}) { streams.Tracef(format, args...) }
