package api

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("api")

func opsf(format string, args ...interface{})  { streams.Opsf(format, args...) }
func diagf(format string, args ...interface{}) { streams.Diagf(format, args...) }
