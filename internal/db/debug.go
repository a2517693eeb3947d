package db

import "github.com/banshee-data/aeb/internal/monitoring"

var streams = monitoring.Component("db")

func opsf(format string, args ...interface{})  { streams.Opsf(format, args...) }
func diagf(format string, args ...interface{}) { streams.Diagf(format, args...) }
