package pipeline

import (
	"errors"
	"math"
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
)

// ErrNoData is returned by PerformanceReport before the first evaluation.
var ErrNoData = errors.New("no decisions recorded yet")

// Counters accumulates per-evaluation statistics.
type Counters struct {
	Decisions         int           `json:"decisions"`
	Monitors          int           `json:"monitors"`
	Warnings          int           `json:"warnings"`
	EmergencyBrakes   int           `json:"emergency_brakes"`
	Failsafes         int           `json:"failsafes"`
	LatencyViolations int           `json:"latency_violations"`
	SinkErrors        int           `json:"sink_errors"`
	TotalLatency      time.Duration `json:"total_latency_ns"`
	MaxLatency        time.Duration `json:"max_latency_ns"`

	accuracySum     float64
	accuracySamples int
}

func (c *Counters) observe(res *Result) {
	c.Decisions++
	switch res.Action {
	case aeb.ActionMonitor:
		c.Monitors++
	case aeb.ActionWarning:
		c.Warnings++
	case aeb.ActionEmergencyBrake:
		c.EmergencyBrakes++
	}
	if res.State == aeb.StateFailsafe {
		c.Failsafes++
	}
	if res.LatencyViolation {
		c.LatencyViolations++
	}
	c.TotalLatency += res.Latency
	if res.Latency > c.MaxLatency {
		c.MaxLatency = res.Latency
	}
	if res.InRangeCount > 0 {
		c.accuracySum += math.Min(1, float64(res.DetectedObjectCount)/float64(res.InRangeCount))
		c.accuracySamples++
	}
}

// PerformanceReport summarises a System's history.
type PerformanceReport struct {
	TotalDecisions       int           `json:"total_decisions"`
	EmergencyEvents      int           `json:"emergency_events"`
	Warnings             int           `json:"warnings"`
	Failsafes            int           `json:"failsafes"`
	LatencyViolations    int           `json:"latency_violations"`
	AvgResponseTime      time.Duration `json:"avg_response_time_ns"`
	MaxResponseTime      time.Duration `json:"max_response_time_ns"`
	AvgDetectionAccuracy float64       `json:"avg_detection_accuracy"`
	// AccuracySamples counts evaluations that had at least one in-range
	// object; AvgDetectionAccuracy is 1 when it is zero.
	AccuracySamples   int     `json:"accuracy_samples"`
	LatencyCompliant  bool    `json:"latency_compliant"`
	AccuracyCompliant bool    `json:"accuracy_compliant"`
	Events            []Event `json:"events"`
}

// Counters returns a snapshot of the counters.
func (s *System) Counters() Counters { return s.counters }

// PerformanceReport summarises every evaluation so far.
func (s *System) PerformanceReport() (PerformanceReport, error) {
	c := s.counters
	if c.Decisions == 0 {
		return PerformanceReport{}, ErrNoData
	}

	events := s.log.Events()
	emergency := 0
	for _, ev := range events {
		if ev.Kind == EventEmergencyBrake {
			emergency++
		}
	}

	acc := 1.0
	if c.accuracySamples > 0 {
		acc = c.accuracySum / float64(c.accuracySamples)
	}

	return PerformanceReport{
		TotalDecisions:       c.Decisions,
		EmergencyEvents:      emergency,
		Warnings:             c.Warnings,
		Failsafes:            c.Failsafes,
		LatencyViolations:    c.LatencyViolations,
		AvgResponseTime:      c.TotalLatency / time.Duration(c.Decisions),
		MaxResponseTime:      c.MaxLatency,
		AvgDetectionAccuracy: acc,
		AccuracySamples:      c.accuracySamples,
		LatencyCompliant:     c.MaxLatency <= s.constants.MaxDecisionLatency,
		AccuracyCompliant:    acc >= s.constants.MinDetectionAccuracy,
		Events:               events,
	}, nil
}
