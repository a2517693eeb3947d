package pipeline

import (
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
)

// EventKind distinguishes event log entries.
type EventKind string

const (
	EventEmergencyBrake   EventKind = "emergency_brake"
	EventLatencyViolation EventKind = "latency_violation"
)

// Event is one entry of the safety event log.
type Event struct {
	ID             string               `json:"id"`
	Timestamp      time.Time            `json:"timestamp"`
	Kind           EventKind            `json:"kind"`
	Cause          aeb.Cause            `json:"cause"`
	Action         aeb.Action           `json:"action"`
	State          aeb.SystemState      `json:"state"`
	MinTTC         aeb.TTC              `json:"min_ttc"`
	ObjectClass    aeb.ObjectClass      `json:"object_class,omitempty"`
	ObjectDistance float64              `json:"object_distance_m,omitempty"`
	Weather        aeb.WeatherCondition `json:"weather"`
	Summary        string               `json:"summary"`
	Latency        time.Duration        `json:"latency_ns"`
	Budget         time.Duration        `json:"budget_ns"`
}

// EventLog is an append-only sequence of events. Entries are never edited
// or removed.
type EventLog struct {
	events []Event
}

func (l *EventLog) append(ev Event) {
	l.events = append(l.events, ev)
}

// Len returns the number of events.
func (l *EventLog) Len() int { return len(l.events) }

// Events returns a copy of the log in append order.
func (l *EventLog) Events() []Event {
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

// Since returns a copy of the events appended after the first n.
func (l *EventLog) Since(n int) []Event {
	if n >= len(l.events) {
		return nil
	}
	if n < 0 {
		n = 0
	}
	out := make([]Event, len(l.events)-n)
	copy(out, l.events[n:])
	return out
}
