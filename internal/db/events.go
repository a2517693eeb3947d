package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
)

// RecordEvent stores one safety event. It satisfies pipeline.EventSink.
// A TTC of "no collision" is stored as NULL.
func (db *DB) RecordEvent(ev pipeline.Event) error {
	var ttc sql.NullFloat64
	if !ev.MinTTC.IsInf() {
		ttc = sql.NullFloat64{Float64: ev.MinTTC.Seconds(), Valid: true}
	}
	_, err := db.Exec(`INSERT INTO safety_events (
			event_id, recorded_at, kind, cause, action, state, min_ttc_s,
			object_class, object_distance_m, weather, summary, latency_ns, budget_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.Timestamp.UnixNano(), string(ev.Kind), string(ev.Cause), string(ev.Action),
		string(ev.State), ttc, string(ev.ObjectClass), ev.ObjectDistance, string(ev.Weather),
		ev.Summary, int64(ev.Latency), int64(ev.Budget),
	)
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", ev.ID, err)
	}
	return nil
}

// EventFilter narrows ListEvents. Zero values match everything.
type EventFilter struct {
	Kind  pipeline.EventKind
	Since time.Time
	Limit int // defaults to 100
}

// ListEvents returns stored events, newest first.
func (db *DB) ListEvents(f EventFilter) ([]pipeline.Event, error) {
	if f.Limit <= 0 {
		f.Limit = 100
	}
	var since int64
	if !f.Since.IsZero() {
		since = f.Since.UnixNano()
	}
	rows, err := db.Query(`SELECT event_id, recorded_at, kind, cause, action, state, min_ttc_s,
			object_class, object_distance_m, weather, summary, latency_ns, budget_ns
		FROM safety_events
		WHERE (? = '' OR kind = ?) AND recorded_at >= ?
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT ?`, string(f.Kind), string(f.Kind), since, f.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []pipeline.Event
	for rows.Next() {
		var (
			ev                                   pipeline.Event
			recordedAt, latency, budget          int64
			kind, cause, action, state, class, w string
			ttc                                  sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &recordedAt, &kind, &cause, &action, &state, &ttc,
			&class, &ev.ObjectDistance, &w, &ev.Summary, &latency, &budget); err != nil {
			return nil, err
		}
		ev.Timestamp = time.Unix(0, recordedAt).UTC()
		ev.Kind = pipeline.EventKind(kind)
		ev.Cause = aeb.Cause(cause)
		ev.Action = aeb.Action(action)
		ev.State = aeb.SystemState(state)
		ev.ObjectClass = aeb.ObjectClass(class)
		ev.Weather = aeb.WeatherCondition(w)
		ev.Latency = time.Duration(latency)
		ev.Budget = time.Duration(budget)
		ev.MinTTC = aeb.NoCollision
		if ttc.Valid {
			ev.MinTTC = aeb.TTC(ttc.Float64)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// EventCounts returns the number of stored events per kind.
func (db *DB) EventCounts() (map[pipeline.EventKind]int, error) {
	rows, err := db.Query(`SELECT kind, COUNT(*) FROM safety_events GROUP BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[pipeline.EventKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[pipeline.EventKind(kind)] = n
	}
	return counts, rows.Err()
}
