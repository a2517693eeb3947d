package db

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/testutil"
	"github.com/banshee-data/aeb/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func brakeEvent(id string, at time.Time) pipeline.Event {
	return pipeline.Event{
		ID:             id,
		Timestamp:      at,
		Kind:           pipeline.EventEmergencyBrake,
		Cause:          aeb.CauseThreat,
		Action:         aeb.ActionEmergencyBrake,
		State:          aeb.StateBraking,
		MinTTC:         aeb.TTC(0.86),
		ObjectClass:    aeb.ClassPedestrian,
		ObjectDistance: 12.04,
		Weather:        aeb.WeatherClear,
		Summary:        "EMERGENCY BRAKING - pedestrian TTC: 0.86s",
		Latency:        3 * time.Millisecond,
		Budget:         100 * time.Millisecond,
	}
}

func TestRecordEvent_RoundTrip(t *testing.T) {
	db := newTestDB(t)

	want := brakeEvent("e1", epoch)
	require.NoError(t, db.RecordEvent(want))

	got, err := db.ListEvents(EventFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, want, got[0])
}

func TestRecordEvent_NoCollisionStoredAsNull(t *testing.T) {
	db := newTestDB(t)

	ev := pipeline.Event{
		ID: "fs", Timestamp: epoch, Kind: pipeline.EventEmergencyBrake,
		Cause: aeb.CauseFailsafe, Action: aeb.ActionEmergencyBrake, State: aeb.StateFailsafe,
		MinTTC: aeb.NoCollision, Weather: aeb.WeatherFog, Summary: "fail-safe",
	}
	require.NoError(t, db.RecordEvent(ev))

	var valid bool
	require.NoError(t, db.QueryRow(`SELECT min_ttc_s IS NOT NULL FROM safety_events WHERE event_id = 'fs'`).Scan(&valid))
	assert.False(t, valid)

	got, err := db.ListEvents(EventFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].MinTTC.IsInf())
}

func TestRecordEvent_DuplicateIDFails(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.RecordEvent(brakeEvent("dup", epoch)))
	assert.Error(t, db.RecordEvent(brakeEvent("dup", epoch)))
}

func TestListEvents_Filters(t *testing.T) {
	db := newTestDB(t)

	for i := 0; i < 5; i++ {
		ev := brakeEvent(string(rune('a'+i)), epoch.Add(time.Duration(i)*time.Second))
		if i%2 == 1 {
			ev.Kind = pipeline.EventLatencyViolation
		}
		require.NoError(t, db.RecordEvent(ev))
	}

	all, err := db.ListEvents(EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "e", all[0].ID, "newest first")

	latency, err := db.ListEvents(EventFilter{Kind: pipeline.EventLatencyViolation})
	require.NoError(t, err)
	assert.Len(t, latency, 2)

	recent, err := db.ListEvents(EventFilter{Since: epoch.Add(3 * time.Second)})
	require.NoError(t, err)
	assert.Len(t, recent, 2)

	limited, err := db.ListEvents(EventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	counts, err := db.EventCounts()
	require.NoError(t, err)
	assert.Equal(t, map[pipeline.EventKind]int{
		pipeline.EventEmergencyBrake:   3,
		pipeline.EventLatencyViolation: 2,
	}, counts)
}

func TestDB_AsEventSink(t *testing.T) {
	db := newTestDB(t)

	var sink pipeline.EventSink = db
	s := pipeline.NewSystem(config.DefaultConstants(),
		pipeline.WithRandomSource(testutil.AlwaysDetect()),
		pipeline.WithClock(timeutil.NewMockClock(epoch)),
		pipeline.WithEgoSpeed(13.9),
		pipeline.WithEventSink(sink),
	)
	_, err := s.ProcessScenario([]aeb.GroundTruthObject{testutil.Pedestrian(1, 12, 1.0)})
	require.NoError(t, err)

	stored, err := db.ListEvents(EventFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, s.Events()[0].ID, stored[0].ID)
	assert.Equal(t, aeb.ClassPedestrian, stored[0].ObjectClass)
	assert.Zero(t, s.Counters().SinkErrors)
}
