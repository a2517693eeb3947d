package l2threat

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/config"
)

const egoSpeed = 13.9

func detected(id int, class aeb.ObjectClass, x, y, vx float64) aeb.DetectedObject {
	return aeb.DetectedObject{
		ID: id, Class: class,
		Position: aeb.Vec2{X: x, Y: y},
		Velocity: aeb.Vec2{X: vx},
		Range:    math.Hypot(x, y),
	}
}

func TestTimeToCollision(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		distance float64
		closing  float64
		want     float64
	}{
		{"pedestrian at 12m", 12, egoSpeed, 12 / egoSpeed},
		{"zero closing speed", 10, 0, math.Inf(1)},
		{"receding", 10, -3, math.Inf(1)},
		{"touching", 0, 5, 0},
		{"behind ego front", -1, 5, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := TimeToCollision(tt.distance, tt.closing)
			if math.IsInf(tt.want, 1) {
				assert.True(t, got.IsInf(), "got %v", got)
				return
			}
			assert.InDelta(t, tt.want, got.Seconds(), 1e-12)
		})
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	a := NewAssessor(config.DefaultConstants())
	tests := []struct {
		class aeb.ObjectClass
		ttc   float64
		want  aeb.ThreatLevel
	}{
		{aeb.ClassPedestrian, 0.86, aeb.ThreatImminent},
		{aeb.ClassPedestrian, 1.5, aeb.ThreatImminent},
		{aeb.ClassPedestrian, 1.6, aeb.ThreatMonitor},
		{aeb.ClassPedestrian, 2.0, aeb.ThreatMonitor},
		{aeb.ClassPedestrian, 2.01, aeb.ThreatNone},
		{aeb.ClassCyclist, 1.4, aeb.ThreatImminent},
		{aeb.ClassVehicle, 1.0, aeb.ThreatImminent},
		{aeb.ClassVehicle, 1.2, aeb.ThreatMonitor},
		{aeb.ClassVehicle, 1.4, aeb.ThreatMonitor},
		{aeb.ClassVehicle, 1.6, aeb.ThreatNone},
		{aeb.ClassVehicle, math.Inf(1), aeb.ThreatNone},
	}
	for _, tt := range tests {
		got := a.Classify(tt.class, aeb.TTC(tt.ttc))
		assert.Equal(t, tt.want, got, "%s ttc=%v", tt.class, tt.ttc)
	}
}

func TestClassify_ExclusiveWarningWindow(t *testing.T) {
	t.Parallel()

	cfg := config.EmptySafetyConfig()
	inclusive := false
	cfg.WarningWindowInclusive = &inclusive
	a := NewAssessor(cfg.Constants())

	assert.Equal(t, aeb.ThreatNone, a.Classify(aeb.ClassPedestrian, 2.0))
	assert.Equal(t, aeb.ThreatMonitor, a.Classify(aeb.ClassPedestrian, 1.99))
	assert.Equal(t, aeb.ThreatImminent, a.Classify(aeb.ClassPedestrian, 1.5))
}

func TestAssess_Empty(t *testing.T) {
	t.Parallel()

	m := NewAssessor(config.DefaultConstants()).Assess(nil, egoSpeed)
	assert.True(t, m.MinTTC.IsInf())
	assert.True(t, m.MinTTCAll.IsInf())
	assert.Equal(t, aeb.ThreatNone, m.Level)
	assert.Nil(t, m.Critical)
}

func TestAssess_PedestrianAhead(t *testing.T) {
	t.Parallel()

	m := NewAssessor(config.DefaultConstants()).Assess(
		[]aeb.DetectedObject{detected(1, aeb.ClassPedestrian, 12, 1.0, 0)}, egoSpeed)

	assert.Equal(t, aeb.ThreatImminent, m.Level)
	require.NotNil(t, m.Critical)
	assert.Equal(t, 1, m.Critical.ObjectID)
	assert.Equal(t, aeb.ClassPedestrian, m.WorstClass)
	assert.InDelta(t, 0.863, m.MinTTC.Seconds(), 1e-3)
}

func TestAssess_OncomingVehicleWarningWindow(t *testing.T) {
	t.Parallel()

	// 40m gap closing at 33.3 m/s gives TTC ~1.2s: inside the vehicle
	// warning window, outside the imminent threshold.
	m := NewAssessor(config.DefaultConstants()).Assess(
		[]aeb.DetectedObject{detected(1, aeb.ClassVehicle, 40, 0, -19.4)}, egoSpeed)

	assert.InDelta(t, 1.2, m.MinTTC.Seconds(), 0.01)
	assert.Equal(t, aeb.ThreatMonitor, m.Level)
}

func TestAssess_OutOfPathIgnored(t *testing.T) {
	t.Parallel()

	m := NewAssessor(config.DefaultConstants()).Assess(
		[]aeb.DetectedObject{detected(1, aeb.ClassPedestrian, 5, 4.0, 0)}, egoSpeed)

	require.Len(t, m.Objects, 1)
	assert.False(t, m.Objects[0].InPath)
	assert.Equal(t, aeb.ThreatNone, m.Objects[0].Level)
	assert.Equal(t, aeb.ThreatNone, m.Level)
	assert.True(t, m.MinTTC.IsInf())
	assert.False(t, m.MinTTCAll.IsInf(), "awareness TTC still covers the object")
	assert.Nil(t, m.Critical)
}

func TestAssess_CorridorDisabled(t *testing.T) {
	t.Parallel()

	cfg := config.EmptySafetyConfig()
	off := 0.0
	cfg.PathHalfWidthM = &off
	m := NewAssessor(cfg.Constants()).Assess(
		[]aeb.DetectedObject{detected(1, aeb.ClassPedestrian, 5, 4.0, 0)}, egoSpeed)
	assert.Equal(t, aeb.ThreatImminent, m.Level)
}

func TestAssess_MostSevereObjectGoverns(t *testing.T) {
	t.Parallel()

	// The vehicle has the smaller TTC but only reaches the warning window;
	// the pedestrian is imminent under its longer threshold.
	objs := []aeb.DetectedObject{
		detected(1, aeb.ClassVehicle, 40, 0, -19.4),     // ~1.2s, monitor
		detected(2, aeb.ClassPedestrian, 19.46, 0.5, 0), // ~1.4s, imminent
	}
	m := NewAssessor(config.DefaultConstants()).Assess(objs, egoSpeed)

	assert.Equal(t, aeb.ThreatImminent, m.Level)
	require.NotNil(t, m.Critical)
	assert.Equal(t, 2, m.Critical.ObjectID)
	assert.InDelta(t, 1.2, m.MinTTC.Seconds(), 0.01)
}

func TestAssess_RecedingObject(t *testing.T) {
	t.Parallel()

	m := NewAssessor(config.DefaultConstants()).Assess(
		[]aeb.DetectedObject{detected(1, aeb.ClassVehicle, 10, 0, 20)}, egoSpeed)
	assert.True(t, m.MinTTC.IsInf())
	assert.Equal(t, aeb.ThreatNone, m.Level)
	require.NotNil(t, m.Critical)
	assert.Equal(t, aeb.ThreatNone, m.Critical.Level)
}

func TestAssess_IsPure(t *testing.T) {
	t.Parallel()

	a := NewAssessor(config.DefaultConstants())
	objs := []aeb.DetectedObject{
		detected(1, aeb.ClassCyclist, 30, 0.5, 3),
		detected(2, aeb.ClassVehicle, 22, -1, 0),
	}
	first := a.Assess(objs, egoSpeed)
	second := a.Assess(objs, egoSpeed)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Assess is not deterministic (-first +second):\n%s", diff)
	}
}
