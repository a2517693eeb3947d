package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/testutil"
	"github.com/banshee-data/aeb/internal/timeutil"
)

func TestPerformanceReport_NoData(t *testing.T) {
	t.Parallel()

	_, err := newTestSystem(t).PerformanceReport()
	assert.ErrorIs(t, err, ErrNoData)
}

func TestPerformanceReport(t *testing.T) {
	t.Parallel()

	clock := timeutil.NewMockClock(epoch)
	clock.SetStep(10 * time.Millisecond)
	s := newTestSystem(t, WithClock(clock))

	scenes := [][]aeb.GroundTruthObject{
		{testutil.Pedestrian(1, 12, 0)},                                  // brake
		{testutil.Vehicle(1, 40, 0, -19.4)},                              // warning
		{testutil.Pedestrian(1, 200, 0)},                                 // nothing in range
		{testutil.Cyclist(1, 30, 0.5, 3), testutil.Vehicle(2, 60, 0, 0)}, // monitor
	}
	for _, sc := range scenes {
		_, err := s.ProcessScenario(sc)
		require.NoError(t, err)
	}

	r, err := s.PerformanceReport()
	require.NoError(t, err)
	assert.Equal(t, 4, r.TotalDecisions)
	assert.Equal(t, 1, r.EmergencyEvents)
	assert.Equal(t, 1, r.Warnings)
	assert.Zero(t, r.Failsafes)
	assert.Equal(t, 10*time.Millisecond, r.AvgResponseTime)
	assert.Equal(t, 10*time.Millisecond, r.MaxResponseTime)
	assert.True(t, r.LatencyCompliant)
	assert.Equal(t, 3, r.AccuracySamples)
	assert.InDelta(t, 1.0, r.AvgDetectionAccuracy, 1e-12)
	assert.True(t, r.AccuracyCompliant)
	assert.Len(t, r.Events, 1)

	c := s.Counters()
	assert.Equal(t, 2, c.Monitors)
	assert.Equal(t, 1, c.EmergencyBrakes)
}
