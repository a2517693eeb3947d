package db

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aeb/internal/aeb/simulation"
)

func testReport(id string, started time.Time, pass bool) *simulation.ValidationReport {
	observed := 0.98
	if !pass {
		observed = 0.5
	}
	return &simulation.ValidationReport{
		ID:         id,
		Seed:       1<<63 + 7,
		Trials:     100,
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Requirements: map[string]simulation.RequirementResult{
			simulation.ReqDetectionAccuracy: {
				Name: simulation.ReqDetectionAccuracy, Target: 0.95, Observed: observed,
				Passed: pass, Comparator: simulation.AtLeast, Samples: 100,
			},
			simulation.ReqDetectionRange: {
				Name: simulation.ReqDetectionRange, Target: 0, Observed: 0,
				Passed: true, Comparator: simulation.AtMost, Samples: 100,
			},
		},
		Latency: simulation.LatencyStats{Mean: time.Millisecond, Samples: 200},
	}
}

func TestInsertValidationRun(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.InsertValidationRun(testReport("r1", epoch, true)))
	require.NoError(t, db.InsertValidationRun(testReport("r2", epoch.Add(time.Hour), false)))

	runs, err := db.ListValidationRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "r2", runs[0].ID)
	assert.False(t, runs[0].Passed)
	assert.Equal(t, 1, runs[0].FailedCount)
	assert.Equal(t, "r1", runs[1].ID)
	assert.True(t, runs[1].Passed)
	assert.Equal(t, uint64(1<<63+7), runs[1].Seed)
	assert.Equal(t, epoch, runs[1].StartedAt)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM validation_requirements WHERE run_id = 'r1'`).Scan(&n))
	assert.Equal(t, 2, n)
}

func TestValidationRun_Load(t *testing.T) {
	db := newTestDB(t)

	want := testReport("r1", epoch, true)
	require.NoError(t, db.InsertValidationRun(want))

	got, err := db.ValidationRun("r1")
	require.NoError(t, err)
	assert.Equal(t, want.Requirements, got.Requirements)
	assert.Equal(t, want.Latency, got.Latency)
	assert.True(t, got.Passed())

	_, err = db.ValidationRun("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestInsertValidationRun_DuplicateRollsBack(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, db.InsertValidationRun(testReport("r1", epoch, true)))
	assert.Error(t, db.InsertValidationRun(testReport("r1", epoch, true)))

	runs, err := db.ListValidationRuns(10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
