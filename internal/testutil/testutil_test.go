package testutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/aeb/internal/aeb"
)

func TestAssertHelpersPass(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, aeb.ErrInvalidInput)
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodPost, "/api/evaluate", strings.NewReader(`[]`))
	if req.Method != http.MethodPost || req.URL.Path != "/api/evaluate" {
		t.Errorf("unexpected request %s %s", req.Method, req.URL.Path)
	}
	if rec := NewTestRecorder(); rec.Code != http.StatusOK {
		t.Errorf("recorder default code = %d", rec.Code)
	}
}

func TestScriptedSource(t *testing.T) {
	t.Parallel()

	s := NewScriptedSource(0.1, 0.7).QueueNormal(1.5)
	s.UniformFallback = 0.5

	for i, want := range []float64{0.1, 0.7, 0.5, 0.5} {
		if got := s.Float64(); got != want {
			t.Errorf("Float64() #%d = %v, want %v", i, got, want)
		}
	}
	if got := s.NormFloat64(); got != 1.5 {
		t.Errorf("NormFloat64() = %v, want 1.5", got)
	}
	if got := s.NormFloat64(); got != 0 {
		t.Errorf("NormFloat64() after queue = %v, want 0", got)
	}

	if NeverDetect().Float64() < 0.99 {
		t.Error("NeverDetect should draw near 1")
	}
	if AlwaysDetect().Float64() != 0 {
		t.Error("AlwaysDetect should draw 0")
	}
}

func TestFixtures(t *testing.T) {
	t.Parallel()

	objs := []aeb.GroundTruthObject{
		Pedestrian(1, 12, 0),
		Cyclist(2, 30, 0.5, 3),
		Vehicle(3, 40, 0, -19.4),
	}
	if err := aeb.ValidateScene(objs); err != nil {
		t.Fatalf("fixtures do not validate: %v", err)
	}
	if objs[2].Velocity.X != -19.4 {
		t.Errorf("vehicle vx = %v", objs[2].Velocity.X)
	}
}
