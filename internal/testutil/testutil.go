// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/banshee-data/aeb/internal/aeb"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRequest creates a test HTTP request with an optional body.
func NewTestRequest(method, path string, body io.Reader) *http.Request {
	return httptest.NewRequest(method, path, body)
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// ScriptedSource is a random source that replays fixed values. Once a queue
// is exhausted it keeps returning that queue's fallback. The zero value
// returns 0 for every draw, which makes every detection trial succeed and
// every degradation trial with p > 0 fire.
type ScriptedSource struct {
	mu              sync.Mutex
	uniform         []float64
	normal          []float64
	UniformFallback float64
	NormalFallback  float64
}

// NewScriptedSource returns a source that replays uniform draws in order.
func NewScriptedSource(uniform ...float64) *ScriptedSource {
	return &ScriptedSource{uniform: uniform}
}

// AlwaysDetect returns a source whose uniform draws are all 0, so every
// detection trial succeeds. A 0 draw also fires any degradation trial with
// p > 0, so pair it with degradation disabled.
func AlwaysDetect() *ScriptedSource {
	return &ScriptedSource{}
}

// NeverDetect returns a source whose uniform draws are all 0.999999, above
// any realistic detection or degradation probability.
func NeverDetect() *ScriptedSource {
	return &ScriptedSource{UniformFallback: 0.999999}
}

// QueueNormal appends normal draws to replay.
func (s *ScriptedSource) QueueNormal(v ...float64) *ScriptedSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.normal = append(s.normal, v...)
	return s
}

// Float64 returns the next scripted uniform value.
func (s *ScriptedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.uniform) == 0 {
		return s.UniformFallback
	}
	v := s.uniform[0]
	s.uniform = s.uniform[1:]
	return v
}

// NormFloat64 returns the next scripted normal value.
func (s *ScriptedSource) NormFloat64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.normal) == 0 {
		return s.NormalFallback
	}
	v := s.normal[0]
	s.normal = s.normal[1:]
	return v
}

// Pedestrian returns a stationary pedestrian at (x, y).
func Pedestrian(id int, x, y float64) aeb.GroundTruthObject {
	return aeb.GroundTruthObject{
		ID: id, Class: aeb.ClassPedestrian,
		Position: aeb.Vec2{X: x, Y: y},
		Size:     aeb.Size{Width: 0.6, Length: 1.8},
	}
}

// Cyclist returns a cyclist at (x, y) moving at vx along the road.
func Cyclist(id int, x, y, vx float64) aeb.GroundTruthObject {
	return aeb.GroundTruthObject{
		ID: id, Class: aeb.ClassCyclist,
		Position: aeb.Vec2{X: x, Y: y},
		Velocity: aeb.Vec2{X: vx},
		Size:     aeb.Size{Width: 0.6, Length: 1.8},
	}
}

// Vehicle returns a vehicle at (x, y) moving at vx along the road.
func Vehicle(id int, x, y, vx float64) aeb.GroundTruthObject {
	return aeb.GroundTruthObject{
		ID: id, Class: aeb.ClassVehicle,
		Position: aeb.Vec2{X: x, Y: y},
		Velocity: aeb.Vec2{X: vx},
		Size:     aeb.Size{Width: 1.8, Length: 4.5},
	}
}
