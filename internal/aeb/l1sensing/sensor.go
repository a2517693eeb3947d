package l1sensing

import (
	"fmt"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/config"
)

// Modality is one sensor of the suite.
type Modality string

const (
	ModalityCamera Modality = "camera"
	ModalityRadar  Modality = "radar"
	ModalityLidar  Modality = "lidar"
)

// AllModalities lists the suite's sensors in a stable order.
func AllModalities() []Modality {
	return []Modality{ModalityCamera, ModalityRadar, ModalityLidar}
}

// ParseModality maps a name onto a Modality.
func ParseModality(s string) (Modality, error) {
	for _, m := range AllModalities() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown sensor modality %q", s)
}

// Environment is the per-run sensing context.
type Environment struct {
	Weather                aeb.WeatherCondition
	DegradationEnabled     bool
	DegradationProbability float64
}

// Validate rejects environments the stage cannot sense in.
func (e Environment) Validate() error {
	if !e.Weather.Valid() {
		return &aeb.InputError{Index: -1, Field: "weather", Reason: fmt.Sprintf("unknown weather condition %q", e.Weather)}
	}
	if e.DegradationProbability < 0 || e.DegradationProbability > 1 {
		return &aeb.InputError{Index: -1, Field: "degradation_probability",
			Reason: fmt.Sprintf("must be between 0 and 1, got %v", e.DegradationProbability)}
	}
	return nil
}

// Detection is the output of one sensing run.
type Detection struct {
	Objects []aeb.DetectedObject
	// Healthy is false when the degradation trial fired or the suite's
	// reliability fell below the fail-safe floor. Objects are still returned.
	Healthy     bool
	Reliability float64
	InRange     int // ground-truth objects inside the detection range
	Degraded    bool
	Reason      string
}

// Sensor simulates the camera/radar/lidar suite. It is not safe for
// concurrent use: the random source is consumed in a fixed order.
type Sensor struct {
	constants   config.SafetyConstants
	rng         RandomSource
	operational map[Modality]bool
}

// NewSensor returns a sensor with every modality operational. A nil rng
// selects NewSecureSource.
func NewSensor(constants config.SafetyConstants, rng RandomSource) *Sensor {
	if rng == nil {
		rng = NewSecureSource()
	}
	s := &Sensor{constants: constants, rng: rng, operational: make(map[Modality]bool)}
	s.RestoreAll()
	return s
}

// SetOperational marks a modality as working or failed.
func (s *Sensor) SetOperational(m Modality, up bool) error {
	if _, ok := s.operational[m]; !ok {
		return fmt.Errorf("unknown sensor modality %q", m)
	}
	if s.operational[m] != up {
		if up {
			diagf("modality %s restored", m)
		} else {
			opsf("modality %s marked failed", m)
		}
	}
	s.operational[m] = up
	return nil
}

// RestoreAll marks every modality operational.
func (s *Sensor) RestoreAll() {
	for _, m := range AllModalities() {
		s.operational[m] = true
	}
}

// Operational returns a copy of the modality status table.
func (s *Sensor) Operational() map[Modality]bool {
	out := make(map[Modality]bool, len(s.operational))
	for m, up := range s.operational {
		out[m] = up
	}
	return out
}

func (s *Sensor) modalityFraction() float64 {
	up := 0
	for _, ok := range s.operational {
		if ok {
			up++
		}
	}
	return float64(up) / float64(len(s.operational))
}

// Reliability is the suite's reliability under w: the operational fraction
// of modalities scaled by the weather factor.
func (s *Sensor) Reliability(w aeb.WeatherCondition) float64 {
	return s.modalityFraction() * s.constants.WeatherFactor(w)
}

// Detect runs one sensing pass over objects.
//
// Random draws happen in a fixed order: one degradation draw (only when
// degradation is enabled), then for each in-range object one detection draw
// and, when detected, two normal draws for position noise and one uniform
// draw for confidence.
func (s *Sensor) Detect(objects []aeb.GroundTruthObject, env Environment) (Detection, error) {
	if err := env.Validate(); err != nil {
		return Detection{}, err
	}

	det := Detection{
		Objects:     make([]aeb.DetectedObject, 0, len(objects)),
		Healthy:     true,
		Reliability: s.Reliability(env.Weather),
	}

	if det.Reliability < s.constants.MinSensorReliability {
		det.Healthy = false
		det.Reason = fmt.Sprintf("sensor reliability %.2f below %.2f", det.Reliability, s.constants.MinSensorReliability)
	}
	if env.DegradationEnabled && s.rng.Float64() < env.DegradationProbability {
		det.Healthy = false
		det.Degraded = true
		det.Reason = "sensor degradation detected"
	}
	if !det.Healthy {
		opsf("sensor unhealthy: %s (weather=%s)", det.Reason, env.Weather)
	}

	fraction := s.modalityFraction()
	factor := s.constants.WeatherFactor(env.Weather)

	for _, obj := range objects {
		r := obj.Position.Norm()
		if r > s.constants.DetectionRange {
			tracef("object %d (%s) at %.1fm beyond range %.1fm", obj.ID, obj.Class, r, s.constants.DetectionRange)
			continue
		}
		det.InRange++

		p := s.constants.DetectionProbability(obj.Class, env.Weather) * fraction
		if s.rng.Float64() >= p {
			tracef("object %d (%s) at %.1fm missed (p=%.3f)", obj.ID, obj.Class, r, p)
			continue
		}

		sigma := s.constants.PositionNoiseStd
		if factor > 0 {
			sigma /= factor
		}
		pos := aeb.Vec2{
			X: obj.Position.X + s.rng.NormFloat64()*sigma,
			Y: obj.Position.Y + s.rng.NormFloat64()*sigma,
		}
		det.Objects = append(det.Objects, aeb.DetectedObject{
			ID:         obj.ID,
			Class:      obj.Class,
			Position:   pos,
			Velocity:   obj.Velocity,
			Size:       obj.Size,
			Range:      r,
			Confidence: p * (0.9 + 0.1*s.rng.Float64()),
		})
	}

	tracef("detected %d/%d in-range objects (%d total), reliability %.2f",
		len(det.Objects), det.InRange, len(objects), det.Reliability)
	return det, nil
}
