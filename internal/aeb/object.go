package aeb

import "math"

// Vec2 is a vector in the ego frame: X is longitudinal (positive ahead of the
// ego vehicle), Y is lateral.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 { return math.Hypot(v.X, v.Y) }

func (v Vec2) finite() bool { return isFinite(v.X) && isFinite(v.Y) }

// Size is an object's footprint in metres.
type Size struct {
	Width  float64 `json:"width"`
	Length float64 `json:"length"`
}

// GroundTruthObject is an object present in the scene, whether or not the
// sensors see it. Positions are ego-relative; velocities are in the road frame
// so a parked object has zero velocity.
type GroundTruthObject struct {
	ID       int         `json:"id"`
	Class    ObjectClass `json:"type"`
	Position Vec2        `json:"position"`
	Velocity Vec2        `json:"velocity"`
	Size     Size        `json:"size"`
}

// Validate checks the object for values the pipeline cannot reason about.
// index is used for error reporting only.
func (o GroundTruthObject) Validate(index int) error {
	if !o.Class.Valid() {
		return inputErrorf(index, "type", "unknown object class %q", o.Class)
	}
	if !o.Position.finite() {
		return inputErrorf(index, "position", "coordinates must be finite, got (%v, %v)", o.Position.X, o.Position.Y)
	}
	if !o.Velocity.finite() {
		return inputErrorf(index, "velocity", "components must be finite, got (%v, %v)", o.Velocity.X, o.Velocity.Y)
	}
	if !isFinite(o.Size.Width) || !isFinite(o.Size.Length) {
		return inputErrorf(index, "size", "dimensions must be finite")
	}
	if o.Size.Width < 0 || o.Size.Length < 0 {
		return inputErrorf(index, "size", "dimensions must be non-negative, got (%v, %v)", o.Size.Width, o.Size.Length)
	}
	return nil
}

// ValidateScene validates every object of a scene and returns the first
// failure.
func ValidateScene(objects []GroundTruthObject) error {
	for i, o := range objects {
		if err := o.Validate(i); err != nil {
			return err
		}
	}
	return nil
}

// CloneScene returns a deep copy of objects.
func CloneScene(objects []GroundTruthObject) []GroundTruthObject {
	if objects == nil {
		return nil
	}
	out := make([]GroundTruthObject, len(objects))
	copy(out, objects)
	return out
}

// DetectedObject is what the sensor stage reports for an object it saw.
// Position may carry measurement noise; Range is the true distance used for
// the detection-range cutoff.
type DetectedObject struct {
	ID         int         `json:"id"`
	Class      ObjectClass `json:"type"`
	Position   Vec2        `json:"position"`
	Velocity   Vec2        `json:"velocity"`
	Size       Size        `json:"size"`
	Range      float64     `json:"range_m"`
	Confidence float64     `json:"confidence"`
}

func isFinite(f float64) bool { return !math.IsNaN(f) && !math.IsInf(f, 0) }
