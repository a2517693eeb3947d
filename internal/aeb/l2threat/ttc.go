package l2threat

import (
	"math"

	"github.com/banshee-data/aeb/internal/aeb"
)

// TimeToCollision returns distance / closingSpeed.
//
// A non-positive closing speed means the gap is constant or growing and
// yields NoCollision. A non-positive distance means the object is already at
// or behind the ego front and yields 0.
func TimeToCollision(distance, closingSpeed float64) aeb.TTC {
	if closingSpeed <= 0 {
		return aeb.NoCollision
	}
	if distance <= 0 {
		return 0
	}
	return aeb.TTC(distance / closingSpeed)
}

// ClosingSpeed is the rate at which the gap to an object shrinks, given the
// ego speed and the object's longitudinal velocity (both road frame, m/s).
func ClosingSpeed(egoSpeed, objectVX float64) float64 {
	return egoSpeed - objectVX
}

func minTTC(a, b aeb.TTC) aeb.TTC {
	return aeb.TTC(math.Min(float64(a), float64(b)))
}
