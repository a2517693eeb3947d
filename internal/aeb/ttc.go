package aeb

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// TTC is a time-to-collision in seconds. +Inf means the object is not
// closing on the ego vehicle.
type TTC float64

// NoCollision is the TTC of an object that is not closing.
var NoCollision = TTC(math.Inf(1))

// Seconds returns the TTC as a plain float.
func (t TTC) Seconds() float64 { return float64(t) }

// IsInf reports whether no collision is predicted.
func (t TTC) IsInf() bool { return math.IsInf(float64(t), 1) }

func (t TTC) String() string {
	if t.IsInf() {
		return "inf"
	}
	return strconv.FormatFloat(float64(t), 'f', 2, 64) + "s"
}

// MarshalJSON writes finite values as numbers and +Inf as the string "inf";
// encoding/json rejects infinities otherwise.
func (t TTC) MarshalJSON() ([]byte, error) {
	if t.IsInf() {
		return []byte(`"inf"`), nil
	}
	if math.IsNaN(float64(t)) || math.IsInf(float64(t), -1) {
		return nil, fmt.Errorf("unrepresentable TTC %v", float64(t))
	}
	return json.Marshal(float64(t))
}

// UnmarshalJSON accepts a number or the string "inf".
func (t *TTC) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte(`"inf"`)) {
		*t = NoCollision
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("decode TTC: %w", err)
	}
	*t = TTC(f)
	return nil
}
