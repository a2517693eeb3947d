package aeb

import (
	"fmt"
	"strings"
)

// ObjectClass is the closed set of road users the core reasons about.
type ObjectClass string

const (
	ClassPedestrian ObjectClass = "pedestrian"
	ClassCyclist    ObjectClass = "cyclist"
	ClassVehicle    ObjectClass = "vehicle"
)

// AllClasses lists every object class in a stable order.
func AllClasses() []ObjectClass {
	return []ObjectClass{ClassPedestrian, ClassCyclist, ClassVehicle}
}

// ParseObjectClass maps a descriptor string onto an ObjectClass. Matching is
// case-insensitive; unknown values are rejected.
func ParseObjectClass(s string) (ObjectClass, error) {
	c := ObjectClass(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown object class %q", s)
	}
	return c, nil
}

// Valid reports whether c is one of the known classes.
func (c ObjectClass) Valid() bool {
	switch c {
	case ClassPedestrian, ClassCyclist, ClassVehicle:
		return true
	}
	return false
}

// IsVulnerable reports whether c is a vulnerable road user. Vulnerable road
// users get the longer imminent-threat threshold.
func (c ObjectClass) IsVulnerable() bool {
	return c == ClassPedestrian || c == ClassCyclist
}

// WeatherCondition selects the sensor reliability factor for a run.
type WeatherCondition string

const (
	WeatherClear     WeatherCondition = "clear"
	WeatherLightRain WeatherCondition = "light_rain"
	WeatherHeavyRain WeatherCondition = "heavy_rain"
	WeatherFog       WeatherCondition = "fog"
	WeatherNight     WeatherCondition = "night"
)

// AllWeather lists every weather condition in a stable order.
func AllWeather() []WeatherCondition {
	return []WeatherCondition{WeatherClear, WeatherLightRain, WeatherHeavyRain, WeatherFog, WeatherNight}
}

// ParseWeather maps a string onto a WeatherCondition. Hyphens and spaces are
// accepted in place of underscores ("light-rain", "light rain").
func ParseWeather(s string) (WeatherCondition, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_").Replace(norm)
	w := WeatherCondition(norm)
	if !w.Valid() {
		return "", fmt.Errorf("unknown weather condition %q", s)
	}
	return w, nil
}

// Valid reports whether w is one of the known conditions.
func (w WeatherCondition) Valid() bool {
	switch w {
	case WeatherClear, WeatherLightRain, WeatherHeavyRain, WeatherFog, WeatherNight:
		return true
	}
	return false
}

// SystemState is the externally visible operating state after a decision.
type SystemState string

const (
	StateNormal   SystemState = "normal"
	StateWarning  SystemState = "warning"
	StateBraking  SystemState = "braking"
	StateFailsafe SystemState = "failsafe"
)

// Action is the output command of the decision engine.
type Action string

const (
	ActionMonitor        Action = "monitor"
	ActionWarning        Action = "warning"
	ActionEmergencyBrake Action = "emergency_brake"
)

// Severity orders actions from least to most severe.
func (a Action) Severity() int {
	switch a {
	case ActionWarning:
		return 1
	case ActionEmergencyBrake:
		return 2
	default:
		return 0
	}
}

// Cause records why an emergency brake was commanded.
type Cause string

const (
	CauseNone     Cause = "none"
	CauseThreat   Cause = "threat"
	CauseFailsafe Cause = "failsafe"
)

// ThreatLevel is the per-object and per-scenario threat classification.
type ThreatLevel int

const (
	ThreatNone ThreatLevel = iota
	ThreatMonitor
	ThreatImminent
)

func (l ThreatLevel) String() string {
	switch l {
	case ThreatMonitor:
		return "monitor"
	case ThreatImminent:
		return "imminent"
	default:
		return "none"
	}
}

// MarshalText encodes the level by name.
func (l ThreatLevel) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name.
func (l *ThreatLevel) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none":
		*l = ThreatNone
	case "monitor":
		*l = ThreatMonitor
	case "imminent":
		*l = ThreatImminent
	default:
		return fmt.Errorf("unknown threat level %q", b)
	}
	return nil
}
