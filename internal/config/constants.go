package config

import (
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
)

// SafetyConstants is the resolved, immutable parameter set shared by every
// stage. Build it once with Constants or DefaultConstants and pass it by
// value. The per-class and per-weather tables are unexported and read through
// accessor methods, so holders cannot mutate them.
type SafetyConstants struct {
	DetectionRange         float64 // metres
	BaseDetectionAccuracy  float64
	PositionNoiseStd       float64 // metres
	MinSensorReliability   float64
	DegradationProbability float64

	VulnerableTTCThreshold float64 // seconds
	VehicleTTCThreshold    float64 // seconds
	WarningLeadTime        float64 // seconds
	WarningWindowInclusive bool
	PathHalfWidth          float64 // metres
	EgoSpeed               float64 // m/s

	MaxDecisionLatency time.Duration

	MinDetectionAccuracy float64
	MaxFalsePositiveRate float64
	RequiredAvailability float64

	CollisionDistance float64 // metres
	MaxSimulationTime time.Duration
	SimulationTick    time.Duration
	HistoryCapacity   int

	classWeights   map[aeb.ObjectClass]float64
	weatherFactors map[aeb.WeatherCondition]float64
	weatherTargets map[aeb.WeatherCondition]float64
}

// Constants resolves the configuration into a SafetyConstants value.
// Unset fields take their defaults. Call Validate first on untrusted input;
// LoadSafetyConfig already does.
func (c *SafetyConfig) Constants() SafetyConstants {
	sc := SafetyConstants{
		DetectionRange:         c.GetDetectionRangeM(),
		BaseDetectionAccuracy:  c.GetBaseDetectionAccuracy(),
		PositionNoiseStd:       c.GetPositionNoiseStdM(),
		MinSensorReliability:   c.GetMinSensorReliability(),
		DegradationProbability: c.GetDegradationProbability(),
		VulnerableTTCThreshold: c.GetVulnerableTTCThreshold(),
		VehicleTTCThreshold:    c.GetVehicleTTCThreshold(),
		WarningLeadTime:        c.GetWarningLeadTime(),
		WarningWindowInclusive: c.GetWarningWindowInclusive(),
		PathHalfWidth:          c.GetPathHalfWidthM(),
		EgoSpeed:               c.GetEgoSpeedMPS(),
		MaxDecisionLatency:     c.GetMaxDecisionLatency(),
		MinDetectionAccuracy:   c.GetMinDetectionAccuracy(),
		MaxFalsePositiveRate:   c.GetMaxFalsePositiveRate(),
		RequiredAvailability:   c.GetRequiredAvailability(),
		CollisionDistance:      c.GetCollisionDistanceM(),
		MaxSimulationTime:      c.GetMaxSimulationTime(),
		SimulationTick:         c.GetSimulationTick(),
		HistoryCapacity:        c.GetHistoryCapacity(),
		classWeights:           make(map[aeb.ObjectClass]float64),
		weatherFactors:         make(map[aeb.WeatherCondition]float64),
		weatherTargets:         make(map[aeb.WeatherCondition]float64),
	}
	for _, class := range aeb.AllClasses() {
		sc.classWeights[class] = c.GetClassDetectionWeight(class)
	}
	for _, w := range aeb.AllWeather() {
		sc.weatherFactors[w] = c.GetWeatherReliability(w)
		sc.weatherTargets[w] = c.GetWeatherReliabilityTarget(w)
	}
	return sc
}

// DefaultConstants returns the built-in safety constants.
func DefaultConstants() SafetyConstants {
	return EmptySafetyConfig().Constants()
}

// TTCThreshold returns the imminent-threat TTC threshold for class.
func (sc SafetyConstants) TTCThreshold(class aeb.ObjectClass) float64 {
	if class.IsVulnerable() {
		return sc.VulnerableTTCThreshold
	}
	return sc.VehicleTTCThreshold
}

// WarningThreshold returns the upper edge of the warning window for class.
func (sc SafetyConstants) WarningThreshold(class aeb.ObjectClass) float64 {
	return sc.TTCThreshold(class) + sc.WarningLeadTime
}

// ClassWeight returns the detection-accuracy weighting for class.
func (sc SafetyConstants) ClassWeight(class aeb.ObjectClass) float64 {
	return sc.classWeights[class]
}

// WeatherFactor returns the sensor reliability factor for w. Unknown
// conditions get zero, which makes the suite unhealthy.
func (sc SafetyConstants) WeatherFactor(w aeb.WeatherCondition) float64 {
	return sc.weatherFactors[w]
}

// WeatherTarget returns the minimum acceptable detection rate under w.
func (sc SafetyConstants) WeatherTarget(w aeb.WeatherCondition) float64 {
	return sc.weatherTargets[w]
}

// DetectionProbability is the chance an in-range object of class is
// detected under w.
func (sc SafetyConstants) DetectionProbability(class aeb.ObjectClass, w aeb.WeatherCondition) float64 {
	return sc.BaseDetectionAccuracy * sc.ClassWeight(class) * sc.WeatherFactor(w)
}
