package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/units"
)

// DefaultConfigPath is the path to the canonical safety defaults file.
const DefaultConfigPath = "config/safety.defaults.json"

// SafetyConfig is the on-disk form of the safety parameters. Every field is
// optional: nil fields and missing map keys fall back to the defaults
// returned by the Get* methods, so partial files are safe.
type SafetyConfig struct {
	// Sensing
	DetectionRangeM        *float64           `json:"detection_range_m,omitempty"`
	BaseDetectionAccuracy  *float64           `json:"base_detection_accuracy,omitempty"`
	ClassDetectionWeights  map[string]float64 `json:"class_detection_weights,omitempty"`
	WeatherReliability     map[string]float64 `json:"weather_reliability,omitempty"`
	PositionNoiseStdM      *float64           `json:"position_noise_std_m,omitempty"`
	MinSensorReliability   *float64           `json:"min_sensor_reliability,omitempty"`
	DegradationProbability *float64           `json:"degradation_probability,omitempty"`

	// Threat assessment
	VulnerableTTCThreshold *float64 `json:"ttc_threshold_vulnerable_s,omitempty"`
	VehicleTTCThreshold    *float64 `json:"ttc_threshold_vehicle_s,omitempty"`
	WarningLeadTime        *float64 `json:"warning_lead_time_s,omitempty"`
	WarningWindowInclusive *bool    `json:"warning_window_inclusive,omitempty"`
	PathHalfWidthM         *float64 `json:"path_half_width_m,omitempty"`
	EgoSpeed               *float64 `json:"ego_speed,omitempty"`
	EgoSpeedUnits          *string  `json:"ego_speed_units,omitempty"`

	// Decision
	MaxDecisionLatency *string `json:"max_decision_latency,omitempty"` // duration string like "100ms"

	// Requirement targets
	MinDetectionAccuracy      *float64           `json:"min_detection_accuracy,omitempty"`
	WeatherReliabilityTargets map[string]float64 `json:"weather_reliability_targets,omitempty"`
	MaxFalsePositiveRate      *float64           `json:"max_false_positive_rate,omitempty"`
	RequiredAvailability      *float64           `json:"required_availability,omitempty"`

	// Simulation
	CollisionDistanceM *float64 `json:"collision_distance_m,omitempty"`
	MaxSimulationTime  *string  `json:"max_simulation_time,omitempty"` // duration string like "10s"
	SimulationTick     *string  `json:"simulation_tick,omitempty"`     // duration string like "120ms"
	HistoryCapacity    *int     `json:"history_capacity,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

var (
	defaultClassWeights = map[aeb.ObjectClass]float64{
		aeb.ClassPedestrian: 0.99,
		aeb.ClassCyclist:    0.99,
		aeb.ClassVehicle:    1.0,
	}
	defaultWeatherReliability = map[aeb.WeatherCondition]float64{
		aeb.WeatherClear:     1.0,
		aeb.WeatherLightRain: 0.97,
		aeb.WeatherHeavyRain: 0.92,
		aeb.WeatherFog:       0.85,
		aeb.WeatherNight:     0.95,
	}
	defaultWeatherTargets = map[aeb.WeatherCondition]float64{
		aeb.WeatherClear:     0.95,
		aeb.WeatherLightRain: 0.90,
		aeb.WeatherHeavyRain: 0.85,
		aeb.WeatherFog:       0.75,
		aeb.WeatherNight:     0.90,
	}
)

// EmptySafetyConfig returns a SafetyConfig with all fields unset.
func EmptySafetyConfig() *SafetyConfig {
	return &SafetyConfig{}
}

// DefaultSafetyConfig returns a SafetyConfig with every field populated
// from the built-in defaults.
func DefaultSafetyConfig() *SafetyConfig {
	e := EmptySafetyConfig()
	cfg := &SafetyConfig{
		DetectionRangeM:           ptrFloat64(e.GetDetectionRangeM()),
		BaseDetectionAccuracy:     ptrFloat64(e.GetBaseDetectionAccuracy()),
		ClassDetectionWeights:     map[string]float64{},
		WeatherReliability:        map[string]float64{},
		PositionNoiseStdM:         ptrFloat64(e.GetPositionNoiseStdM()),
		MinSensorReliability:      ptrFloat64(e.GetMinSensorReliability()),
		DegradationProbability:    ptrFloat64(e.GetDegradationProbability()),
		VulnerableTTCThreshold:    ptrFloat64(e.GetVulnerableTTCThreshold()),
		VehicleTTCThreshold:       ptrFloat64(e.GetVehicleTTCThreshold()),
		WarningLeadTime:           ptrFloat64(e.GetWarningLeadTime()),
		WarningWindowInclusive:    ptrBool(e.GetWarningWindowInclusive()),
		PathHalfWidthM:            ptrFloat64(e.GetPathHalfWidthM()),
		EgoSpeed:                  ptrFloat64(50),
		EgoSpeedUnits:             ptrString(units.KPH),
		MaxDecisionLatency:        ptrString(e.GetMaxDecisionLatency().String()),
		MinDetectionAccuracy:      ptrFloat64(e.GetMinDetectionAccuracy()),
		WeatherReliabilityTargets: map[string]float64{},
		MaxFalsePositiveRate:      ptrFloat64(e.GetMaxFalsePositiveRate()),
		RequiredAvailability:      ptrFloat64(e.GetRequiredAvailability()),
		CollisionDistanceM:        ptrFloat64(e.GetCollisionDistanceM()),
		MaxSimulationTime:         ptrString(e.GetMaxSimulationTime().String()),
		SimulationTick:            ptrString(e.GetSimulationTick().String()),
		HistoryCapacity:           ptrInt(e.GetHistoryCapacity()),
	}
	for c, v := range defaultClassWeights {
		cfg.ClassDetectionWeights[string(c)] = v
	}
	for w, v := range defaultWeatherReliability {
		cfg.WeatherReliability[string(w)] = v
	}
	for w, v := range defaultWeatherTargets {
		cfg.WeatherReliabilityTargets[string(w)] = v
	}
	return cfg
}

// LoadSafetyConfig loads a SafetyConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults.
func LoadSafetyConfig(path string) (*SafetyConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptySafetyConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical defaults from DefaultConfigPath,
// searching the current directory and its parents. Panics if the file cannot
// be loaded; intended for test setup.
func MustLoadDefaultConfig() *SafetyConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // from internal/aeb/pipeline/
		"../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadSafetyConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are usable.
func (c *SafetyConfig) Validate() error {
	probabilities := map[string]*float64{
		"base_detection_accuracy": c.BaseDetectionAccuracy,
		"min_sensor_reliability":  c.MinSensorReliability,
		"degradation_probability": c.DegradationProbability,
		"min_detection_accuracy":  c.MinDetectionAccuracy,
		"max_false_positive_rate": c.MaxFalsePositiveRate,
		"required_availability":   c.RequiredAvailability,
	}
	for name, p := range probabilities {
		if p != nil && (*p < 0 || *p > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *p)
		}
	}

	positives := map[string]*float64{
		"detection_range_m":          c.DetectionRangeM,
		"ttc_threshold_vulnerable_s": c.VulnerableTTCThreshold,
		"ttc_threshold_vehicle_s":    c.VehicleTTCThreshold,
		"collision_distance_m":       c.CollisionDistanceM,
	}
	for name, v := range positives {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %f", name, *v)
		}
	}

	if c.WarningLeadTime != nil && *c.WarningLeadTime < 0 {
		return fmt.Errorf("warning_lead_time_s must be non-negative, got %f", *c.WarningLeadTime)
	}
	if c.PositionNoiseStdM != nil && *c.PositionNoiseStdM < 0 {
		return fmt.Errorf("position_noise_std_m must be non-negative, got %f", *c.PositionNoiseStdM)
	}
	if c.EgoSpeed != nil && *c.EgoSpeed < 0 {
		return fmt.Errorf("ego_speed must be non-negative, got %f", *c.EgoSpeed)
	}
	if c.EgoSpeedUnits != nil && !units.IsValid(*c.EgoSpeedUnits) {
		return fmt.Errorf("ego_speed_units %q is not one of mps, mph, kmph, kph", *c.EgoSpeedUnits)
	}
	if c.HistoryCapacity != nil && *c.HistoryCapacity < 1 {
		return fmt.Errorf("history_capacity must be at least 1, got %d", *c.HistoryCapacity)
	}

	durations := map[string]*string{
		"max_decision_latency": c.MaxDecisionLatency,
		"max_simulation_time":  c.MaxSimulationTime,
		"simulation_tick":      c.SimulationTick,
	}
	for name, s := range durations {
		if s == nil || *s == "" {
			continue
		}
		d, err := time.ParseDuration(*s)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, *s)
		}
	}

	for k, v := range c.ClassDetectionWeights {
		class, err := aeb.ParseObjectClass(k)
		if err != nil {
			return fmt.Errorf("class_detection_weights: %w", err)
		}
		// Getters look keys up verbatim, so only canonical names take effect.
		if string(class) != k {
			return fmt.Errorf("class_detection_weights key '%s' must be written as '%s'", k, class)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("class_detection_weights[%s] must be between 0 and 1, got %f", k, v)
		}
	}
	for name, m := range map[string]map[string]float64{
		"weather_reliability":         c.WeatherReliability,
		"weather_reliability_targets": c.WeatherReliabilityTargets,
	} {
		for k, v := range m {
			w, err := aeb.ParseWeather(k)
			if err != nil {
				return fmt.Errorf("%s: %w", name, err)
			}
			if string(w) != k {
				return fmt.Errorf("%s key '%s' must be written as '%s'", name, k, w)
			}
			if v < 0 || v > 1 {
				return fmt.Errorf("%s[%s] must be between 0 and 1, got %f", name, k, v)
			}
		}
	}
	return nil
}

func getFloat(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func getDuration(p *string, def time.Duration) time.Duration {
	if p == nil || *p == "" {
		return def
	}
	d, err := time.ParseDuration(*p)
	if err != nil {
		return def // default on parse error
	}
	return d
}

// GetDetectionRangeM returns the hard detection range cutoff in metres.
func (c *SafetyConfig) GetDetectionRangeM() float64 { return getFloat(c.DetectionRangeM, 50.0) }

// GetBaseDetectionAccuracy returns the clear-weather detection probability
// before class weighting.
func (c *SafetyConfig) GetBaseDetectionAccuracy() float64 {
	return getFloat(c.BaseDetectionAccuracy, 0.99)
}

// GetPositionNoiseStdM returns the clear-weather position noise std-dev.
func (c *SafetyConfig) GetPositionNoiseStdM() float64 { return getFloat(c.PositionNoiseStdM, 0.05) }

// GetMinSensorReliability returns the reliability floor below which the
// sensor suite is unhealthy.
func (c *SafetyConfig) GetMinSensorReliability() float64 {
	return getFloat(c.MinSensorReliability, 0.5)
}

// GetDegradationProbability returns the default degradation trial probability.
func (c *SafetyConfig) GetDegradationProbability() float64 {
	return getFloat(c.DegradationProbability, 0.35)
}

// GetVulnerableTTCThreshold returns the imminent threshold for pedestrians
// and cyclists, in seconds.
func (c *SafetyConfig) GetVulnerableTTCThreshold() float64 {
	return getFloat(c.VulnerableTTCThreshold, 1.5)
}

// GetVehicleTTCThreshold returns the imminent threshold for vehicles, in seconds.
func (c *SafetyConfig) GetVehicleTTCThreshold() float64 {
	return getFloat(c.VehicleTTCThreshold, 1.0)
}

// GetWarningLeadTime returns how far ahead of the imminent threshold a
// warning is raised, in seconds.
func (c *SafetyConfig) GetWarningLeadTime() float64 { return getFloat(c.WarningLeadTime, 0.5) }

// GetWarningWindowInclusive reports whether TTC == threshold+lead warns.
func (c *SafetyConfig) GetWarningWindowInclusive() bool {
	if c.WarningWindowInclusive == nil {
		return true
	}
	return *c.WarningWindowInclusive
}

// GetPathHalfWidthM returns the ego path corridor half-width. Values <= 0
// disable the corridor.
func (c *SafetyConfig) GetPathHalfWidthM() float64 { return getFloat(c.PathHalfWidthM, 2.0) }

// GetEgoSpeedMPS returns the ego speed converted to metres per second.
func (c *SafetyConfig) GetEgoSpeedMPS() float64 {
	speed := getFloat(c.EgoSpeed, 50)
	u := units.KPH
	if c.EgoSpeedUnits != nil {
		u = *c.EgoSpeedUnits
	}
	mps, err := units.ToMPS(speed, u)
	if err != nil {
		return speed
	}
	return mps
}

// GetMaxDecisionLatency returns the decision latency budget.
func (c *SafetyConfig) GetMaxDecisionLatency() time.Duration {
	return getDuration(c.MaxDecisionLatency, 100*time.Millisecond)
}

// GetMinDetectionAccuracy returns the clear-weather detection accuracy target.
func (c *SafetyConfig) GetMinDetectionAccuracy() float64 {
	return getFloat(c.MinDetectionAccuracy, 0.95)
}

// GetMaxFalsePositiveRate returns the ceiling on brakes for out-of-path objects.
func (c *SafetyConfig) GetMaxFalsePositiveRate() float64 {
	return getFloat(c.MaxFalsePositiveRate, 0.0001)
}

// GetRequiredAvailability returns the fraction of decisions that must land
// inside the latency budget.
func (c *SafetyConfig) GetRequiredAvailability() float64 {
	return getFloat(c.RequiredAvailability, 0.9999)
}

// GetCollisionDistanceM returns the simulated collision distance.
func (c *SafetyConfig) GetCollisionDistanceM() float64 { return getFloat(c.CollisionDistanceM, 0.5) }

// GetMaxSimulationTime returns the simulated-time cap for a stepped run.
func (c *SafetyConfig) GetMaxSimulationTime() time.Duration {
	return getDuration(c.MaxSimulationTime, 10*time.Second)
}

// GetSimulationTick returns the default simulation step.
func (c *SafetyConfig) GetSimulationTick() time.Duration {
	return getDuration(c.SimulationTick, 120*time.Millisecond)
}

// GetHistoryCapacity returns the scenario history ring size.
func (c *SafetyConfig) GetHistoryCapacity() int {
	if c.HistoryCapacity == nil {
		return 20
	}
	return *c.HistoryCapacity
}

// GetClassDetectionWeight returns the detection weighting for class.
func (c *SafetyConfig) GetClassDetectionWeight(class aeb.ObjectClass) float64 {
	if v, ok := c.ClassDetectionWeights[string(class)]; ok {
		return v
	}
	return defaultClassWeights[class]
}

// GetWeatherReliability returns the sensor reliability factor for w.
func (c *SafetyConfig) GetWeatherReliability(w aeb.WeatherCondition) float64 {
	if v, ok := c.WeatherReliability[string(w)]; ok {
		return v
	}
	return defaultWeatherReliability[w]
}

// GetWeatherReliabilityTarget returns the minimum acceptable detection rate
// under w.
func (c *SafetyConfig) GetWeatherReliabilityTarget(w aeb.WeatherCondition) float64 {
	if v, ok := c.WeatherReliabilityTargets[string(w)]; ok {
		return v
	}
	return defaultWeatherTargets[w]
}
