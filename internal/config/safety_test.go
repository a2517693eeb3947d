package config

import (
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/aeb/internal/aeb"
)

func TestDefaultSafetyConfig(t *testing.T) {
	cfg := DefaultSafetyConfig()

	if cfg.DetectionRangeM == nil || *cfg.DetectionRangeM != 50 {
		t.Errorf("Expected DetectionRangeM 50, got %v", cfg.DetectionRangeM)
	}
	if cfg.MaxDecisionLatency == nil || *cfg.MaxDecisionLatency != "100ms" {
		t.Errorf("Expected MaxDecisionLatency '100ms', got %v", cfg.MaxDecisionLatency)
	}
	if cfg.SimulationTick == nil || *cfg.SimulationTick != "120ms" {
		t.Errorf("Expected SimulationTick '120ms', got %v", cfg.SimulationTick)
	}
	if got := cfg.WeatherReliability["light_rain"]; got != 0.97 {
		t.Errorf("Expected light_rain reliability 0.97, got %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("DefaultSafetyConfig() does not validate: %v", err)
	}
}

func TestDefaultConstants(t *testing.T) {
	sc := DefaultConstants()

	if sc.TTCThreshold(aeb.ClassPedestrian) != 1.5 {
		t.Errorf("pedestrian threshold = %v, want 1.5", sc.TTCThreshold(aeb.ClassPedestrian))
	}
	if sc.TTCThreshold(aeb.ClassCyclist) != 1.5 {
		t.Errorf("cyclist threshold = %v, want 1.5", sc.TTCThreshold(aeb.ClassCyclist))
	}
	if sc.TTCThreshold(aeb.ClassVehicle) != 1.0 {
		t.Errorf("vehicle threshold = %v, want 1.0", sc.TTCThreshold(aeb.ClassVehicle))
	}
	if sc.WarningThreshold(aeb.ClassVehicle) != 1.5 {
		t.Errorf("vehicle warning threshold = %v, want 1.5", sc.WarningThreshold(aeb.ClassVehicle))
	}
	if math.Abs(sc.EgoSpeed-13.889) > 0.01 {
		t.Errorf("EgoSpeed = %v m/s, want ~13.9", sc.EgoSpeed)
	}
	if sc.MaxDecisionLatency != 100*time.Millisecond {
		t.Errorf("MaxDecisionLatency = %v, want 100ms", sc.MaxDecisionLatency)
	}
	if sc.HistoryCapacity != 20 {
		t.Errorf("HistoryCapacity = %d, want 20", sc.HistoryCapacity)
	}
	for _, w := range aeb.AllWeather() {
		if f := sc.WeatherFactor(w); f <= 0 || f > 1 {
			t.Errorf("WeatherFactor(%s) = %v, want (0, 1]", w, f)
		}
		// Every condition must be able to meet its own target.
		if p := sc.DetectionProbability(aeb.ClassPedestrian, w); p < sc.WeatherTarget(w) {
			t.Errorf("DetectionProbability(pedestrian, %s) = %v below target %v", w, p, sc.WeatherTarget(w))
		}
	}
	if sc.WeatherFactor("sandstorm") != 0 {
		t.Error("unknown weather should have zero reliability")
	}
}

func TestLoadSafetyConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "safety.json")

	testJSON := `{
  "detection_range_m": 80,
  "ego_speed": 30,
  "ego_speed_units": "mph",
  "weather_reliability": {"fog": 0.6},
  "max_decision_latency": "50ms",
  "warning_window_inclusive": false
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadSafetyConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	sc := cfg.Constants()

	if sc.DetectionRange != 80 {
		t.Errorf("DetectionRange = %v, want 80", sc.DetectionRange)
	}
	if math.Abs(sc.EgoSpeed-13.4112) > 1e-3 {
		t.Errorf("EgoSpeed = %v, want ~13.41 (30 mph)", sc.EgoSpeed)
	}
	if sc.WeatherFactor(aeb.WeatherFog) != 0.6 {
		t.Errorf("fog factor = %v, want 0.6", sc.WeatherFactor(aeb.WeatherFog))
	}
	if sc.WeatherFactor(aeb.WeatherNight) != 0.95 {
		t.Errorf("night factor = %v, want default 0.95", sc.WeatherFactor(aeb.WeatherNight))
	}
	if sc.MaxDecisionLatency != 50*time.Millisecond {
		t.Errorf("MaxDecisionLatency = %v, want 50ms", sc.MaxDecisionLatency)
	}
	if sc.WarningWindowInclusive {
		t.Error("WarningWindowInclusive = true, want false")
	}
	if sc.VulnerableTTCThreshold != 1.5 {
		t.Errorf("VulnerableTTCThreshold = %v, want default 1.5", sc.VulnerableTTCThreshold)
	}
}

func TestLoadSafetyConfigRejectsNonCanonicalKeys(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "safety.json")
	testJSON := `{"weather_reliability":{"light-rain":0.10},"class_detection_weights":{"Pedestrian":0.10}}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	if _, err := LoadSafetyConfig(configPath); err == nil {
		t.Fatal("LoadSafetyConfig accepted keys whose values would never be applied")
	}
}

func TestLoadDefaultConfigFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	got := cfg.Constants()
	want := DefaultConstants()

	if got.DetectionRange != want.DetectionRange ||
		got.DegradationProbability != want.DegradationProbability ||
		got.MaxSimulationTime != want.MaxSimulationTime ||
		math.Abs(got.EgoSpeed-want.EgoSpeed) > 1e-9 {
		t.Errorf("defaults file disagrees with built-in defaults:\nfile:     %+v\nbuilt-in: %+v", got, want)
	}
	for _, w := range aeb.AllWeather() {
		if got.WeatherFactor(w) != want.WeatherFactor(w) {
			t.Errorf("WeatherFactor(%s): file %v, built-in %v", w, got.WeatherFactor(w), want.WeatherFactor(w))
		}
		if got.WeatherTarget(w) != want.WeatherTarget(w) {
			t.Errorf("WeatherTarget(%s): file %v, built-in %v", w, got.WeatherTarget(w), want.WeatherTarget(w))
		}
	}
}

func TestLoadSafetyConfigMissing(t *testing.T) {
	if _, err := LoadSafetyConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file, got nil")
	}
}

func TestLoadSafetyConfigRejectsNonJSON(t *testing.T) {
	if _, err := LoadSafetyConfig("/some/path/config.yaml"); err == nil {
		t.Error("Expected error for non-.json extension, got nil")
	}
}

func TestLoadSafetyConfigRejectsLargeFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "large.json")
	if err := os.WriteFile(configPath, make([]byte, 2*1024*1024), 0644); err != nil {
		t.Fatalf("Failed to write large file: %v", err)
	}
	if _, err := LoadSafetyConfig(configPath); err == nil {
		t.Error("Expected error for file size > 1MB, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *SafetyConfig
		wantErr string
	}{
		{"empty", &SafetyConfig{}, ""},
		{"probability above one", &SafetyConfig{DegradationProbability: ptrFloat64(1.2)}, "degradation_probability"},
		{"negative accuracy", &SafetyConfig{BaseDetectionAccuracy: ptrFloat64(-0.1)}, "base_detection_accuracy"},
		{"zero range", &SafetyConfig{DetectionRangeM: ptrFloat64(0)}, "detection_range_m"},
		{"zero threshold", &SafetyConfig{VehicleTTCThreshold: ptrFloat64(0)}, "ttc_threshold_vehicle_s"},
		{"negative lead", &SafetyConfig{WarningLeadTime: ptrFloat64(-1)}, "warning_lead_time_s"},
		{"bad latency", &SafetyConfig{MaxDecisionLatency: ptrString("fast")}, "max_decision_latency"},
		{"non-positive tick", &SafetyConfig{SimulationTick: ptrString("0s")}, "simulation_tick"},
		{"bad units", &SafetyConfig{EgoSpeedUnits: ptrString("knots")}, "ego_speed_units"},
		{"zero history", &SafetyConfig{HistoryCapacity: ptrInt(0)}, "history_capacity"},
		{"unknown weather", &SafetyConfig{WeatherReliability: map[string]float64{"hail": 0.5}}, "weather_reliability"},
		{"unknown class", &SafetyConfig{ClassDetectionWeights: map[string]float64{"tram": 0.5}}, "class_detection_weights"},
		{"target above one", &SafetyConfig{WeatherReliabilityTargets: map[string]float64{"fog": 1.5}}, "weather_reliability_targets"},
		{"hyphenated weather", &SafetyConfig{WeatherReliability: map[string]float64{"light-rain": 0.5}}, "must be written as 'light_rain'"},
		{"capitalised class", &SafetyConfig{ClassDetectionWeights: map[string]float64{"Pedestrian": 0.5}}, "must be written as 'pedestrian'"},
		{"spaced target", &SafetyConfig{WeatherReliabilityTargets: map[string]float64{"heavy rain": 0.5}}, "weather_reliability_targets key 'heavy rain'"},
		{"canonical keys", &SafetyConfig{
			WeatherReliability:    map[string]float64{"light_rain": 0.5},
			ClassDetectionWeights: map[string]float64{"pedestrian": 0.5},
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error mentioning %q", err, tt.wantErr)
			}
		})
	}
}

func TestGetDurationFallsBackOnParseError(t *testing.T) {
	cfg := &SafetyConfig{MaxSimulationTime: ptrString("forever")}
	if got := cfg.GetMaxSimulationTime(); got != 10*time.Second {
		t.Errorf("GetMaxSimulationTime() = %v, want default 10s", got)
	}
}
