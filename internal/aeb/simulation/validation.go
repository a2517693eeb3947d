package simulation

import (
	"context"
	"encoding/binary"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	crand "crypto/rand"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/l1sensing"
	"github.com/banshee-data/aeb/internal/aeb/pipeline"
	"github.com/banshee-data/aeb/internal/config"
	"github.com/banshee-data/aeb/internal/timeutil"
)

// Requirement names reported by Validate.
const (
	ReqDetectionRange     = "detection_range"
	ReqDetectionAccuracy  = "detection_accuracy"
	ReqTTCCompliance      = "ttc_threshold_compliance"
	ReqResponseLatency    = "response_latency"
	ReqFailsafeTriggering = "failsafe_triggering"
	ReqFalsePositiveRate  = "false_positive_rate"
	reqWeatherPrefix      = "weather_reliability/"
)

// WeatherRequirement returns the requirement name for a weather condition.
func WeatherRequirement(w aeb.WeatherCondition) string {
	return reqWeatherPrefix + string(w)
}

// Comparator says how Observed is compared to Target.
type Comparator string

const (
	AtLeast Comparator = ">="
	AtMost  Comparator = "<="
)

// RequirementResult is the verdict for one requirement.
type RequirementResult struct {
	Name       string     `json:"name"`
	Target     float64    `json:"target"`
	Observed   float64    `json:"observed"`
	Passed     bool       `json:"passed"`
	Comparator Comparator `json:"comparator"`
	Samples    int        `json:"samples"`
	Detail     string     `json:"detail,omitempty"`
}

func verdict(name string, cmp Comparator, target, observed float64, samples int, detail string) RequirementResult {
	passed := observed >= target
	if cmp == AtMost {
		passed = observed <= target
	}
	return RequirementResult{
		Name: name, Target: target, Observed: observed, Passed: passed,
		Comparator: cmp, Samples: samples, Detail: detail,
	}
}

// LatencyStats summarises decision latencies observed during validation.
type LatencyStats struct {
	Mean    time.Duration `json:"mean_ns"`
	P50     time.Duration `json:"p50_ns"`
	P95     time.Duration `json:"p95_ns"`
	P99     time.Duration `json:"p99_ns"`
	Max     time.Duration `json:"max_ns"`
	Samples int           `json:"samples"`
}

// ValidationReport maps requirement names to verdicts.
type ValidationReport struct {
	ID           string                       `json:"id"`
	Seed         uint64                       `json:"seed"`
	Trials       int                          `json:"trials"`
	StartedAt    time.Time                    `json:"started_at"`
	FinishedAt   time.Time                    `json:"finished_at"`
	Requirements map[string]RequirementResult `json:"requirements"`
	Latency      LatencyStats                 `json:"latency"`
}

// Passed reports whether every requirement passed.
func (r *ValidationReport) Passed() bool {
	for _, req := range r.Requirements {
		if !req.Passed {
			return false
		}
	}
	return len(r.Requirements) > 0
}

// Names returns the requirement names in report order: the fixed
// requirements first, then weather conditions alphabetically.
func (r *ValidationReport) Names() []string {
	order := map[string]int{
		ReqDetectionRange:     0,
		ReqDetectionAccuracy:  1,
		ReqTTCCompliance:      2,
		ReqResponseLatency:    3,
		ReqFailsafeTriggering: 5,
		ReqFalsePositiveRate:  6,
	}
	rank := func(n string) int {
		if v, ok := order[n]; ok {
			return v
		}
		return 4 // weather conditions sit between latency and fail-safe
	}
	names := make([]string, 0, len(r.Requirements))
	for n := range r.Requirements {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		ri, rj := rank(names[i]), rank(names[j])
		if ri != rj {
			return ri < rj
		}
		return names[i] < names[j]
	})
	return names
}

// Ordered returns the verdicts in Names order.
func (r *ValidationReport) Ordered() []RequirementResult {
	out := make([]RequirementResult, 0, len(r.Requirements))
	for _, n := range r.Names() {
		out = append(out, r.Requirements[n])
	}
	return out
}

// ValidationOptions controls Validate.
type ValidationOptions struct {
	// Trials per probe; zero selects 1000.
	Trials int
	// Seed makes the run reproducible; zero draws a seed from crypto/rand.
	Seed uint64
	// Weathers to check reliability under; empty selects every condition.
	Weathers []aeb.WeatherCondition
	// Clock measures decision latency; nil selects the real clock.
	Clock timeutil.Clock
	// Parallelism caps concurrent probes; zero selects GOMAXPROCS.
	Parallelism int
}

// probe is one independent Monte Carlo experiment. Each probe gets its own
// System and Generator, so probes run concurrently without sharing state.
type probe struct {
	name string
	run  func(ctx context.Context, e *probeEnv) ([]RequirementResult, error)
}

type probeEnv struct {
	constants config.SafetyConstants
	system    *pipeline.System
	gen       *Generator
	trials    int
	latencies []float64 // seconds, one per evaluation
}

func (e *probeEnv) process(objects []aeb.GroundTruthObject) (*pipeline.Result, error) {
	res, err := e.system.ProcessScenario(objects)
	if err != nil {
		return nil, err
	}
	e.latencies = append(e.latencies, res.Latency.Seconds())
	return res, nil
}

// Validate runs every requirement probe and returns the report. It returns
// early with the context's error if ctx is cancelled.
func Validate(ctx context.Context, constants config.SafetyConstants, opts ValidationOptions) (*ValidationReport, error) {
	if opts.Trials <= 0 {
		opts.Trials = 1000
	}
	if opts.Seed == 0 {
		var b [8]byte
		if _, err := crand.Read(b[:]); err != nil {
			return nil, fmt.Errorf("seed validation run: %w", err)
		}
		opts.Seed = binary.LittleEndian.Uint64(b[:]) | 1
	}
	if len(opts.Weathers) == 0 {
		opts.Weathers = aeb.AllWeather()
	}
	for _, w := range opts.Weathers {
		if !w.Valid() {
			return nil, &aeb.InputError{Index: -1, Field: "weather", Reason: fmt.Sprintf("unknown weather condition %q", w)}
		}
	}
	clock := opts.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = runtime.GOMAXPROCS(0)
	}

	probes := []probe{
		{ReqDetectionRange, probeDetectionRange},
		{ReqDetectionAccuracy, probeDetectionAccuracy},
		{ReqTTCCompliance, probeTTCCompliance},
		{ReqResponseLatency, probeResponseLatency},
		{ReqFailsafeTriggering, probeFailsafe},
		{ReqFalsePositiveRate, probeFalsePositives},
	}
	for _, w := range opts.Weathers {
		probes = append(probes, probe{WeatherRequirement(w), weatherProbe(w)})
	}

	report := &ValidationReport{
		ID:           uuid.New().String(),
		Seed:         opts.Seed,
		Trials:       opts.Trials,
		StartedAt:    clock.Now(),
		Requirements: make(map[string]RequirementResult, len(probes)),
	}

	var (
		mu        sync.Mutex
		latencies []float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Parallelism)
	for i, p := range probes {
		seed := opts.Seed + uint64(i)*0x9e3779b97f4a7c15
		g.Go(func() error {
			env := &probeEnv{
				constants: constants,
				system: pipeline.NewSystem(constants,
					pipeline.WithRandomSource(l1sensing.NewSeededSource(seed)),
					pipeline.WithClock(clock)),
				gen:    NewGenerator(constants, ^seed),
				trials: opts.Trials,
			}
			results, err := p.run(gctx, env)
			if err != nil {
				return fmt.Errorf("%s: %w", p.name, err)
			}
			mu.Lock()
			defer mu.Unlock()
			for _, r := range results {
				report.Requirements[r.Name] = r
			}
			latencies = append(latencies, env.latencies...)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.Latency = summariseLatency(latencies)
	report.FinishedAt = clock.Now()
	for _, r := range report.Ordered() {
		if !r.Passed {
			opsf("requirement %s failed: observed %.4f %s target %.4f", r.Name, r.Observed, r.Comparator, r.Target)
		}
	}
	diagf("validation %s: %d requirements, passed=%t, seed=%d", report.ID, len(report.Requirements), report.Passed(), report.Seed)
	return report, nil
}

func summariseLatency(xs []float64) LatencyStats {
	if len(xs) == 0 {
		return LatencyStats{}
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	sec := func(v float64) time.Duration { return time.Duration(v * float64(time.Second)) }
	return LatencyStats{
		Mean:    sec(stat.Mean(sorted, nil)),
		P50:     sec(stat.Quantile(0.50, stat.Empirical, sorted, nil)),
		P95:     sec(stat.Quantile(0.95, stat.Empirical, sorted, nil)),
		P99:     sec(stat.Quantile(0.99, stat.Empirical, sorted, nil)),
		Max:     sec(sorted[len(sorted)-1]),
		Samples: len(sorted),
	}
}

// probeDetectionRange: nothing beyond the range may ever be detected.
func probeDetectionRange(ctx context.Context, e *probeEnv) ([]RequirementResult, error) {
	detected := 0
	for i := 0; i < e.trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.process([]aeb.GroundTruthObject{e.gen.OutOfRangeObject(1)})
		if err != nil {
			return nil, err
		}
		detected += res.DetectedObjectCount
	}
	return []RequirementResult{verdict(ReqDetectionRange, AtMost, 0, float64(detected), e.trials,
		fmt.Sprintf("objects beyond %.0fm detected", e.constants.DetectionRange))}, nil
}

// probeDetectionAccuracy: clear-weather detection rate of in-range objects.
func probeDetectionAccuracy(ctx context.Context, e *probeEnv) ([]RequirementResult, error) {
	rate, n, err := detectionRate(ctx, e)
	if err != nil {
		return nil, err
	}
	return []RequirementResult{verdict(ReqDetectionAccuracy, AtLeast, e.constants.MinDetectionAccuracy, rate, n,
		"in-range detection rate, clear weather")}, nil
}

func weatherProbe(w aeb.WeatherCondition) func(context.Context, *probeEnv) ([]RequirementResult, error) {
	return func(ctx context.Context, e *probeEnv) ([]RequirementResult, error) {
		if err := e.system.SetWeather(w); err != nil {
			return nil, err
		}
		rate, n, err := detectionRate(ctx, e)
		if err != nil {
			return nil, err
		}
		return []RequirementResult{verdict(WeatherRequirement(w), AtLeast, e.constants.WeatherTarget(w), rate, n,
			fmt.Sprintf("in-range detection rate, %s", w))}, nil
	}
}

func detectionRate(ctx context.Context, e *probeEnv) (float64, int, error) {
	detected, inRange := 0, 0
	for i := 0; i < e.trials; i++ {
		if err := ctx.Err(); err != nil {
			return 0, 0, err
		}
		res, err := e.process([]aeb.GroundTruthObject{e.gen.InRangeObject(1)})
		if err != nil {
			return 0, 0, err
		}
		detected += res.DetectedObjectCount
		inRange += res.InRangeCount
	}
	if inRange == 0 {
		return 0, 0, nil
	}
	return float64(detected) / float64(inRange), inRange, nil
}

// probeTTCCompliance: imminent scenarios must end in a brake within the
// latency budget. A brake can only follow a detection, so the target is the
// detection accuracy; a detected imminent object that did not brake fails
// the requirement outright.
func probeTTCCompliance(ctx context.Context, e *probeEnv) ([]RequirementResult, error) {
	braked, detected, missedAfterDetect := 0, 0, 0
	for i := 0; i < e.trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.process([]aeb.GroundTruthObject{e.gen.ImminentObject(1, e.system.EgoSpeed())})
		if err != nil {
			return nil, err
		}
		ok := res.Action == aeb.ActionEmergencyBrake && !res.LatencyViolation
		if ok {
			braked++
		}
		if res.DetectedObjectCount > 0 {
			detected++
			if !ok {
				missedAfterDetect++
			}
		}
	}
	rate := float64(braked) / float64(e.trials)
	r := verdict(ReqTTCCompliance, AtLeast, e.constants.MinDetectionAccuracy, rate, e.trials,
		fmt.Sprintf("%d/%d detected imminent scenarios braked in budget", detected-missedAfterDetect, detected))
	if missedAfterDetect > 0 {
		r.Passed = false
	}
	return []RequirementResult{r}, nil
}

// probeResponseLatency: fraction of decisions inside the latency budget.
func probeResponseLatency(ctx context.Context, e *probeEnv) ([]RequirementResult, error) {
	within := 0
	for i := 0; i < e.trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := e.process(e.gen.RandomScenario())
		if err != nil {
			return nil, err
		}
		if !res.LatencyViolation {
			within++
		}
	}
	return []RequirementResult{verdict(ReqResponseLatency, AtLeast, e.constants.RequiredAvailability,
		float64(within)/float64(e.trials), e.trials,
		fmt.Sprintf("decisions within %s", e.constants.MaxDecisionLatency))}, nil
}

// probeFailsafe alternates forced degradation, double modality failure and
// healthy runs. Unhealthy runs must brake in fail-safe; healthy runs must
// never enter fail-safe.
func probeFailsafe(ctx context.Context, e *probeEnv) ([]RequirementResult, error) {
	correct := 0
	for i := 0; i < e.trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e.system.RestoreModalities()
		wantFailsafe := true
		switch i % 3 {
		case 0:
			if err := e.system.SetDegradation(true, 1.0); err != nil {
				return nil, err
			}
		case 1:
			if err := e.system.SetDegradation(false, 0); err != nil {
				return nil, err
			}
			if err := e.system.FailModality(l1sensing.ModalityCamera); err != nil {
				return nil, err
			}
			if err := e.system.FailModality(l1sensing.ModalityRadar); err != nil {
				return nil, err
			}
		default:
			wantFailsafe = false
			if err := e.system.SetDegradation(false, 0); err != nil {
				return nil, err
			}
		}
		res, err := e.process(e.gen.RandomScenario())
		if err != nil {
			return nil, err
		}
		gotFailsafe := res.State == aeb.StateFailsafe && res.Action == aeb.ActionEmergencyBrake
		if gotFailsafe == wantFailsafe {
			correct++
		}
	}
	e.system.RestoreModalities()
	return []RequirementResult{verdict(ReqFailsafeTriggering, AtLeast, 1.0,
		float64(correct)/float64(e.trials), e.trials, "fail-safe engaged exactly when the sensor was unhealthy")}, nil
}

// probeFalsePositives: objects outside the ego path must never brake.
func probeFalsePositives(ctx context.Context, e *probeEnv) ([]RequirementResult, error) {
	brakes := 0
	for i := 0; i < e.trials; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		scene := FalsePositive()
		if i%2 == 1 {
			scene = []aeb.GroundTruthObject{e.gen.OutOfPathObject(1)}
		}
		res, err := e.process(scene)
		if err != nil {
			return nil, err
		}
		if res.Braking {
			brakes++
		}
	}
	return []RequirementResult{verdict(ReqFalsePositiveRate, AtMost, e.constants.MaxFalsePositiveRate,
		float64(brakes)/float64(e.trials), e.trials, "brakes for out-of-path objects")}, nil
}
