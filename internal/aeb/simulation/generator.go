package simulation

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/aeb/l1sensing"
	"github.com/banshee-data/aeb/internal/config"
)

var classSizes = map[aeb.ObjectClass]aeb.Size{
	aeb.ClassPedestrian: {Width: 0.6, Length: 0.6},
	aeb.ClassCyclist:    {Width: 0.6, Length: 1.8},
	aeb.ClassVehicle:    {Width: 1.8, Length: 4.5},
}

// NewObject returns a ground-truth object with the class's nominal size.
func NewObject(id int, class aeb.ObjectClass, x, y, vx, vy float64) aeb.GroundTruthObject {
	return aeb.GroundTruthObject{
		ID:       id,
		Class:    class,
		Position: aeb.Vec2{X: x, Y: y},
		Velocity: aeb.Vec2{X: vx, Y: vy},
		Size:     classSizes[class],
	}
}

// PedestrianCrossing is a pedestrian 25m ahead at the lane edge, walking
// towards the ego vehicle.
func PedestrianCrossing() []aeb.GroundTruthObject {
	return []aeb.GroundTruthObject{NewObject(1, aeb.ClassPedestrian, 25, 1.5, -1.5, 0)}
}

// CyclistAhead is a cyclist 30m ahead riding away slowly.
func CyclistAhead() []aeb.GroundTruthObject {
	return []aeb.GroundTruthObject{NewObject(1, aeb.ClassCyclist, 30, 0.5, 3, 0)}
}

// FalsePositive is a pedestrian on the verge, well outside the ego path.
func FalsePositive() []aeb.GroundTruthObject {
	return []aeb.GroundTruthObject{NewObject(1, aeb.ClassPedestrian, 20, 4.0, 1, 0)}
}

var builtins = map[string]func() []aeb.GroundTruthObject{
	"pedestrian_crossing": PedestrianCrossing,
	"cyclist_ahead":       CyclistAhead,
	"false_positive":      FalsePositive,
}

// Builtin returns a named scenario.
func Builtin(name string) ([]aeb.GroundTruthObject, error) {
	f, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q (available: %v)", name, BuiltinNames())
	}
	return f(), nil
}

// BuiltinNames lists the named scenarios.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Generator builds random scenes. It is not safe for concurrent use.
type Generator struct {
	rng       *rand.Rand
	constants config.SafetyConstants
}

// NewGenerator returns a generator with a deterministic seed.
func NewGenerator(constants config.SafetyConstants, seed uint64) *Generator {
	return &Generator{rng: l1sensing.NewSeededSource(seed), constants: constants}
}

// NewRandomGenerator returns a generator seeded from crypto/rand.
func NewRandomGenerator(constants config.SafetyConstants) *Generator {
	return &Generator{rng: l1sensing.NewSecureSource(), constants: constants}
}

func (g *Generator) uniform(lo, hi float64) float64 {
	return lo + g.rng.Float64()*(hi-lo)
}

// Class draws a class uniformly.
func (g *Generator) Class() aeb.ObjectClass {
	all := aeb.AllClasses()
	return all[g.rng.IntN(len(all))]
}

// RandomScenario returns 1-3 objects between 5m and the detection range,
// within 2m laterally, moving at up to 5 m/s either way.
func (g *Generator) RandomScenario() []aeb.GroundTruthObject {
	n := 1 + g.rng.IntN(3)
	out := make([]aeb.GroundTruthObject, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewObject(i+1, g.Class(),
			g.uniform(5, g.constants.DetectionRange),
			g.uniform(-2, 2),
			g.uniform(-5, 5), 0))
	}
	return out
}

// AnimatedScenario returns 1-3 objects between 10m and the detection range,
// within 1.5m laterally, moving at up to 2 m/s either way.
func (g *Generator) AnimatedScenario() []aeb.GroundTruthObject {
	n := 1 + g.rng.IntN(3)
	out := make([]aeb.GroundTruthObject, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, NewObject(i+1, g.Class(),
			g.uniform(10, g.constants.DetectionRange),
			g.uniform(-1.5, 1.5),
			g.uniform(-2, 2), 0))
	}
	return out
}

// InRangeObject returns one object inside the detection range at a bearing
// within 45 degrees of straight ahead.
func (g *Generator) InRangeObject(id int) aeb.GroundTruthObject {
	return g.polarObject(id, g.uniform(5, g.constants.DetectionRange))
}

// OutOfRangeObject returns one object beyond the detection range.
func (g *Generator) OutOfRangeObject(id int) aeb.GroundTruthObject {
	r := g.constants.DetectionRange + g.uniform(0.01, 150)
	return g.polarObject(id, r)
}

func (g *Generator) polarObject(id int, r float64) aeb.GroundTruthObject {
	theta := g.uniform(-math.Pi/4, math.Pi/4)
	return NewObject(id, g.Class(), r*math.Cos(theta), r*math.Sin(theta), g.uniform(-5, 5), 0)
}

// ImminentObject returns a stationary in-path object whose TTC at egoSpeed
// lies well inside its class's imminent threshold.
func (g *Generator) ImminentObject(id int, egoSpeed float64) aeb.GroundTruthObject {
	class := g.Class()
	ttc := g.uniform(0.2, 0.9*g.constants.TTCThreshold(class))
	return NewObject(id, class, ttc*egoSpeed, g.uniform(-1, 1), 0, 0)
}

// OutOfPathObject returns an object clear of the ego path corridor.
func (g *Generator) OutOfPathObject(id int) aeb.GroundTruthObject {
	hw := math.Max(g.constants.PathHalfWidth, 0)
	lateral := g.uniform(hw+0.5, hw+4)
	if g.rng.IntN(2) == 0 {
		lateral = -lateral
	}
	return NewObject(id, g.Class(), g.uniform(5, 30), lateral, g.uniform(-2, 2), 0)
}
