package simulation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/aeb/internal/aeb"
	"github.com/banshee-data/aeb/internal/config"
)

func TestBuiltin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"cyclist_ahead", "false_positive", "pedestrian_crossing"}, BuiltinNames())

	for _, name := range BuiltinNames() {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			objects, err := Builtin(name)
			require.NoError(t, err)
			require.NotEmpty(t, objects)
			assert.NoError(t, aeb.ValidateScene(objects))
		})
	}

	_, err := Builtin("nope")
	assert.Error(t, err)
}

func TestBuiltin_ReturnsFreshCopies(t *testing.T) {
	t.Parallel()

	a := PedestrianCrossing()
	a[0].Position.X = 0
	b := PedestrianCrossing()
	assert.Equal(t, 25.0, b[0].Position.X)
}

func TestPedestrianCrossing_ClosesInLane(t *testing.T) {
	t.Parallel()

	objs := PedestrianCrossing()
	require.Len(t, objs, 1)
	p := objs[0]
	assert.Equal(t, aeb.ClassPedestrian, p.Class)
	assert.Equal(t, aeb.Vec2{X: 25, Y: 1.5}, p.Position)
	assert.Equal(t, aeb.Vec2{X: -1.5, Y: 0}, p.Velocity)
}

func TestGenerator_Deterministic(t *testing.T) {
	t.Parallel()

	c := config.DefaultConstants()
	a := NewGenerator(c, 7).RandomScenario()
	b := NewGenerator(c, 7).RandomScenario()
	assert.Equal(t, a, b)
}

func TestGenerator_Bounds(t *testing.T) {
	t.Parallel()

	c := config.DefaultConstants()
	g := NewGenerator(c, 11)
	for i := 0; i < 500; i++ {
		for _, o := range g.RandomScenario() {
			assert.GreaterOrEqual(t, o.Position.X, 5.0)
			assert.LessOrEqual(t, o.Position.X, c.DetectionRange)
			assert.LessOrEqual(t, math.Abs(o.Position.Y), 2.0)
			assert.LessOrEqual(t, math.Abs(o.Velocity.X), 5.0)
		}
		for _, o := range g.AnimatedScenario() {
			assert.GreaterOrEqual(t, o.Position.X, 10.0)
			assert.LessOrEqual(t, math.Abs(o.Position.Y), 1.5)
		}

		in := g.InRangeObject(1)
		assert.LessOrEqual(t, in.Position.Norm(), c.DetectionRange)
		out := g.OutOfRangeObject(1)
		assert.Greater(t, out.Position.Norm(), c.DetectionRange)

		off := g.OutOfPathObject(1)
		assert.Greater(t, math.Abs(off.Position.Y), c.PathHalfWidth)

		imm := g.ImminentObject(1, 13.9)
		ttc := imm.Position.X / 13.9
		assert.Less(t, ttc, c.TTCThreshold(imm.Class))
		assert.LessOrEqual(t, math.Abs(imm.Position.Y), c.PathHalfWidth)
	}
}
