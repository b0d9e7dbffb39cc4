package coord

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapAngle(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 0},
		{1, 1},
		{TwoPi, 0},
		{-1, TwoPi - 1},
		{TwoPi + 0.5, 0.5},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, WrapAngle(tt.in), 1e-12, "WrapAngle(%v)", tt.in)
	}
}

func TestPeriodicDistance_WrapsAroundTwoPi(t *testing.T) {
	// 0.1 and 2π-0.1 are 0.2 apart on the circle.
	d := PeriodicDistance([]float64{0.1}, []float64{TwoPi - 0.1})
	assert.InDelta(t, 0.2, d, 1e-12)

	// Identical points up to a full turn.
	d = PeriodicDistance([]float64{0, 1}, []float64{TwoPi, 1})
	assert.InDelta(t, 0, d, 1e-12)

	// Plain Euclidean when no wrap helps.
	d = PeriodicDistance([]float64{1, 1}, []float64{2, 2})
	assert.InDelta(t, math.Sqrt2, d, 1e-12)
}

func TestPeriodicDistance_PanicsOnLengthMismatch(t *testing.T) {
	assert.Panics(t, func() { PeriodicDistance([]float64{1}, []float64{1, 2}) })
}

func TestRandomDirection_UnitLength(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for dim := 1; dim <= 20; dim++ {
		dir := RandomDirection(rng, dim)
		var norm float64
		for _, v := range dir {
			norm += v * v
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-12, "dim=%d", dim)
	}
}

func TestDisplace_PreservesDistance(t *testing.T) {
	// Randomized trials across dimensionalities 1-20: the displaced point
	// sits exactly dist away from its origin under the periodic metric.
	rng := rand.New(rand.NewSource(42))
	for dim := 1; dim <= 20; dim++ {
		for trial := 0; trial < 50; trial++ {
			origin := RandomPoint(rng, dim)
			dist := math.Pi * rng.Float64()
			got := Displace(rng, origin, dist)
			assert.InDelta(t, dist, PeriodicDistance(origin, got), 1e-9, "dim=%d trial=%d", dim, trial)
			for _, v := range got {
				assert.True(t, v >= 0 && v < TwoPi, "coordinate %v outside [0, 2π)", v)
			}
		}
	}
}

func TestPaddingPoint_MatchesSeparation(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for dim := 1; dim <= 20; dim++ {
		g := RandomPoint(rng, dim)
		// Keep the other point close so every displacement component stays
		// below π and no wrap shortens the distance.
		p := make([]float64, dim)
		for i := range p {
			p[i] = WrapAngle(g[i] + 0.6*(rng.Float64()-0.5)/math.Sqrt(float64(dim)))
		}
		want := PeriodicDistance(g, p)
		pad := PaddingPoint(rng, g, p)
		assert.InDelta(t, want, PeriodicDistance(g, pad), 1e-9, "dim=%d", dim)
	}
}

func TestPaddingPoint_FreshDirectionPerCall(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	g := []float64{1, 1, 1}
	p := []float64{1.5, 1, 1}
	a := PaddingPoint(rng, g, p)
	b := PaddingPoint(rng, g, p)
	assert.NotEqual(t, a, b)
}
