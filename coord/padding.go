package coord

import (
	"math"
	"math/rand"
)

// TwoPi is the period of every parameter axis.
const TwoPi = 2 * math.Pi

// WrapAngle reduces v into [0, 2π).
func WrapAngle(v float64) float64 {
	w := math.Mod(v, TwoPi)
	if w < 0 {
		w += TwoPi
	}
	// math.Mod can round a tiny negative up to exactly 2π.
	if w >= TwoPi {
		w = 0
	}
	return w
}

// PeriodicDistance is the Euclidean distance between a and b where each
// coordinate may be shifted by ±2π, so 0 and 2π coincide.
// Panics if the vectors have different lengths.
func PeriodicDistance(a, b []float64) float64 {
	if len(a) != len(b) {
		panic("PeriodicDistance: vectors must have the same length")
	}
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sq := math.Min(d*d, (d+TwoPi)*(d+TwoPi))
		sq = math.Min(sq, (d-TwoPi)*(d-TwoPi))
		sum += sq
	}
	return math.Sqrt(sum)
}

// RandomDirection draws a unit vector uniformly on the (dim-1)-sphere by
// normalizing an isotropic Gaussian sample.
func RandomDirection(rng *rand.Rand, dim int) []float64 {
	dir := make([]float64, dim)
	for {
		var norm float64
		for i := range dir {
			dir[i] = rng.NormFloat64()
			norm += dir[i] * dir[i]
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for i := range dir {
				dir[i] /= norm
			}
			return dir
		}
	}
}

// Displace moves origin by dist along a fresh random direction and wraps the
// result into [0, 2π). For dist <= π the periodic distance between origin and
// the result equals dist.
func Displace(rng *rand.Rand, origin []float64, dist float64) []float64 {
	dir := RandomDirection(rng, len(origin))
	out := make([]float64, len(origin))
	for i := range origin {
		out[i] = WrapAngle(origin[i] + dist*dir[i])
	}
	return out
}

// PaddingPoint synthesizes a filler point for a slot whose own point is
// generator: it lies at the periodic separation between generator and other,
// in a random direction away from generator.
func PaddingPoint(rng *rand.Rand, generator, other []float64) []float64 {
	return Displace(rng, generator, PeriodicDistance(generator, other))
}

// RandomPoint draws a point uniformly from [0, 2π)^dim.
func RandomPoint(rng *rand.Rand, dim int) []float64 {
	x := make([]float64, dim)
	for i := range x {
		x[i] = TwoPi * rng.Float64()
	}
	return x
}
