package math

import (
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/rand"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// Random is a seeded float32 generator. Scenes use a fixed seed so the same
// file always produces the same placement.
type Random struct {
	rng *rand.Rand
}

func NewRandom(seed uint64) *Random {
	return &Random{rng: rand.New(rand.NewSource(seed))}
}

// InRange returns a value in [min, max).
func (r *Random) InRange(min, max float32) float32 {
	return min + r.rng.Float32()*(max-min)
}
