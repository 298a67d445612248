package world

import (
	"hash/fnv"
	"math"
	"math/rand"
)

// NewDeterministicRNG returns a generator whose stream depends only on the
// world seed and the label, so runs with the same seed lay out identically.
func NewDeterministicRNG(seed, label string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(seed))
	h.Write([]byte{0})
	h.Write([]byte(label))
	return rand.New(rand.NewSource(int64(h.Sum64() | 1)))
}

// rect is an axis-aligned spawn region.
type rect struct {
	minX, minY float64
	maxX, maxY float64
}

// inset shrinks the map by dx on the sides and dy on top and bottom.
func (w *World) inset(dx, dy float64) rect {
	return rect{minX: dx, minY: dy, maxX: w.width - dx, maxY: w.height - dy}
}

// around is the square of half-size r centred on (x, y).
func around(x, y, r float64) rect {
	return rect{minX: x - r, minY: y - r, maxX: x + r, maxY: y + r}
}

func (r rect) sample(rng *rand.Rand) (float64, float64) {
	return r.minX + rng.Float64()*(r.maxX-r.minX), r.minY + rng.Float64()*(r.maxY-r.minY)
}

// heading picks a uniformly random direction scaled to speed.
func heading(rng *rand.Rand, speed float64) (float64, float64) {
	angle := rng.Float64() * 2 * math.Pi
	return math.Cos(angle) * speed, math.Sin(angle) * speed
}
