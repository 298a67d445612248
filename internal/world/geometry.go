package world

import "math"

// Clamp limits value to the range [min, max].
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Normalize scales (dx, dy) to unit length. A zero vector stays zero.
func Normalize(dx, dy float64) (float64, float64) {
	length := math.Hypot(dx, dy)
	if length == 0 {
		return 0, 0
	}
	return dx / length, dy / length
}

func distance(ax, ay, bx, by float64) float64 {
	return math.Hypot(bx-ax, by-ay)
}

func circlesOverlap(ax, ay, ar, bx, by, br float64) bool {
	return distance(ax, ay, bx, by) <= ar+br
}
