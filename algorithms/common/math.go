package common

import (
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Interpolate performs linear interpolation of (x, y) at xi. x must be
// strictly increasing; xi outside the grid takes the nearest end value.
func Interpolate(x, y []float64, xi float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0.0
	}
	if xi <= x[0] {
		return y[0]
	}
	if xi >= x[len(x)-1] {
		return y[len(y)-1]
	}

	// First index with x[right] > xi
	right := sort.SearchFloat64s(x, xi)
	if x[right] == xi {
		return y[right]
	}
	left := right - 1

	t := (xi - x[left]) / (x[right] - x[left])
	return Lerp(y[left], y[right], t)
}

// InterpolateAll interpolates (x, y) at every point of xi.
func InterpolateAll(x, y, xi []float64) []float64 {
	out := make([]float64, len(xi))
	for i, v := range xi {
		out[i] = Interpolate(x, y, v)
	}
	return out
}

// Clamp constrains a value to a range
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Lerp performs linear interpolation between two values
func Lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

// IsPowerOfTwo checks if n is a power of 2
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// NextPowerOfTwo finds the next power of 2 >= n
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}

	power := 1
	for power < n {
		power <<= 1
	}
	return power
}

// IsStrictlyIncreasing reports whether x has at least one element and every
// element is larger than the one before it.
func IsStrictlyIncreasing(x []float64) bool {
	if len(x) == 0 {
		return false
	}
	for i := 1; i < len(x); i++ {
		if !(x[i] > x[i-1]) {
			return false
		}
	}
	return !floats.HasNaN(x)
}
