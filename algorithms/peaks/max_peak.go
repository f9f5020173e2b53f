package peaks

import (
	"fmt"
	"math"
	"sort"

	"github.com/RyanBlaney/erp-slam/algorithms/common"
)

// Kind selects whether the stationary point is a maximum or a minimum.
type Kind int

const (
	// Peak is a local maximum (positive component).
	Peak Kind = iota

	// Trough is a local minimum (negative component).
	Trough
)

func (k Kind) String() string {
	switch k {
	case Peak:
		return "peak"
	case Trough:
		return "trough"
	default:
		return "unknown"
	}
}

// Result is the amplitude found near one latency.
type Result struct {
	Index     int     `json:"index"`     // Grid index of the extremum
	Location  float64 `json:"location"`  // Input location (refined when enabled)
	Amplitude float64 `json:"amplitude"` // Curve value at the extremum
}

// MaxPeak implements the "Max Peak" amplitude rule: instead of reading the
// curve at the latency itself, scan a small neighbourhood of the nearest grid
// index and take the extremal value. This makes the amplitude robust to the
// discretization of the input grid.
type MaxPeak struct {
	radius int  // Neighbourhood half-width in grid points
	refine bool // Parabolic refinement of the extremum
}

// NewMaxPeak creates an extractor scanning radius points on each side.
func NewMaxPeak(radius int, refine bool) *MaxPeak {
	if radius < 0 {
		radius = 0
	}
	return &MaxPeak{radius: radius, refine: refine}
}

// Radius returns the neighbourhood half-width.
func (m *MaxPeak) Radius() int {
	return m.radius
}

// Extract finds the extremum of curve near latency.
func (m *MaxPeak) Extract(curve, grid []float64, latency float64, kind Kind) (Result, error) {
	if len(curve) == 0 {
		return Result{}, fmt.Errorf("empty curve")
	}
	if len(curve) != len(grid) {
		return Result{}, fmt.Errorf("curve has %d points, grid has %d", len(curve), len(grid))
	}
	if math.IsNaN(latency) {
		return Result{}, fmt.Errorf("latency is NaN")
	}

	center := NearestIndex(grid, latency)
	lo := max(center-m.radius, 0)
	hi := min(center+m.radius, len(curve)-1)

	best := lo
	for i := lo + 1; i <= hi; i++ {
		if better(curve[i], curve[best], kind) {
			best = i
		}
	}

	res := Result{Index: best, Location: grid[best], Amplitude: curve[best]}
	if m.refine && best > 0 && best < len(curve)-1 {
		offset, value := ParabolicRefine(curve, best)
		if isExtremum(curve, best, kind) && math.Abs(offset) <= 0.5 {
			res.Amplitude = value
			step := grid[best+1] - grid[best]
			if offset < 0 {
				step = grid[best] - grid[best-1]
			}
			res.Location = grid[best] + offset*step
		}
	}
	return res, nil
}

// ExtractAll applies Extract to paired (curve, latency) draws and returns the
// amplitudes in draw order.
func (m *MaxPeak) ExtractAll(curves [][]float64, grid, latencies []float64, kind Kind) ([]float64, error) {
	if len(curves) != len(latencies) {
		return nil, fmt.Errorf("%d curves but %d latencies", len(curves), len(latencies))
	}
	out := make([]float64, len(curves))
	for i := range curves {
		res, err := m.Extract(curves[i], grid, latencies[i], kind)
		if err != nil {
			return nil, fmt.Errorf("draw %d: %w", i, err)
		}
		out[i] = res.Amplitude
	}
	return out, nil
}

func better(candidate, current float64, kind Kind) bool {
	if kind == Trough {
		return candidate < current
	}
	return candidate > current
}

func isExtremum(y []float64, i int, kind Kind) bool {
	if kind == Trough {
		return y[i] <= y[i-1] && y[i] <= y[i+1]
	}
	return y[i] >= y[i-1] && y[i] >= y[i+1]
}

// NearestIndex returns the index of the grid point closest to v. The grid
// must be sorted ascending.
func NearestIndex(grid []float64, v float64) int {
	if len(grid) == 0 {
		return -1
	}
	i := sort.SearchFloat64s(grid, v)
	if i == 0 {
		return 0
	}
	if i == len(grid) {
		return len(grid) - 1
	}
	if v-grid[i-1] <= grid[i]-v {
		return i - 1
	}
	return i
}

// ParabolicRefine fits a parabola through y[i-1], y[i], y[i+1] and returns the
// vertex offset (in grid steps, relative to i) and the vertex value.
func ParabolicRefine(y []float64, i int) (offset, value float64) {
	if i <= 0 || i >= len(y)-1 {
		return 0, y[i]
	}
	alpha, beta, gamma := y[i-1], y[i], y[i+1]
	denom := alpha - 2*beta + gamma
	if math.Abs(denom) < 1e-15 {
		return 0, beta
	}
	offset = 0.5 * (alpha - gamma) / denom
	value = beta - 0.25*(alpha-gamma)*offset
	return offset, value
}

// AtLatency reads the curve at the latency itself by linear interpolation
// between grid points.
func AtLatency(curve, grid []float64, latency float64) (float64, error) {
	if len(curve) == 0 || len(curve) != len(grid) {
		return 0, fmt.Errorf("curve has %d points, grid has %d", len(curve), len(grid))
	}
	if math.IsNaN(latency) {
		return 0, fmt.Errorf("latency is NaN")
	}
	return common.Interpolate(grid, curve, latency), nil
}
