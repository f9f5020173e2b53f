package peaks

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineGrid(n int) ([]float64, []float64) {
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = float64(i) / float64(n-1)
		// Peak 2.5 at x = 0.25, trough -2.5 at x = 0.75.
		y[i] = 2.5 * math.Sin(2*math.Pi*x[i])
	}
	return x, y
}

func TestMaxPeakNoiselessSine(t *testing.T) {
	x, y := sineGrid(101)

	tests := []struct {
		name    string
		latency float64
		kind    Kind
		want    float64
	}{
		{"exact peak", 0.25, Peak, 2.5},
		{"peak estimate off by two steps", 0.23, Peak, 2.5},
		{"exact trough", 0.75, Trough, -2.5},
		{"trough estimate off", 0.78, Trough, -2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewMaxPeak(3, false).Extract(y, x, tt.latency, tt.kind)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Amplitude, 1e-3)
		})
	}
}

func TestMaxPeakRefinementOnCoarseGrid(t *testing.T) {
	// Peak falls between two grid points.
	x := []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}
	y := make([]float64, len(x))
	for i, xi := range x {
		y[i] = 1 - 10*(xi-0.23)*(xi-0.23)
	}

	plain, err := NewMaxPeak(1, false).Extract(y, x, 0.2, Peak)
	require.NoError(t, err)
	refined, err := NewMaxPeak(1, true).Extract(y, x, 0.2, Peak)
	require.NoError(t, err)

	assert.Less(t, plain.Amplitude, 1.0)
	assert.InDelta(t, 1.0, refined.Amplitude, 1e-9)
	assert.InDelta(t, 0.23, refined.Location, 1e-9)
}

func TestMaxPeakRadiusZeroReadsNearestPoint(t *testing.T) {
	x, y := sineGrid(101)
	res, err := NewMaxPeak(0, false).Extract(y, x, 0.2, Peak)
	require.NoError(t, err)
	assert.Equal(t, 20, res.Index)
	assert.InDelta(t, y[20], res.Amplitude, 1e-12)
}

func TestMaxPeakErrors(t *testing.T) {
	m := NewMaxPeak(2, false)
	_, err := m.Extract(nil, nil, 0, Peak)
	assert.Error(t, err)
	_, err = m.Extract([]float64{1, 2}, []float64{0}, 0, Peak)
	assert.Error(t, err)
	_, err = m.Extract([]float64{1}, []float64{0}, math.NaN(), Peak)
	assert.Error(t, err)
	_, err = m.ExtractAll([][]float64{{1}}, []float64{0}, []float64{0, 1}, Peak)
	assert.Error(t, err)
}

func TestExtractAll(t *testing.T) {
	x, y := sineGrid(101)
	curves := [][]float64{y, y, y}
	amps, err := NewMaxPeak(2, false).ExtractAll(curves, x, []float64{0.24, 0.25, 0.26}, Peak)
	require.NoError(t, err)
	for _, a := range amps {
		assert.InDelta(t, 2.5, a, 1e-3)
	}
}

func TestNearestIndex(t *testing.T) {
	g := []float64{0, 1, 2, 3}
	assert.Equal(t, 0, NearestIndex(g, -5))
	assert.Equal(t, 3, NearestIndex(g, 10))
	assert.Equal(t, 1, NearestIndex(g, 1.4))
	assert.Equal(t, 2, NearestIndex(g, 1.6))
	assert.Equal(t, -1, NearestIndex(nil, 1))
}

func TestAtLatencyInterpolates(t *testing.T) {
	grid := []float64{0, 0.5, 1}
	curve := []float64{0, 2, -2}

	v, err := AtLatency(curve, grid, 0.25)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, v, 1e-12)

	v, err = AtLatency(curve, grid, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2.0, v)

	v, err = AtLatency(curve, grid, 3)
	require.NoError(t, err)
	assert.Equal(t, -2.0, v, "clamped to the last point")

	_, err = AtLatency(curve, grid[:2], 0.1)
	assert.Error(t, err)
}
