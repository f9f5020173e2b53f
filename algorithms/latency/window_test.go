package latency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowRoundTrip(t *testing.T) {
	windows := []Window{
		{A: 0, B: 0.5},
		{A: 0.5, B: 1},
		{A: -200, B: 350},
		{A: 1e-3, B: 1e-3 + 1e-6},
	}
	rs := []float64{1e-9, 0.01, 0.3, 0.5, 0.7, 0.999, 1 - 1e-9}

	for _, w := range windows {
		for _, r := range rs {
			loc := w.ToLocation(r)
			back, err := ChangeToR(loc, w)
			require.NoError(t, err)
			assert.InDelta(t, r, back, 1e-6, "window %+v r %g", w, r)
			assert.True(t, loc >= w.A && loc <= w.B)
		}
	}
}

func TestWindowValidate(t *testing.T) {
	assert.NoError(t, Window{A: 0, B: 1}.Validate())
	assert.Error(t, Window{A: 1, B: 1}.Validate())
	assert.Error(t, Window{A: 2, B: 1}.Validate())
	assert.Error(t, Window{A: math.NaN(), B: 1}.Validate())
	assert.Error(t, Window{A: 0, B: math.Inf(1)}.Validate())

	_, err := ChangeToR(0.2, Window{A: 1, B: 0})
	assert.Error(t, err)
}

func TestChangeToRAll(t *testing.T) {
	w := Window{A: 100, B: 300}
	rs, err := ChangeToRAll([]float64{100, 150, 300}, w)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0.25, 1}, rs, 1e-12)
	assert.InDeltaSlice(t, []float64{100, 150, 300}, ToLocations(rs, w), 1e-12)
}

func TestLogitLogistic(t *testing.T) {
	for _, r := range []float64{1e-6, 0.1, 0.5, 0.9, 1 - 1e-6} {
		assert.InDelta(t, r, Logistic(Logit(r)), 1e-12)
	}
	assert.InDelta(t, 1.0, Logistic(800), 1e-12)
	assert.InDelta(t, 0.0, Logistic(-800), 1e-12)
	assert.False(t, math.IsNaN(Logistic(-800)))
}
