package filters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestBaselineWholeCurve(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 2, 3, 6}

	out, err := WholeCurve.Apply(x, y)
	require.NoError(t, err)
	assert.InDelta(t, 0, stat.Mean(out, nil), 1e-12)
	assert.Equal(t, []float64{1, 2, 3, 6}, y, "input is not modified")
}

func TestBaselineInterval(t *testing.T) {
	x := []float64{-0.2, -0.1, 0, 0.1, 0.2}
	y := []float64{2, 4, 9, 9, 9}
	b := Baseline{Start: -0.2, End: -0.05}
	require.True(t, b.Interval())

	offset, err := b.Offset(x, y)
	require.NoError(t, err)
	assert.Equal(t, 3.0, offset)

	out, err := b.Apply(x, y)
	require.NoError(t, err)
	assert.Equal(t, []float64{-1, 1, 6, 6, 6}, out)
}

func TestBaselineErrors(t *testing.T) {
	_, err := WholeCurve.Offset([]float64{0}, nil)
	assert.Error(t, err)
	_, err = WholeCurve.Offset(nil, nil)
	assert.Error(t, err)
	_, err = Baseline{Start: 5, End: 6}.Offset([]float64{0, 1}, []float64{1, 2})
	assert.Error(t, err)
}
