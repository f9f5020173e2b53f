package slam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/erp-slam/algorithms/filters"
)

func TestBaselineCorrected(t *testing.T) {
	x := unitGrid(5)
	y := mat.NewDense(5, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
		5, 10,
	})
	data := &Data{X: x, Groups: []Group{{Name: "a", Y: y}}}

	out, err := data.BaselineCorrected(filters.WholeCurve)
	require.NoError(t, err)
	assert.Equal(t, "a", out.Groups[0].Name)
	for j := 0; j < 2; j++ {
		col := mat.Col(nil, j, out.Groups[0].Y)
		assert.InDelta(t, 0, stat.Mean(col, nil), 1e-12)
	}
	assert.Equal(t, 10.0, y.At(0, 1), "input is not modified")

	out, err = data.BaselineCorrected(filters.Baseline{Start: 0, End: 0.3})
	require.NoError(t, err)
	assert.InDelta(t, -0.5, out.Groups[0].Y.At(0, 0), 1e-12)
	assert.InDelta(t, 0, out.Groups[0].Y.At(3, 1), 1e-12)

	_, err = data.BaselineCorrected(filters.Baseline{Start: 2, End: 3})
	assert.Error(t, err)
}
