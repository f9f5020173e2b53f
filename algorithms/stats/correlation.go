package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CorrelationMatrix returns the Pearson correlation between every pair of
// columns, where columns[j] holds the draws of variable j. A constant column
// is uncorrelated with every other column.
func CorrelationMatrix(columns [][]float64) (*mat.SymDense, error) {
	p := len(columns)
	if p == 0 {
		return nil, fmt.Errorf("no columns")
	}
	n := len(columns[0])
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 draws, got %d", n)
	}
	x := mat.NewDense(n, p, nil)
	for j, col := range columns {
		if len(col) != n {
			return nil, fmt.Errorf("column %d has %d draws, want %d", j, len(col), n)
		}
		x.SetCol(j, col)
	}

	corr := mat.NewSymDense(p, nil)
	stat.CorrelationMatrix(corr, x, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			v := corr.At(i, j)
			switch {
			case i == j:
				v = 1
			case math.IsNaN(v):
				v = 0
			default:
				v = clampCorrelation(v)
			}
			corr.SetSym(i, j, v)
		}
	}
	return corr, nil
}

// Pearson returns the correlation of two equally long samples, or 0 when
// either is constant.
func Pearson(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("samples have %d and %d values", len(x), len(y))
	}
	if len(x) < 2 {
		return 0, fmt.Errorf("need at least 2 values, got %d", len(x))
	}
	r := stat.Correlation(x, y, nil)
	if math.IsNaN(r) {
		return 0, nil
	}
	return clampCorrelation(r), nil
}

// clampCorrelation ensures correlation is in valid range [-1, 1]
func clampCorrelation(correlation float64) float64 {
	if correlation > 1.0 {
		return 1.0
	}
	if correlation < -1.0 {
		return -1.0
	}
	return correlation
}
