package kernel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Distance returns the signed pairwise differences D[i][j] = x[i] - y[j],
// or nil when either grid is empty.
func Distance(x, y []float64) *mat.Dense {
	if len(x) == 0 || len(y) == 0 {
		return nil
	}
	d := mat.NewDense(len(x), len(y), nil)
	for i, xi := range x {
		for j, yj := range y {
			d.Set(i, j, xi-yj)
		}
	}
	return d
}

// CheckDistance verifies that h0 is the distance matrix of grid x: square
// with len(x) rows, and |h0[i][j]| = |x[i] - x[j]| up to a relative tol.
// Both signed differences and absolute distances are accepted.
func CheckDistance(h0 mat.Matrix, x []float64, tol float64) error {
	n := len(x)
	r, c := h0.Dims()
	if r != n || c != n {
		return fmt.Errorf("%w: distance matrix is %dx%d, want %dx%d", ErrDimension, r, c, n, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			want := math.Abs(x[i] - x[j])
			limit := tol * (1 + want)
			a, b := h0.At(i, j), h0.At(j, i)
			if math.Abs(math.Abs(a)-want) > limit || math.Abs(math.Abs(b)-want) > limit {
				return fmt.Errorf("distance matrix entry (%d,%d)=%g does not match grid distance %g", i, j, a, want)
			}
			// A signed matrix must be antisymmetric; an absolute one symmetric.
			if math.Abs(a+b) > 2*limit && math.Abs(a-b) > 2*limit {
				return fmt.Errorf("distance matrix entries (%d,%d)=%g and (%d,%d)=%g are inconsistent", i, j, a, j, i, b)
			}
		}
	}
	return nil
}
