package filters

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Baseline removes the DC offset of a curve. With Start < End the offset is
// the mean over inputs in [Start, End], typically the pre-stimulus interval;
// otherwise it is the mean of the whole curve.
type Baseline struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// WholeCurve is the baseline that centres a curve on its own mean.
var WholeCurve = Baseline{}

// Interval reports whether the baseline uses a sub-interval of the grid.
func (b Baseline) Interval() bool {
	return b.Start < b.End
}

// Offset returns the value subtracted from y.
func (b Baseline) Offset(x, y []float64) (float64, error) {
	if len(x) != len(y) {
		return 0, fmt.Errorf("grid has %d points, curve has %d", len(x), len(y))
	}
	if len(y) == 0 {
		return 0, fmt.Errorf("empty curve")
	}
	if !b.Interval() {
		return stat.Mean(y, nil), nil
	}

	var sum float64
	var n int
	for i, xi := range x {
		if xi >= b.Start && xi <= b.End {
			sum += y[i]
			n++
		}
	}
	if n == 0 {
		return 0, fmt.Errorf("baseline interval [%g, %g] contains no grid points", b.Start, b.End)
	}
	return sum / float64(n), nil
}

// Apply returns a baseline-corrected copy of y.
func (b Baseline) Apply(x, y []float64) ([]float64, error) {
	offset, err := b.Offset(x, y)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(y))
	copy(out, y)
	floats.AddConst(-offset, out)
	return out, nil
}
