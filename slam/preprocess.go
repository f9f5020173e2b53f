package slam

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/erp-slam/algorithms/filters"
)

// BaselineCorrected returns a copy of d with every subject curve shifted by
// its baseline offset. The curve prior has mean zero, so curves should be
// centred before fitting.
func (d *Data) BaselineCorrected(b filters.Baseline) (*Data, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	out := &Data{X: append([]float64(nil), d.X...), H0: d.H0, Groups: make([]Group, len(d.Groups))}
	col := make([]float64, len(d.X))
	for g, grp := range d.Groups {
		n, s := grp.Y.Dims()
		y := mat.NewDense(n, s, nil)
		for j := 0; j < s; j++ {
			mat.Col(col, j, grp.Y)
			corrected, err := b.Apply(d.X, col)
			if err != nil {
				return nil, fmt.Errorf("group %d subject %d: %w", g+1, j+1, err)
			}
			y.SetCol(j, corrected)
		}
		out.Groups[g] = Group{Name: grp.Name, Y: y}
	}
	return out, nil
}
