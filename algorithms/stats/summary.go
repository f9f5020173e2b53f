package stats

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary describes the marginal posterior of one parameter.
type Summary struct {
	N      int     `json:"n"`
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	Median float64 `json:"median"`
	Lower  float64 `json:"lower"` // Lower bound of the equal-tail interval
	Upper  float64 `json:"upper"` // Upper bound of the equal-tail interval
	Level  float64 `json:"level"`
	ESS    float64 `json:"ess"`
}

// Summarize computes mean, sd, median, equal-tail credible interval and
// effective sample size for a chain of draws.
func Summarize(draws []float64, level float64) (Summary, error) {
	if len(draws) == 0 {
		return Summary{}, fmt.Errorf("empty data")
	}
	for i, v := range draws {
		if math.IsNaN(v) {
			return Summary{}, fmt.Errorf("draw %d is NaN", i)
		}
	}

	p := NewPercentiles()
	lower, upper, err := p.EqualTailInterval(draws, level)
	if err != nil {
		return Summary{}, err
	}
	median, err := p.CalculatePercentile(draws, 50)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		N:      len(draws),
		Median: median,
		Lower:  lower,
		Upper:  upper,
		Level:  level,
		ESS:    1,
	}
	if len(draws) == 1 {
		s.Mean = draws[0]
		return s, nil
	}

	s.Mean, s.SD = stat.MeanStdDev(draws, nil)
	if ess, err := EffectiveSampleSize(draws); err == nil {
		s.ESS = ess
	}
	return s, nil
}

// PointwiseBand summarizes an ensemble of curves column by column: the mean
// curve and the equal-tail band at the given level. All curves must share
// one length.
func PointwiseBand(curves [][]float64, level float64) (mean, lower, upper []float64, err error) {
	if len(curves) == 0 {
		return nil, nil, nil, fmt.Errorf("no curves")
	}
	m := len(curves[0])
	for i, c := range curves {
		if len(c) != m {
			return nil, nil, nil, fmt.Errorf("curve %d has %d points, want %d", i, len(c), m)
		}
	}

	p := NewPercentiles()
	mean = make([]float64, m)
	lower = make([]float64, m)
	upper = make([]float64, m)
	column := make([]float64, len(curves))
	for j := 0; j < m; j++ {
		for i, c := range curves {
			column[i] = c[j]
		}
		mean[j] = stat.Mean(column, nil)
		lower[j], upper[j], err = p.EqualTailInterval(column, level)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	return mean, lower, upper, nil
}
