package stats

import (
	"fmt"
	"math"
	"sort"
)

// Percentiles computes sample percentiles of posterior draws by linear
// interpolation between closest ranks (R-7, the R default).
//
// References:
//   - Hyndman, R.J., Fan, Y. (1996). "Sample Quantiles in Statistical Packages"
//     The American Statistician, 50(4), 361-365
type Percentiles struct{}

// NewPercentiles creates a new percentile analyzer
func NewPercentiles() *Percentiles {
	return &Percentiles{}
}

// CalculatePercentile computes a single percentile value (0-100)
func (p *Percentiles) CalculatePercentile(data []float64, percentile float64) (float64, error) {
	if len(data) == 0 {
		return 0, fmt.Errorf("empty data")
	}
	if percentile < 0 || percentile > 100 {
		return 0, fmt.Errorf("percentile %g must be between 0 and 100", percentile)
	}

	values := sortedCopy(data)
	return p.fromSorted(values, percentile/100.0), nil
}

// CalculateCustomPercentiles computes several percentiles with one sort
func (p *Percentiles) CalculateCustomPercentiles(data []float64, percentiles []float64) ([]float64, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty data")
	}

	values := sortedCopy(data)
	out := make([]float64, len(percentiles))
	for i, pct := range percentiles {
		if pct < 0 || pct > 100 {
			return nil, fmt.Errorf("percentile %g must be between 0 and 100", pct)
		}
		out[i] = p.fromSorted(values, pct/100.0)
	}
	return out, nil
}

// EqualTailInterval returns the central credible interval with the given
// coverage level in (0,1), e.g. 0.95 -> (2.5th, 97.5th) percentiles.
func (p *Percentiles) EqualTailInterval(data []float64, level float64) (lower, upper float64, err error) {
	if !(level > 0 && level < 1) {
		return 0, 0, fmt.Errorf("credible level %g must be in (0, 1)", level)
	}
	tail := 50 * (1 - level)
	vals, err := p.CalculateCustomPercentiles(data, []float64{tail, 100 - tail})
	if err != nil {
		return 0, 0, err
	}
	return vals[0], vals[1], nil
}

// fromSorted evaluates the R-7 quantile; q is in [0, 1].
func (p *Percentiles) fromSorted(sortedData []float64, q float64) float64 {
	n := len(sortedData)
	if n == 1 {
		return sortedData[0]
	}
	// h = (n-1)q + 1
	return interpolateRank(sortedData, float64(n-1)*q+1.0)
}

// interpolateRank interpolates linearly at the 1-based fractional rank h.
func interpolateRank(data []float64, h float64) float64 {
	n := len(data)
	if h <= 1.0 {
		return data[0]
	}
	if h >= float64(n) {
		return data[n-1]
	}

	lower := int(math.Floor(h)) - 1 // Convert to 0-based index
	fraction := h - math.Floor(h)
	if fraction == 0 {
		return data[lower]
	}
	return data[lower] + fraction*(data[lower+1]-data[lower])
}

func sortedCopy(data []float64) []float64 {
	values := make([]float64, len(data))
	copy(values, data)
	sort.Float64s(values)
	return values
}
