package slam

import (
	"fmt"

	"github.com/RyanBlaney/erp-slam/algorithms/peaks"
	"github.com/RyanBlaney/erp-slam/algorithms/stats"
)

// AmplitudeResult holds one amplitude per draw and stationary point together
// with a per-point summary.
type AmplitudeResult struct {
	Draws   [][]float64     `json:"draws"` // [draw][point]
	Summary []stats.Summary `json:"summary"`
}

// AmplitudeMax reads the amplitude of each stationary point from paired
// predictive curves and latency draws. For point k the extremum of kind
// kinds[k] is searched within radius grid points of the latency.
func AmplitudeMax(curves [][]float64, latencies [][]float64, grid []float64, kinds []peaks.Kind, radius int, level float64) (*AmplitudeResult, error) {
	if len(kinds) == 0 {
		return nil, fmt.Errorf("no stationary points")
	}
	mp := peaks.NewMaxPeak(radius, true)
	return amplitudes(curves, latencies, len(kinds), level, func(curve []float64, k int, t float64) (float64, error) {
		p, err := mp.Extract(curve, grid, t, kinds[k])
		return p.Amplitude, err
	})
}

// AmplitudeAt reads every curve at its paired latencies, without searching a
// neighbourhood.
func AmplitudeAt(curves [][]float64, latencies [][]float64, grid []float64, level float64) (*AmplitudeResult, error) {
	if len(latencies) == 0 {
		return nil, fmt.Errorf("no latency draws")
	}
	return amplitudes(curves, latencies, len(latencies[0]), level, func(curve []float64, _ int, t float64) (float64, error) {
		return peaks.AtLatency(curve, grid, t)
	})
}

type amplitudeReader func(curve []float64, k int, latency float64) (float64, error)

func amplitudes(curves, latencies [][]float64, points int, level float64, read amplitudeReader) (*AmplitudeResult, error) {
	if len(curves) == 0 {
		return nil, fmt.Errorf("no curves")
	}
	if len(curves) != len(latencies) {
		return nil, fmt.Errorf("%d curves but %d latency draws", len(curves), len(latencies))
	}
	if level == 0 {
		level = DefaultLevel
	}

	res := &AmplitudeResult{
		Draws:   make([][]float64, len(curves)),
		Summary: make([]stats.Summary, points),
	}
	for m := range curves {
		if len(latencies[m]) != points {
			return nil, fmt.Errorf("draw %d has %d latencies, want %d", m, len(latencies[m]), points)
		}
		row := make([]float64, points)
		for k, t := range latencies[m] {
			v, err := read(curves[m], k, t)
			if err != nil {
				return nil, fmt.Errorf("draw %d point %d: %w", m, k+1, err)
			}
			row[k] = v
		}
		res.Draws[m] = row
	}
	for k := 0; k < points; k++ {
		s, err := stats.Summarize(PointColumn(res.Draws, k), level)
		if err != nil {
			return nil, err
		}
		res.Summary[k] = s
	}
	return res, nil
}
