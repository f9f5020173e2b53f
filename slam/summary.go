package slam

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/erp-slam/algorithms/latency"
	"github.com/RyanBlaney/erp-slam/algorithms/stats"
)

// ParameterSummary is the marginal posterior summary of one trace column.
type ParameterSummary struct {
	Name string `json:"name"`
	stats.Summary
}

// Summarize summarizes the named columns of a trace, or every column when
// names is empty.
func Summarize(trace *Trace, names []string, level float64) ([]ParameterSummary, error) {
	if trace == nil || trace.Len() == 0 {
		return nil, fmt.Errorf("empty trace")
	}
	if level == 0 {
		level = DefaultLevel
	}
	if len(names) == 0 {
		names = trace.Names
	}
	out := make([]ParameterSummary, 0, len(names))
	for _, name := range names {
		col, err := trace.Column(name)
		if err != nil {
			return nil, err
		}
		s, err := stats.Summarize(col, level)
		if err != nil {
			return nil, fmt.Errorf("summarizing %s: %w", name, err)
		}
		out = append(out, ParameterSummary{Name: name, Summary: s})
	}
	return out, nil
}

// PosteriorCorrelation returns the correlation matrix of the named trace
// columns, in the order given.
func PosteriorCorrelation(trace *Trace, names []string) (*mat.SymDense, error) {
	if trace == nil {
		return nil, fmt.Errorf("nil trace")
	}
	cols := make([][]float64, len(names))
	for i, name := range names {
		col, err := trace.Column(name)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return stats.CorrelationMatrix(cols)
}

// LatencyDraws returns the stationary points of one subject for every kept
// draw, mapped back to the input scale: [draw][point].
func LatencyDraws(r *Result, group, subject int) ([][]float64, error) {
	l := r.Layout
	if group < 0 || group >= l.Groups {
		return nil, &ConfigError{Field: "group", Msg: fmt.Sprintf("group %d outside [1, %d]", group+1, l.Groups)}
	}
	if subject < 0 || subject >= l.Subjects[group] {
		return nil, &ConfigError{Field: "subject", Msg: fmt.Sprintf("subject %d outside [1, %d]", subject+1, l.Subjects[group])}
	}
	out := make([][]float64, r.Trace.Len())
	for i, row := range r.Trace.Rows {
		t := make([]float64, l.Points)
		for k := range t {
			t[k] = r.Windows[k].ToLocation(row[l.RIndex(group, k, subject)])
		}
		out[i] = t
	}
	return out, nil
}

// GroupLatencyDraws returns the group-level stationary points for every kept
// draw: the window location of logistic(beta_k0 + beta_kg).
func GroupLatencyDraws(r *Result, group int) ([][]float64, error) {
	l := r.Layout
	if group < 0 || group >= l.Groups {
		return nil, &ConfigError{Field: "group", Msg: fmt.Sprintf("group %d outside [1, %d]", group+1, l.Groups)}
	}
	out := make([][]float64, r.Trace.Len())
	for i, row := range r.Trace.Rows {
		t := make([]float64, l.Points)
		for k := range t {
			mu := row[l.BetaIndex(k, 0)]
			if group > 0 {
				mu += row[l.BetaIndex(k, group)]
			}
			t[k] = r.Windows[k].ToLocation(latency.Logistic(mu))
		}
		out[i] = t
	}
	return out, nil
}

// PointColumn extracts column k of a [draw][point] table.
func PointColumn(draws [][]float64, k int) []float64 {
	out := make([]float64, len(draws))
	for i, row := range draws {
		out[i] = row[k]
	}
	return out
}
