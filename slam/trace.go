package slam

import (
	"fmt"
)

// Trace is an ordered sequence of retained latent parameter vectors. Every
// row has exactly len(Names) entries, in Names order.
type Trace struct {
	Names []string    `json:"names"`
	Rows  [][]float64 `json:"rows"`
	index map[string]int
}

// NewTrace creates an empty trace with room for capacity rows.
func NewTrace(names []string, capacity int) *Trace {
	t := &Trace{
		Names: append([]string(nil), names...),
		Rows:  make([][]float64, 0, capacity),
	}
	t.buildIndex()
	return t
}

func (t *Trace) buildIndex() {
	t.index = make(map[string]int, len(t.Names))
	for i, n := range t.Names {
		t.index[n] = i
	}
}

// Append copies row into the trace.
func (t *Trace) Append(row []float64) error {
	if len(row) != len(t.Names) {
		return fmt.Errorf("row has %d values, trace has %d columns", len(row), len(t.Names))
	}
	t.Rows = append(t.Rows, append([]float64(nil), row...))
	return nil
}

// Len returns the number of rows.
func (t *Trace) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the position of name, or -1.
func (t *Trace) ColumnIndex(name string) int {
	if t.index == nil {
		t.buildIndex()
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	return -1
}

// Column returns a copy of the draws of one parameter.
func (t *Trace) Column(name string) ([]float64, error) {
	j := t.ColumnIndex(name)
	if j < 0 {
		return nil, fmt.Errorf("unknown parameter %q", name)
	}
	return t.ColumnAt(j), nil
}

// ColumnAt returns a copy of column j.
func (t *Trace) ColumnAt(j int) []float64 {
	out := make([]float64, len(t.Rows))
	for i, row := range t.Rows {
		out[i] = row[j]
	}
	return out
}

// Subsample returns at most n rows spread evenly over the trace.
func (t *Trace) Subsample(n int) [][]float64 {
	if n <= 0 || len(t.Rows) == 0 {
		return nil
	}
	if n >= len(t.Rows) {
		return t.Rows
	}
	out := make([][]float64, n)
	step := float64(len(t.Rows)) / float64(n)
	for i := range out {
		out[i] = t.Rows[int(float64(i)*step)]
	}
	return out
}

// HyperRow is the outcome of one M-step.
type HyperRow struct {
	Iteration   int     `json:"iteration"`
	Tau         float64 `json:"tau"`
	H           float64 `json:"h"`
	Objective   float64 `json:"objective"`   // Monte Carlo Q at the estimate
	Evaluations int     `json:"evaluations"` // Objective evaluations used
	Converged   bool    `json:"converged"`   // False when the optimizer hit a limit
	Fallback    bool    `json:"fallback"`    // True when the previous estimate was kept
}

// HyperTrace is one row per outer EM iteration; the last row is the estimate
// used by the final E-step.
type HyperTrace []HyperRow

// Last returns the final row.
func (h HyperTrace) Last() (HyperRow, bool) {
	if len(h) == 0 {
		return HyperRow{}, false
	}
	return h[len(h)-1], true
}

// Theta returns the (tau, h) pairs as an len(h) x 2 table.
func (h HyperTrace) Theta() [][2]float64 {
	out := make([][2]float64, len(h))
	for i, row := range h {
		out[i] = [2]float64{row.Tau, row.H}
	}
	return out
}
