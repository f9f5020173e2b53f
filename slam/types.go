package slam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/erp-slam/algorithms/kernel"
	"github.com/RyanBlaney/erp-slam/algorithms/latency"
)

// Group holds the response curves of one experimental group: rows are input
// samples on the shared grid, columns are subjects.
type Group struct {
	Name string
	Y    *mat.Dense
}

// Data is the input of a run. H0 is optional; when nil it is derived from X.
type Data struct {
	X      []float64
	Groups []Group
	H0     *mat.Dense
}

// Layout fixes the shape of the latent parameter vector.
type Layout struct {
	Groups   int
	Points   int
	Subjects []int // per group
}

// NewLayout derives the layout of data for the given number of stationary points.
func NewLayout(data *Data, points int) Layout {
	subjects := make([]int, len(data.Groups))
	for g, grp := range data.Groups {
		if grp.Y != nil {
			_, subjects[g] = grp.Y.Dims()
		}
	}
	return Layout{Groups: len(data.Groups), Points: points, Subjects: subjects}
}

// NumR returns the number of subject-level latency parameters.
func (l Layout) NumR() int {
	n := 0
	for _, s := range l.Subjects {
		n += s * l.Points
	}
	return n
}

// RIndex returns the column of r for group g, point k, subject s.
// Columns run over groups, then points, then subjects.
func (l Layout) RIndex(g, k, s int) int {
	idx := 0
	for i := 0; i < g; i++ {
		idx += l.Subjects[i] * l.Points
	}
	return idx + k*l.Subjects[g] + s
}

// NumBeta returns the number of regression coefficients: an intercept per
// point plus one group slope per point for every group after the first.
func (l Layout) NumBeta() int {
	return l.Points * l.Groups
}

// BetaIndex returns the column of coefficient j of point k.
func (l Layout) BetaIndex(k, j int) int {
	return l.NumR() + k*l.Groups + j
}

// Sigma2Index returns the column of the latent variance of point k.
func (l Layout) Sigma2Index(k int) int {
	return l.NumR() + l.NumBeta() + k
}

// NoiseIndex returns the column of the noise variance.
func (l Layout) NoiseIndex() int {
	return l.NumR() + l.NumBeta() + l.Points
}

// Width returns the total number of parameters.
func (l Layout) Width() int {
	return l.NoiseIndex() + 1
}

// Names returns the canonical parameter names in column order. Indices in
// names are 1-based.
func (l Layout) Names() []string {
	names := make([]string, l.Width())
	for g := 0; g < l.Groups; g++ {
		for k := 0; k < l.Points; k++ {
			for s := 0; s < l.Subjects[g]; s++ {
				names[l.RIndex(g, k, s)] = RName(g, k, s)
			}
		}
	}
	for k := 0; k < l.Points; k++ {
		for j := 0; j < l.Groups; j++ {
			names[l.BetaIndex(k, j)] = fmt.Sprintf("beta%d_%d", j, k+1)
		}
		names[l.Sigma2Index(k)] = fmt.Sprintf("sigma2_%d", k+1)
	}
	names[l.NoiseIndex()] = "sig2"
	return names
}

// RName is the trace column name of r for group g, point k, subject s.
func RName(g, k, s int) string {
	return fmt.Sprintf("r%d_g%d_s%d", k+1, g+1, s+1)
}

// Validate checks the grid and response matrices.
func (d *Data) Validate() error {
	if d == nil {
		return &ConfigError{Field: "data", Msg: "data is nil"}
	}
	n := len(d.X)
	if n < 2 {
		return &ConfigError{Field: "x", Msg: fmt.Sprintf("need at least 2 input points, got %d", n)}
	}
	for i := 1; i < n; i++ {
		if !(d.X[i] > d.X[i-1]) {
			return &ConfigError{Field: "x", Msg: fmt.Sprintf("input grid must be strictly increasing at index %d", i)}
		}
	}
	if len(d.Groups) == 0 {
		return &ConfigError{Field: "groups", Msg: "at least one group is required"}
	}
	for g, grp := range d.Groups {
		field := fmt.Sprintf("groups[%d]", g)
		if grp.Y == nil {
			return &ConfigError{Field: field, Msg: "response matrix is nil"}
		}
		r, c := grp.Y.Dims()
		if r != n {
			return &ConfigError{Field: field, Msg: fmt.Sprintf("response matrix has %d rows, grid has %d points", r, n)}
		}
		if c < 1 {
			return &ConfigError{Field: field, Msg: "no subjects"}
		}
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				if v := grp.Y.At(i, j); math.IsNaN(v) || math.IsInf(v, 0) {
					return &ConfigError{Field: field, Msg: fmt.Sprintf("non-finite response at (%d, %d)", i, j)}
				}
			}
		}
	}
	if d.H0 != nil {
		if err := kernel.CheckDistance(d.H0, d.X, 1e-9); err != nil {
			return &ConfigError{Field: "h0", Msg: err.Error()}
		}
	}
	return nil
}

// Distance returns H0, computing it from X when absent.
func (d *Data) Distance() *mat.Dense {
	if d.H0 != nil {
		return d.H0
	}
	return kernel.Distance(d.X, d.X)
}

// StartValues is the initial state of the sampler and the initial
// hyperparameter estimate.
type StartValues struct {
	R      [][][]float64 `json:"r"`      // [group][point][subject], each in (0,1)
	Beta   [][]float64   `json:"beta"`   // [point][coefficient]
	Sigma2 []float64     `json:"sigma2"` // [point]
	Sig2   float64       `json:"sig2"`
	Tau    float64       `json:"tau"`
	H      float64       `json:"h"`
}

// DefaultStartValues centres every latency in its window, sets the kernel
// scale to the pooled response variance and the lengthscale to a fifth of the
// grid range.
func DefaultStartValues(data *Data, layout Layout) *StartValues {
	r := make([][][]float64, layout.Groups)
	for g := range r {
		r[g] = make([][]float64, layout.Points)
		for k := range r[g] {
			r[g][k] = make([]float64, layout.Subjects[g])
			for s := range r[g][k] {
				r[g][k][s] = 0.5
			}
		}
	}
	beta := make([][]float64, layout.Points)
	sigma2 := make([]float64, layout.Points)
	for k := range beta {
		beta[k] = make([]float64, layout.Groups)
		sigma2[k] = 1
	}

	var pooled []float64
	for _, grp := range data.Groups {
		if grp.Y != nil {
			pooled = append(pooled, grp.Y.RawMatrix().Data...)
		}
	}
	tau := 1.0
	if len(pooled) > 1 {
		if v := stat.Variance(pooled, nil); v > 0 {
			tau = v
		}
	}
	h := 1.0
	if len(data.X) > 1 {
		h = (data.X[len(data.X)-1] - data.X[0]) / 5
	}

	return &StartValues{R: r, Beta: beta, Sigma2: sigma2, Sig2: 0.1 * tau, Tau: tau, H: h}
}

// Validate checks the start values against the layout and windows.
func (sv *StartValues) Validate(layout Layout, windows []latency.Window) error {
	if sv == nil {
		return &ConfigError{Field: "start", Msg: "start values are nil"}
	}
	if len(sv.R) != layout.Groups {
		return &ConfigError{Field: "start.r", Msg: fmt.Sprintf("got %d groups, data has %d", len(sv.R), layout.Groups)}
	}
	for g := range sv.R {
		if len(sv.R[g]) != layout.Points {
			return &ConfigError{Field: "start.r", Msg: fmt.Sprintf("group %d has %d points, want %d", g+1, len(sv.R[g]), layout.Points)}
		}
		for k := range sv.R[g] {
			if len(sv.R[g][k]) != layout.Subjects[g] {
				return &ConfigError{Field: "start.r", Msg: fmt.Sprintf("group %d point %d has %d subjects, want %d", g+1, k+1, len(sv.R[g][k]), layout.Subjects[g])}
			}
			for s, r := range sv.R[g][k] {
				if !(r > 0 && r < 1) {
					return &ConfigError{Field: "start.r", Msg: fmt.Sprintf("%s=%g outside (0, 1)", RName(g, k, s), r)}
				}
			}
		}
		for s := 0; s < layout.Subjects[g]; s++ {
			for k := 1; k < layout.Points; k++ {
				prev := windows[k-1].ToLocation(sv.R[g][k-1][s])
				cur := windows[k].ToLocation(sv.R[g][k][s])
				if !(cur > prev) {
					return &ConfigError{Field: "start.r", Msg: fmt.Sprintf("group %d subject %d: latency %d (%g) not after latency %d (%g)", g+1, s+1, k+1, cur, k, prev)}
				}
			}
		}
	}
	if len(sv.Beta) != layout.Points {
		return &ConfigError{Field: "start.beta", Msg: fmt.Sprintf("got %d points, want %d", len(sv.Beta), layout.Points)}
	}
	for k, b := range sv.Beta {
		if len(b) != layout.Groups {
			return &ConfigError{Field: "start.beta", Msg: fmt.Sprintf("point %d has %d coefficients, want %d", k+1, len(b), layout.Groups)}
		}
	}
	if len(sv.Sigma2) != layout.Points {
		return &ConfigError{Field: "start.sigma2", Msg: fmt.Sprintf("got %d values, want %d", len(sv.Sigma2), layout.Points)}
	}
	for k, v := range sv.Sigma2 {
		if !(v > 0) {
			return &ConfigError{Field: "start.sigma2", Msg: fmt.Sprintf("sigma2_%d=%g must be positive", k+1, v)}
		}
	}
	if !(sv.Sig2 > 0) {
		return &ConfigError{Field: "start.sig2", Msg: fmt.Sprintf("must be positive, got %g", sv.Sig2)}
	}
	if !(sv.Tau > 0) || !(sv.H > 0) {
		return &ConfigError{Field: "start.theta", Msg: fmt.Sprintf("tau=%g and h=%g must be positive", sv.Tau, sv.H)}
	}
	return nil
}
