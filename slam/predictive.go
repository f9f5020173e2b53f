package slam

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/erp-slam/algorithms/common"
	"github.com/RyanBlaney/erp-slam/algorithms/kernel"
	"github.com/RyanBlaney/erp-slam/algorithms/stats"
)

// DefaultLevel is the credible level of predictive bands and summaries.
const DefaultLevel = 0.95

// PredictiveInput describes one posterior predictive reconstruction.
// Latencies and Sig2 are paired: row m of Latencies and Sig2[m] come from the
// same posterior draw.
type PredictiveInput struct {
	X         []float64   // Training inputs
	Y         []float64   // Observed curve at X
	XTest     []float64   // Inputs to predict at
	Latencies [][]float64 // [draw][point], on the input scale
	Sig2      []float64   // [draw]
	Tau       float64
	H         float64
	Level     float64 // Band level; 0 means DefaultLevel
	Seed      uint64
	Workers   int // 0 = runtime.NumCPU()
}

// PredictiveBundle is the reconstructed curve ensemble at X.
type PredictiveBundle struct {
	X     []float64   `json:"x"`
	Mean  []float64   `json:"mean"`
	Lower []float64   `json:"lower"`
	Upper []float64   `json:"upper"`
	Draws [][]float64 `json:"draws"` // [draw][len(X)]
}

func (in *PredictiveInput) validate() error {
	switch {
	case len(in.X) < 2:
		return &ConfigError{Field: "x", Msg: "need at least 2 training inputs"}
	case !common.IsStrictlyIncreasing(in.X):
		return &ConfigError{Field: "x", Msg: "training inputs must be strictly increasing"}
	case len(in.Y) != len(in.X):
		return &ConfigError{Field: "y", Msg: fmt.Sprintf("got %d observations for %d inputs", len(in.Y), len(in.X))}
	case len(in.XTest) == 0:
		return &ConfigError{Field: "x_test", Msg: "no test inputs"}
	case len(in.Latencies) == 0:
		return &ConfigError{Field: "latencies", Msg: "no posterior draws"}
	case len(in.Sig2) != len(in.Latencies):
		return &ConfigError{Field: "sig2", Msg: fmt.Sprintf("got %d noise draws for %d latency draws", len(in.Sig2), len(in.Latencies))}
	case in.Level < 0 || in.Level >= 1:
		return &ConfigError{Field: "level", Msg: fmt.Sprintf("level %g outside (0, 1)", in.Level)}
	}
	for m, row := range in.Latencies {
		if len(row) != len(in.Latencies[0]) {
			return &ConfigError{Field: "latencies", Msg: fmt.Sprintf("draw %d has %d points, want %d", m, len(row), len(in.Latencies[0]))}
		}
		if !(in.Sig2[m] > 0) {
			return &ConfigError{Field: "sig2", Msg: fmt.Sprintf("draw %d: noise variance %g must be positive", m, in.Sig2[m])}
		}
	}
	return nil
}

// PredictCurves draws one curve per posterior draw from the Gaussian process
// conditioned on the observations and on a zero first derivative at the
// draw's stationary points, then summarizes the ensemble pointwise. Draw m
// uses a random stream derived from (Seed, m), so the bundle does not depend
// on Workers.
func PredictCurves(ctx context.Context, in PredictiveInput) (*PredictiveBundle, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	level := in.Level
	if level == 0 {
		level = DefaultLevel
	}

	k, err := kernel.NewPoweredExponential(in.Tau, in.H)
	if err != nil {
		return nil, err
	}
	p := &predictor{
		k:   k,
		x:   in.X,
		y:   mat.NewVecDense(len(in.Y), append([]float64(nil), in.Y...)),
		xs:  in.XTest,
		ksx: k.Cross(kernel.Distance(in.XTest, in.X)),
	}
	if p.kxx, err = k.Build(kernel.Distance(in.X, in.X)); err != nil {
		return nil, err
	}
	if p.kss, err = k.Build(kernel.Distance(in.XTest, in.XTest)); err != nil {
		return nil, err
	}

	draws := make([][]float64, len(in.Latencies))
	errs := make([]error, len(in.Latencies))
	newWorkerPool(in.Workers).run(len(draws), func(m int) {
		if ctx.Err() != nil {
			errs[m] = ctx.Err()
			return
		}
		rng := rand.New(rand.NewPCG(in.Seed, uint64(m)))
		draws[m], errs[m] = p.sample(in.Latencies[m], in.Sig2[m], rng)
	})
	for m, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("predictive draw %d: %w", m, err)
		}
	}

	mean, lower, upper, err := stats.PointwiseBand(draws, level)
	if err != nil {
		return nil, err
	}
	return &PredictiveBundle{
		X:     append([]float64(nil), in.XTest...),
		Mean:  mean,
		Lower: lower,
		Upper: upper,
		Draws: draws,
	}, nil
}

// predictor holds the parts of the joint covariance that do not depend on
// the draw. It is read-only during sampling.
type predictor struct {
	k   *kernel.PoweredExponential
	x   []float64
	y   *mat.VecDense
	xs  []float64
	kxx *mat.SymDense // train/train
	kss *mat.SymDense // test/test
	ksx *mat.Dense    // test/train
}

// sample draws f(XTest) given [y; f'(t) = 0].
func (p *predictor) sample(t []float64, sig2 float64, rng *rand.Rand) ([]float64, error) {
	n, kd, ns := len(p.x), len(t), len(p.xs)

	kxd, err := p.k.ValueDerivative(p.x, t)
	if err != nil {
		return nil, err
	}
	kdd, err := p.k.DerivativeDerivative(t)
	if err != nil {
		return nil, err
	}
	ksd, err := p.k.ValueDerivative(p.xs, t)
	if err != nil {
		return nil, err
	}

	// Joint covariance of the conditioning vector [y; f'(t)].
	c := mat.NewSymDense(n+kd, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c.SetSym(i, j, p.kxx.At(i, j))
		}
		c.SetSym(i, i, c.At(i, i)+sig2)
		for j := 0; j < kd; j++ {
			c.SetSym(i, n+j, kxd.At(i, j))
		}
	}
	for i := 0; i < kd; i++ {
		for j := i; j < kd; j++ {
			c.SetSym(n+i, n+j, kdd.At(i, j))
		}
	}

	// Cross covariance between f(XTest) and the conditioning vector.
	cross := mat.NewDense(ns, n+kd, nil)
	cross.Slice(0, ns, 0, n).(*mat.Dense).Copy(p.ksx)
	cross.Slice(0, ns, n, n+kd).(*mat.Dense).Copy(ksd)

	chol, _, err := kernel.Factorize(c, p.k.Jitter*p.k.Tau)
	if err != nil {
		return nil, err
	}

	z := mat.NewVecDense(n+kd, nil)
	z.SliceVec(0, n).(*mat.VecDense).CopyVec(p.y)
	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, z); err != nil {
		return nil, &NumericalError{Op: "predictive solve", Err: err}
	}
	var mean mat.VecDense
	mean.MulVec(cross, &alpha)

	var v mat.Dense
	if err := chol.SolveTo(&v, cross.T()); err != nil {
		return nil, &NumericalError{Op: "predictive solve", Err: err}
	}
	var reduce mat.Dense
	reduce.Mul(cross, &v)

	cov := mat.NewSymDense(ns, nil)
	for i := 0; i < ns; i++ {
		for j := i; j < ns; j++ {
			cov.SetSym(i, j, p.kss.At(i, j)-0.5*(reduce.At(i, j)+reduce.At(j, i)))
		}
	}

	// The conditional covariance is rank deficient near the constraints, so
	// start from a larger nugget than the training covariance needs.
	covChol, _, err := kernel.Factorize(cov, 1e-6*p.k.Tau)
	if err != nil {
		return nil, err
	}

	e := mat.NewVecDense(ns, nil)
	for i := 0; i < ns; i++ {
		e.SetVec(i, rng.NormFloat64())
	}
	var f mat.VecDense
	f.MulVec(covChol.RawU().T(), e)
	f.AddVec(&f, &mean)

	out := make([]float64, ns)
	for i := range out {
		out[i] = f.AtVec(i)
		if math.IsNaN(out[i]) || math.IsInf(out[i], 0) {
			return nil, fmt.Errorf("%w: predictive value at index %d", ErrNonFinite, i)
		}
	}
	return out, nil
}

// SubjectPredictiveInput pairs the final E-step draws of one subject with the
// observed curve and the fitted hyperparameters.
func (r *Result) SubjectPredictiveInput(data *Data, group, subject int, xTest []float64, seed uint64) (PredictiveInput, error) {
	t, err := LatencyDraws(r, group, subject)
	if err != nil {
		return PredictiveInput{}, err
	}
	if group >= len(data.Groups) {
		return PredictiveInput{}, &ConfigError{Field: "group", Msg: fmt.Sprintf("group %d not in data", group+1)}
	}
	y := make([]float64, len(data.X))
	mat.Col(y, subject, data.Groups[group].Y)

	sig2, err := r.Trace.Column("sig2")
	if err != nil {
		return PredictiveInput{}, err
	}
	tau, h := r.Estimate()
	if xTest == nil {
		xTest = data.X
	}
	return PredictiveInput{
		X:         data.X,
		Y:         y,
		XTest:     xTest,
		Latencies: t,
		Sig2:      sig2,
		Tau:       tau,
		H:         h,
		Seed:      seed,
	}, nil
}
