package slam

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/erp-slam/algorithms/kernel"
	"github.com/RyanBlaney/erp-slam/algorithms/latency"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

var log2Pi = math.Log(2 * math.Pi)

// model evaluates the marginal likelihood of each subject's curve given its
// stationary points. The curve f is integrated out: with f'(t) = 0 imposed,
//
//	y ~ N(0, Kxx - Kxd Kdd^{-1} Kdx + sig2 I).
type model struct {
	x       []float64
	h0      *mat.Dense
	ys      [][]*mat.VecDense // [group][subject]
	layout  Layout
	windows []latency.Window
	priors  config.PriorConfig
	power   float64
}

func newModel(data *Data, cfg *config.Config) *model {
	layout := NewLayout(data, len(cfg.Windows))
	ys := make([][]*mat.VecDense, layout.Groups)
	for g, grp := range data.Groups {
		n, s := grp.Y.Dims()
		ys[g] = make([]*mat.VecDense, s)
		for j := 0; j < s; j++ {
			col := make([]float64, n)
			mat.Col(col, j, grp.Y)
			ys[g][j] = mat.NewVecDense(n, col)
		}
	}
	return &model{
		x:       append([]float64(nil), data.X...),
		h0:      data.Distance(),
		ys:      ys,
		layout:  layout,
		windows: append([]latency.Window(nil), cfg.Windows...),
		priors:  cfg.Priors,
		power:   cfg.Power,
	}
}

// hyper caches everything that depends only on (tau, h).
type hyper struct {
	tau, h float64
	k      *kernel.PoweredExponential
	kxx    *mat.SymDense
}

func (m *model) newHyper(tau, h float64) (*hyper, error) {
	k, err := kernel.NewPoweredExponentialWithPower(tau, h, m.power)
	if err != nil {
		return nil, err
	}
	kxx, err := k.Build(m.h0)
	if err != nil {
		return nil, err
	}
	return &hyper{tau: tau, h: h, k: k, kxx: kxx}, nil
}

// latencies maps logit-scale parameters of one subject to input locations.
func (m *model) latencies(eta []float64, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, len(eta))
	}
	for k, e := range eta {
		dst[k] = m.windows[k].ToLocation(latency.Logistic(e))
	}
	return dst
}

// ordered reports whether the stationary points are strictly increasing.
func ordered(t []float64) bool {
	for k := 1; k < len(t); k++ {
		if !(t[k] > t[k-1]) {
			return false
		}
	}
	return true
}

// subjectLogLik returns log N(y | 0, Sigma(t)). Safe for concurrent use.
func (m *model) subjectLogLik(hp *hyper, y *mat.VecDense, t []float64, sig2 float64) (float64, error) {
	cond, err := hp.k.ConditionalCov(hp.kxx, m.x, t)
	if err != nil {
		return math.Inf(-1), err
	}
	kernel.AddDiagonal(cond, sig2)

	chol, _, err := kernel.Factorize(cond, 0)
	if err != nil {
		return math.Inf(-1), err
	}

	var alpha mat.VecDense
	if err := chol.SolveVecTo(&alpha, y); err != nil {
		return math.Inf(-1), &NumericalError{Op: "likelihood solve", Err: err}
	}
	n := float64(y.Len())
	ll := -0.5 * (n*log2Pi + chol.LogDet() + mat.Dot(y, &alpha))
	if math.IsNaN(ll) || math.IsInf(ll, 0) {
		return math.Inf(-1), fmt.Errorf("%w: subject log-likelihood %g", ErrNonFinite, ll)
	}
	return ll, nil
}

// latentMean is the prior mean of logit(r) for group g, point k.
func latentMean(beta [][]float64, g, k int) float64 {
	mu := beta[k][0]
	if g > 0 {
		mu += beta[k][g]
	}
	return mu
}

// latentLogPrior is log N(eta | mu, sigma2).
func latentLogPrior(eta, mu, sigma2 float64) float64 {
	return distuv.Normal{Mu: mu, Sigma: math.Sqrt(sigma2)}.LogProb(eta)
}

// noiseLogPrior is the inverse-gamma log density of sig2 expressed on
// omega = log(sig2), Jacobian included, up to a constant.
func noiseLogPrior(omega float64, shape, rate float64) float64 {
	return -shape*omega - rate*math.Exp(-omega)
}
