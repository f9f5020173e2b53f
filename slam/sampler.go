package slam

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/erp-slam/algorithms/latency"
	"github.com/RyanBlaney/erp-slam/logging"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

const masterStream = 0x5eed

// sampler is the Metropolis-within-Gibbs E-step. Latency parameters are held
// on the logit scale and updated per subject; subjects are independent given
// beta, sigma2 and sig2, so their updates run in parallel, each with its own
// random stream.
type sampler struct {
	m      *model
	cfg    *config.Config
	pool   *workerPool
	logger logging.Logger

	eta    [][][]float64 // [group][point][subject]
	beta   [][]float64   // [point][coefficient]
	sigma2 []float64     // [point]
	sig2   float64

	ll [][]float64 // cached subject log-likelihoods [group][subject]

	subjects [][2]int // flattened (group, subject) pairs
	rStep    []float64
	rStats   []acceptStats
	nStep    float64
	nStats   acceptStats

	subjectRNG []*rand.Rand
	src        rand.Source
	rng        *rand.Rand
}

func newSampler(m *model, cfg *config.Config, start *StartValues, pool *workerPool, logger logging.Logger) *sampler {
	l := m.layout
	s := &sampler{
		m:      m,
		cfg:    cfg,
		pool:   pool,
		logger: logger,
		sig2:   start.Sig2,
		nStep:  cfg.Adapt.NoiseLogStep,
	}

	s.eta = make([][][]float64, l.Groups)
	s.ll = make([][]float64, l.Groups)
	for g := 0; g < l.Groups; g++ {
		s.eta[g] = make([][]float64, l.Points)
		for k := 0; k < l.Points; k++ {
			s.eta[g][k] = make([]float64, l.Subjects[g])
			for j, r := range start.R[g][k] {
				s.eta[g][k][j] = latency.Logit(r)
			}
		}
		s.ll[g] = make([]float64, l.Subjects[g])
		for j := 0; j < l.Subjects[g]; j++ {
			s.subjects = append(s.subjects, [2]int{g, j})
		}
	}
	s.beta = make([][]float64, l.Points)
	for k := range s.beta {
		s.beta[k] = append([]float64(nil), start.Beta[k]...)
	}
	s.sigma2 = append([]float64(nil), start.Sigma2...)

	s.rStep = make([]float64, l.NumR())
	for i := range s.rStep {
		s.rStep[i] = cfg.Adapt.LatencyStep
	}
	s.rStats = make([]acceptStats, l.NumR())

	pcg := rand.NewPCG(cfg.Seed, masterStream)
	s.src = pcg
	s.rng = rand.New(pcg)
	s.subjectRNG = make([]*rand.Rand, len(s.subjects))
	for i := range s.subjectRNG {
		s.subjectRNG[i] = rand.New(rand.NewPCG(cfg.Seed, uint64(i+1)))
	}
	return s
}

// subjectTimes returns the stationary points of one subject under eta.
func (s *sampler) subjectTimes(g, j int, dst []float64) []float64 {
	if dst == nil {
		dst = make([]float64, s.m.layout.Points)
	}
	for k := range dst {
		dst[k] = s.m.windows[k].ToLocation(latency.Logistic(s.eta[g][k][j]))
	}
	return dst
}

// refresh recomputes every cached log-likelihood under hp. Any failure is
// returned as-is; the caller decides whether it is fatal.
func (s *sampler) refresh(hp *hyper) error {
	errs := make([]error, len(s.subjects))
	s.pool.run(len(s.subjects), func(i int) {
		g, j := s.subjects[i][0], s.subjects[i][1]
		s.ll[g][j], errs[i] = s.m.subjectLogLik(hp, s.m.ys[g][j], s.subjectTimes(g, j, nil), s.sig2)
	})
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// eStepOutput is what one E-step run produces.
type eStepOutput struct {
	trace      *Trace
	acceptance map[string]float64
}

// iterationHook is called after every sweep with the 0-based iteration.
type iterationHook func(ctx context.Context, i int) error

// run performs chain.Iterations sweeps under fixed hyperparameters and keeps
// draws according to chain.Keep. Step sizes adapt only while i < chain.Burn.
func (s *sampler) run(ctx context.Context, hp *hyper, chain config.ChainConfig, hook iterationHook) (*eStepOutput, error) {
	if err := s.refresh(hp); err != nil {
		return nil, asNumerical("likelihood refresh", err)
	}
	for i := range s.rStats {
		s.rStats[i].resetRun()
	}
	s.nStats.resetRun()

	names := s.m.layout.Names()
	trace := NewTrace(names, chain.Kept())
	row := make([]float64, len(names))
	adapt := s.cfg.Adapt

	for i := 0; i < chain.Iterations; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		burning := i < chain.Burn
		kept := !burning

		s.updateLatencies(hp, kept)
		s.updateBeta()
		s.updateSigma2()
		s.updateNoise(hp, kept)

		if burning && adapt.Every > 0 && (i+1)%adapt.Every == 0 {
			s.tune()
		}
		if chain.Keep(i) {
			s.state(row)
			if err := trace.Append(row); err != nil {
				return nil, err
			}
		}
		if hook != nil {
			if err := hook(ctx, i); err != nil {
				return nil, err
			}
		}
	}

	return &eStepOutput{trace: trace, acceptance: s.acceptance(names)}, nil
}

// updateLatencies proposes a random-walk move for every eta, one subject
// per task. A proposal that breaks the ordering of a subject's stationary
// points or whose likelihood cannot be evaluated is rejected.
func (s *sampler) updateLatencies(hp *hyper, kept bool) {
	l := s.m.layout
	s.pool.run(len(s.subjects), func(i int) {
		g, j := s.subjects[i][0], s.subjects[i][1]
		rng := s.subjectRNG[i]
		y := s.m.ys[g][j]
		t := s.subjectTimes(g, j, nil)

		for k := 0; k < l.Points; k++ {
			idx := l.RIndex(g, k, j)
			cur := s.eta[g][k][j]
			prop := cur + s.rStep[idx]*rng.NormFloat64()

			old := t[k]
			t[k] = s.m.windows[k].ToLocation(latency.Logistic(prop))
			if !ordered(t) {
				t[k] = old
				s.rStats[idx].record(false, kept)
				continue
			}
			ll, err := s.m.subjectLogLik(hp, y, t, s.sig2)
			if err != nil {
				t[k] = old
				s.rStats[idx].record(false, kept)
				continue
			}

			mu := latentMean(s.beta, g, k)
			logA := ll - s.ll[g][j] +
				latentLogPrior(prop, mu, s.sigma2[k]) - latentLogPrior(cur, mu, s.sigma2[k])
			if math.Log(rng.Float64()) < logA {
				s.eta[g][k][j] = prop
				s.ll[g][j] = ll
				s.rStats[idx].record(true, kept)
			} else {
				t[k] = old
				s.rStats[idx].record(false, kept)
			}
		}
	})
}

// updateBeta draws the regression coefficients of every point from their
// conjugate normal full conditional. The design row of group g is the
// intercept plus an indicator for g when g > 0.
func (s *sampler) updateBeta() {
	l := s.m.layout
	p := l.Groups
	for k := 0; k < l.Points; k++ {
		prec := mat.NewSymDense(p, nil)
		rhs := mat.NewVecDense(p, nil)
		inv := 1 / s.sigma2[k]
		for j := 0; j < p; j++ {
			prec.SetSym(j, j, 1/s.m.priors.BetaVariance)
		}
		for g := 0; g < l.Groups; g++ {
			n := float64(l.Subjects[g])
			sum := 0.0
			for _, e := range s.eta[g][k] {
				sum += e
			}
			prec.SetSym(0, 0, prec.At(0, 0)+n*inv)
			rhs.SetVec(0, rhs.AtVec(0)+sum*inv)
			if g > 0 {
				prec.SetSym(g, g, prec.At(g, g)+n*inv)
				prec.SetSym(0, g, prec.At(0, g)+n*inv)
				rhs.SetVec(g, rhs.AtVec(g)+sum*inv)
			}
		}

		var chol mat.Cholesky
		if ok := chol.Factorize(prec); !ok {
			s.logger.Warn("beta precision not positive definite, keeping previous draw",
				logging.Fields{"point": k + 1})
			continue
		}
		var mean mat.VecDense
		if err := chol.SolveVecTo(&mean, rhs); err != nil {
			s.logger.Warn("beta mean solve failed, keeping previous draw",
				logging.Fields{"point": k + 1, "error": err.Error()})
			continue
		}

		// With prec = U'U, U^{-1} z has covariance prec^{-1}.
		z := mat.NewVecDense(p, nil)
		for j := 0; j < p; j++ {
			z.SetVec(j, s.rng.NormFloat64())
		}
		var noise mat.VecDense
		if err := noise.SolveVec(chol.RawU(), z); err != nil {
			continue
		}
		for j := 0; j < p; j++ {
			s.beta[k][j] = mean.AtVec(j) + noise.AtVec(j)
		}
	}
}

// updateSigma2 draws each latent variance from its inverse-gamma full
// conditional.
func (s *sampler) updateSigma2() {
	l := s.m.layout
	for k := 0; k < l.Points; k++ {
		ssr, n := 0.0, 0
		for g := 0; g < l.Groups; g++ {
			mu := latentMean(s.beta, g, k)
			for _, e := range s.eta[g][k] {
				ssr += (e - mu) * (e - mu)
				n++
			}
		}
		gamma := distuv.Gamma{
			Alpha: s.m.priors.GaShape + float64(n)/2,
			Beta:  s.m.priors.GaRate + ssr/2,
			Src:   s.src,
		}
		if v := 1 / gamma.Rand(); v > 0 && !math.IsInf(v, 0) {
			s.sigma2[k] = v
		}
	}
}

// updateNoise is a random-walk step on log(sig2). All subjects share sig2, so
// every likelihood is re-evaluated for the proposal.
func (s *sampler) updateNoise(hp *hyper, kept bool) {
	cur := math.Log(s.sig2)
	prop := cur + s.nStep*s.rng.NormFloat64()
	propSig2 := math.Exp(prop)

	next := make([]float64, len(s.subjects))
	errs := make([]error, len(s.subjects))
	s.pool.run(len(s.subjects), func(i int) {
		g, j := s.subjects[i][0], s.subjects[i][1]
		next[i], errs[i] = s.m.subjectLogLik(hp, s.m.ys[g][j], s.subjectTimes(g, j, nil), propSig2)
	})
	for _, err := range errs {
		if err != nil {
			s.nStats.record(false, kept)
			return
		}
	}

	logA := noiseLogPrior(prop, s.m.priors.NoiseShape, s.m.priors.NoiseRate) -
		noiseLogPrior(cur, s.m.priors.NoiseShape, s.m.priors.NoiseRate)
	for i, sub := range s.subjects {
		logA += next[i] - s.ll[sub[0]][sub[1]]
	}
	if math.Log(s.rng.Float64()) < logA {
		s.sig2 = propSig2
		for i, sub := range s.subjects {
			s.ll[sub[0]][sub[1]] = next[i]
		}
		s.nStats.record(true, kept)
		return
	}
	s.nStats.record(false, kept)
}

func (s *sampler) tune() {
	for i := range s.rStep {
		s.rStep[i] = tuneStep(s.rStep[i], &s.rStats[i], s.cfg.Adapt)
	}
	s.nStep = tuneStep(s.nStep, &s.nStats, s.cfg.Adapt)
}

// state writes the current parameter vector into row in column order.
func (s *sampler) state(row []float64) {
	l := s.m.layout
	for g := 0; g < l.Groups; g++ {
		for k := 0; k < l.Points; k++ {
			for j, e := range s.eta[g][k] {
				row[l.RIndex(g, k, j)] = latency.Logistic(e)
			}
		}
	}
	for k := 0; k < l.Points; k++ {
		for j := 0; j < l.Groups; j++ {
			row[l.BetaIndex(k, j)] = s.beta[k][j]
		}
		row[l.Sigma2Index(k)] = s.sigma2[k]
	}
	row[l.NoiseIndex()] = s.sig2
}

// acceptance reports the Metropolis acceptance rate of every r parameter and
// of sig2 over the kept phase, or over the whole run when nothing was kept.
func (s *sampler) acceptance(names []string) map[string]float64 {
	rate := func(a *acceptStats) float64 {
		if a.keptProposed > 0 {
			return a.keptRate()
		}
		return a.totalRate()
	}
	out := make(map[string]float64, len(s.rStats)+1)
	for i := range s.rStats {
		out[names[i]] = rate(&s.rStats[i])
	}
	out[names[s.m.layout.NoiseIndex()]] = rate(&s.nStats)
	return out
}
