package slam

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/optimize"

	"github.com/RyanBlaney/erp-slam/logging"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

// penalty replaces non-finite objective values so the simplex can move away
// from them.
const penalty = 1e100

// mStep maximises the Monte Carlo Q-function
//
//	Q(tau, h) = 1/M sum_m sum_subjects log N(y | 0, Sigma(t_m; tau, h, sig2_m))
//
// over (log tau, log h) using the draws of the preceding E-step.
type mStep struct {
	m      *model
	cfg    config.MStepConfig
	pool   *workerPool
	logger logging.Logger
}

// draw is one E-step sample reduced to what the likelihood needs.
type draw struct {
	times [][][]float64 // [group][subject][point]
	sig2  float64
}

func (ms *mStep) draws(trace *Trace) []draw {
	l := ms.m.layout
	rows := trace.Subsample(ms.cfg.MaxDraws)
	out := make([]draw, len(rows))
	for i, row := range rows {
		d := draw{times: make([][][]float64, l.Groups), sig2: row[l.NoiseIndex()]}
		for g := 0; g < l.Groups; g++ {
			d.times[g] = make([][]float64, l.Subjects[g])
			for j := 0; j < l.Subjects[g]; j++ {
				t := make([]float64, l.Points)
				for k := range t {
					t[k] = ms.m.windows[k].ToLocation(row[l.RIndex(g, k, j)])
				}
				d.times[g][j] = t
			}
		}
		out[i] = d
	}
	return out
}

// objective returns -Q at (tau, h). Evaluations over (draw, subject) pairs
// run on the pool and are summed in a fixed order.
func (ms *mStep) objective(draws []draw, tau, h float64) (float64, error) {
	if h < ms.cfg.MinLengthscale || h > ms.cfg.MaxLengthscale {
		return penalty, fmt.Errorf("%w: h=%g outside [%g, %g]", ErrInvalidLengthscale, h, ms.cfg.MinLengthscale, ms.cfg.MaxLengthscale)
	}
	hp, err := ms.m.newHyper(tau, h)
	if err != nil {
		return penalty, err
	}

	l := ms.m.layout
	var pairs [][3]int
	for d := range draws {
		for g := 0; g < l.Groups; g++ {
			for j := 0; j < l.Subjects[g]; j++ {
				pairs = append(pairs, [3]int{d, g, j})
			}
		}
	}
	lls := make([]float64, len(pairs))
	errs := make([]error, len(pairs))
	ms.pool.run(len(pairs), func(i int) {
		d, g, j := pairs[i][0], pairs[i][1], pairs[i][2]
		lls[i], errs[i] = ms.m.subjectLogLik(hp, ms.m.ys[g][j], draws[d].times[g][j], draws[d].sig2)
	})
	if err := errors.Join(errs...); err != nil {
		return penalty, err
	}

	q := 0.0
	for _, v := range lls {
		q += v
	}
	q /= float64(len(draws))
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return penalty, ErrNonFinite
	}
	return -q, nil
}

// maximize runs Nelder-Mead from the previous estimate. When the optimizer
// fails or ends on a non-finite value the previous estimate is kept and the
// row is marked as a fallback. Hitting an iteration or evaluation limit keeps
// the best point found but marks the row as not converged.
func (ms *mStep) maximize(iter int, trace *Trace, prevTau, prevH float64) HyperRow {
	draws := ms.draws(trace)
	log := ms.logger.WithFields(logging.Fields{"em_iteration": iter})

	prevRow := HyperRow{Iteration: iter, Tau: prevTau, H: prevH, Fallback: true}
	if len(draws) == 0 {
		log.Warn("no E-step draws available, keeping previous hyperparameters")
		return prevRow
	}
	if f, err := ms.objective(draws, prevTau, prevH); err == nil {
		prevRow.Objective = -f
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			f, _ := ms.objective(draws, math.Exp(x[0]), math.Exp(x[1]))
			return f
		},
	}
	settings := &optimize.Settings{
		MajorIterations: ms.cfg.MaxIterations,
		FuncEvaluations: ms.cfg.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   ms.cfg.Tolerance,
			Iterations: 20,
		},
	}
	method := &optimize.NelderMead{SimplexSize: ms.cfg.SimplexSize}

	res, err := optimize.Minimize(problem, []float64{math.Log(prevTau), math.Log(prevH)}, settings, method)
	limited := res != nil && (res.Status == optimize.IterationLimit || res.Status == optimize.FunctionEvaluationLimit)
	if err != nil && !limited {
		log.Warn("hyperparameter optimization failed, keeping previous estimate",
			logging.Fields{"error": err.Error(), "tau": prevTau, "h": prevH})
		return prevRow
	}
	if res == nil || math.IsNaN(res.F) || math.IsInf(res.F, 0) || res.F >= penalty {
		log.Warn("hyperparameter optimization ended on a non-finite objective, keeping previous estimate",
			logging.Fields{"tau": prevTau, "h": prevH})
		return prevRow
	}

	tau, h := math.Exp(res.X[0]), math.Exp(res.X[1])
	row := HyperRow{
		Iteration:   iter,
		Tau:         tau,
		H:           h,
		Objective:   -res.F,
		Evaluations: res.Stats.FuncEvaluations,
		Converged:   !limited,
	}
	if limited {
		log.Warn("hyperparameter optimization did not converge",
			logging.Fields{"status": res.Status.String(), "evaluations": row.Evaluations})
	}
	log.Debug("M-step done", logging.Fields{"tau": tau, "h": h, "q": row.Objective})
	return row
}
