package slam

import (
	"context"
	"fmt"
	"time"

	"github.com/RyanBlaney/erp-slam/algorithms/latency"
	"github.com/RyanBlaney/erp-slam/logging"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

// Result is the output of a Monte Carlo EM run.
type Result struct {
	// Draws of the final E-step, one column per parameter
	Trace *Trace `json:"trace"`

	// Metropolis acceptance rate of each r parameter and of sig2 over the
	// kept phase of the final E-step
	Acceptance map[string]float64 `json:"acceptance"`

	// One row per outer iteration
	Hyper HyperTrace `json:"hyper"`

	Layout  Layout           `json:"layout"`
	Windows []latency.Window `json:"windows"`
	X       []float64        `json:"x"`
}

// Names returns the trace column names.
func (r *Result) Names() []string {
	return r.Trace.Names
}

// Estimate returns the final (tau, h).
func (r *Result) Estimate() (tau, h float64) {
	last, _ := r.Hyper.Last()
	return last.Tau, last.H
}

// Estimator runs the stationary-point latency model.
type Estimator struct {
	cfg          *config.Config
	logger       logging.Logger
	checkpointer Checkpointer
}

// NewEstimator creates an estimator. A nil config uses config.DefaultConfig().
func NewEstimator(cfg *config.Config) *Estimator {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Estimator{
		cfg:    cfg,
		logger: logging.WithFields(logging.Fields{"component": "slam"}),
	}
}

// SetLogger replaces the estimator's logger.
func (e *Estimator) SetLogger(logger logging.Logger) {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	e.logger = logger
}

// SetCheckpointer enables checkpoints every cfg.CheckpointEvery sampler
// iterations.
func (e *Estimator) SetCheckpointer(c Checkpointer) {
	e.checkpointer = c
}

// Config returns the estimator configuration.
func (e *Estimator) Config() *config.Config {
	return e.cfg
}

// Fit alternates E-steps and M-steps for cfg.EMIterations outer iterations
// and then runs the final E-step with the last hyperparameter estimate.
// Input problems are reported as *ConfigError before any sampling; a
// covariance that cannot be factorized at the start values is reported as a
// *NumericalError.
func (e *Estimator) Fit(ctx context.Context, data *Data, start *StartValues) (*Result, error) {
	cfg := e.cfg
	if err := data.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	layout := NewLayout(data, len(cfg.Windows))
	names := layout.Names()
	if err := cfg.CheckNames(names); err != nil {
		return nil, err
	}
	if start == nil {
		start = DefaultStartValues(data, layout)
	}
	if err := start.Validate(layout, cfg.Windows); err != nil {
		return nil, err
	}

	m := newModel(data, cfg)
	pool := newWorkerPool(cfg.Workers)
	log := e.logger.WithContext(ctx)
	if cfg.LogLevel != "" {
		level, _ := logging.ParseLevel(cfg.LogLevel)
		// Set the level on a derived logger so the caller's is untouched.
		log = log.WithFields(logging.Fields{})
		log.SetLevel(level)
	}

	hp, err := m.newHyper(start.Tau, start.H)
	if err != nil {
		return nil, asNumerical("initial state", err)
	}
	s := newSampler(m, cfg, start, pool, log.WithFields(logging.Fields{"phase": "e-step"}))
	if err := s.refresh(hp); err != nil {
		return nil, asNumerical("initial state", err)
	}

	ms := &mStep{m: m, cfg: cfg.MStep, pool: pool, logger: log.WithFields(logging.Fields{"phase": "m-step"})}
	history := make(HyperTrace, 0, cfg.EMIterations)

	log.Info("starting MCEM", logging.Fields{
		"groups":        layout.Groups,
		"points":        layout.Points,
		"parameters":    layout.Width(),
		"em_iterations": cfg.EMIterations,
		"workers":       pool.workers,
	})

	for it := 1; it <= cfg.EMIterations; it++ {
		started := time.Now()
		out, err := s.run(ctx, hp, cfg.EStep, e.hook("em", it, s, hp, &history))
		if err != nil {
			return nil, e.wrapRunError("E-step", it, err)
		}

		row := ms.maximize(it, out.trace, hp.tau, hp.h)
		if next, err := m.newHyper(row.Tau, row.H); err != nil {
			log.Warn("new hyperparameters rejected, keeping previous estimate",
				logging.Fields{"em_iteration": it, "error": err.Error()})
			row = HyperRow{Iteration: it, Tau: hp.tau, H: hp.h, Objective: row.Objective, Fallback: true}
		} else {
			hp = next
		}
		history = append(history, row)

		log.Info("EM iteration done", logging.Fields{
			"em_iteration": it,
			"tau":          row.Tau,
			"h":            row.H,
			"converged":    row.Converged,
			"fallback":     row.Fallback,
			"elapsed":      time.Since(started).Round(time.Millisecond).String(),
		})
	}

	out, err := s.run(ctx, hp, cfg.Final, e.hook("final", 0, s, hp, &history))
	if err != nil {
		return nil, e.wrapRunError("final E-step", 0, err)
	}
	log.Info("MCEM done", logging.Fields{"draws": out.trace.Len(), "tau": hp.tau, "h": hp.h})

	return &Result{
		Trace:      out.trace,
		Acceptance: out.acceptance,
		Hyper:      history,
		Layout:     layout,
		Windows:    append([]latency.Window(nil), cfg.Windows...),
		X:          append([]float64(nil), data.X...),
	}, nil
}

// hook returns the per-iteration callback that emits checkpoints.
func (e *Estimator) hook(phase string, emIter int, s *sampler, hp *hyper, history *HyperTrace) iterationHook {
	every := e.cfg.CheckpointEvery
	if e.checkpointer == nil || every <= 0 {
		return nil
	}
	return func(ctx context.Context, i int) error {
		if (i+1)%every != 0 {
			return nil
		}
		state := make([]float64, s.m.layout.Width())
		s.state(state)
		cp := &Checkpoint{
			Phase:       phase,
			EMIteration: emIter,
			Iteration:   i,
			Names:       s.m.layout.Names(),
			State:       state,
			Tau:         hp.tau,
			H:           hp.h,
			Hyper:       append(HyperTrace(nil), (*history)...),
			CreatedAt:   time.Now().UTC(),
		}
		if err := e.checkpointer.Checkpoint(ctx, cp); err != nil {
			return fmt.Errorf("checkpoint at iteration %d: %w", i, err)
		}
		return nil
	}
}

func (e *Estimator) wrapRunError(stage string, emIter int, err error) error {
	if emIter > 0 {
		return fmt.Errorf("%s %d: %w", stage, emIter, err)
	}
	return fmt.Errorf("%s: %w", stage, err)
}

// MCEM fits the model with cfg and returns the final trace, acceptance rates
// and hyperparameter history.
func MCEM(ctx context.Context, data *Data, start *StartValues, cfg *config.Config) (*Result, error) {
	return NewEstimator(cfg).Fit(ctx, data, start)
}
