package config

import (
	"github.com/RyanBlaney/erp-slam/algorithms/latency"
)

// ChainConfig is the length of one Metropolis-within-Gibbs run. Draw i
// (0-based) is kept when i >= Burn and (i-Burn+1) is a multiple of Thin, so
// a run keeps exactly floor((Iterations-Burn)/Thin) draws.
type ChainConfig struct {
	Iterations int `json:"iterations" yaml:"iterations"`
	Burn       int `json:"burn" yaml:"burn"`
	Thin       int `json:"thin" yaml:"thin"`
}

// Kept returns the number of draws a run retains.
func (c ChainConfig) Kept() int {
	if c.Thin <= 0 || c.Iterations <= c.Burn {
		return 0
	}
	return (c.Iterations - c.Burn) / c.Thin
}

// Keep reports whether iteration i is retained.
func (c ChainConfig) Keep(i int) bool {
	return i >= c.Burn && (i-c.Burn+1)%c.Thin == 0
}

// PriorConfig holds the hyperpriors of the latent model.
type PriorConfig struct {
	// Inverse-gamma prior on the subject-level latency variance (logit scale)
	GaShape float64 `json:"ga_shape" yaml:"ga_shape"`
	GaRate  float64 `json:"ga_rate" yaml:"ga_rate"`

	// Inverse-gamma prior on the observation noise variance
	NoiseShape float64 `json:"noise_shape" yaml:"noise_shape"`
	NoiseRate  float64 `json:"noise_rate" yaml:"noise_rate"`

	// Variance of the zero-mean normal prior on regression coefficients
	BetaVariance float64 `json:"beta_variance" yaml:"beta_variance"`
}

// AdaptConfig controls random-walk step tuning during burn-in.
type AdaptConfig struct {
	Every        int     `json:"every" yaml:"every"`                 // Iterations between adjustments
	Lower        float64 `json:"lower" yaml:"lower"`                 // Acceptance band lower edge
	Upper        float64 `json:"upper" yaml:"upper"`                 // Acceptance band upper edge
	Shrink       float64 `json:"shrink" yaml:"shrink"`               // Step multiplier below the band
	Grow         float64 `json:"grow" yaml:"grow"`                   // Step multiplier above the band
	LatencyStep  float64 `json:"latency_step" yaml:"latency_step"`   // Initial step on logit(r)
	NoiseLogStep float64 `json:"noise_log_step" yaml:"noise_log_step"` // Initial step on log(sig2)
}

// MStepConfig controls the hyperparameter optimizer.
type MStepConfig struct {
	MaxDraws       int     `json:"max_draws" yaml:"max_draws"`             // E-step draws used in the Q-function
	MaxIterations  int     `json:"max_iterations" yaml:"max_iterations"`   // Nelder-Mead major iterations
	MaxEvaluations int     `json:"max_evaluations" yaml:"max_evaluations"` // Objective evaluations
	Tolerance      float64 `json:"tolerance" yaml:"tolerance"`             // Function convergence tolerance
	SimplexSize    float64 `json:"simplex_size" yaml:"simplex_size"`       // Initial simplex size (log scale)
	MinLengthscale float64 `json:"min_lengthscale" yaml:"min_lengthscale"`
	MaxLengthscale float64 `json:"max_lengthscale" yaml:"max_lengthscale"`
}

// Config configures a Monte Carlo EM run.
type Config struct {
	// One search window per stationary point, shared by every group
	Windows []latency.Window `json:"windows" yaml:"windows"`

	// Optional expected parameter names. When set they must match the
	// canonical column order exactly.
	ParamNames []string `json:"param_names,omitempty" yaml:"param_names,omitempty"`

	EStep        ChainConfig `json:"e_step" yaml:"e_step"`
	Final        ChainConfig `json:"final" yaml:"final"`
	EMIterations int         `json:"em_iterations" yaml:"em_iterations"`

	// Power of the powered-exponential kernel; the stationary-point
	// constraint needs 2.
	Power float64 `json:"power" yaml:"power"`

	Priors PriorConfig `json:"priors" yaml:"priors"`
	Adapt  AdaptConfig `json:"adapt" yaml:"adapt"`
	MStep  MStepConfig `json:"m_step" yaml:"m_step"`

	Workers         int    `json:"workers" yaml:"workers"` // 0 = runtime.NumCPU()
	Seed            uint64 `json:"seed" yaml:"seed"`
	CheckpointEvery int    `json:"checkpoint_every,omitempty" yaml:"checkpoint_every,omitempty"`
	LogLevel        string `json:"log_level,omitempty" yaml:"log_level,omitempty"` // Minimum level of run logs; empty keeps the logger's own
}

// DefaultConfig returns the two-component setup used for P1/N1-style ERP
// analyses with the input grid rescaled to (0, 1).
func DefaultConfig() *Config {
	return &Config{
		Windows: []latency.Window{
			{A: 0, B: 0.5},
			{A: 0.5, B: 1},
		},
		EStep:        ChainConfig{Iterations: 1000, Burn: 100, Thin: 1},
		Final:        ChainConfig{Iterations: 10000, Burn: 5000, Thin: 10},
		EMIterations: 10,
		Power:        2,
		Priors: PriorConfig{
			GaShape:      2,
			GaRate:       1,
			NoiseShape:   2,
			NoiseRate:    0.1,
			BetaVariance: 10,
		},
		Adapt: AdaptConfig{
			Every:        50,
			Lower:        0.2,
			Upper:        0.5,
			Shrink:       0.7,
			Grow:         1.4,
			LatencyStep:  0.5,
			NoiseLogStep: 0.2,
		},
		MStep: MStepConfig{
			MaxDraws:       50,
			MaxIterations:  200,
			MaxEvaluations: 400,
			Tolerance:      1e-6,
			SimplexSize:    0.5,
			MinLengthscale: 1e-3,
			MaxLengthscale: 1e3,
		},
		Workers: 0,
		Seed:    1,
	}
}
