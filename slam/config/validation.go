package config

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/erp-slam/logging"
)

// ConfigError reports invalid configuration detected before any sampling.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Msg)
}

func configErrorf(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Validate checks the configuration. It implements fail-fast behavior: an
// estimator must not start sampling with an invalid configuration.
func (c *Config) Validate() error {
	if len(c.Windows) == 0 {
		return configErrorf("windows", "at least one search window is required")
	}
	for i, w := range c.Windows {
		if err := w.Validate(); err != nil {
			return configErrorf(fmt.Sprintf("windows[%d]", i), "%v", err)
		}
		if i > 0 && w.A < c.Windows[i-1].A {
			return configErrorf(fmt.Sprintf("windows[%d]", i), "windows must be ordered by lower bound")
		}
	}

	if err := c.EStep.validate("e_step"); err != nil {
		return err
	}
	if err := c.Final.validate("final"); err != nil {
		return err
	}
	if c.EMIterations < 1 {
		return configErrorf("em_iterations", "must be at least 1, got %d", c.EMIterations)
	}
	if c.Power != 2 {
		return configErrorf("power", "stationary-point constraints need power 2, got %g", c.Power)
	}

	p := c.Priors
	for name, v := range map[string]float64{
		"priors.ga_shape":      p.GaShape,
		"priors.ga_rate":       p.GaRate,
		"priors.noise_shape":   p.NoiseShape,
		"priors.noise_rate":    p.NoiseRate,
		"priors.beta_variance": p.BetaVariance,
	} {
		if !(v > 0) {
			return configErrorf(name, "must be positive, got %g", v)
		}
	}

	a := c.Adapt
	if a.Every < 1 {
		return configErrorf("adapt.every", "must be at least 1, got %d", a.Every)
	}
	if !(a.Lower > 0 && a.Lower < a.Upper && a.Upper < 1) {
		return configErrorf("adapt", "acceptance band (%g, %g) must satisfy 0 < lower < upper < 1", a.Lower, a.Upper)
	}
	if !(a.Shrink > 0 && a.Shrink < 1) || !(a.Grow > 1) {
		return configErrorf("adapt", "need 0 < shrink < 1 < grow, got %g and %g", a.Shrink, a.Grow)
	}
	if !(a.LatencyStep > 0) || !(a.NoiseLogStep > 0) {
		return configErrorf("adapt", "initial steps must be positive")
	}

	m := c.MStep
	if m.MaxDraws < 1 || m.MaxIterations < 1 || m.MaxEvaluations < 1 {
		return configErrorf("m_step", "draw, iteration and evaluation limits must be positive")
	}
	if !(m.Tolerance > 0) || !(m.SimplexSize > 0) {
		return configErrorf("m_step", "tolerance and simplex size must be positive")
	}
	if !(m.MinLengthscale > 0 && m.MinLengthscale < m.MaxLengthscale) {
		return configErrorf("m_step", "lengthscale bounds (%g, %g) are invalid", m.MinLengthscale, m.MaxLengthscale)
	}

	if c.Workers < 0 {
		return configErrorf("workers", "must be non-negative, got %d", c.Workers)
	}
	if c.CheckpointEvery < 0 {
		return configErrorf("checkpoint_every", "must be non-negative, got %d", c.CheckpointEvery)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return configErrorf("log_level", "%v", err)
	}
	return nil
}

func (c ChainConfig) validate(field string) error {
	if c.Iterations < 1 {
		return configErrorf(field, "iterations must be positive, got %d", c.Iterations)
	}
	if c.Burn < 0 || c.Burn >= c.Iterations {
		return configErrorf(field, "burn %d must be in [0, %d)", c.Burn, c.Iterations)
	}
	if c.Thin < 1 {
		return configErrorf(field, "thin must be at least 1, got %d", c.Thin)
	}
	if c.Kept() < 1 {
		return configErrorf(field, "keeps no draws (iterations %d, burn %d, thin %d)", c.Iterations, c.Burn, c.Thin)
	}
	return nil
}

// CheckNames compares expected parameter names against the canonical ones.
func (c *Config) CheckNames(canonical []string) error {
	if len(c.ParamNames) == 0 {
		return nil
	}
	if len(c.ParamNames) != len(canonical) {
		return configErrorf("param_names", "got %d names, model has %d parameters", len(c.ParamNames), len(canonical))
	}
	var mismatched []string
	for i, name := range c.ParamNames {
		if name != canonical[i] {
			mismatched = append(mismatched, fmt.Sprintf("%d:%s!=%s", i, name, canonical[i]))
		}
	}
	if len(mismatched) > 0 {
		if len(mismatched) > 5 {
			mismatched = append(mismatched[:5], "...")
		}
		return configErrorf("param_names", "order differs from model: %s", strings.Join(mismatched, ", "))
	}
	return nil
}
