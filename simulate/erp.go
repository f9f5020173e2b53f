// Package simulate generates synthetic multi-subject ERP curves whose
// stationary points sit at known latencies.
package simulate

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/erp-slam/algorithms/latency"
)

// Config describes one simulated group.
type Config struct {
	X         []float64        `json:"x"`          // Shared input grid
	Subjects  int              `json:"subjects"`   // Number of curves (columns)
	Windows   []latency.Window `json:"windows"`    // One window per stationary point (two)
	TrueR     []float64        `json:"true_r"`     // Group-level r per stationary point
	RJitter   float64          `json:"r_jitter"`   // Subject-level sd of r around TrueR
	Amplitude float64          `json:"amplitude"`  // Peak-to-centre amplitude
	NoiseSD   float64          `json:"noise_sd"`   // Observation noise
	Seed      uint64           `json:"seed"`
}

// Dataset is a simulated response matrix with its ground truth.
type Dataset struct {
	Y         *mat.Dense  // n x Subjects
	Truth     [][]float64 // [subject][point] latencies on the input scale
	Clean     *mat.Dense  // Noise-free curves
	Amplitude float64
}

// DefaultConfig is the three-subject scenario with latencies at r=0.3 and
// r=0.7 inside (0, 0.5) and (0.5, 1).
func DefaultConfig() Config {
	x := make([]float64, 41)
	for i := range x {
		x[i] = float64(i) / 40
	}
	return Config{
		X:         x,
		Subjects:  3,
		Windows:   []latency.Window{{A: 0, B: 0.5}, {A: 0.5, B: 1}},
		TrueR:     []float64{0.3, 0.7},
		RJitter:   0,
		Amplitude: 1,
		NoiseSD:   0.05,
		Seed:      1,
	}
}

// Validate checks that the configuration describes a two-point cosine curve.
func (c Config) Validate() error {
	if len(c.X) < 3 {
		return fmt.Errorf("need at least 3 grid points, got %d", len(c.X))
	}
	if c.Subjects < 1 {
		return fmt.Errorf("need at least one subject, got %d", c.Subjects)
	}
	if len(c.Windows) != 2 || len(c.TrueR) != 2 {
		return fmt.Errorf("cosine ERP needs exactly two stationary points, got %d windows and %d r values", len(c.Windows), len(c.TrueR))
	}
	for i, w := range c.Windows {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("window %d: %w", i, err)
		}
		if !(c.TrueR[i] > 0 && c.TrueR[i] < 1) {
			return fmt.Errorf("true r %g for point %d outside (0, 1)", c.TrueR[i], i)
		}
	}
	if c.NoiseSD < 0 || c.RJitter < 0 {
		return fmt.Errorf("noise and jitter must be non-negative")
	}
	return nil
}

// CosineERP draws one group. Each subject's clean curve is
//
//	A * cos(pi * (x - t1) / (t2 - t1))
//
// which has a peak at t1 and a trough at t2.
func CosineERP(cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)
	noise := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	n := len(cfg.X)
	y := mat.NewDense(n, cfg.Subjects, nil)
	clean := mat.NewDense(n, cfg.Subjects, nil)
	truth := make([][]float64, cfg.Subjects)

	for s := 0; s < cfg.Subjects; s++ {
		t := make([]float64, 2)
		for k := range t {
			r := cfg.TrueR[k]
			if cfg.RJitter > 0 {
				r = latency.Logistic(latency.Logit(r) + cfg.RJitter*noise.Rand())
			}
			t[k] = cfg.Windows[k].ToLocation(r)
		}
		if t[0] >= t[1] {
			return nil, fmt.Errorf("subject %d: latencies %v out of order", s, t)
		}
		truth[s] = t

		for i, xi := range cfg.X {
			f := cfg.Amplitude * math.Cos(math.Pi*(xi-t[0])/(t[1]-t[0]))
			clean.Set(i, s, f)
			y.Set(i, s, f+cfg.NoiseSD*noise.Rand())
		}
	}

	return &Dataset{Y: y, Truth: truth, Clean: clean, Amplitude: cfg.Amplitude}, nil
}
