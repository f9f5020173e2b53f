package slam

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/erp-slam/algorithms/latency"
	"github.com/RyanBlaney/erp-slam/algorithms/stats"
	"github.com/RyanBlaney/erp-slam/logging"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

func TestLayoutNames(t *testing.T) {
	data := &Data{
		X: unitGrid(5),
		Groups: []Group{
			{Y: mat.NewDense(5, 2, nil)},
			{Y: mat.NewDense(5, 3, nil)},
		},
	}
	l := NewLayout(data, 2)

	names := l.Names()
	require.Len(t, names, l.Width())
	assert.Equal(t, 17, l.Width())
	assert.Equal(t, []string{
		"r1_g1_s1", "r1_g1_s2", "r2_g1_s1", "r2_g1_s2",
		"r1_g2_s1", "r1_g2_s2", "r1_g2_s3", "r2_g2_s1", "r2_g2_s2", "r2_g2_s3",
		"beta0_1", "beta1_1", "beta0_2", "beta1_2",
		"sigma2_1", "sigma2_2", "sig2",
	}, names)

	seen := make(map[string]bool)
	for _, n := range names {
		assert.False(t, seen[n], "duplicate name %s", n)
		seen[n] = true
	}
	assert.Equal(t, names, l.Names(), "names must be stable")
}

func TestFitRejectsBadInputBeforeSampling(t *testing.T) {
	data, _ := cosineData(t, 2, 11, 1)

	tests := []struct {
		name  string
		data  *Data
		cfg   func(*config.Config)
		start func(*StartValues)
		field string
	}{
		{
			name:  "inverted window",
			data:  data,
			cfg:   func(c *config.Config) { c.Windows[0] = latency.Window{A: 0.5, B: 0.1} },
			field: "windows[0]",
		},
		{
			name:  "start r dimension",
			data:  data,
			start: func(s *StartValues) { s.R[0][1] = s.R[0][1][:1] },
			field: "start.r",
		},
		{
			name:  "start r out of range",
			data:  data,
			start: func(s *StartValues) { s.R[0][0][0] = 1 },
			field: "start.r",
		},
		{
			name:  "start beta dimension",
			data:  data,
			start: func(s *StartValues) { s.Beta = s.Beta[:1] },
			field: "start.beta",
		},
		{
			name:  "parameter names out of order",
			data:  data,
			cfg:   func(c *config.Config) { c.ParamNames = []string{"r2_g1_s1"} },
			field: "param_names",
		},
		{
			name:  "response rows",
			data:  &Data{X: unitGrid(12), Groups: data.Groups},
			field: "groups[0]",
		},
		{
			name:  "distance matrix in other units",
			data:  &Data{X: data.X, H0: scaledDistance(data.X, 10), Groups: data.Groups},
			field: "h0",
		},
		{
			name:  "unknown log level",
			data:  data,
			cfg:   func(c *config.Config) { c.LogLevel = "loud" },
			field: "log_level",
		},
		{
			name:  "no groups",
			data:  &Data{X: unitGrid(11)},
			field: "groups",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := quickConfig()
			cfg.Windows = append([]latency.Window(nil), defaultWindows...)
			if tt.cfg != nil {
				tt.cfg(cfg)
			}
			var start *StartValues
			if tt.start != nil {
				start = DefaultStartValues(data, NewLayout(data, 2))
				tt.start(start)
			}

			est, rec := quietEstimator(cfg)
			res, err := est.Fit(context.Background(), tt.data, start)
			require.Error(t, err)
			assert.Nil(t, res)

			var ce *ConfigError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Empty(t, rec.Entries(), "nothing should be logged before validation passes")
		})
	}
}

func TestFitTraceShape(t *testing.T) {
	data, _ := cosineData(t, 2, 15, 3)
	cfg := quickConfig()
	// Overlapping windows exercise the ordering constraint.
	cfg.Windows = []latency.Window{{A: 0, B: 0.6}, {A: 0.4, B: 1}}
	cfg.Final = config.ChainConfig{Iterations: 53, Burn: 13, Thin: 3}
	cfg.EMIterations = 2

	est, _ := quietEstimator(cfg)
	res, err := est.Fit(context.Background(), data, nil)
	require.NoError(t, err)

	assert.Equal(t, (53-13)/3, res.Trace.Len())
	assert.Equal(t, res.Layout.Names(), res.Names())
	for _, row := range res.Trace.Rows {
		require.Len(t, row, len(res.Names()))
	}

	require.Len(t, res.Hyper, 2)
	last, ok := res.Hyper.Last()
	require.True(t, ok)
	tau, h := res.Estimate()
	assert.Equal(t, last.Tau, tau)
	assert.Equal(t, last.H, h)
	assert.Greater(t, tau, 0.0)
	assert.Greater(t, h, 0.0)

	for s := 0; s < 2; s++ {
		draws, err := LatencyDraws(res, 0, s)
		require.NoError(t, err)
		for _, tt := range draws {
			assert.Less(t, tt[0], tt[1], "latencies must stay ordered")
			assert.True(t, cfg.Windows[0].Contains(tt[0]))
			assert.True(t, cfg.Windows[1].Contains(tt[1]))
		}
	}

	require.Len(t, res.Acceptance, res.Layout.NumR()+1)
	for name, rate := range res.Acceptance {
		assert.GreaterOrEqual(t, rate, 0.0, name)
		assert.LessOrEqual(t, rate, 1.0, name)
	}
	assert.Contains(t, res.Acceptance, "sig2")
	assert.Contains(t, res.Acceptance, "r2_g1_s2")
}

func TestFitDeterministicAcrossWorkers(t *testing.T) {
	data, _ := cosineData(t, 3, 13, 5)

	run := func(workers int) *Result {
		cfg := quickConfig()
		cfg.Workers = workers
		est, _ := quietEstimator(cfg)
		res, err := est.Fit(context.Background(), data, nil)
		require.NoError(t, err)
		return res
	}

	a, b := run(1), run(4)
	assert.Equal(t, a.Trace.Rows, b.Trace.Rows)
	assert.Equal(t, a.Hyper, b.Hyper)
	assert.Equal(t, a.Acceptance, b.Acceptance)
}

func TestFitHonoursCancellation(t *testing.T) {
	data, _ := cosineData(t, 1, 11, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	est, _ := quietEstimator(quickConfig())
	_, err := est.Fit(ctx, data, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFitCheckpoints(t *testing.T) {
	data, _ := cosineData(t, 1, 11, 2)
	cfg := quickConfig()
	cfg.EStep = config.ChainConfig{Iterations: 20, Burn: 5, Thin: 1}
	cfg.Final = config.ChainConfig{Iterations: 30, Burn: 10, Thin: 2}
	cfg.CheckpointEvery = 10

	var got []*Checkpoint
	est, _ := quietEstimator(cfg)
	est.SetCheckpointer(CheckpointFunc(func(_ context.Context, cp *Checkpoint) error {
		got = append(got, cp)
		return nil
	}))
	_, err := est.Fit(context.Background(), data, nil)
	require.NoError(t, err)

	require.Len(t, got, 5)
	assert.Equal(t, "em", got[0].Phase)
	assert.Equal(t, 1, got[0].EMIteration)
	assert.Equal(t, 9, got[0].Iteration)
	assert.Empty(t, got[0].Hyper)
	assert.Equal(t, "final", got[4].Phase)
	assert.Equal(t, 29, got[4].Iteration)
	assert.Len(t, got[4].Hyper, 1)
	assert.Len(t, got[4].State, len(got[4].Names))

	path := filepath.Join(t.TempDir(), "run.json")
	est.SetCheckpointer(&JSONCheckpointer{Path: path})
	_, err = est.Fit(context.Background(), data, nil)
	require.NoError(t, err)

	cp, err := LoadCheckpoint(path)
	require.NoError(t, err)
	assert.Equal(t, "final", cp.Phase)
	assert.Equal(t, 29, cp.Iteration)
	assert.Equal(t, got[4].State, cp.State, "same seed gives the same state")
}

func TestFitCheckpointErrorAborts(t *testing.T) {
	data, _ := cosineData(t, 1, 11, 2)
	cfg := quickConfig()
	cfg.CheckpointEvery = 5

	boom := errors.New("disk full")
	est, _ := quietEstimator(cfg)
	est.SetCheckpointer(CheckpointFunc(func(context.Context, *Checkpoint) error { return boom }))
	_, err := est.Fit(context.Background(), data, nil)
	assert.ErrorIs(t, err, boom)
}

func TestAcceptanceTunedIntoBand(t *testing.T) {
	// One subject, one stationary point at 0.4.
	x := unitGrid(31)
	y := mat.NewDense(len(x), 1, nil)
	noise := distuv.Normal{Mu: 0, Sigma: 0.05, Src: rand.NewPCG(11, 12)}
	for i, xi := range x {
		d := (xi - 0.4) / 0.2
		y.Set(i, 0, math.Exp(-d*d)+noise.Rand())
	}
	data := &Data{X: x, Groups: []Group{{Y: y}}}

	cfg := quickConfig()
	cfg.Windows = []latency.Window{{A: 0.2, B: 0.6}}
	cfg.EStep = config.ChainConfig{Iterations: 100, Burn: 50, Thin: 1}
	cfg.Final = config.ChainConfig{Iterations: 1500, Burn: 600, Thin: 1}
	cfg.Adapt.Every = 25

	est, _ := quietEstimator(cfg)
	res, err := est.Fit(context.Background(), data, nil)
	require.NoError(t, err)

	for _, name := range []string{"r1_g1_s1", "sig2"} {
		rate := res.Acceptance[name]
		assert.GreaterOrEqual(t, rate, cfg.Adapt.Lower, name)
		assert.LessOrEqual(t, rate, cfg.Adapt.Upper, name)
	}

	draws, err := LatencyDraws(res, 0, 0)
	require.NoError(t, err)
	mean := 0.0
	for _, d := range draws {
		mean += d[0] / float64(len(draws))
	}
	assert.InDelta(t, 0.4, mean, 0.05)
}

func TestFitRecoversKnownLatencies(t *testing.T) {
	if testing.Short() {
		t.Skip("long-running sampler test")
	}
	data, ds := cosineData(t, 3, 41, 7)

	cfg := quickConfig()
	cfg.EStep = config.ChainConfig{Iterations: 200, Burn: 100, Thin: 1}
	cfg.Final = config.ChainConfig{Iterations: 1000, Burn: 400, Thin: 2}
	cfg.EMIterations = 3
	cfg.MStep.MaxDraws = 20
	cfg.MStep.MaxEvaluations = 60
	cfg.Adapt.Every = 25
	cfg.Workers = 0

	est, rec := quietEstimator(cfg)
	res, err := est.Fit(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Equal(t, 300, res.Trace.Len())

	means := subjectMeans(t, res, 0)
	for s, row := range means {
		for k, m := range row {
			assert.True(t, cfg.Windows[k].Contains(m), "subject %d point %d mean %g outside window", s+1, k+1, m)
			assert.InDelta(t, ds.Truth[s][k], m, 0.08, "subject %d point %d", s+1, k+1)
		}
	}

	// One Info line per outer iteration plus start and end.
	var infos int
	for _, e := range rec.Entries() {
		if e.Level == logging.InfoLevel {
			infos++
		}
	}
	assert.Equal(t, cfg.EMIterations+2, infos)
}

func TestFitCredibleIntervalsCoverTruth(t *testing.T) {
	if testing.Short() {
		t.Skip("long-running repeated sampler test")
	}
	cfg := quickConfig()
	cfg.EStep = config.ChainConfig{Iterations: 200, Burn: 100, Thin: 1}
	cfg.Final = config.ChainConfig{Iterations: 1000, Burn: 400, Thin: 2}
	cfg.EMIterations = 3
	cfg.MStep.MaxDraws = 20
	cfg.MStep.MaxEvaluations = 60
	cfg.Adapt.Every = 25
	cfg.Workers = 0

	pct := stats.NewPercentiles()
	covered, total := 0, 0
	for seed := uint64(1); seed <= 10; seed++ {
		data, ds := cosineData(t, 3, 41, seed)
		est, _ := quietEstimator(cfg)
		res, err := est.Fit(context.Background(), data, nil)
		require.NoError(t, err, "seed %d", seed)

		for s := range ds.Truth {
			draws, err := LatencyDraws(res, 0, s)
			require.NoError(t, err)
			for k, truth := range ds.Truth[s] {
				lo, hi, err := pct.EqualTailInterval(PointColumn(draws, k), 0.95)
				require.NoError(t, err)
				total++
				if lo <= truth && truth <= hi {
					covered++
				}
			}
		}
	}
	require.Equal(t, 60, total)
	assert.GreaterOrEqual(t, float64(covered)/float64(total), 0.9, "covered %d of %d", covered, total)
}

func TestFitLogLevel(t *testing.T) {
	data, _ := cosineData(t, 2, 15, 4)

	est, rec := quietEstimator(quickConfig())
	_, err := est.Fit(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Positive(t, rec.Count(logging.InfoLevel))

	cfg := quickConfig()
	cfg.LogLevel = "warn"
	est, rec = quietEstimator(cfg)
	_, err = est.Fit(context.Background(), data, nil)
	require.NoError(t, err)
	assert.Zero(t, rec.Count(logging.InfoLevel))

	rec.Info("after the run")
	assert.Equal(t, 1, rec.Count(logging.InfoLevel), "the caller's logger keeps its own level")
}

func TestMCEMConvenience(t *testing.T) {
	data, _ := cosineData(t, 1, 11, 4)
	cfg := quickConfig()
	logging.SetGlobalLogger(&logging.NoOpLogger{})
	t.Cleanup(func() { logging.SetGlobalLogger(nil) })

	res, err := MCEM(context.Background(), data, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Final.Kept(), res.Trace.Len())
}
