package slam

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/RyanBlaney/erp-slam/algorithms/kernel"
	"github.com/RyanBlaney/erp-slam/algorithms/latency"
	"github.com/RyanBlaney/erp-slam/logging"
	"github.com/RyanBlaney/erp-slam/simulate"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

func unitGrid(n int) []float64 {
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i) / float64(n-1)
	}
	return x
}

// scaledDistance is the distance matrix of x in units scale times larger.
func scaledDistance(x []float64, scale float64) *mat.Dense {
	var d mat.Dense
	d.Scale(scale, kernel.Distance(x, x))
	return &d
}

// cosineData simulates one group with latencies at r=0.3 and r=0.7 inside
// (0, 0.5) and (0.5, 1).
func cosineData(t *testing.T, subjects, n int, seed uint64) (*Data, *simulate.Dataset) {
	t.Helper()
	sc := simulate.DefaultConfig()
	sc.X = unitGrid(n)
	sc.Subjects = subjects
	sc.Seed = seed
	ds, err := simulate.CosineERP(sc)
	require.NoError(t, err)
	return &Data{X: sc.X, Groups: []Group{{Name: "g1", Y: ds.Y}}}, ds
}

func quickConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.EStep = config.ChainConfig{Iterations: 30, Burn: 10, Thin: 1}
	cfg.Final = config.ChainConfig{Iterations: 60, Burn: 20, Thin: 4}
	cfg.EMIterations = 1
	cfg.Adapt.Every = 10
	cfg.MStep.MaxDraws = 5
	cfg.MStep.MaxIterations = 10
	cfg.MStep.MaxEvaluations = 20
	cfg.Workers = 2
	return cfg
}

func quietEstimator(cfg *config.Config) (*Estimator, *logging.Recorder) {
	rec := logging.NewRecorder()
	est := NewEstimator(cfg)
	est.SetLogger(rec)
	return est, rec
}

// subjectMeans returns the posterior mean latency of every subject and point
// of group g: [subject][point].
func subjectMeans(t *testing.T, res *Result, g int) [][]float64 {
	t.Helper()
	out := make([][]float64, res.Layout.Subjects[g])
	for s := range out {
		draws, err := LatencyDraws(res, g, s)
		require.NoError(t, err)
		out[s] = make([]float64, res.Layout.Points)
		for _, row := range draws {
			for k, v := range row {
				out[s][k] += v / float64(len(draws))
			}
		}
	}
	return out
}

var defaultWindows = []latency.Window{{A: 0, B: 0.5}, {A: 0.5, B: 1}}
