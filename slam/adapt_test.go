package slam

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/RyanBlaney/erp-slam/slam/config"
)

func TestTuneStep(t *testing.T) {
	cfg := config.DefaultConfig().Adapt

	tests := []struct {
		name     string
		accepted int
		want     float64
	}{
		{"below band shrinks", 1, 0.7},
		{"inside band holds", 3, 1},
		{"above band grows", 9, 1.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var st acceptStats
			for i := 0; i < 10; i++ {
				st.record(i < tt.accepted, false)
			}
			assert.InDelta(t, tt.want, tuneStep(1, &st, cfg), 1e-12)
			assert.Zero(t, st.windowProposed, "window resets")
			assert.Equal(t, 10, st.totalProposed)
			assert.Zero(t, st.keptProposed)
		})
	}

	var empty acceptStats
	assert.Equal(t, 0.3, tuneStep(0.3, &empty, cfg))

	var low acceptStats
	low.record(false, false)
	assert.Equal(t, minStep, tuneStep(minStep, &low, cfg))
}

func TestAcceptStatsKeptRate(t *testing.T) {
	var st acceptStats
	st.record(true, false)
	st.record(true, true)
	st.record(false, true)
	assert.Equal(t, 0.5, st.keptRate())
	assert.InDelta(t, 2.0/3, st.totalRate(), 1e-12)
	st.resetRun()
	assert.Zero(t, st.totalRate())
}

func TestWorkerPoolRunsEveryIndexOnce(t *testing.T) {
	for _, workers := range []int{0, 1, 3, 16} {
		seen := make([]int32, 50)
		newWorkerPool(workers).run(len(seen), func(i int) {
			atomic.AddInt32(&seen[i], 1)
		})
		for i, n := range seen {
			assert.Equal(t, int32(1), n, "workers=%d index=%d", workers, i)
		}
	}
	newWorkerPool(2).run(0, func(int) { t.Fatal("called with n=0") })
}
