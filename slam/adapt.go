package slam

import (
	"github.com/RyanBlaney/erp-slam/algorithms/common"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

const (
	minStep = 1e-4
	maxStep = 50.0
)

// acceptStats counts Metropolis proposals for one parameter. The window
// counters cover the iterations since the last step adjustment; the kept
// counters cover the retained phase of the current run.
type acceptStats struct {
	windowAccepted, windowProposed int
	keptAccepted, keptProposed     int
	totalAccepted, totalProposed   int
}

func (a *acceptStats) record(accepted, kept bool) {
	a.windowProposed++
	a.totalProposed++
	if kept {
		a.keptProposed++
	}
	if accepted {
		a.windowAccepted++
		a.totalAccepted++
		if kept {
			a.keptAccepted++
		}
	}
}

func (a *acceptStats) windowRate() float64 {
	if a.windowProposed == 0 {
		return 0
	}
	return float64(a.windowAccepted) / float64(a.windowProposed)
}

func (a *acceptStats) keptRate() float64 {
	if a.keptProposed == 0 {
		return 0
	}
	return float64(a.keptAccepted) / float64(a.keptProposed)
}

func (a *acceptStats) totalRate() float64 {
	if a.totalProposed == 0 {
		return 0
	}
	return float64(a.totalAccepted) / float64(a.totalProposed)
}

func (a *acceptStats) resetWindow() {
	a.windowAccepted, a.windowProposed = 0, 0
}

func (a *acceptStats) resetRun() {
	*a = acceptStats{}
}

// tuneStep moves a random-walk step toward the configured acceptance band
// based on the current window, then clears the window.
func tuneStep(step float64, st *acceptStats, cfg config.AdaptConfig) float64 {
	if st.windowProposed == 0 {
		return step
	}
	rate := st.windowRate()
	switch {
	case rate < cfg.Lower:
		step *= cfg.Shrink
	case rate > cfg.Upper:
		step *= cfg.Grow
	}
	st.resetWindow()
	return common.Clamp(step, minStep, maxStep)
}
