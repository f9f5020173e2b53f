package slam

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/erp-slam/logging"
)

func TestSamplerRefreshFailureIsNumerical(t *testing.T) {
	cfg := quickConfig()
	data, _ := cosineData(t, 2, 15, 5)
	require.NoError(t, cfg.Validate())

	m := newModel(data, cfg)
	start := DefaultStartValues(data, m.layout)
	hp, err := m.newHyper(start.Tau, start.H)
	require.NoError(t, err)

	s := newSampler(m, cfg, start, newWorkerPool(2), &logging.NoOpLogger{})
	_, err = s.run(context.Background(), hp, cfg.EStep, nil)
	require.NoError(t, err)

	// A curve that no longer gives a finite likelihood under the next
	// hyperparameters must fail the run as a numerical error.
	m.ys[0][1].SetVec(3, math.NaN())
	_, err = s.run(context.Background(), hp, cfg.EStep, nil)
	require.Error(t, err)

	var ne *NumericalError
	require.True(t, errors.As(err, &ne), "got %T: %v", err, err)
	assert.Equal(t, "likelihood refresh", ne.Op)
	assert.ErrorIs(t, err, ErrNonFinite)
}
