package simulate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosineERPDefault(t *testing.T) {
	cfg := DefaultConfig()
	ds, err := CosineERP(cfg)
	require.NoError(t, err)

	n, s := ds.Y.Dims()
	assert.Equal(t, len(cfg.X), n)
	assert.Equal(t, 3, s)

	for _, truth := range ds.Truth {
		assert.InDelta(t, 0.15, truth[0], 1e-12)
		assert.InDelta(t, 0.85, truth[1], 1e-12)
	}
	// Peak of the clean curve at x = 0.15 (grid index 6), trough at 0.85 (index 34).
	assert.InDelta(t, 1.0, ds.Clean.At(6, 0), 1e-12)
	assert.InDelta(t, -1.0, ds.Clean.At(34, 0), 1e-12)
}

func TestCosineERPDeterministic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RJitter = 0.3
	a, err := CosineERP(cfg)
	require.NoError(t, err)
	b, err := CosineERP(cfg)
	require.NoError(t, err)
	assert.Equal(t, a.Y.RawMatrix().Data, b.Y.RawMatrix().Data)
	assert.Equal(t, a.Truth, b.Truth)

	for _, truth := range a.Truth {
		assert.True(t, cfg.Windows[0].Contains(truth[0]))
		assert.True(t, cfg.Windows[1].Contains(truth[1]))
	}
}

func TestCosineERPValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TrueR = []float64{0.3}
	_, err := CosineERP(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Subjects = 0
	_, err = CosineERP(cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.TrueR = []float64{0, 0.5}
	_, err = CosineERP(cfg)
	assert.Error(t, err)
}
