package stats

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/erp-slam/algorithms/common"
)

// AutoCorrelation computes the normalized autocorrelation of an MCMC chain
// using FFT (Wiener-Khinchin): zero-pad to avoid circular wrap, take the power
// spectrum, invert.
type AutoCorrelation struct {
	maxLag int // 0 means n-1
}

// NewAutoCorrelation creates an autocorrelation calculator up to maxLag.
func NewAutoCorrelation(maxLag int) *AutoCorrelation {
	return &AutoCorrelation{maxLag: maxLag}
}

// Compute returns rho[0..maxLag] with rho[0] = 1. A constant chain yields
// rho = [1, 0, 0, ...].
func (ac *AutoCorrelation) Compute(chain []float64) ([]float64, error) {
	n := len(chain)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 samples, got %d", n)
	}

	maxLag := ac.maxLag
	if maxLag <= 0 || maxLag > n-1 {
		maxLag = n - 1
	}

	mean := stat.Mean(chain, nil)
	padded := make([]float64, common.NextPowerOfTwo(2*n))
	for i, v := range chain {
		padded[i] = v - mean
	}

	spectrum := fft.FFTReal(padded)
	for i, c := range spectrum {
		spectrum[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	acov := fft.IFFT(spectrum)

	rho := make([]float64, maxLag+1)
	c0 := real(acov[0])
	if c0 <= 0 {
		rho[0] = 1
		return rho, nil
	}
	for k := 0; k <= maxLag; k++ {
		rho[k] = real(acov[k]) / c0
	}
	return rho, nil
}

// EffectiveSampleSize estimates n / tau with Geyer's initial positive
// sequence estimator of the integrated autocorrelation time tau. The result
// is capped at n.
func EffectiveSampleSize(chain []float64) (float64, error) {
	n := len(chain)
	rho, err := NewAutoCorrelation(0).Compute(chain)
	if err != nil {
		return 0, err
	}

	// tau = -1 + 2 * sum of positive pair sums Gamma_k = rho_2k + rho_2k+1
	tau := -1.0
	for k := 0; 2*k+1 < len(rho); k++ {
		pair := rho[2*k] + rho[2*k+1]
		if pair <= 0 {
			break
		}
		tau += 2 * pair
	}
	if tau < 1 {
		tau = 1
	}
	return float64(n) / tau, nil
}
