package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// The blocks below are the covariances between a Gaussian process f with
// squared-exponential kernel and its first derivative f'. With u = x - t and
// k(u) = Tau*exp(-(u/H)^2):
//
//	Cov(f(x), f'(t))  =  2u/H^2 * k(u)
//	Cov(f'(t), f'(s)) = (2/H^2 - 4(t-s)^2/H^4) * k(t-s)

func (k *PoweredExponential) requireSquared(op string) error {
	if err := k.Validate(); err != nil {
		return err
	}
	if k.Power != 2 {
		return numericalf(op, ErrInvalidHyperparameter, "derivative covariance needs power 2, have %g", k.Power)
	}
	return nil
}

// CovValueDeriv returns Cov(f(x), f'(t)).
func (k *PoweredExponential) CovValueDeriv(x, t float64) float64 {
	u := x - t
	h2 := k.H * k.H
	return 2 * u / h2 * k.Tau * math.Exp(-u*u/h2)
}

// CovDerivDeriv returns Cov(f'(t), f'(s)).
func (k *PoweredExponential) CovDerivDeriv(t, s float64) float64 {
	u := t - s
	h2 := k.H * k.H
	return (2/h2 - 4*u*u/(h2*h2)) * k.Tau * math.Exp(-u*u/h2)
}

// ValueDerivative builds the len(x) x len(t) block Cov(f(x), f'(t)).
func (k *PoweredExponential) ValueDerivative(x, t []float64) (*mat.Dense, error) {
	if err := k.requireSquared("kernel.ValueDerivative"); err != nil {
		return nil, err
	}
	if len(x) == 0 || len(t) == 0 {
		return nil, numericalf("kernel.ValueDerivative", ErrDimension, "empty input (%d, %d)", len(x), len(t))
	}
	out := mat.NewDense(len(x), len(t), nil)
	for i, xi := range x {
		for j, tj := range t {
			out.Set(i, j, k.CovValueDeriv(xi, tj))
		}
	}
	return out, nil
}

// DerivativeDerivative builds the len(t) x len(t) block Cov(f'(t), f'(t)).
func (k *PoweredExponential) DerivativeDerivative(t []float64) (*mat.SymDense, error) {
	if err := k.requireSquared("kernel.DerivativeDerivative"); err != nil {
		return nil, err
	}
	if len(t) == 0 {
		return nil, numericalf("kernel.DerivativeDerivative", ErrDimension, "no derivative locations")
	}
	out := mat.NewSymDense(len(t), nil)
	for i := range t {
		for j := i; j < len(t); j++ {
			out.SetSym(i, j, k.CovDerivDeriv(t[i], t[j]))
		}
	}
	return out, nil
}

// ConditionalCov returns the covariance of f(x) given f'(t) = 0,
//
//	Kxx - Kxd Kdd^{-1} Kdx,
//
// where kxx is the (already built) value covariance on x. The result is
// symmetrized; it is only positive semi-definite, so callers add noise or
// jitter before factorizing.
func (k *PoweredExponential) ConditionalCov(kxx mat.Symmetric, x, t []float64) (*mat.SymDense, error) {
	if kxx.SymmetricDim() != len(x) {
		return nil, numericalf("kernel.ConditionalCov", ErrDimension, "kxx is %d, grid has %d points", kxx.SymmetricDim(), len(x))
	}
	kxd, err := k.ValueDerivative(x, t)
	if err != nil {
		return nil, err
	}
	kdd, err := k.DerivativeDerivative(t)
	if err != nil {
		return nil, err
	}
	chol, _, err := Factorize(kdd, k.Jitter*k.Tau)
	if err != nil {
		return nil, err
	}

	// Kdd^{-1} Kdx
	var sol mat.Dense
	if err := chol.SolveTo(&sol, kxd.T()); err != nil {
		return nil, &NumericalError{Op: "kernel.ConditionalCov", Err: err}
	}
	var reduction mat.Dense
	reduction.Mul(kxd, &sol)

	n := len(x)
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			r := 0.5 * (reduction.At(i, j) + reduction.At(j, i))
			out.SetSym(i, j, kxx.At(i, j)-r)
		}
	}
	return out, nil
}
