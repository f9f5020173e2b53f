package kernel

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// DefaultPower gives the squared-exponential member of the family. It is the
// only power for which the derivative blocks are defined.
const DefaultPower = 2.0

// DefaultJitter is the relative nugget added to the diagonal of every
// covariance built by Build, as a fraction of Tau.
const DefaultJitter = 1e-8

// PoweredExponential is the stationary covariance
//
//	k(d) = Tau * exp(-(|d|/H)^Power)
//
// with 0 < Power <= 2.
type PoweredExponential struct {
	Tau    float64 `json:"tau"`
	H      float64 `json:"h"`
	Power  float64 `json:"power"`
	Jitter float64 `json:"jitter"`
}

// NewPoweredExponential returns the squared-exponential kernel with the
// default jitter.
func NewPoweredExponential(tau, h float64) (*PoweredExponential, error) {
	return NewPoweredExponentialWithPower(tau, h, DefaultPower)
}

// NewPoweredExponentialWithPower returns a kernel with an explicit power.
func NewPoweredExponentialWithPower(tau, h, power float64) (*PoweredExponential, error) {
	k := &PoweredExponential{Tau: tau, H: h, Power: power, Jitter: DefaultJitter}
	if err := k.Validate(); err != nil {
		return nil, err
	}
	return k, nil
}

// Validate checks tau > 0, h > 0 and 0 < power <= 2.
func (k *PoweredExponential) Validate() error {
	if !(k.H > 0) || math.IsInf(k.H, 0) {
		return numericalf("kernel", ErrInvalidHyperparameter, "lengthscale h=%g must be positive", k.H)
	}
	if !(k.Tau > 0) || math.IsInf(k.Tau, 0) {
		return numericalf("kernel", ErrInvalidHyperparameter, "scale tau=%g must be positive", k.Tau)
	}
	if !(k.Power > 0 && k.Power <= 2) {
		return numericalf("kernel", ErrInvalidHyperparameter, "power %g outside (0, 2]", k.Power)
	}
	return nil
}

// Cov evaluates the kernel at a signed distance.
func (k *PoweredExponential) Cov(d float64) float64 {
	u := math.Abs(d) / k.H
	if k.Power == 2 {
		return k.Tau * math.Exp(-u*u)
	}
	return k.Tau * math.Exp(-math.Pow(u, k.Power))
}

// Cross evaluates the kernel elementwise on any distance matrix, without
// regularization. Use it for train/test cross covariances.
func (k *PoweredExponential) Cross(d mat.Matrix) *mat.Dense {
	r, c := d.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, k.Cov(d.At(i, j)))
		}
	}
	return out
}

// Build turns a square distance matrix into a covariance matrix that is
// guaranteed to admit a Cholesky factorization. The nugget Jitter*Tau is
// always added to the diagonal; if the result still fails to factorize the
// nugget is raised once by a factor of 100.
func (k *PoweredExponential) Build(h0 mat.Matrix) (*mat.SymDense, error) {
	if err := k.Validate(); err != nil {
		return nil, err
	}
	n, c := h0.Dims()
	if n != c {
		return nil, numericalf("kernel.Build", ErrDimension, "distance matrix is %dx%d", n, c)
	}
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			// Average the two entries so a signed H0 yields a symmetric result.
			v := 0.5 * (k.Cov(h0.At(i, j)) + k.Cov(h0.At(j, i)))
			sym.SetSym(i, j, v)
		}
	}
	_, used, err := Factorize(sym, k.Jitter*k.Tau)
	if err != nil {
		return nil, err
	}
	AddDiagonal(sym, used)
	return sym, nil
}

// Factorize computes the Cholesky factor of a + jitter*I. When that fails it
// retries once with 100*jitter (or 1e-10 when jitter is zero). It returns the
// factor and the jitter actually used; a is not modified.
func Factorize(a mat.Symmetric, jitter float64) (*mat.Cholesky, float64, error) {
	n := a.SymmetricDim()
	work := mat.NewSymDense(n, nil)
	work.CopySym(a)
	AddDiagonal(work, jitter)

	var chol mat.Cholesky
	if chol.Factorize(work) {
		return &chol, jitter, nil
	}

	retry := jitter * 100
	if retry == 0 {
		retry = 1e-10
	}
	work.CopySym(a)
	AddDiagonal(work, retry)
	if chol.Factorize(work) {
		return &chol, retry, nil
	}
	return nil, retry, numericalf("cholesky", ErrNotPositiveDefinite, "%dx%d matrix failed with jitter %g", n, n, retry)
}

// AddDiagonal adds v to every diagonal entry of s in place.
func AddDiagonal(s *mat.SymDense, v float64) {
	if v == 0 {
		return
	}
	n := s.SymmetricDim()
	for i := 0; i < n; i++ {
		s.SetSym(i, i, s.At(i, i)+v)
	}
}
