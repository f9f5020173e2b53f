package kernel

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidHyperparameter is returned for a non-positive scale or
	// lengthscale, or a power outside (0, 2].
	ErrInvalidHyperparameter = errors.New("invalid kernel hyperparameter")

	// ErrNotPositiveDefinite is returned when a covariance matrix cannot be
	// Cholesky-factorized even after regularization.
	ErrNotPositiveDefinite = errors.New("matrix not positive definite")

	// ErrDimension is returned when matrix shapes disagree.
	ErrDimension = errors.New("dimension mismatch")
)

// NumericalError reports a failed numerical operation. Use errors.Is on the
// wrapped sentinel to tell the causes apart.
type NumericalError struct {
	Op  string
	Err error
}

func (e *NumericalError) Error() string {
	return fmt.Sprintf("numerical error in %s: %v", e.Op, e.Err)
}

func (e *NumericalError) Unwrap() error {
	return e.Err
}

func numericalf(op string, sentinel error, format string, args ...any) error {
	return &NumericalError{Op: op, Err: fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))}
}
