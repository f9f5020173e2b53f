package slam

import (
	"errors"

	"github.com/RyanBlaney/erp-slam/algorithms/kernel"
	"github.com/RyanBlaney/erp-slam/slam/config"
)

// NumericalError reports a covariance that could not be factorized or an
// invalid kernel hyperparameter.
type NumericalError = kernel.NumericalError

// ConfigError reports malformed input detected before sampling starts.
type ConfigError = config.ConfigError

var (
	// ErrNotPositiveDefinite wraps Cholesky failures that survived regularization.
	ErrNotPositiveDefinite = kernel.ErrNotPositiveDefinite

	// ErrInvalidLengthscale wraps non-positive kernel hyperparameters.
	ErrInvalidLengthscale = kernel.ErrInvalidHyperparameter

	// ErrNonFinite is returned when a log-likelihood evaluates to NaN or Inf.
	ErrNonFinite = errors.New("non-finite log-likelihood")
)

// asNumerical reports err as a *NumericalError for op unless it already is one.
func asNumerical(op string, err error) error {
	var ne *NumericalError
	if errors.As(err, &ne) {
		return err
	}
	return &NumericalError{Op: op, Err: err}
}
