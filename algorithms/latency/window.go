package latency

import (
	"fmt"
	"math"
)

// Window is the admissible search range (A, B) for one stationary point.
type Window struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Validate reports an error unless A < B and both bounds are finite.
func (w Window) Validate() error {
	if math.IsNaN(w.A) || math.IsNaN(w.B) || math.IsInf(w.A, 0) || math.IsInf(w.B, 0) {
		return fmt.Errorf("window bounds must be finite, got (%g, %g)", w.A, w.B)
	}
	if w.A >= w.B {
		return fmt.Errorf("window lower bound %g must be below upper bound %g", w.A, w.B)
	}
	return nil
}

// Width returns B - A.
func (w Window) Width() float64 {
	return w.B - w.A
}

// Contains reports whether loc lies strictly inside the window.
func (w Window) Contains(loc float64) bool {
	return loc > w.A && loc < w.B
}

// ToLocation maps r in (0,1) to a + r*(b-a).
func (w Window) ToLocation(r float64) float64 {
	return w.A + r*(w.B-w.A)
}

// ToR is the inverse of ToLocation: (loc-a)/(b-a).
func (w Window) ToR(loc float64) float64 {
	return (loc - w.A) / (w.B - w.A)
}

// ChangeToR maps a latency on the input scale to the unit-interval
// parametrization of its window.
func ChangeToR(loc float64, w Window) (float64, error) {
	if err := w.Validate(); err != nil {
		return 0, err
	}
	return w.ToR(loc), nil
}

// ChangeToRAll applies ChangeToR to every location.
func ChangeToRAll(locs []float64, w Window) ([]float64, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, len(locs))
	for i, loc := range locs {
		out[i] = w.ToR(loc)
	}
	return out, nil
}

// ToLocations maps every r to the input scale.
func ToLocations(rs []float64, w Window) []float64 {
	out := make([]float64, len(rs))
	for i, r := range rs {
		out[i] = w.ToLocation(r)
	}
	return out
}

// Logit returns log(r/(1-r)).
func Logit(r float64) float64 {
	return math.Log(r) - math.Log1p(-r)
}

// Logistic is the inverse of Logit. It stays finite for large |eta|.
func Logistic(eta float64) float64 {
	if eta >= 0 {
		return 1 / (1 + math.Exp(-eta))
	}
	e := math.Exp(eta)
	return e / (1 + e)
}
