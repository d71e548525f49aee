package fit

import "math"

// DefaultTerms is the number of image terms summed by the Tagg series
const DefaultTerms = 99

// Model evaluates the Tagg two-layer apparent resistivity series.
//
// For depth a the modeled resistivity is
//
//	p1 * (1 + 4 * sum_{d=1..Terms} [ k^d/sqrt(1+(2dh1/a)^2) - k^d/sqrt(4+(2dh1/a)^2) ])
//
// with k = (p2-p1)/(p2+p1). Depths must be > 0 and p1+p2 must be > 0;
// violations produce NaN or Inf rather than an error.
type Model struct {
	// Terms is the fixed truncation of the series. Zero means DefaultTerms.
	Terms int

	// Tolerance, when positive, stops the series once |k^d| < Tolerance.
	// Zero always sums exactly Terms terms.
	Tolerance float64
}

// DefaultModel returns the 99-term series without early exit
func DefaultModel() Model {
	return Model{Terms: DefaultTerms}
}

func (m Model) terms() int {
	if m.Terms <= 0 {
		return DefaultTerms
	}
	return m.Terms
}

// Evaluate returns the modeled apparent resistivity at every depth in x
func (m Model) Evaluate(p Params, x []float64) []float64 {
	dst := make([]float64, len(x))
	m.EvaluateInto(dst, p, x)
	return dst
}

// EvaluateInto writes the modeled apparent resistivity at x into dst.
// dst must have the same length as x.
func (m Model) EvaluateInto(dst []float64, p Params, x []float64) {
	k := p.ReflectionCoefficient()
	n := m.terms()
	for i, a := range x {
		ratio := 2 * p.H1 / a
		var sum float64
		kd := 1.0
		for d := 1; d <= n; d++ {
			kd *= k
			if m.Tolerance > 0 && math.Abs(kd) < m.Tolerance {
				break
			}
			u := float64(d) * ratio
			u2 := u * u
			sum += kd/math.Sqrt(1+u2) - kd/math.Sqrt(4+u2)
		}
		dst[i] = p.P1 * (1 + 4*sum)
	}
}

// Tagg evaluates the default model
func Tagg(p Params, x []float64) []float64 {
	return DefaultModel().Evaluate(p, x)
}
