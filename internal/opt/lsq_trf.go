package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// trustRegion runs the trust-region reflective iteration. Without bounds the
// reflection is never triggered and each step solves
//
//	min ||J h + r||  subject to  ||h|| <= delta
//
// exactly through the SVD of J.
func (p *lsqProblem) trustRegion() {
	delta := floats.Norm(p.x, 2)
	if delta == 0 {
		delta = 1
	}
	alpha := 0.0

	for p.budgetLeft() {
		if p.gradientSmall() {
			return
		}
		sp, ok := p.svd()
		if !ok {
			return
		}

		actual := -1.0
		for actual <= 0 && p.budgetLeft() {
			var h []float64
			h, alpha = sp.trustRegionStep(p.n, delta, alpha)
			predicted := p.predictedReduction(h)

			floats.AddTo(p.xNew, p.x, h)
			p.eval(p.rNew, p.xNew)
			stepNorm := floats.Norm(h, 2)

			if !finite(p.rNew) {
				delta = 0.25 * stepNorm
				continue
			}

			costNew := halfSquaredNorm(p.rNew)
			actual = p.cost - costNew

			prev := delta
			var ratio float64
			delta, ratio = updateRadius(delta, actual, predicted, stepNorm, stepNorm > 0.95*delta)
			if delta > 0 {
				alpha *= prev / delta
			}

			done := p.converged(actual, stepNorm, ratio)
			if actual > 0 {
				p.accept(costNew)
			}
			if done {
				return
			}
		}
	}
}

// trustRegionStep returns the minimizer of the quadratic model inside a
// ball of radius delta and the Levenberg parameter that produces it
func (sp svdParts) trustRegionStep(n int, delta, alphaHint float64) ([]float64, float64) {
	gn := sp.gaussNewton(n)
	if floats.Norm(gn, 2) <= delta {
		return gn, 0
	}

	// phi(alpha) = ||p(alpha)|| - delta is decreasing; the root lies in [0, hi]
	suf := make([]float64, len(sp.s))
	for i := range sp.s {
		suf[i] = sp.s[i] * sp.uf[i]
	}
	lo, hi := 0.0, floats.Norm(suf, 2)/delta

	phi := func(alpha float64) (float64, float64) {
		var norm2, deriv float64
		for i, s := range sp.s {
			den := s*s + alpha
			norm2 += suf[i] * suf[i] / (den * den)
			deriv += suf[i] * suf[i] / (den * den * den)
		}
		norm := math.Sqrt(norm2)
		return norm - delta, -deriv / norm
	}

	alpha := alphaHint
	if alpha <= lo || alpha >= hi {
		alpha = math.Max(0.001*hi, math.Sqrt(lo*hi))
	}
	for iter := 0; iter < 50; iter++ {
		if alpha <= lo || alpha >= hi {
			alpha = 0.5 * (lo + hi)
		}
		val, deriv := phi(alpha)
		if math.Abs(val) < 0.01*delta {
			break
		}
		if val > 0 {
			lo = alpha
		} else {
			hi = alpha
		}
		alpha -= val / deriv
	}

	coef := make([]float64, len(sp.s))
	for i, s := range sp.s {
		coef[i] = -suf[i] / (s*s + alpha)
	}
	h := sp.combine(n, coef)

	// Guard against an inexact root overshooting the radius
	if norm := floats.Norm(h, 2); norm > delta {
		floats.Scale(delta/norm, h)
	}
	return h, alpha
}
