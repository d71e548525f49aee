package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// dogbox runs Powell's dogleg method with a rectangular trust region
// |h_i| <= delta. The Gauss-Newton step is taken when it fits the box;
// otherwise the step follows the dogleg path from the Cauchy point towards
// the Gauss-Newton point up to the box boundary.
func (p *lsqProblem) dogbox() {
	delta := floats.Norm(p.x, math.Inf(1))
	if delta == 0 {
		delta = 1
	}

	for p.budgetLeft() {
		if p.gradientSmall() {
			return
		}
		sp, ok := p.svd()
		if !ok {
			return
		}
		newton := sp.gaussNewton(p.n)

		// Curvature of the model along the gradient
		jg := mat.NewVecDense(p.m, nil)
		jg.MulVec(p.jac, mat.NewVecDense(p.n, p.grad))
		a := 0.5 * mat.Dot(jg, jg)
		b := -floats.Dot(p.grad, p.grad)

		actual := -1.0
		for actual <= 0 && p.budgetLeft() {
			h, hit := doglegStep(newton, p.grad, a, b, delta)
			predicted := p.predictedReduction(h)

			floats.AddTo(p.xNew, p.x, h)
			p.eval(p.rNew, p.xNew)
			stepNorm := floats.Norm(h, math.Inf(1))

			if !finite(p.rNew) {
				delta = 0.25 * stepNorm
				continue
			}

			costNew := halfSquaredNorm(p.rNew)
			actual = p.cost - costNew

			var ratio float64
			delta, ratio = updateRadius(delta, actual, predicted, stepNorm, hit)

			done := p.converged(actual, floats.Norm(h, 2), ratio)
			if actual > 0 {
				p.accept(costNew)
			}
			if done {
				return
			}
		}
	}
}

// doglegStep returns the dogleg step inside [-delta, delta]^n and whether it
// ends on the box boundary. a and b define the model a*t^2 + b*t along -g.
func doglegStep(newton, g []float64, a, b, delta float64) ([]float64, bool) {
	if floats.Norm(newton, math.Inf(1)) <= delta {
		return append([]float64(nil), newton...), false
	}

	zero := make([]float64, len(g))
	neg := make([]float64, len(g))
	floats.ScaleTo(neg, -1, g)

	// Minimize the model along -g up to the box
	toBox := stepToBox(zero, neg, delta)
	t := toBox
	if a > 0 {
		t = math.Min(-b/(2*a), toBox)
	}
	if t < 0 {
		t = 0
	}
	cauchy := make([]float64, len(g))
	floats.ScaleTo(cauchy, t, neg)

	diff := make([]float64, len(g))
	floats.SubTo(diff, newton, cauchy)
	s := math.Min(stepToBox(cauchy, diff, delta), 1)

	h := make([]float64, len(g))
	floats.AddScaledTo(h, cauchy, s, diff)
	return h, true
}

// stepToBox returns the largest t with x + t*s inside [-delta, delta]^n
func stepToBox(x, s []float64, delta float64) float64 {
	t := math.Inf(1)
	for i := range s {
		switch {
		case s[i] > 0:
			t = math.Min(t, (delta-x[i])/s[i])
		case s[i] < 0:
			t = math.Min(t, (-delta-x[i])/s[i])
		}
	}
	if math.IsInf(t, 1) {
		return 0
	}
	return t
}
