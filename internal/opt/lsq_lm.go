package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// maxSolveFailures bounds consecutive singular damped systems before the
// current point is returned
const maxSolveFailures = 50

// levenbergMarquardt solves (J^T J + mu*D) h = -g with D = diag(J^T J) and
// adapts the damping mu with Nielsen's gain-ratio rule
func (p *lsqProblem) levenbergMarquardt() {
	jtj := mat.NewDense(p.n, p.n, nil)
	jtj.Mul(p.jac.T(), p.jac)

	diag := make([]float64, p.n)
	mu := 0.0
	for i := range diag {
		mu = math.Max(mu, jtj.At(i, i))
	}
	mu *= 1e-3
	if mu == 0 {
		mu = 1e-3
	}
	nu := 2.0
	failures := 0

	lhs := mat.NewDense(p.n, p.n, nil)
	rhs := mat.NewVecDense(p.n, nil)
	var h mat.VecDense

	for p.budgetLeft() {
		if p.gradientSmall() {
			return
		}

		// Marquardt scaling, kept away from zero for insensitive parameters
		maxDiag := 0.0
		for i := range diag {
			maxDiag = math.Max(maxDiag, jtj.At(i, i))
		}
		for i := range diag {
			diag[i] = math.Max(jtj.At(i, i), math.Max(1e-12*maxDiag, 1e-12))
		}
		lhs.Copy(jtj)
		for i := range diag {
			lhs.Set(i, i, lhs.At(i, i)+mu*diag[i])
		}
		for i := range p.grad {
			rhs.SetVec(i, -p.grad[i])
		}
		if err := h.SolveVec(lhs, rhs); err != nil {
			// No residual evaluation happens here, so the budget cannot end
			// a run of failed solves
			failures++
			mu *= nu
			nu *= 2
			if failures >= maxSolveFailures || math.IsInf(mu, 0) || math.IsNaN(mu) {
				return
			}
			continue
		}
		failures = 0
		step := h.RawVector().Data

		stepNorm := floats.Norm(step, 2)
		if stepNorm < p.xtol*(p.xtol+floats.Norm(p.x, 2)) {
			return
		}

		floats.AddTo(p.xNew, p.x, step)
		p.eval(p.rNew, p.xNew)
		if !finite(p.rNew) {
			mu *= nu
			nu *= 2
			if math.IsInf(mu, 0) {
				return
			}
			continue
		}

		// L(0) - L(h) = 0.5 * h^T (mu*D*h - g)
		var predicted float64
		for i := range step {
			predicted += step[i] * (mu*diag[i]*step[i] - p.grad[i])
		}
		predicted *= 0.5

		costNew := halfSquaredNorm(p.rNew)
		actual := p.cost - costNew
		ratio := 0.0
		if predicted > 0 {
			ratio = actual / predicted
		}

		if actual > 0 && ratio > 0 {
			ftolOK := actual < p.ftol*p.cost
			p.accept(costNew)
			jtj.Mul(p.jac.T(), p.jac)
			mu *= math.Max(1.0/3, 1-math.Pow(2*ratio-1, 3))
			nu = 2
			if ftolOK {
				return
			}
		} else {
			mu *= nu
			nu *= 2
			if math.IsInf(mu, 0) {
				return
			}
		}
	}
}
