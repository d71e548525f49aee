package opt

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LSQMethod selects the step computation of LeastSquares
type LSQMethod string

const (
	// TRF solves the trust-region subproblem exactly through an SVD of the Jacobian
	TRF LSQMethod = "trf"
	// Dogbox takes dogleg steps inside a box-shaped trust region
	Dogbox LSQMethod = "dogbox"
	// LM is Levenberg-Marquardt with Marquardt diagonal scaling
	LM LSQMethod = "lm"
)

// ParseLSQMethod validates a least-squares sub-method name
func ParseLSQMethod(s string) (LSQMethod, error) {
	switch m := LSQMethod(s); m {
	case TRF, Dogbox, LM:
		return m, nil
	default:
		return "", fmt.Errorf("unknown least-squares method %q (want trf, dogbox or lm)", s)
	}
}

// LeastSquares minimizes the sum of squared residuals of a vector function
// using a finite-difference Jacobian
type LeastSquares struct {
	Method LSQMethod `yaml:"method"`

	// MaxFuncEvals caps residual evaluations outside the Jacobian (0 = 100*dim)
	MaxFuncEvals int `yaml:"maxFuncEvals"`

	// FTol stops when the cost decreased by less than FTol*cost on a good step
	FTol float64 `yaml:"ftol"`
	// XTol stops when the step is shorter than XTol*(XTol+||x||)
	XTol float64 `yaml:"xtol"`
	// GTol stops when the max-norm of the gradient drops below GTol
	GTol float64 `yaml:"gtol"`
}

// DefaultLeastSquares returns the trust-region reflective solver with 1e-8 tolerances
func DefaultLeastSquares() LeastSquares {
	return LeastSquares{
		Method: TRF,
		FTol:   1e-8,
		XTol:   1e-8,
		GTol:   1e-8,
	}
}

// lsqProblem holds the state shared by the three step strategies
type lsqProblem struct {
	f     ResidualFunc
	m, n  int
	nfev  int
	max   int
	jac   *mat.Dense
	ftol  float64
	xtol  float64
	gtol  float64
	jset  *fd.JacobianSettings
	r     []float64
	rNew  []float64
	x     []float64
	xNew  []float64
	grad  []float64
	cost  float64
}

// Solve implements ResidualSolver
func (ls *LeastSquares) Solve(f ResidualFunc, m int, x0 []float64) ([]float64, float64) {
	n := len(x0)
	p := &lsqProblem{
		f:    f,
		m:    m,
		n:    n,
		max:  ls.MaxFuncEvals,
		jac:  mat.NewDense(m, n, nil),
		ftol: orDefault(ls.FTol, 1e-8),
		xtol: orDefault(ls.XTol, 1e-8),
		gtol: orDefault(ls.GTol, 1e-8),
		jset: &fd.JacobianSettings{Formula: fd.Central},
		r:    make([]float64, m),
		rNew: make([]float64, m),
		x:    append([]float64(nil), x0...),
		xNew: make([]float64, n),
		grad: make([]float64, n),
	}
	if p.max <= 0 {
		p.max = 100 * n
	}

	p.eval(p.r, p.x)
	p.cost = halfSquaredNorm(p.r)
	if math.IsNaN(p.cost) || math.IsInf(p.cost, 0) {
		return p.x, 2 * p.cost
	}
	p.jacobian()

	switch ls.Method {
	case Dogbox:
		p.dogbox()
	case LM:
		p.levenbergMarquardt()
	default:
		p.trustRegion()
	}

	return p.x, 2 * p.cost
}

func orDefault(v, def float64) float64 {
	if v <= 0 {
		return def
	}
	return v
}

func (p *lsqProblem) eval(dst, x []float64) {
	p.nfev++
	p.f(dst, x)
}

// jacobian refreshes the Jacobian and gradient at the current point
func (p *lsqProblem) jacobian() {
	fd.Jacobian(p.jac, p.f, p.x, p.jset)
	rv := mat.NewVecDense(p.m, p.r)
	gv := mat.NewVecDense(p.n, p.grad)
	gv.MulVec(p.jac.T(), rv)
}

// accept moves to xNew and refreshes the derivatives
func (p *lsqProblem) accept(costNew float64) {
	copy(p.x, p.xNew)
	copy(p.r, p.rNew)
	p.cost = costNew
	p.jacobian()
}

func (p *lsqProblem) budgetLeft() bool {
	return p.nfev < p.max
}

func (p *lsqProblem) gradientSmall() bool {
	return floats.Norm(p.grad, math.Inf(1)) < p.gtol
}

// converged applies the ftol and xtol stopping rules to a finished step
func (p *lsqProblem) converged(reduction, stepNorm, ratio float64) bool {
	ftolOK := reduction < p.ftol*p.cost && ratio > 0.25
	xtolOK := stepNorm < p.xtol*(p.xtol+floats.Norm(p.x, 2))
	return ftolOK || xtolOK
}

// predictedReduction returns -(g.h + 0.5*||J h||^2), the decrease of the
// local quadratic model for step h
func (p *lsqProblem) predictedReduction(h []float64) float64 {
	jh := mat.NewVecDense(p.m, nil)
	jh.MulVec(p.jac, mat.NewVecDense(p.n, h))
	return -(floats.Dot(p.grad, h) + 0.5*mat.Dot(jh, jh))
}

// updateRadius adapts the trust region to the agreement between the model
// and the objective
func updateRadius(delta, actual, predicted, stepNorm float64, boundaryHit bool) (float64, float64) {
	var ratio float64
	switch {
	case predicted > 0:
		ratio = actual / predicted
	case predicted == actual:
		ratio = 1
	}
	if ratio < 0.25 {
		delta = 0.25 * stepNorm
	} else if ratio > 0.75 && boundaryHit {
		delta *= 2
	}
	return delta, ratio
}

func halfSquaredNorm(v []float64) float64 {
	return 0.5 * floats.Dot(v, v)
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// svdParts factorizes J = U S V^T and returns S, V and uf = U^T r
type svdParts struct {
	s  []float64
	v  *mat.Dense
	uf []float64
}

func (p *lsqProblem) svd() (svdParts, bool) {
	var svd mat.SVD
	if !svd.Factorize(p.jac, mat.SVDThin) {
		return svdParts{}, false
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	s := svd.Values(nil)

	uf := mat.NewVecDense(len(s), nil)
	uf.MulVec(u.T(), mat.NewVecDense(p.m, p.r))
	return svdParts{s: s, v: &v, uf: uf.RawVector().Data}, true
}

// gaussNewton returns the minimum-norm solution of J h = -r, dropping
// singular values below the numerical rank threshold
func (sp svdParts) gaussNewton(n int) []float64 {
	coef := make([]float64, len(sp.s))
	thresh := 0.0
	if len(sp.s) > 0 {
		thresh = sp.s[0] * float64(n) * 2.220446049250313e-16
	}
	for i, s := range sp.s {
		if s > thresh {
			coef[i] = -sp.uf[i] / s
		}
	}
	return sp.combine(n, coef)
}

// combine returns V * coef
func (sp svdParts) combine(n int, coef []float64) []float64 {
	h := mat.NewVecDense(n, nil)
	h.MulVec(sp.v, mat.NewVecDense(len(coef), coef))
	return h.RawVector().Data
}
