package opt

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Powell is a derivative-free direction-set search. Each iteration performs
// exact line minimizations along every direction of the set and replaces the
// direction of largest decrease by the overall displacement when that is
// expected to help.
type Powell struct {
	// MaxIter caps the number of direction-set sweeps (0 = 1000*dim)
	MaxIter int `yaml:"maxIter"`

	// MaxFuncEvals caps the number of objective evaluations (0 = 2000*dim)
	MaxFuncEvals int `yaml:"maxFuncEvals"`

	// FTol is the relative decrease of f per sweep below which the search stops
	FTol float64 `yaml:"ftol"`

	// XTol is the relative tolerance of each line minimization
	XTol float64 `yaml:"xtol"`
}

// DefaultPowell returns the settings used by the driver
func DefaultPowell() Powell {
	return Powell{
		FTol: 1e-10,
		XTol: 1e-6,
	}
}

// Minimize implements LocalOptimizer
func (p *Powell) Minimize(eval func([]float64) float64, x0 []float64) ([]float64, float64) {
	dim := len(x0)
	maxIter := p.MaxIter
	if maxIter <= 0 {
		maxIter = 1000 * dim
	}
	maxEvals := p.MaxFuncEvals
	if maxEvals <= 0 {
		maxEvals = 2000 * dim
	}
	ftol := p.FTol
	if ftol <= 0 {
		ftol = 1e-10
	}
	xtol := p.XTol
	if xtol <= 0 {
		xtol = 1e-6
	}

	c := &counted{eval: eval}

	directions := make([][]float64, dim)
	for i := range directions {
		directions[i] = make([]float64, dim)
		directions[i][i] = 1
	}

	x := append([]float64(nil), x0...)
	fval := c.f(x)
	if math.IsNaN(fval) {
		return x, fval
	}

	x1 := append([]float64(nil), x...)
	x2 := make([]float64, dim)
	probe := make([]float64, dim)

	for iter := 0; iter < maxIter; iter++ {
		fx := fval
		bigind := 0
		delta := 0.0

		for i, dir := range directions {
			before := fval
			fval, _ = lineMinimize(c, x, dir, probe, xtol*100)
			if before-fval > delta {
				delta = before - fval
				bigind = i
			}
		}

		bound := ftol*(math.Abs(fx)+math.Abs(fval)) + 1e-20
		if 2*(fx-fval) <= bound || c.calls >= maxEvals {
			break
		}

		// Extrapolated point along the sweep displacement
		disp := make([]float64, dim)
		floats.SubTo(disp, x, x1)
		copy(x1, x)
		floats.AddScaledTo(x2, x, 1, disp)
		fx2 := c.f(x2)

		if fx > fx2 {
			t := 2 * (fx + fx2 - 2*fval)
			tmp := fx - fval - delta
			t *= tmp * tmp
			tmp = fx - fx2
			t -= delta * tmp * tmp
			if t < 0 {
				var alpha float64
				fval, alpha = lineMinimize(c, x, disp, probe, xtol*100)
				// The step actually taken replaces the direction of largest decrease
				floats.Scale(alpha, disp)
				if floats.Norm(disp, 2) > 0 {
					last := len(directions) - 1
					directions[bigind] = directions[last]
					directions[last] = disp
				}
			}
		}

		if c.calls >= maxEvals {
			break
		}
	}

	return x, fval
}

// lineMinimize moves x to the minimum along dir and returns the objective
// value there and the step length in units of dir. dir is not modified.
func lineMinimize(c *counted, x, dir, probe []float64, tol float64) (float64, float64) {
	along := func(alpha float64) float64 {
		floats.AddScaledTo(probe, x, alpha, dir)
		return c.f(probe)
	}

	a, b, cc, _, fb, _ := bracket(along, 0, 1, 50)
	alpha, fmin := brent(along, a, b, cc, fb, tol, 500)

	floats.AddScaled(x, alpha, dir)
	return fmin, alpha
}
