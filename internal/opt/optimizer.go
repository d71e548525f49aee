package opt

// Optimizer defines a globally bounded optimization algorithm
type Optimizer interface {
	// Run executes the optimization
	// eval: objective function to minimize
	// lower, upper: parameter bounds
	// dim: dimensionality of parameter space
	// Returns: best parameters and best cost
	Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64)
}

// LocalOptimizer refines a single starting point without bounds
type LocalOptimizer interface {
	// Minimize searches from x0 and returns the best point found and its cost.
	// It never fails: on non-convergence the best point so far is returned.
	Minimize(eval func([]float64) float64, x0 []float64) ([]float64, float64)
}

// ResidualFunc writes the residual vector at x into dst
type ResidualFunc func(dst, x []float64)

// ResidualSolver minimizes the sum of squared residuals of a vector function
type ResidualSolver interface {
	// Solve searches from x0 for the minimizer of ||f(x)||^2 where f has m
	// components. It returns the best point and its sum of squares.
	Solve(f ResidualFunc, m int, x0 []float64) ([]float64, float64)
}

// scaleToBox maps a point of the unit cube onto [lower, upper]
func scaleToBox(dst, u, lower, upper []float64) []float64 {
	for i := range u {
		dst[i] = lower[i] + u[i]*(upper[i]-lower[i])
	}
	return dst
}

func clampToBox(x, lower, upper []float64) {
	for i := range x {
		if x[i] < lower[i] {
			x[i] = lower[i]
		} else if x[i] > upper[i] {
			x[i] = upper[i]
		}
	}
}

func midpoint(lower, upper []float64) []float64 {
	x := make([]float64, len(lower))
	for i := range x {
		x[i] = 0.5 * (lower[i] + upper[i])
	}
	return x
}

// counted wraps eval and counts its invocations
type counted struct {
	eval  func([]float64) float64
	calls int
}

func (c *counted) f(x []float64) float64 {
	c.calls++
	return c.eval(x)
}
