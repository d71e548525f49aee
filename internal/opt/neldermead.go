package opt

import (
	"gonum.org/v1/gonum/optimize"
)

// NelderMead is a downhill simplex search backed by gonum's optimize package
type NelderMead struct {
	// MaxFuncEvals caps the number of objective evaluations (0 = 400*dim)
	MaxFuncEvals int `yaml:"maxFuncEvals"`

	// FTol and Patience stop the search once the best value improved by
	// less than FTol (absolute) or FTol*|f| (relative) for Patience
	// consecutive iterations
	FTol     float64 `yaml:"ftol"`
	Patience int     `yaml:"patience"`

	// InitialStep sizes the initial simplex relative to each coordinate of x0
	InitialStep float64 `yaml:"initialStep"`
}

// DefaultNelderMead returns the settings used by the driver
func DefaultNelderMead() NelderMead {
	return NelderMead{
		FTol:        1e-12,
		Patience:    100,
		InitialStep: 0.05,
	}
}

// Minimize implements LocalOptimizer
func (n *NelderMead) Minimize(eval func([]float64) float64, x0 []float64) ([]float64, float64) {
	dim := len(x0)
	maxEvals := n.MaxFuncEvals
	if maxEvals <= 0 {
		maxEvals = 400 * dim
	}
	patience := n.Patience
	if patience <= 0 {
		patience = 100
	}

	vertices, values := initialSimplex(eval, x0, n.InitialStep)
	method := &optimize.NelderMead{
		InitialVertices: vertices,
		InitialValues:   values,
	}
	settings := &optimize.Settings{
		FuncEvaluations: maxEvals,
		Converger: &optimize.FunctionConverge{
			Absolute:   n.FTol,
			Relative:   n.FTol,
			Iterations: patience,
		},
	}

	// Minimize reports the best location even when it returns an error
	result, _ := optimize.Minimize(optimize.Problem{Func: eval}, x0, settings, method)
	if result == nil {
		return append([]float64(nil), x0...), eval(x0)
	}
	return result.X, result.F
}

// initialSimplex builds dim+1 vertices around x0: each extra vertex moves one
// coordinate by step*|x0_i|, or by a small absolute amount when x0_i is zero.
func initialSimplex(eval func([]float64) float64, x0 []float64, step float64) ([][]float64, []float64) {
	if step <= 0 {
		step = 0.05
	}
	dim := len(x0)
	vertices := make([][]float64, dim+1)
	values := make([]float64, dim+1)

	vertices[0] = append([]float64(nil), x0...)
	values[0] = eval(vertices[0])
	for i := 0; i < dim; i++ {
		v := append([]float64(nil), x0...)
		if v[i] != 0 {
			v[i] *= 1 + step
		} else {
			v[i] = 0.00025
		}
		vertices[i+1] = v
		values[i+1] = eval(v)
	}
	return vertices, values
}
