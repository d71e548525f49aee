package opt

import (
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyAdapter wraps the external Mayfly library to conform to our Optimizer interface
type MayflyAdapter struct {
	maxIters int
	popSize  int
	seed     int64
}

// NewMayfly creates a new Mayfly optimizer adapter.
// popSize must be at least 20 for mayfly v0.1.0.
func NewMayfly(maxIters, popSize int, seed int64) *MayflyAdapter {
	return &MayflyAdapter{
		maxIters: maxIters,
		popSize:  popSize,
		seed:     seed,
	}
}

// Run executes the Mayfly optimization using the external library.
// The library takes one scalar bound for every dimension, so the search runs
// in the unit cube and each candidate is mapped onto [lower, upper].
func (m *MayflyAdapter) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	scaled := func(u []float64) float64 {
		x := scaleToBox(make([]float64, dim), u, lower, upper)
		clampToBox(x, lower, upper)
		return eval(x)
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = scaled
	config.ProblemSize = dim
	config.MaxIterations = m.maxIters
	config.NPop = m.popSize
	config.LowerBound = 0
	config.UpperBound = 1
	config.Rand = rand.New(rand.NewSource(m.seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		// Fall back to the centre of the box
		x := midpoint(lower, upper)
		return x, eval(x)
	}

	best := scaleToBox(make([]float64, dim), result.GlobalBest.Position, lower, upper)
	clampToBox(best, lower, upper)
	return best, eval(best)
}
