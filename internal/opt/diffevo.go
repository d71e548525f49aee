package opt

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/stat"
)

// DifferentialEvolution is a best/1/bin differential evolution search with
// dithered mutation, Latin hypercube initialization and an optional
// gradient-based polish of the winner.
type DifferentialEvolution struct {
	// PopSize is a multiplier: the population holds PopSize*dim members (min 5)
	PopSize int `yaml:"popSize"`

	// MaxIter is the maximum number of generations
	MaxIter int `yaml:"maxIter"`

	// Tol and Atol stop the search once
	// std(energies) <= Atol + Tol*|mean(energies)|. Both zero disables the rule.
	Tol  float64 `yaml:"tol"`
	Atol float64 `yaml:"atol"`

	// MutationMin and MutationMax bound the differential weight drawn anew
	// for every generation
	MutationMin float64 `yaml:"mutationMin"`
	MutationMax float64 `yaml:"mutationMax"`

	// Recombination is the crossover probability
	Recombination float64 `yaml:"recombination"`

	// Polish refines the best member with L-BFGS inside the bounds
	Polish bool `yaml:"polish"`

	// Stall stops the search when the best energy stagnates
	Stall StallConfig `yaml:"stall"`

	Seed int64 `yaml:"seed"`
}

// DefaultDifferentialEvolution mirrors the customary best1bin defaults
func DefaultDifferentialEvolution() DifferentialEvolution {
	return DifferentialEvolution{
		PopSize:       15,
		MaxIter:       1000,
		Tol:           0.01,
		MutationMin:   0.5,
		MutationMax:   1.0,
		Recombination: 0.7,
		Polish:        true,
		Stall:         StallConfig{Enabled: false},
		Seed:          1,
	}
}

// Run implements Optimizer. The search works in the unit cube; every
// evaluated point lies inside [lower, upper].
func (de *DifferentialEvolution) Run(eval func([]float64) float64, lower, upper []float64, dim int) ([]float64, float64) {
	rng := rand.New(rand.NewSource(de.Seed))

	np := de.PopSize * dim
	if np < 5 {
		np = 5
	}
	maxIter := de.MaxIter
	if maxIter <= 0 {
		maxIter = 1000
	}

	x := make([]float64, dim)
	energy := func(u []float64) float64 {
		return eval(scaleToBox(x, u, lower, upper))
	}

	pop := latinHypercube(rng, np, dim)
	energies := make([]float64, np)
	best := 0
	for i := range pop {
		energies[i] = energy(pop[i])
		if energies[i] < energies[best] || math.IsNaN(energies[best]) {
			best = i
		}
	}

	tracker := NewStallTracker(de.Stall)
	trial := make([]float64, dim)

	for gen := 0; gen < maxIter; gen++ {
		f := de.MutationMin
		if de.MutationMax > de.MutationMin {
			f += rng.Float64() * (de.MutationMax - de.MutationMin)
		}

		for i := range pop {
			r0, r1 := pickTwo(rng, np, i)
			fill := rng.Intn(dim)
			for j := 0; j < dim; j++ {
				if j == fill || rng.Float64() < de.Recombination {
					trial[j] = pop[best][j] + f*(pop[r0][j]-pop[r1][j])
				} else {
					trial[j] = pop[i][j]
				}
				// Out-of-range components are resampled uniformly
				if trial[j] < 0 || trial[j] > 1 {
					trial[j] = rng.Float64()
				}
			}

			e := energy(trial)
			if e <= energies[i] || math.IsNaN(energies[i]) {
				copy(pop[i], trial)
				energies[i] = e
				if e < energies[best] {
					best = i
				}
			}
		}

		if (de.Tol > 0 || de.Atol > 0) && populationConverged(energies, de.Tol, de.Atol) {
			break
		}
		if tracker.Update(energies[best]) {
			break
		}
	}

	bestX := scaleToBox(make([]float64, dim), pop[best], lower, upper)
	bestE := energies[best]

	if de.Polish {
		if px, pe := polish(eval, bestX, lower, upper); pe < bestE {
			bestX, bestE = px, pe
		}
	}

	return bestX, bestE
}

func latinHypercube(rng *rand.Rand, n, dim int) [][]float64 {
	pop := make([][]float64, n)
	for i := range pop {
		pop[i] = make([]float64, dim)
	}
	seg := 1 / float64(n)
	for j := 0; j < dim; j++ {
		perm := rng.Perm(n)
		for i := range pop {
			pop[i][j] = (float64(perm[i]) + rng.Float64()) * seg
		}
	}
	return pop
}

// pickTwo draws two distinct indices in [0, n) that differ from exclude
func pickTwo(rng *rand.Rand, n, exclude int) (int, int) {
	a := rng.Intn(n - 1)
	if a >= exclude {
		a++
	}
	b := rng.Intn(n - 2)
	lo, hi := a, exclude
	if lo > hi {
		lo, hi = hi, lo
	}
	if b >= lo {
		b++
	}
	if b >= hi {
		b++
	}
	return a, b
}

func populationConverged(energies []float64, tol, atol float64) bool {
	for _, e := range energies {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return false
		}
	}
	mean, std := stat.MeanStdDev(energies, nil)
	return std <= atol+tol*math.Abs(mean)
}

// polish refines x with L-BFGS on the objective restricted to the box.
// The returned point is clamped into [lower, upper].
func polish(eval func([]float64) float64, x0, lower, upper []float64) ([]float64, float64) {
	buf := make([]float64, len(x0))
	boxed := func(x []float64) float64 {
		copy(buf, x)
		clampToBox(buf, lower, upper)
		return eval(buf)
	}

	problem := optimize.Problem{
		Func: boxed,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, boxed, x, &fd.Settings{Formula: fd.Central})
		},
	}
	settings := &optimize.Settings{
		FuncEvaluations: 500 * len(x0),
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-12,
			Iterations: 20,
		},
	}

	// Minimize reports the best location even when it returns an error
	result, _ := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if result == nil {
		return x0, eval(x0)
	}

	x := append([]float64(nil), result.X...)
	clampToBox(x, lower, upper)
	return x, eval(x)
}
