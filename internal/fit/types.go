package fit

import (
	"fmt"
	"math"
)

// Params is a two-layer soil model: the resistivities of the upper and lower
// layer in ohm·m and the thickness of the upper layer in m.
type Params struct {
	P1 float64 `json:"p1"`
	P2 float64 `json:"p2"`
	H1 float64 `json:"h1"`
}

// numParams is the dimensionality of the search space
const numParams = 3

// Vector encodes the parameters as the flat slice the optimizers work on
func (p Params) Vector() []float64 {
	return []float64{p.P1, p.P2, p.H1}
}

// ParamsFromVector decodes a flat slice written by Vector
func ParamsFromVector(v []float64) Params {
	return Params{P1: v[0], P2: v[1], H1: v[2]}
}

// Constrain projects the parameters onto the non-negative orthant.
// It is a post-hoc repair, not a constrained optimization: the returned point
// may not be the minimum of the objective restricted to that orthant.
func (p Params) Constrain() Params {
	return Params{
		P1: math.Max(p.P1, 0),
		P2: math.Max(p.P2, 0),
		H1: math.Max(p.H1, 0),
	}
}

// ReflectionCoefficient returns k = (p2 - p1) / (p2 + p1).
// The result is NaN when p1 + p2 = 0.
func (p Params) ReflectionCoefficient() float64 {
	return (p.P2 - p.P1) / (p.P2 + p.P1)
}

func (p Params) String() string {
	return fmt.Sprintf("p1=%.2f p2=%.2f h1=%.2f", p.P1, p.P2, p.H1)
}

// Bounds defines the search box used by the globally bounded strategies
type Bounds struct {
	Lower Params `json:"lower" yaml:"lower"`
	Upper Params `json:"upper" yaml:"upper"`
}

// DefaultBounds returns p1, p2 in [0, 10000] ohm·m and h1 in [0, 100] m
func DefaultBounds() Bounds {
	return Bounds{
		Lower: Params{P1: 0, P2: 0, H1: 0},
		Upper: Params{P1: 10000, P2: 10000, H1: 100},
	}
}

// Validate checks that every lower bound is finite and below its upper bound
func (b Bounds) Validate() error {
	lo, hi := b.Lower.Vector(), b.Upper.Vector()
	names := [numParams]string{"p1", "p2", "h1"}
	for i := range lo {
		if math.IsNaN(lo[i]) || math.IsNaN(hi[i]) || math.IsInf(lo[i], 0) || math.IsInf(hi[i], 0) {
			return &ValidationError{Field: "Bounds." + names[i], Reason: "must be finite"}
		}
		if lo[i] > hi[i] {
			return &ValidationError{Field: "Bounds." + names[i], Reason: "lower bound exceeds upper bound"}
		}
	}
	return nil
}

// Clamp clamps every parameter into the box
func (b Bounds) Clamp(p Params) Params {
	return Params{
		P1: clamp(p.P1, b.Lower.P1, b.Upper.P1),
		P2: clamp(p.P2, b.Lower.P2, b.Upper.P2),
		H1: clamp(p.H1, b.Lower.H1, b.Upper.H1),
	}
}

// Contains reports whether p lies inside the box
func (b Bounds) Contains(p Params) bool {
	return b.Clamp(p) == p
}

func clamp(val, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, val))
}

// Curve is a measured apparent-resistivity sounding: parallel slices of probe
// depths (m) and apparent resistivities (ohm·m).
type Curve struct {
	Depths        []float64 `json:"depths"`
	Resistivities []float64 `json:"resistivities"`
}

// NewCurve copies and validates the two sequences
func NewCurve(depths, resistivities []float64) (Curve, error) {
	c := Curve{
		Depths:        append([]float64(nil), depths...),
		Resistivities: append([]float64(nil), resistivities...),
	}
	if err := c.Validate(); err != nil {
		return Curve{}, err
	}
	return c, nil
}

// Len returns the number of samples
func (c Curve) Len() int {
	return len(c.Depths)
}

// Validate checks the preconditions of the forward model: equal lengths, at
// least one sample, strictly positive finite depths and finite resistivities.
func (c Curve) Validate() error {
	if len(c.Depths) != len(c.Resistivities) {
		return &ValidationError{
			Field:  "Curve",
			Reason: fmt.Sprintf("length mismatch: %d depths, %d resistivities", len(c.Depths), len(c.Resistivities)),
		}
	}
	if len(c.Depths) == 0 {
		return &ValidationError{Field: "Curve", Reason: "no samples"}
	}
	for i, a := range c.Depths {
		if math.IsNaN(a) || math.IsInf(a, 0) || a <= 0 {
			return &ValidationError{Field: fmt.Sprintf("Depths[%d]", i), Reason: "must be finite and > 0"}
		}
	}
	for i, y := range c.Resistivities {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return &ValidationError{Field: fmt.Sprintf("Resistivities[%d]", i), Reason: "must be finite"}
		}
	}
	return nil
}

// Result is the outcome of a fitting session
type Result struct {
	Params     Params    `json:"params"`
	MSE        float64   `json:"mse"`
	Predicted  []float64 `json:"predicted"`
	Method     string    `json:"method"`
	Start      Params    `json:"start"`
	StartIndex int       `json:"startIndex"`
	Runs       int       `json:"runs"`
}

// Trial reports the outcome of a single starting point
type Trial struct {
	Index  int     `json:"index"`
	Total  int     `json:"total"`
	Start  Params  `json:"start"`
	Params Params  `json:"params"`
	MSE    float64 `json:"mse"`
}
