package fit

import (
	"math"
	"math/rand"
)

// StartPolicy produces the starting points handed to the Driver
type StartPolicy interface {
	Starts(b Bounds) []Params
}

// Range is the half-open arithmetic sequence Start, Start+Step, ... < Stop
type Range struct {
	Start float64 `json:"start" yaml:"start"`
	Stop  float64 `json:"stop" yaml:"stop"`
	Step  float64 `json:"step" yaml:"step"`
}

// Values expands the range. A non-positive step yields no values.
func (r Range) Values() []float64 {
	if r.Step <= 0 || r.Stop <= r.Start {
		return nil
	}
	n := int(math.Ceil((r.Stop - r.Start) / r.Step))
	vals := make([]float64, n)
	for i := range vals {
		vals[i] = r.Start + float64(i)*r.Step
	}
	return vals
}

// GridPolicy enumerates the cartesian product P1 x P2 x H1 with H1 varying
// fastest and keeps the first Limit points (0 keeps all). Grid points are not
// checked against the bounds.
type GridPolicy struct {
	P1    Range `json:"p1" yaml:"p1"`
	P2    Range `json:"p2" yaml:"p2"`
	H1    Range `json:"h1" yaml:"h1"`
	Limit int   `json:"limit" yaml:"limit"`
}

// DefaultGridPolicy returns p1, p2 in 100..1000 step 100 and h1 in 1..20
// step 1, truncated to the first 10 points
func DefaultGridPolicy() GridPolicy {
	return GridPolicy{
		P1:    Range{Start: 100, Stop: 1100, Step: 100},
		P2:    Range{Start: 100, Stop: 1100, Step: 100},
		H1:    Range{Start: 1, Stop: 21, Step: 1},
		Limit: 10,
	}
}

// Starts implements StartPolicy
func (g GridPolicy) Starts(Bounds) []Params {
	var out []Params
	for _, p1 := range g.P1.Values() {
		for _, p2 := range g.P2.Values() {
			for _, h1 := range g.H1.Values() {
				if g.Limit > 0 && len(out) == g.Limit {
					return out
				}
				out = append(out, Params{P1: p1, P2: p2, H1: h1})
			}
		}
	}
	return out
}

// RandomPolicy draws N points uniformly from the bounds
type RandomPolicy struct {
	N    int   `json:"n" yaml:"n"`
	Seed int64 `json:"seed" yaml:"seed"`
}

// Starts implements StartPolicy
func (r RandomPolicy) Starts(b Bounds) []Params {
	rng := rand.New(rand.NewSource(r.Seed))
	lo, hi := b.Lower.Vector(), b.Upper.Vector()
	out := make([]Params, r.N)
	v := make([]float64, numParams)
	for i := range out {
		for j := range v {
			v[j] = lo[j] + rng.Float64()*(hi[j]-lo[j])
		}
		out[i] = ParamsFromVector(v)
	}
	return out
}

// FixedPolicy returns an explicit list of starting points
type FixedPolicy []Params

// Starts implements StartPolicy
func (f FixedPolicy) Starts(Bounds) []Params {
	return append([]Params(nil), f...)
}
