package fit

import (
	"fmt"
	"strings"

	"github.com/cwbudde/soilfit/internal/opt"
)

// Method is one of the optimization strategies understood by the Driver.
// The set is closed: DifferentialEvolution, Mayfly, NelderMead, Powell and
// LeastSquares are the only implementations.
type Method interface {
	// Name is the canonical identifier reported in results and metrics
	Name() string

	// global reports whether the strategy searches the bounds and ignores
	// the starting point
	global() bool

	// fit runs the strategy once; repeat is the index of the run and
	// offsets the seed of stochastic strategies
	fit(obj *Objective, start Params, b Bounds, s *Solvers, repeat int) Params
}

// DifferentialEvolution searches the bounds with a population-based
// evolutionary strategy and ignores the starting point
type DifferentialEvolution struct{}

// Mayfly searches the bounds with the mayfly swarm algorithm and ignores the
// starting point
type Mayfly struct{}

// NelderMead refines the starting point with the downhill simplex method
type NelderMead struct{}

// Powell refines the starting point with Powell's conjugate direction method
type Powell struct{}

// LeastSquares minimizes the residual vector from the starting point.
// An empty Sub selects opt.TRF.
type LeastSquares struct {
	Sub opt.LSQMethod
}

func (DifferentialEvolution) Name() string { return "differential-evolution" }
func (Mayfly) Name() string                { return "mayfly" }
func (NelderMead) Name() string            { return "nelder-mead" }
func (Powell) Name() string                { return "powell" }
func (m LeastSquares) Name() string        { return "least-squares/" + string(m.sub()) }

func (DifferentialEvolution) global() bool { return true }
func (Mayfly) global() bool                { return true }
func (NelderMead) global() bool            { return false }
func (Powell) global() bool                { return false }
func (LeastSquares) global() bool          { return false }

func (m LeastSquares) sub() opt.LSQMethod {
	if m.Sub == "" {
		return opt.TRF
	}
	return m.Sub
}

func (DifferentialEvolution) fit(obj *Objective, _ Params, b Bounds, s *Solvers, repeat int) Params {
	de := s.DifferentialEvolution
	de.Seed += int64(repeat)
	best, _ := de.Run(obj.Scalar, b.Lower.Vector(), b.Upper.Vector(), numParams)
	return ParamsFromVector(best)
}

func (Mayfly) fit(obj *Objective, _ Params, b Bounds, s *Solvers, repeat int) Params {
	cfg := s.Mayfly
	mf := opt.NewMayfly(cfg.MaxIters, cfg.PopSize, cfg.Seed+int64(repeat))
	best, _ := mf.Run(obj.Scalar, b.Lower.Vector(), b.Upper.Vector(), numParams)
	return ParamsFromVector(best)
}

func (NelderMead) fit(obj *Objective, start Params, _ Bounds, s *Solvers, _ int) Params {
	nm := s.NelderMead
	x, _ := nm.Minimize(obj.Scalar, start.Vector())
	return ParamsFromVector(x).Constrain()
}

func (Powell) fit(obj *Objective, start Params, _ Bounds, s *Solvers, _ int) Params {
	pw := s.Powell
	x, _ := pw.Minimize(obj.Scalar, start.Vector())
	return ParamsFromVector(x).Constrain()
}

func (m LeastSquares) fit(obj *Objective, start Params, _ Bounds, s *Solvers, _ int) Params {
	ls := s.LeastSquares
	ls.Method = m.sub()
	x, _ := ls.Solve(obj.Residuals, obj.Len(), start.Vector())
	return ParamsFromVector(x).Constrain()
}

// MethodNames lists the canonical names accepted by ParseMethod
func MethodNames() []string {
	return []string{"differential-evolution", "mayfly", "nelder-mead", "powell", "least-squares"}
}

// ParseMethod maps a user-supplied strategy name to a Method. Names are
// case-insensitive and spaces or underscores count as dashes, so both
// "least-squares" and "Least Squares" are accepted. sub selects the
// least-squares algorithm (trf, dogbox or lm) and may also be given as a
// suffix, as in "least-squares/lm". It is ignored for the other strategies.
func ParseMethod(name, sub string) (Method, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.NewReplacer(" ", "-", "_", "-").Replace(key)
	if base, suffix, ok := strings.Cut(key, "/"); ok {
		key = base
		if sub == "" {
			sub = suffix
		}
	}

	switch key {
	case "de", "differential-evolution", "differentialevolution":
		return DifferentialEvolution{}, nil
	case "mayfly":
		return Mayfly{}, nil
	case "nm", "nelder-mead", "neldermead":
		return NelderMead{}, nil
	case "powell":
		return Powell{}, nil
	case "lsq", "least-squares", "leastsquares":
		if sub == "" {
			return LeastSquares{Sub: opt.TRF}, nil
		}
		m, err := opt.ParseLSQMethod(strings.ToLower(strings.TrimSpace(sub)))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnknownMethod, err)
		}
		return LeastSquares{Sub: m}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, name)
	}
}
