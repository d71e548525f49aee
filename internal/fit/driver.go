package fit

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/cwbudde/soilfit/internal/opt"
	"golang.org/x/sync/errgroup"
)

// MayflySettings configures the mayfly strategy.
// PopSize must be at least 20.
type MayflySettings struct {
	MaxIters int   `yaml:"maxIters"`
	PopSize  int   `yaml:"popSize"`
	Seed     int64 `yaml:"seed"`
}

// Solvers holds the tuning of every numeric optimizer
type Solvers struct {
	DifferentialEvolution opt.DifferentialEvolution `yaml:"differentialEvolution"`
	Mayfly                MayflySettings            `yaml:"mayfly"`
	NelderMead            opt.NelderMead            `yaml:"nelderMead"`
	Powell                opt.Powell                `yaml:"powell"`
	LeastSquares          opt.LeastSquares          `yaml:"leastSquares"`
}

// DefaultSolvers returns the default settings of every optimizer
func DefaultSolvers() Solvers {
	return Solvers{
		DifferentialEvolution: opt.DefaultDifferentialEvolution(),
		Mayfly:                MayflySettings{MaxIters: 200, PopSize: 30, Seed: 1},
		NelderMead:            opt.DefaultNelderMead(),
		Powell:                opt.DefaultPowell(),
		LeastSquares:          opt.DefaultLeastSquares(),
	}
}

// Options configures a Driver
type Options struct {
	Model   Model
	Bounds  Bounds
	Solvers Solvers

	// RepeatGlobalSearch runs a global strategy once per starting point,
	// each with its own seed. By default it runs once since the starting
	// point does not influence it.
	RepeatGlobalSearch bool

	// Workers is the number of starting points evaluated concurrently.
	// Values below 2 evaluate sequentially.
	Workers int

	// Observer, when set, receives every finished trial. Calls are
	// serialized but arrive in completion order when Workers > 1.
	Observer func(Trial)
}

// DefaultOptions returns the 99-term model, the default bounds and
// sequential evaluation
func DefaultOptions() Options {
	return Options{
		Model:   DefaultModel(),
		Bounds:  DefaultBounds(),
		Solvers: DefaultSolvers(),
		Workers: 1,
	}
}

// Driver runs a strategy from every starting point and keeps the best fit
type Driver struct {
	opts Options
	mu   sync.Mutex
}

// NewDriver creates a driver with the given options
func NewDriver(opts Options) *Driver {
	return &Driver{opts: opts}
}

// Options returns the driver configuration
func (d *Driver) Options() Options {
	return d.opts
}

// Fit runs method from each start and returns the result with the lowest
// mean squared error. Ties keep the earliest start; a NaN score ranks last.
// The context is checked before every start.
func (d *Driver) Fit(ctx context.Context, method Method, curve Curve, starts []Params) (*Result, error) {
	if len(starts) == 0 {
		return nil, ErrNoStartingPoints
	}
	if method == nil {
		return nil, fmt.Errorf("%w: nil method", ErrUnknownMethod)
	}
	if err := curve.Validate(); err != nil {
		return nil, err
	}
	if err := d.opts.Bounds.Validate(); err != nil {
		return nil, err
	}

	runs := starts
	if method.global() && !d.opts.RepeatGlobalSearch {
		runs = starts[:1]
	}

	trials := make([]Trial, len(runs))
	var err error
	if d.opts.Workers > 1 && len(runs) > 1 {
		err = d.fitParallel(ctx, method, curve, runs, trials)
	} else {
		err = d.fitSequential(ctx, method, curve, runs, trials)
	}
	if err != nil {
		return nil, err
	}

	best := 0
	bestScore := rank(trials[0].MSE)
	for i := 1; i < len(trials); i++ {
		if s := rank(trials[i].MSE); s < bestScore {
			best, bestScore = i, s
		}
	}

	winner := trials[best]
	return &Result{
		Params:     winner.Params,
		MSE:        winner.MSE,
		Predicted:  d.opts.Model.Evaluate(winner.Params, curve.Depths),
		Method:     method.Name(),
		Start:      winner.Start,
		StartIndex: best,
		Runs:       len(runs),
	}, nil
}

func (d *Driver) fitSequential(ctx context.Context, method Method, curve Curve, runs []Params, trials []Trial) error {
	obj := NewObjective(d.opts.Model, curve)
	for i := range runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		trials[i] = d.trial(obj, method, curve, runs, i)
	}
	return nil
}

func (d *Driver) fitParallel(ctx context.Context, method Method, curve Curve, runs []Params, trials []Trial) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Workers)
	for i := range runs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// Objectives reuse a scratch buffer, one per goroutine
			obj := NewObjective(d.opts.Model, curve)
			trials[i] = d.trial(obj, method, curve, runs, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (d *Driver) trial(obj *Objective, method Method, curve Curve, runs []Params, i int) Trial {
	params := method.fit(obj, runs[i], d.opts.Bounds, &d.opts.Solvers, i)
	t := Trial{
		Index:  i,
		Total:  len(runs),
		Start:  runs[i],
		Params: params,
		MSE:    MeanSquaredError(d.opts.Model, curve.Depths, curve.Resistivities, params),
	}
	if d.opts.Observer != nil {
		d.mu.Lock()
		d.opts.Observer(t)
		d.mu.Unlock()
	}
	return t
}

func rank(mse float64) float64 {
	if math.IsNaN(mse) {
		return math.Inf(1)
	}
	return mse
}
