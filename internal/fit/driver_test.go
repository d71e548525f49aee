package fit

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/cwbudde/soilfit/internal/opt"
)

// identity scores each start as is, which makes selection fully predictable
type identity struct{}

func (identity) Name() string { return "identity" }
func (identity) global() bool { return false }
func (identity) fit(_ *Objective, start Params, _ Bounds, _ *Solvers, _ int) Params {
	return start
}

var trueParams = Params{P1: 100, P2: 300, H1: 5}

func syntheticCurve(t *testing.T) Curve {
	t.Helper()
	c, err := NewCurve(testDepths, Tagg(trueParams, testDepths))
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func within(got, want, rel float64) bool {
	return math.Abs(got-want) <= rel*math.Abs(want)
}

func TestDriverRecoversLocalMethods(t *testing.T) {
	curve := syntheticCurve(t)
	starts := []Params{{P1: 120, P2: 250, H1: 4}}

	methods := []Method{
		NelderMead{},
		Powell{},
		LeastSquares{Sub: opt.TRF},
		LeastSquares{Sub: opt.Dogbox},
		LeastSquares{Sub: opt.LM},
	}

	for _, m := range methods {
		t.Run(m.Name(), func(t *testing.T) {
			res, err := NewDriver(DefaultOptions()).Fit(context.Background(), m, curve, starts)
			if err != nil {
				t.Fatal(err)
			}
			if !within(res.Params.P1, 100, 0.01) || !within(res.Params.P2, 300, 0.01) || !within(res.Params.H1, 5, 0.01) {
				t.Errorf("Recovered %v, want %v", res.Params, trueParams)
			}
			if res.Method != m.Name() {
				t.Errorf("Method = %q, want %q", res.Method, m.Name())
			}
			if len(res.Predicted) != curve.Len() {
				t.Errorf("Predicted has %d values, want %d", len(res.Predicted), curve.Len())
			}
		})
	}
}

func TestDriverDifferentialEvolution(t *testing.T) {
	curve := syntheticCurve(t)
	res, err := NewDriver(DefaultOptions()).Fit(context.Background(), DifferentialEvolution{}, curve, DefaultGridPolicy().Starts(DefaultBounds()))
	if err != nil {
		t.Fatal(err)
	}
	if !within(res.Params.P1, 100, 0.05) || !within(res.Params.P2, 300, 0.05) || !within(res.Params.H1, 5, 0.05) {
		t.Errorf("Recovered %v, want %v", res.Params, trueParams)
	}
	if res.Runs != 1 {
		t.Errorf("Global search should run once, ran %d times", res.Runs)
	}
}

func TestDriverMayflyStaysInBounds(t *testing.T) {
	curve := syntheticCurve(t)
	opts := DefaultOptions()
	opts.Solvers.Mayfly = MayflySettings{MaxIters: 30, PopSize: 20, Seed: 7}

	res, err := NewDriver(opts).Fit(context.Background(), Mayfly{}, curve, []Params{{}})
	if err != nil {
		t.Fatal(err)
	}
	if !opts.Bounds.Contains(res.Params) {
		t.Errorf("Mayfly result %v outside bounds", res.Params)
	}
	if math.IsNaN(res.MSE) {
		t.Error("MSE is NaN")
	}
}

func TestDriverRepeatGlobalSearch(t *testing.T) {
	curve := syntheticCurve(t)
	opts := DefaultOptions()
	opts.Solvers.DifferentialEvolution.MaxIter = 5
	opts.Solvers.DifferentialEvolution.Polish = false
	opts.RepeatGlobalSearch = true

	var trials []Trial
	opts.Observer = func(tr Trial) { trials = append(trials, tr) }

	starts := []Params{{}, {}, {}}
	res, err := NewDriver(opts).Fit(context.Background(), DifferentialEvolution{}, curve, starts)
	if err != nil {
		t.Fatal(err)
	}
	if res.Runs != 3 || len(trials) != 3 {
		t.Fatalf("Expected 3 runs, got %d (observed %d)", res.Runs, len(trials))
	}
	// Each run is seeded differently
	if trials[0].Params == trials[1].Params {
		t.Error("Repeated runs produced identical parameters")
	}
}

func TestDriverSelectsStrictlyBetterStart(t *testing.T) {
	curve := syntheticCurve(t)
	starts := []Params{{P1: 200, P2: 200, H1: 1}, trueParams}

	res, err := NewDriver(DefaultOptions()).Fit(context.Background(), identity{}, curve, starts)
	if err != nil {
		t.Fatal(err)
	}
	if res.StartIndex != 1 || res.Params != trueParams {
		t.Errorf("Expected the second start, got index %d (%v)", res.StartIndex, res.Params)
	}
	if res.MSE != 0 {
		t.Errorf("Expected MSE 0, got %g", res.MSE)
	}
}

func TestDriverTieKeepsFirst(t *testing.T) {
	// Constant models at 100 and 300 score identically against 200
	flat, err := NewCurve([]float64{1, 2}, []float64{200, 200})
	if err != nil {
		t.Fatal(err)
	}

	starts := []Params{{P1: 100, P2: 100, H1: 1}, {P1: 300, P2: 300, H1: 1}}
	res, err := NewDriver(DefaultOptions()).Fit(context.Background(), identity{}, flat, starts)
	if err != nil {
		t.Fatal(err)
	}
	if res.StartIndex != 0 {
		t.Errorf("Tie should keep the first start, got index %d", res.StartIndex)
	}
}

func TestDriverNaNRanksLast(t *testing.T) {
	curve := syntheticCurve(t)
	starts := []Params{{P1: 0, P2: 0, H1: 1}, {P1: 200, P2: 200, H1: 1}}

	res, err := NewDriver(DefaultOptions()).Fit(context.Background(), identity{}, curve, starts)
	if err != nil {
		t.Fatal(err)
	}
	if res.StartIndex != 1 {
		t.Errorf("NaN score should lose, got index %d", res.StartIndex)
	}
}

func TestDriverErrors(t *testing.T) {
	curve := syntheticCurve(t)
	d := NewDriver(DefaultOptions())
	ctx := context.Background()

	if _, err := d.Fit(ctx, NelderMead{}, curve, nil); !errors.Is(err, ErrNoStartingPoints) {
		t.Errorf("Expected ErrNoStartingPoints, got %v", err)
	}
	if _, err := d.Fit(ctx, nil, curve, []Params{trueParams}); !errors.Is(err, ErrUnknownMethod) {
		t.Errorf("Expected ErrUnknownMethod, got %v", err)
	}

	bad := Curve{Depths: []float64{1, 2}, Resistivities: []float64{1}}
	if _, err := d.Fit(ctx, NelderMead{}, bad, []Params{trueParams}); !errors.Is(err, &ValidationError{}) {
		t.Errorf("Expected ValidationError, got %v", err)
	}

	opts := DefaultOptions()
	opts.Bounds.Lower.P1 = 20000
	if _, err := NewDriver(opts).Fit(ctx, NelderMead{}, curve, []Params{trueParams}); !errors.Is(err, &ValidationError{}) {
		t.Errorf("Expected ValidationError for bounds, got %v", err)
	}
}

func TestDriverCancelled(t *testing.T) {
	curve := syntheticCurve(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, workers := range []int{1, 4} {
		opts := DefaultOptions()
		opts.Workers = workers
		_, err := NewDriver(opts).Fit(ctx, identity{}, curve, []Params{trueParams, trueParams})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("workers=%d: expected context.Canceled, got %v", workers, err)
		}
	}
}

func TestDriverCancelBetweenStarts(t *testing.T) {
	curve := syntheticCurve(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	opts := DefaultOptions()
	opts.Observer = func(Trial) {
		calls++
		cancel()
	}

	_, err := NewDriver(opts).Fit(ctx, identity{}, curve, []Params{trueParams, trueParams, trueParams})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected a single trial before cancellation, got %d", calls)
	}
}

func TestDriverParallelMatchesSequential(t *testing.T) {
	curve := syntheticCurve(t)
	grid := DefaultGridPolicy()
	grid.Limit = 6
	grid.P2 = Range{Start: 200, Stop: 600, Step: 200}
	starts := grid.Starts(DefaultBounds())

	seq, err := NewDriver(DefaultOptions()).Fit(context.Background(), NelderMead{}, curve, starts)
	if err != nil {
		t.Fatal(err)
	}

	var mu sync.Mutex
	seen := map[int]bool{}
	opts := DefaultOptions()
	opts.Workers = 4
	opts.Observer = func(tr Trial) {
		mu.Lock()
		seen[tr.Index] = true
		mu.Unlock()
	}
	par, err := NewDriver(opts).Fit(context.Background(), NelderMead{}, curve, starts)
	if err != nil {
		t.Fatal(err)
	}

	if seq.StartIndex != par.StartIndex || seq.Params != par.Params || seq.MSE != par.MSE {
		t.Errorf("Parallel result %+v differs from sequential %+v", par, seq)
	}
	if len(seen) != len(starts) {
		t.Errorf("Observer saw %d trials, want %d", len(seen), len(starts))
	}
}

func TestDriverLocalMethodsReturnFromDegenerateStarts(t *testing.T) {
	curve := syntheticCurve(t)

	// h1 = 0 removes the h1 column of the Jacobian and tiny p1+p2 makes
	// the remaining columns nearly vanish
	starts := []Params{
		{P1: 1e-3, P2: 1e-3, H1: 0},
		{P1: 1e-4, P2: 2e-4, H1: 0},
		{P1: 1e-6, P2: 3e-6, H1: 0},
		{P1: 200, P2: 200, H1: 0},
	}
	methods := []Method{
		NelderMead{},
		Powell{},
		LeastSquares{Sub: opt.TRF},
		LeastSquares{Sub: opt.Dogbox},
		LeastSquares{Sub: opt.LM},
	}

	for _, m := range methods {
		t.Run(m.Name(), func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			done := make(chan *Result, 1)
			go func() {
				res, err := NewDriver(DefaultOptions()).Fit(ctx, m, curve, starts)
				if err != nil {
					t.Errorf("Fit failed: %v", err)
				}
				done <- res
			}()

			select {
			case res := <-done:
				if res == nil {
					return
				}
				if res.Runs != len(starts) {
					t.Errorf("Expected %d runs, got %d", len(starts), res.Runs)
				}
				if res.Params.P1 < 0 || res.Params.P2 < 0 || res.Params.H1 < 0 {
					t.Errorf("Parameters must be non-negative: %v", res.Params)
				}
			case <-ctx.Done():
				t.Fatal("Fit did not return from degenerate starts")
			}
		})
	}
}
