package fit

import (
	"context"
	"errors"
	"testing"
)

func TestSessionRun(t *testing.T) {
	s := NewSession(syntheticCurve(t), LeastSquares{})
	s.Starts = FixedPolicy{{P1: 150, P2: 200, H1: 8}, {P1: 120, P2: 250, H1: 4}}

	res, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Runs != 2 {
		t.Errorf("Expected 2 runs, got %d", res.Runs)
	}
	if !within(res.Params.P2, 300, 0.01) {
		t.Errorf("Recovered %v, want %v", res.Params, trueParams)
	}
}

func TestSessionDefaultsToGrid(t *testing.T) {
	s := &Session{Options: DefaultOptions()}
	if n := len(s.StartingPoints()); n != 10 {
		t.Errorf("Expected the default grid of 10 starts, got %d", n)
	}
}

func TestSessionEmptyStarts(t *testing.T) {
	s := NewSession(syntheticCurve(t), Powell{})
	s.Starts = FixedPolicy{}
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrNoStartingPoints) {
		t.Errorf("Expected ErrNoStartingPoints, got %v", err)
	}
}
