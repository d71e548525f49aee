package fit

import "testing"

func TestRangeValues(t *testing.T) {
	got := Range{Start: 100, Stop: 1100, Step: 100}.Values()
	if len(got) != 10 || got[0] != 100 || got[9] != 1000 {
		t.Errorf("Values() = %v", got)
	}
	if v := (Range{Start: 1, Stop: 2, Step: 0}).Values(); v != nil {
		t.Errorf("Zero step should yield nothing, got %v", v)
	}
	if v := (Range{Start: 0, Stop: 1, Step: 0.3}).Values(); len(v) != 4 {
		t.Errorf("Expected 4 values, got %v", v)
	}
}

func TestDefaultGridPolicy(t *testing.T) {
	starts := DefaultGridPolicy().Starts(DefaultBounds())
	if len(starts) != 10 {
		t.Fatalf("Expected 10 starts, got %d", len(starts))
	}
	// h1 varies fastest
	for i, p := range starts {
		want := Params{P1: 100, P2: 100, H1: float64(i + 1)}
		if p != want {
			t.Errorf("start %d = %v, want %v", i, p, want)
		}
	}
}

func TestGridPolicyUnlimited(t *testing.T) {
	g := DefaultGridPolicy()
	g.Limit = 0
	starts := g.Starts(DefaultBounds())
	if len(starts) != 10*10*20 {
		t.Fatalf("Expected 2000 starts, got %d", len(starts))
	}
	if last := starts[len(starts)-1]; last != (Params{P1: 1000, P2: 1000, H1: 20}) {
		t.Errorf("last start = %v", last)
	}
	if second := starts[20]; second != (Params{P1: 100, P2: 200, H1: 1}) {
		t.Errorf("start 20 = %v", second)
	}
}

func TestRandomPolicy(t *testing.T) {
	b := DefaultBounds()
	r := RandomPolicy{N: 25, Seed: 3}
	a, c := r.Starts(b), r.Starts(b)

	if len(a) != 25 {
		t.Fatalf("Expected 25 starts, got %d", len(a))
	}
	for i := range a {
		if !b.Contains(a[i]) {
			t.Errorf("start %v outside bounds", a[i])
		}
		if a[i] != c[i] {
			t.Errorf("RandomPolicy is not deterministic at %d", i)
		}
	}
}

func TestFixedPolicyCopies(t *testing.T) {
	f := FixedPolicy{{P1: 1, P2: 2, H1: 3}}
	s := f.Starts(DefaultBounds())
	s[0].P1 = 99
	if f[0].P1 != 1 {
		t.Error("FixedPolicy must return a copy")
	}
}
