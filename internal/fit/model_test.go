package fit

import (
	"math"
	"testing"
)

var testDepths = []float64{1, 2, 4, 8, 16, 32, 64}

func TestModelEqualLayersIsConstant(t *testing.T) {
	for _, p := range []Params{
		{P1: 100, P2: 100, H1: 5},
		{P1: 42.5, P2: 42.5, H1: 0},
		{P1: 3000, P2: 3000, H1: 99},
	} {
		for i, y := range Tagg(p, testDepths) {
			if y != p.P1 {
				t.Errorf("%v: depth %g got %f, want %f", p, testDepths[i], y, p.P1)
			}
		}
	}
}

func TestModelZeroThicknessClosedForm(t *testing.T) {
	p := Params{P1: 100, P2: 300, H1: 0}
	k := p.ReflectionCoefficient()

	var sum float64
	kd := 1.0
	for d := 1; d <= DefaultTerms; d++ {
		kd *= k
		sum += kd
	}
	want := p.P1 * (1 + 2*sum)

	for i, y := range Tagg(p, testDepths) {
		if math.Abs(y-want) > 1e-9*want {
			t.Errorf("depth %g: got %.12f, want %.12f", testDepths[i], y, want)
		}
	}
}

func TestModelLimits(t *testing.T) {
	// A thin upper layer is invisible to a wide probe spacing
	thin := Tagg(Params{P1: 100, P2: 300, H1: 1e-6}, []float64{100})
	if math.Abs(thin[0]-300) > 1e-3 {
		t.Errorf("thin layer: got %f, want ~300", thin[0])
	}

	// A thick upper layer dominates a narrow spacing
	thick := Tagg(Params{P1: 100, P2: 300, H1: 1000}, []float64{0.01})
	if math.Abs(thick[0]-100) > 1e-3 {
		t.Errorf("thick layer: got %f, want ~100", thick[0])
	}
}

func TestModelTolerance(t *testing.T) {
	p := Params{P1: 100, P2: 300, H1: 5}
	exact := DefaultModel().Evaluate(p, testDepths)
	early := Model{Terms: DefaultTerms, Tolerance: 1e-15}.Evaluate(p, testDepths)

	for i := range exact {
		if math.Abs(exact[i]-early[i]) > 1e-9*exact[i] {
			t.Errorf("depth %g: tolerance changed result %f -> %f", testDepths[i], exact[i], early[i])
		}
	}
}

func TestModelTermsDefault(t *testing.T) {
	p := Params{P1: 50, P2: 800, H1: 3}
	a := Model{}.Evaluate(p, testDepths)
	b := DefaultModel().Evaluate(p, testDepths)
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("zero Terms should mean %d terms: %f != %f", DefaultTerms, a[i], b[i])
		}
	}
}

func TestModelDegenerateInputs(t *testing.T) {
	// p1 + p2 = 0 is outside the model's domain and reported as NaN
	y := Tagg(Params{P1: 0, P2: 0, H1: 1}, []float64{1})
	if !math.IsNaN(y[0]) {
		t.Errorf("Expected NaN for p1+p2=0, got %f", y[0])
	}
}
