package fit

import (
	"math"
	"testing"
)

func TestMeanSquaredErrorRoundTrip(t *testing.T) {
	m := DefaultModel()
	p := Params{P1: 100, P2: 300, H1: 5}
	y := m.Evaluate(p, testDepths)

	if mse := MeanSquaredError(m, testDepths, y, p); mse != 0 {
		t.Errorf("Model output should have MSE 0, got %g", mse)
	}
}

func TestMeanSquaredErrorKnownValue(t *testing.T) {
	m := DefaultModel()
	p := Params{P1: 100, P2: 100, H1: 1} // constant 100
	x := []float64{1, 2, 3, 4}
	y := []float64{101, 99, 102, 100}

	// (1 + 1 + 4 + 0) / 4
	if mse := MeanSquaredError(m, x, y, p); math.Abs(mse-1.5) > 1e-12 {
		t.Errorf("Expected MSE 1.5, got %f", mse)
	}
	if sse := ScalarError(m, p, x, y); math.Abs(sse-6) > 1e-12 {
		t.Errorf("Expected SSE 6, got %f", sse)
	}

	res := VectorResiduals(m, p, x, y)
	want := []float64{1, -1, 2, 0}
	for i := range want {
		if math.Abs(res[i]-want[i]) > 1e-12 {
			t.Errorf("residual %d = %f, want %f", i, res[i], want[i])
		}
	}
}

func TestObjectiveMatchesFreeFunctions(t *testing.T) {
	m := DefaultModel()
	c, err := NewCurve(testDepths, m.Evaluate(Params{P1: 100, P2: 300, H1: 5}, testDepths))
	if err != nil {
		t.Fatal(err)
	}
	obj := NewObjective(m, c)
	p := Params{P1: 120, P2: 250, H1: 4}

	if got, want := obj.Scalar(p.Vector()), ScalarError(m, p, c.Depths, c.Resistivities); got != want {
		t.Errorf("Scalar = %f, want %f", got, want)
	}

	dst := make([]float64, obj.Len())
	obj.Residuals(dst, p.Vector())
	want := VectorResiduals(m, p, c.Depths, c.Resistivities)
	for i := range want {
		if dst[i] != want[i] {
			t.Errorf("residual %d = %f, want %f", i, dst[i], want[i])
		}
	}
}

func BenchmarkObjectiveScalar(b *testing.B) {
	m := DefaultModel()
	c, _ := NewCurve(testDepths, m.Evaluate(Params{P1: 100, P2: 300, H1: 5}, testDepths))
	obj := NewObjective(m, c)
	v := []float64{120, 250, 4}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		obj.Scalar(v)
	}
}
