package fit

// ScalarError returns the sum of squared residuals between y and the model at x
func ScalarError(m Model, p Params, x, y []float64) float64 {
	pred := m.Evaluate(p, x)
	var sum float64
	for i := range pred {
		r := y[i] - pred[i]
		sum += r * r
	}
	return sum
}

// VectorResiduals returns y - model(p, x) element-wise
func VectorResiduals(m Model, p Params, x, y []float64) []float64 {
	dst := make([]float64, len(x))
	ResidualsInto(dst, m, p, x, y)
	return dst
}

// ResidualsInto writes y - model(p, x) into dst
func ResidualsInto(dst []float64, m Model, p Params, x, y []float64) {
	m.EvaluateInto(dst, p, x)
	for i := range dst {
		dst[i] = y[i] - dst[i]
	}
}

// MeanSquaredError is the fit-quality score used to rank competing results
func MeanSquaredError(m Model, x, y []float64, p Params) float64 {
	pred := m.Evaluate(p, x)
	var sum float64
	for i := range pred {
		r := y[i] - pred[i]
		sum += r * r
	}
	return sum / float64(len(pred))
}

// Objective binds a model to a curve for the vector-valued optimizers
type Objective struct {
	model Model
	curve Curve
	buf   []float64
}

// NewObjective creates an objective over the given curve.
// An Objective is not safe for concurrent use.
func NewObjective(m Model, c Curve) *Objective {
	return &Objective{
		model: m,
		curve: c,
		buf:   make([]float64, c.Len()),
	}
}

// Len returns the number of residuals
func (o *Objective) Len() int {
	return o.curve.Len()
}

// Scalar is the sum of squared residuals at v
func (o *Objective) Scalar(v []float64) float64 {
	o.Residuals(o.buf, v)
	var sum float64
	for _, r := range o.buf {
		sum += r * r
	}
	return sum
}

// Residuals writes y - model(v) into dst
func (o *Objective) Residuals(dst, v []float64) {
	ResidualsInto(dst, o.model, ParamsFromVector(v), o.curve.Depths, o.curve.Resistivities)
}
