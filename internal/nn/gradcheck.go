package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NumericalGradient estimates the gradient of cost at params by central differences
func NumericalGradient(cost func([]float64) float64, params []float64, eps float64) []float64 {
	grad := make([]float64, len(params))
	p := append([]float64(nil), params...)
	for i := range p {
		orig := p[i]
		p[i] = orig - eps
		loss1 := cost(p)
		p[i] = orig + eps
		loss2 := cost(p)
		p[i] = orig
		grad[i] = (loss2 - loss1) / (2 * eps)
	}
	return grad
}

// GradCheck is the outcome of comparing the analytic and numerical gradients
type GradCheck struct {
	Analytic  []float64
	Numerical []float64
	// RelDiff is norm(num-grad)/norm(num+grad); below 1e-9 is a pass
	RelDiff float64
}

// CheckGradients builds a small network with deterministic weights and data
// and compares backpropagation against central differences.
func CheckGradients(lambda float64) (*GradCheck, error) {
	s := Shape{Input: 3, Hidden: 5, Labels: 3}
	const m = 5

	params := Unroll(debugWeights(s.Hidden, s.Input), debugWeights(s.Labels, s.Hidden))
	x := debugWeights(m, s.Input-1)
	y := make([]int, m)
	for i := range y {
		y[i] = (i + 1) % s.Labels
	}
	return compareGradients(params, s, x, y, lambda)
}

// RandomCheck runs the comparison on random parameters of shape s with the given examples
func RandomCheck(s Shape, x mat.Matrix, y []int, lambda float64, rng *rand.Rand) (*GradCheck, error) {
	return compareGradients(RandInitParams(s, rng), s, x, y, lambda)
}

func compareGradients(params []float64, s Shape, x mat.Matrix, y []int, lambda float64) (*GradCheck, error) {
	_, grad, err := CostFunction(params, s, x, y, lambda)
	if err != nil {
		return nil, err
	}

	// Inputs were validated above, so the closure cannot fail
	num := NumericalGradient(func(p []float64) float64 {
		j, _, _ := CostFunction(p, s, x, y, lambda)
		return j
	}, params, 1e-4)

	diff := make([]float64, len(num))
	sum := make([]float64, len(num))
	floats.SubTo(diff, num, grad)
	floats.AddTo(sum, num, grad)

	return &GradCheck{
		Analytic:  grad,
		Numerical: num,
		RelDiff:   floats.Norm(diff, 2) / floats.Norm(sum, 2),
	}, nil
}

// debugWeights fills an out x (in+1) matrix column by column with sin(k)/10
func debugWeights(out, in int) *mat.Dense {
	w := mat.NewDense(out, in+1, nil)
	k := 1
	for j := 0; j <= in; j++ {
		for i := 0; i < out; i++ {
			w.Set(i, j, math.Sin(float64(k))/10)
			k++
		}
	}
	return w
}
