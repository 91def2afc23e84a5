// Package nn is a two-layer sigmoid feed-forward classifier: forward pass,
// regularized cross-entropy cost, backpropagated gradient and prediction.
//
// Parameters travel as a single unrolled vector holding Theta1
// (Hidden x Input+1) followed by Theta2 (Labels x Hidden+1), each flattened
// column by column. Column 0 of each matrix holds the bias weights.
package nn

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// logClamp keeps log() arguments away from 0
const logClamp = 1e-15

// Shape gives the layer sizes
type Shape struct {
	Input  int
	Hidden int
	Labels int
}

// Size returns the length of the unrolled parameter vector
func (s Shape) Size() int {
	return s.Hidden*(s.Input+1) + s.Labels*(s.Hidden+1)
}

// Validate rejects empty layers
func (s Shape) Validate() error {
	if s.Input <= 0 || s.Hidden <= 0 || s.Labels <= 0 {
		return errors.Errorf("invalid network shape %+v", s)
	}
	return nil
}

// Sigmoid applies 1/(1+e^-z) elementwise
func Sigmoid(z mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		return sigmoid(v)
	}, z)
	return &out
}

// SigmoidGradient applies s(z)(1-s(z)) elementwise
func SigmoidGradient(z mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.Apply(func(_, _ int, v float64) float64 {
		s := sigmoid(v)
		return s * (1 - s)
	}, z)
	return &out
}

func sigmoid(v float64) float64 {
	return 1 / (1 + math.Exp(-v))
}

// Unroll flattens both weight matrices column by column
func Unroll(t1, t2 *mat.Dense) []float64 {
	r1, c1 := t1.Dims()
	r2, c2 := t2.Dims()
	out := make([]float64, 0, r1*c1+r2*c2)
	for _, t := range []*mat.Dense{t1, t2} {
		r, c := t.Dims()
		for j := 0; j < c; j++ {
			for i := 0; i < r; i++ {
				out = append(out, t.At(i, j))
			}
		}
	}
	return out
}

// Reshape splits an unrolled vector back into Theta1 and Theta2
func Reshape(params []float64, s Shape) (*mat.Dense, *mat.Dense, error) {
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	if len(params) != s.Size() {
		return nil, nil, errors.Errorf("parameter vector has %d values, shape %+v needs %d", len(params), s, s.Size())
	}
	n1 := s.Hidden * (s.Input + 1)
	t1 := fromColumnMajor(params[:n1], s.Hidden, s.Input+1)
	t2 := fromColumnMajor(params[n1:], s.Labels, s.Hidden+1)
	return t1, t2, nil
}

func fromColumnMajor(v []float64, r, c int) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	k := 0
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			m.Set(i, j, v[k])
			k++
		}
	}
	return m
}

// withBias prepends a column of ones
func withBias(x mat.Matrix) *mat.Dense {
	r, c := x.Dims()
	out := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, 1)
		for j := 0; j < c; j++ {
			out.Set(i, j+1, x.At(i, j))
		}
	}
	return out
}

// forward holds the activations of one pass
type forward struct {
	a1, z2, a2, a3 *mat.Dense
}

func feedForward(t1, t2 *mat.Dense, x mat.Matrix) forward {
	var f forward
	f.a1 = withBias(x)

	f.z2 = &mat.Dense{}
	f.z2.Mul(f.a1, t1.T())
	f.a2 = withBias(Sigmoid(f.z2))

	var z3 mat.Dense
	z3.Mul(f.a2, t2.T())
	f.a3 = Sigmoid(&z3)
	return f
}

// CostFunction returns the regularized cross-entropy cost of the network
// on examples X (m x Input) with labels y in [0, Labels), and its gradient
// with respect to the unrolled parameters.
func CostFunction(params []float64, s Shape, x mat.Matrix, y []int, lambda float64) (float64, []float64, error) {
	t1, t2, err := Reshape(params, s)
	if err != nil {
		return 0, nil, err
	}

	m, n := x.Dims()
	if n != s.Input {
		return 0, nil, errors.Errorf("examples have %d features, network expects %d", n, s.Input)
	}
	if m != len(y) {
		return 0, nil, errors.Errorf("%d examples but %d labels", m, len(y))
	}
	if m == 0 {
		return 0, nil, errors.New("no examples")
	}

	// One-hot targets
	target := mat.NewDense(m, s.Labels, nil)
	for i, label := range y {
		if label < 0 || label >= s.Labels {
			return 0, nil, errors.Errorf("label %d of example %d outside [0, %d)", label, i, s.Labels)
		}
		target.Set(i, label, 1)
	}

	f := feedForward(t1, t2, x)
	fm := float64(m)

	var cost float64
	for i := 0; i < m; i++ {
		for k := 0; k < s.Labels; k++ {
			h := math.Min(math.Max(f.a3.At(i, k), logClamp), 1-logClamp)
			yk := target.At(i, k)
			cost += -yk*math.Log(h) - (1-yk)*math.Log(1-h)
		}
	}
	cost /= fm
	cost += lambda / (2 * fm) * (sumSquaresNoBias(t1) + sumSquaresNoBias(t2))

	// Backpropagation
	var d3 mat.Dense
	d3.Sub(f.a3, target)

	var d2 mat.Dense
	d2.Mul(&d3, t2.Slice(0, s.Labels, 1, s.Hidden+1))
	d2.MulElem(&d2, SigmoidGradient(f.z2))

	var g1, g2 mat.Dense
	g1.Mul(d2.T(), f.a1)
	g2.Mul(d3.T(), f.a2)
	regularize(&g1, t1, lambda, fm)
	regularize(&g2, t2, lambda, fm)

	return cost, Unroll(&g1, &g2), nil
}

// regularize scales the accumulated gradient by 1/m and adds lambda/m * theta
// to every column but the bias column.
func regularize(g, theta *mat.Dense, lambda, m float64) {
	r, c := g.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := g.At(i, j) / m
			if j > 0 {
				v += lambda / m * theta.At(i, j)
			}
			g.Set(i, j, v)
		}
	}
}

func sumSquaresNoBias(t *mat.Dense) float64 {
	r, c := t.Dims()
	var sum float64
	for i := 0; i < r; i++ {
		for j := 1; j < c; j++ {
			v := t.At(i, j)
			sum += v * v
		}
	}
	return sum
}

// Predict returns the most probable label for every row of X
func Predict(t1, t2 *mat.Dense, x mat.Matrix) []int {
	f := feedForward(t1, t2, x)
	m, k := f.a3.Dims()
	out := make([]int, m)
	for i := 0; i < m; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if f.a3.At(i, j) > f.a3.At(i, best) {
				best = j
			}
		}
		out[i] = best
	}
	return out
}

// InitEpsilon is the customary range sqrt(6)/sqrt(in+out) for random weights
func InitEpsilon(in, out int) float64 {
	return math.Sqrt(6) / math.Sqrt(float64(in+out))
}

// RandInitWeights returns an out x (in+1) matrix uniform in [-epsilon, epsilon]
func RandInitWeights(in, out int, epsilon float64, rng *rand.Rand) *mat.Dense {
	w := mat.NewDense(out, in+1, nil)
	for i := 0; i < out; i++ {
		for j := 0; j <= in; j++ {
			w.Set(i, j, rng.Float64()*2*epsilon-epsilon)
		}
	}
	return w
}

// RandInitParams returns a random unrolled parameter vector for s
func RandInitParams(s Shape, rng *rand.Rand) []float64 {
	t1 := RandInitWeights(s.Input, s.Hidden, InitEpsilon(s.Input, s.Hidden), rng)
	t2 := RandInitWeights(s.Hidden, s.Labels, InitEpsilon(s.Hidden, s.Labels), rng)
	return Unroll(t1, t2)
}
