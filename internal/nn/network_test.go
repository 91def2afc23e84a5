package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/docdenoise/internal/raster"
)

func TestSigmoid(t *testing.T) {
	z := mat.NewDense(1, 3, []float64{0, 100, -100})
	s := Sigmoid(z)
	assert.InDelta(t, 0.5, s.At(0, 0), 1e-12)
	assert.InDelta(t, 1, s.At(0, 1), 1e-12)
	assert.InDelta(t, 0, s.At(0, 2), 1e-12)

	g := SigmoidGradient(z)
	assert.InDelta(t, 0.25, g.At(0, 0), 1e-12)
}

func TestUnrollReshapeColumnMajor(t *testing.T) {
	s := Shape{Input: 1, Hidden: 2, Labels: 1}
	params := []float64{1, 2, 3, 4, 5, 6, 7}

	t1, t2, err := Reshape(params, s)
	require.NoError(t, err)

	// Theta1 is 2x2 filled column by column
	assert.Equal(t, 1.0, t1.At(0, 0))
	assert.Equal(t, 2.0, t1.At(1, 0))
	assert.Equal(t, 3.0, t1.At(0, 1))
	assert.Equal(t, 4.0, t1.At(1, 1))
	assert.Equal(t, []float64{5, 6, 7}, mat.Row(nil, 0, t2))

	assert.Equal(t, params, Unroll(t1, t2))

	_, _, err = Reshape(params[:6], s)
	assert.Error(t, err)
}

func TestCostFunctionKnownValue(t *testing.T) {
	// All-zero weights give 0.5 outputs everywhere: J = labels * ln 2
	s := Shape{Input: 2, Hidden: 2, Labels: 2}
	params := make([]float64, s.Size())
	x := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	y := []int{0, 1, 1}

	j, grad, err := CostFunction(params, s, x, y, 0)
	require.NoError(t, err)
	assert.InDelta(t, 2*math.Ln2, j, 1e-12)
	assert.Len(t, grad, s.Size())
}

func TestCostFunctionRegularization(t *testing.T) {
	s := Shape{Input: 1, Hidden: 1, Labels: 2}
	x := mat.NewDense(2, 1, []float64{0.3, -0.7})
	y := []int{0, 1}
	params := []float64{0.1, 0.2, 0.3, -0.4, 0.5, 0.6}

	j0, _, err := CostFunction(params, s, x, y, 0)
	require.NoError(t, err)
	j1, _, err := CostFunction(params, s, x, y, 2)
	require.NoError(t, err)

	// Non-bias weights: Theta1[0][1]=0.2, Theta2[:,1] = {0.5, 0.6}
	reg := 2.0 / (2 * 2) * (0.2*0.2 + 0.5*0.5 + 0.6*0.6)
	assert.InDelta(t, reg, j1-j0, 1e-12)
}

func TestCheckGradients(t *testing.T) {
	for _, lambda := range []float64{0, 3} {
		check, err := CheckGradients(lambda)
		require.NoError(t, err)
		assert.Less(t, check.RelDiff, 1e-9, "lambda=%g", lambda)
	}
}

func TestCostFunctionRejectsBadInput(t *testing.T) {
	s := Shape{Input: 2, Hidden: 2, Labels: 2}
	params := make([]float64, s.Size())
	x := mat.NewDense(2, 2, nil)

	_, _, err := CostFunction(params, s, x, []int{0}, 0)
	assert.Error(t, err, "row/label mismatch")

	_, _, err = CostFunction(params, s, x, []int{0, 2}, 0)
	assert.Error(t, err, "label out of range")

	_, _, err = CostFunction(params, s, mat.NewDense(2, 3, nil), []int{0, 1}, 0)
	assert.Error(t, err, "feature mismatch")
}

func TestPredict(t *testing.T) {
	// Hidden unit copies the input sign, output 1 fires on positive hidden activation
	t1 := mat.NewDense(1, 2, []float64{0, 20})
	t2 := mat.NewDense(2, 2, []float64{10, -20, -10, 20})
	x := mat.NewDense(2, 1, []float64{1, -1})

	assert.Equal(t, []int{1, 0}, Predict(t1, t2, x))
}

func TestRandInitWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	eps := InitEpsilon(400, 25)
	w := RandInitWeights(400, 25, eps, rng)

	r, c := w.Dims()
	require.Equal(t, 25, r)
	require.Equal(t, 401, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := w.At(i, j)
			assert.True(t, v >= -eps && v <= eps, "weight %g outside [-%g, %g]", v, eps, eps)
		}
	}
}

func TestWindows(t *testing.T) {
	noisy := raster.NewGray(2, 3)
	copy(noisy.Pix, []uint8{0, 255, 0, 255, 0, 255})
	clean := raster.NewGray(2, 3)
	copy(clean.Pix, []uint8{0, 127, 128, 255, 255, 10})

	x, y, err := Windows(noisy, clean, 1, 2)
	require.NoError(t, err)

	r, c := x.Dims()
	assert.Equal(t, 6, r)
	assert.Equal(t, 9, c)
	assert.Equal(t, []int{0, 0, 1, 1, 1, 0}, y)
	// Centre of the first window is pixel (0,0)
	assert.Equal(t, 0.0, x.At(0, 4))
	assert.Equal(t, 1.0, x.At(1, 4))

	_, _, err = Windows(noisy, raster.NewGray(3, 3), 1, 2)
	assert.Error(t, err)
}

func TestRandomCheckOnWindows(t *testing.T) {
	noisy := raster.NewGray(3, 3)
	clean := raster.NewGray(3, 3)
	for i := range noisy.Pix {
		noisy.Pix[i] = uint8(i * 25)
		clean.Pix[i] = uint8(255 - i*25)
	}
	x, y, err := Windows(noisy, clean, 1, 2)
	require.NoError(t, err)

	check, err := RandomCheck(Shape{Input: 9, Hidden: 4, Labels: 2}, x, y, 1, rand.New(rand.NewSource(3)))
	require.NoError(t, err)
	assert.Less(t, check.RelDiff, 1e-7)
}
