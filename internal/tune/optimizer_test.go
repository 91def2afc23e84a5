package tune

import (
	"math"
	"testing"
)

// Sphere function: f(x) = sum((x_i - 1)^2), minimum at (1, 1, ...)
func shiftedSphere(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += (v - 1) * (v - 1)
	}
	return sum
}

func TestMayflyAdapterOnSphere(t *testing.T) {
	optimizer := NewMayfly(100, 20, 42) // maxIters, popSize, seed

	dim := 3
	lower := []float64{-10, 0, -2}
	upper := []float64{10, 5, 2}

	best, cost := optimizer.Run(shiftedSphere, lower, upper, dim)

	if len(best) != dim {
		t.Fatalf("Expected %d parameters, got %d", dim, len(best))
	}
	if cost > 0.1 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
	for i, v := range best {
		if math.Abs(v-1) > 1.0 {
			t.Errorf("Parameter %d = %f, expected near 1", i, v)
		}
	}
}

func TestMayflyAdapterRespectsBounds(t *testing.T) {
	optimizer := NewMayfly(30, 20, 7)
	lower := []float64{2, -4}
	upper := []float64{3, -3}

	eval := func(x []float64) float64 {
		for i, v := range x {
			if v < lower[i] || v > upper[i] {
				t.Fatalf("Evaluated out of bounds: x[%d] = %f", i, v)
			}
		}
		return shiftedSphere(x)
	}

	best, _ := optimizer.Run(eval, lower, upper, 2)

	// Optimum is outside the box, so the result sits near the closest corner
	if math.Abs(best[0]-2) > 0.1 || math.Abs(best[1]+3) > 0.1 {
		t.Errorf("Expected best near (2, -3), got %v", best)
	}
}

func TestMayflyAdapterDeterministic(t *testing.T) {
	dim := 2
	lower := []float64{-5, -5}
	upper := []float64{5, 5}

	// Run twice with same seed (popSize must be >=20 for mayfly v0.1.0)
	optimizer1 := NewMayfly(50, 20, 123)
	_, cost1 := optimizer1.Run(shiftedSphere, lower, upper, dim)

	optimizer2 := NewMayfly(50, 20, 123)
	_, cost2 := optimizer2.Run(shiftedSphere, lower, upper, dim)

	if cost1 != cost2 {
		t.Errorf("Non-deterministic: cost1=%f, cost2=%f", cost1, cost2)
	}
}
