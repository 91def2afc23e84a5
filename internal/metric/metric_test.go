package metric

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/docdenoise/internal/raster"
)

func filled(rows, cols int, v uint8) *raster.Gray {
	g := raster.NewGray(rows, cols)
	for i := range g.Pix {
		g.Pix[i] = v
	}
	return g
}

func TestSSDKernelsAgree(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, n := range []int{0, 1, 3, 4, 7, 8, 9, 31, 1000} {
		a := make([]uint8, n)
		b := make([]uint8, n)
		rng.Read(a)
		rng.Read(b)

		want := ssdNaive(a, b)
		if got := ssdUnrolled4(a, b); got != want {
			t.Errorf("n=%d: unrolled4 = %d, want %d", n, got, want)
		}
		if got := ssdUnrolled8(a, b); got != want {
			t.Errorf("n=%d: unrolled8 = %d, want %d", n, got, want)
		}
		if got := SSD(a, b); got != want {
			t.Errorf("n=%d: active backend %s = %d, want %d", n, ActiveBackend, got, want)
		}
	}
}

func TestSSDMaxValue(t *testing.T) {
	a := []uint8{255, 255, 255, 255, 255, 255, 255, 255, 255}
	b := make([]uint8, len(a))
	if got := SSD(a, b); got != 9*255*255 {
		t.Errorf("SSD = %d, want %d", got, 9*255*255)
	}
	if got := NormalizedSSD(a, b); got != 9 {
		t.Errorf("NormalizedSSD = %f, want 9", got)
	}
}

func TestCompareIdentical(t *testing.T) {
	e, err := Compare("x", filled(3, 3, 40), filled(3, 3, 40))
	if err != nil {
		t.Fatal(err)
	}
	if e.RMSE() != 0 {
		t.Errorf("Identical pages should have RMSE 0, got %f", e.RMSE())
	}
	if !math.IsInf(e.PSNR(), 1) {
		t.Errorf("Identical pages should have infinite PSNR, got %f", e.PSNR())
	}
}

func TestCompareWhiteBlack(t *testing.T) {
	e, err := Compare("x", filled(2, 2, 255), filled(2, 2, 0))
	if err != nil {
		t.Fatal(err)
	}
	if e.RMSE() != 1 {
		t.Errorf("White vs black RMSE = %f, want 1", e.RMSE())
	}
	if e.PSNR() != 0 {
		t.Errorf("White vs black PSNR = %f, want 0", e.PSNR())
	}
}

func TestCompareShapeMismatch(t *testing.T) {
	_, err := Compare("x", filled(2, 2, 0), filled(2, 3, 0))
	var se *raster.ShapeError
	if !errors.As(err, &se) {
		t.Errorf("Expected ShapeError, got %v", err)
	}
}

func TestAccumulatorPoolsPixels(t *testing.T) {
	var acc Accumulator

	// One pixel off by 255 in a 1x4 page, one exact 2x2 page
	a := filled(1, 4, 0)
	a.Pix[0] = 255
	if _, err := acc.Add("a", a, filled(1, 4, 0)); err != nil {
		t.Fatal(err)
	}
	if _, err := acc.Add("b", filled(2, 2, 9), filled(2, 2, 9)); err != nil {
		t.Fatal(err)
	}

	// Pooled: sqrt(1 / 8), not the mean of per-page RMSE
	want := math.Sqrt(1.0 / 8)
	if math.Abs(acc.RMSE()-want) > 1e-12 {
		t.Errorf("RMSE = %f, want %f", acc.RMSE(), want)
	}
	if acc.Pixels() != 8 {
		t.Errorf("Pixels = %d, want 8", acc.Pixels())
	}
}

func TestReportSummary(t *testing.T) {
	images := []ImageError{
		{Name: "a", SSE: 1, Pixels: 4},  // RMSE 0.5
		{Name: "b", SSE: 0, Pixels: 4},  // RMSE 0
		{Name: "c", SSE: 4, Pixels: 16}, // RMSE 0.5
	}
	r := NewReport(images)

	if math.Abs(r.RMSE-math.Sqrt(5.0/24)) > 1e-12 {
		t.Errorf("Pooled RMSE = %f", r.RMSE)
	}
	if r.Summary.Count != 3 || r.Summary.Min != 0 || r.Summary.Max != 0.5 {
		t.Errorf("Unexpected summary %+v", r.Summary)
	}
	if math.Abs(r.Summary.Mean-1.0/3) > 1e-12 {
		t.Errorf("Mean = %f, want 1/3", r.Summary.Mean)
	}
	if r.Summary.StdDev <= 0 {
		t.Errorf("StdDev should be positive, got %f", r.Summary.StdDev)
	}

	if s := Summarize(nil); s.Count != 0 {
		t.Errorf("Empty summary should be zero, got %+v", s)
	}
}

func TestDiffImage(t *testing.T) {
	a := filled(1, 2, 10)
	b := filled(1, 2, 30)
	a.Pix[1] = 50
	d, err := DiffImage(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if d.Pix[0] != 20 || d.Pix[1] != 20 {
		t.Errorf("DiffImage = %v", d.Pix)
	}
}
