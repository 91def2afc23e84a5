package nn

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// Windows turns a noisy/clean page pair into classification examples.
// Each pixel yields one row holding its (2r+1)^2 noisy neighborhood scaled
// to [0,1] (mirrored at the edges) and a label: the clean pixel quantized
// into classes equal bins.
func Windows(noisy, clean *raster.Gray, radius, classes int) (*mat.Dense, []int, error) {
	if radius < 0 {
		return nil, nil, errors.Errorf("negative window radius %d", radius)
	}
	if classes < 2 || classes > 256 {
		return nil, nil, errors.Errorf("classes must be in [2, 256], got %d", classes)
	}
	if err := raster.CheckShape(noisy, clean); err != nil {
		return nil, nil, errors.Wrap(err, "window extraction")
	}

	padded, err := raster.MirrorBorder(noisy, radius)
	if err != nil {
		return nil, nil, errors.Wrap(err, "window extraction")
	}

	size := 2*radius + 1
	m := noisy.Size()
	x := mat.NewDense(m, size*size, nil)
	y := make([]int, m)

	row := make([]float64, size*size)
	for i := 0; i < noisy.Rows; i++ {
		for j := 0; j < noisy.Cols; j++ {
			k := 0
			for di := 0; di < size; di++ {
				for dj := 0; dj < size; dj++ {
					row[k] = float64(padded.At(i+di, j+dj)) / 255
					k++
				}
			}
			n := i*noisy.Cols + j
			x.SetRow(n, row)
			y[n] = Quantize(clean.At(i, j), classes)
		}
	}
	return x, y, nil
}

// Quantize maps an intensity onto one of classes equal bins
func Quantize(v uint8, classes int) int {
	return int(v) * classes / 256
}
