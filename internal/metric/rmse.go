package metric

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// ImageError is the reconstruction error of a single page
type ImageError struct {
	Name   string  `json:"name"`
	SSE    float64 `json:"sse"`    // squared error with intensities in [0,1]
	Pixels int     `json:"pixels"` // number of compared pixels
}

// Compare measures the error of a against the reference b
func Compare(name string, a, b *raster.Gray) (ImageError, error) {
	if err := raster.CheckShape(a, b); err != nil {
		return ImageError{}, err
	}
	return ImageError{
		Name:   name,
		SSE:    NormalizedSSD(a.Pix, b.Pix),
		Pixels: a.Size(),
	}, nil
}

// MSE is the mean squared error in [0,1] units
func (e ImageError) MSE() float64 {
	if e.Pixels == 0 {
		return 0
	}
	return e.SSE / float64(e.Pixels)
}

// RMSE is the root mean squared error in [0,1] units
func (e ImageError) RMSE() float64 {
	return math.Sqrt(e.MSE())
}

// PSNR is the peak signal to noise ratio in dB, +Inf for identical pages
func (e ImageError) PSNR() float64 {
	mse := e.MSE()
	if mse == 0 {
		return math.Inf(1)
	}
	// MSE is on the unit scale, so the peak is 1
	return 10 * math.Log10(1/mse)
}

// Accumulator pools squared error over many pages. It is safe for concurrent use.
type Accumulator struct {
	mu     sync.Mutex
	sse    float64
	pixels int
}

// Add compares a page pair and folds it into the running totals
func (acc *Accumulator) Add(name string, a, b *raster.Gray) (ImageError, error) {
	e, err := Compare(name, a, b)
	if err != nil {
		return ImageError{}, err
	}
	acc.AddError(e)
	return e, nil
}

// AddError folds an already computed page error into the totals
func (acc *Accumulator) AddError(e ImageError) {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	acc.sse += e.SSE
	acc.pixels += e.Pixels
}

// SSE returns the pooled squared error
func (acc *Accumulator) SSE() float64 {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.sse
}

// Pixels returns the pooled pixel count
func (acc *Accumulator) Pixels() int {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.pixels
}

// RMSE is sqrt(total SSE / total pixels) across all pages
func (acc *Accumulator) RMSE() float64 {
	acc.mu.Lock()
	defer acc.mu.Unlock()
	if acc.pixels == 0 {
		return 0
	}
	return math.Sqrt(acc.sse / float64(acc.pixels))
}

// Summary describes the spread of per-page RMSE
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stdDev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Report is the outcome of measuring a set of pages
type Report struct {
	Images  []ImageError `json:"images"`
	RMSE    float64      `json:"rmse"`
	Summary Summary      `json:"summary"`
}

// NewReport pools the per-page errors
func NewReport(images []ImageError) *Report {
	var acc Accumulator
	for _, e := range images {
		acc.AddError(e)
	}
	return &Report{
		Images:  images,
		RMSE:    acc.RMSE(),
		Summary: Summarize(images),
	}
}

// Summarize computes statistics over per-page RMSE
func Summarize(images []ImageError) Summary {
	if len(images) == 0 {
		return Summary{}
	}
	vals := make([]float64, len(images))
	for i, e := range images {
		vals[i] = e.RMSE()
	}

	s := Summary{
		Count: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
	}
	if len(vals) > 1 {
		s.Mean, s.StdDev = stat.MeanStdDev(vals, nil)
	} else {
		s.Mean = vals[0]
	}
	return s
}

// DiffImage returns |a-b| per pixel
func DiffImage(a, b *raster.Gray) (*raster.Gray, error) {
	if err := raster.CheckShape(a, b); err != nil {
		return nil, err
	}
	d := raster.NewGray(a.Rows, a.Cols)
	for i := range a.Pix {
		if a.Pix[i] > b.Pix[i] {
			d.Pix[i] = a.Pix[i] - b.Pix[i]
		} else {
			d.Pix[i] = b.Pix[i] - a.Pix[i]
		}
	}
	return d, nil
}
