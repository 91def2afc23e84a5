package denoise

import (
	"fmt"
	"math"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// NLMeans is non-local means denoising. Each pixel becomes the weighted mean
// of pixels in a Search x Search window, weighted by the similarity of their
// Template x Template patches.
type NLMeans struct {
	H        float64 // filter strength
	Template int     // patch size, odd
	Search   int     // search window size, odd
}

// DefaultNLMeans uses the customary strength 3, 7x7 patches and a 21x21 window
func DefaultNLMeans() NLMeans {
	return NLMeans{H: 3, Template: 7, Search: 21}
}

// Validate checks the window sizes
func (nl NLMeans) Validate() error {
	if nl.H <= 0 {
		return fmt.Errorf("nlmeans h must be positive, got %g", nl.H)
	}
	if nl.Template < 1 || nl.Template%2 == 0 {
		return fmt.Errorf("nlmeans template size must be odd, got %d", nl.Template)
	}
	if nl.Search < 1 || nl.Search%2 == 0 {
		return fmt.Errorf("nlmeans search size must be odd, got %d", nl.Search)
	}
	return nil
}

func (nl NLMeans) Name() string { return "nlmeans" }

func (nl NLMeans) Apply(p *raster.Gray) *raster.Gray {
	tr := nl.Template / 2
	sr := nl.Search / 2
	pad := tr + sr

	padded, err := raster.MirrorBorder(p, pad)
	if err != nil {
		return p.Clone()
	}

	area := float64(nl.Template * nl.Template)
	h2 := nl.H * nl.H
	q := raster.NewGray(p.Rows, p.Cols)

	for i := 0; i < p.Rows; i++ {
		ci := i + pad
		for j := 0; j < p.Cols; j++ {
			cj := j + pad
			var wsum, vsum float64
			for si := ci - sr; si <= ci+sr; si++ {
				for sj := cj - sr; sj <= cj+sr; sj++ {
					d := patchDistance(padded, ci, cj, si, sj, tr)
					w := math.Exp(-(float64(d) / area) / h2)
					wsum += w
					vsum += w * float64(padded.At(si, sj))
				}
			}
			q.Set(i, j, uint8(math.Round(vsum/wsum)))
		}
	}
	return q
}

// patchDistance is the sum of squared differences of the patches centred on (ai,aj) and (bi,bj)
func patchDistance(g *raster.Gray, ai, aj, bi, bj, r int) int {
	var d int
	for di := -r; di <= r; di++ {
		ra := (ai+di)*g.Cols + aj
		rb := (bi+di)*g.Cols + bj
		for dj := -r; dj <= r; dj++ {
			x := int(g.Pix[ra+dj]) - int(g.Pix[rb+dj])
			d += x * x
		}
	}
	return d
}
