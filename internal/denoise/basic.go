package denoise

import (
	"math"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// Copy returns the page unchanged
type Copy struct{}

func (Copy) Name() string { return "copy" }

func (Copy) Apply(p *raster.Gray) *raster.Gray {
	return p.Clone()
}

// AllWhite blanks the page
type AllWhite struct{}

func (AllWhite) Name() string { return "white" }

func (AllWhite) Apply(p *raster.Gray) *raster.Gray {
	q := raster.NewGray(p.Rows, p.Cols)
	for i := range q.Pix {
		q.Pix[i] = 255
	}
	return q
}

// Levels stretches intensities between Black and White (both in [0,1])
// to the full range. When White <= Black it thresholds at Black.
type Levels struct {
	Black float64
	White float64
	lut   [256]uint8
}

// NewLevels precomputes the intensity mapping
func NewLevels(black, white float64) *Levels {
	l := &Levels{Black: clamp01(black), White: clamp01(white)}
	lo := l.Black * 255
	hi := l.White * 255
	for v := 0; v < 256; v++ {
		x := float64(v)
		switch {
		case x <= lo:
			l.lut[v] = 0
		case x >= hi:
			l.lut[v] = 255
		default:
			l.lut[v] = uint8(math.Round((x - lo) * 255 / (hi - lo)))
		}
	}
	return l
}

func (l *Levels) Name() string { return "levels" }

func (l *Levels) Apply(p *raster.Gray) *raster.Gray {
	q := raster.NewGray(p.Rows, p.Cols)
	for i, v := range p.Pix {
		q.Pix[i] = l.lut[v]
	}
	return q
}

// Params reports the settings in registry form
func (l *Levels) Params() Params {
	return Params{"black": l.Black, "white": l.White}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
