package denoise

import (
	"github.com/cwbudde/docdenoise/internal/raster"
)

// Median replaces each pixel with the median of its (2R+1)^2 neighborhood.
// Borders are mirrored.
type Median struct {
	Radius int
}

func (m Median) Name() string { return "median" }

func (m Median) Apply(p *raster.Gray) *raster.Gray {
	r := m.Radius
	padded, err := raster.MirrorBorder(p, r)
	if err != nil {
		// window larger than the page
		return p.Clone()
	}

	q := raster.NewGray(p.Rows, p.Cols)
	size := 2*r + 1
	half := size * size / 2

	var hist [256]int
	for i := 0; i < p.Rows; i++ {
		// Running histogram along the row
		for k := range hist {
			hist[k] = 0
		}
		for di := 0; di < size; di++ {
			for dj := 0; dj < size; dj++ {
				hist[padded.At(i+di, dj)]++
			}
		}
		for j := 0; j < p.Cols; j++ {
			if j > 0 {
				for di := 0; di < size; di++ {
					hist[padded.At(i+di, j-1)]--
					hist[padded.At(i+di, j+size-1)]++
				}
			}
			q.Set(i, j, histMedian(&hist, half))
		}
	}
	return q
}

func histMedian(hist *[256]int, half int) uint8 {
	seen := 0
	for v := 0; v < 256; v++ {
		seen += hist[v]
		if seen > half {
			return uint8(v)
		}
	}
	return 255
}
