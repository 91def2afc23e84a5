package raster

import "fmt"

// MirrorBorder returns g padded by c pixels on every side. The padding
// reflects the interior without repeating the edge row or column.
func MirrorBorder(g *Gray, c int) (*Gray, error) {
	if c < 0 || c >= g.Rows || c >= g.Cols {
		return nil, fmt.Errorf("border %d too large for %dx%d raster", c, g.Rows, g.Cols)
	}

	rows := g.Rows + 2*c
	cols := g.Cols + 2*c
	q := NewGray(rows, cols)

	for i := 0; i < rows; i++ {
		si := mirror(i-c, g.Rows)
		for j := 0; j < cols; j++ {
			sj := mirror(j-c, g.Cols)
			q.Pix[i*cols+j] = g.Pix[si*g.Cols+sj]
		}
	}
	return q, nil
}

// Crop removes c pixels from every side
func Crop(g *Gray, c int) (*Gray, error) {
	if c < 0 || 2*c >= g.Rows || 2*c >= g.Cols {
		return nil, fmt.Errorf("crop %d too large for %dx%d raster", c, g.Rows, g.Cols)
	}

	q := NewGray(g.Rows-2*c, g.Cols-2*c)
	for i := 0; i < q.Rows; i++ {
		src := (i+c)*g.Cols + c
		copy(q.Pix[i*q.Cols:(i+1)*q.Cols], g.Pix[src:src+q.Cols])
	}
	return q, nil
}

// mirror maps an index into [0, n) by reflection about the first and last element.
func mirror(i, n int) int {
	if n == 1 {
		return 0
	}
	period := 2 * (n - 1)
	i %= period
	if i < 0 {
		i += period
	}
	if i >= n {
		i = period - i
	}
	return i
}
