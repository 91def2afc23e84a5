package raster

import (
	"fmt"
	"image"
	"image/color"
)

// Gray is an 8-bit grayscale raster stored row-major
type Gray struct {
	Rows int
	Cols int
	Pix  []uint8
}

// NewGray allocates a zeroed rows x cols raster
func NewGray(rows, cols int) *Gray {
	return &Gray{
		Rows: rows,
		Cols: cols,
		Pix:  make([]uint8, rows*cols),
	}
}

// At returns the pixel at row i, column j
func (g *Gray) At(i, j int) uint8 {
	return g.Pix[i*g.Cols+j]
}

// Set writes the pixel at row i, column j
func (g *Gray) Set(i, j int, v uint8) {
	g.Pix[i*g.Cols+j] = v
}

// Size returns the number of pixels
func (g *Gray) Size() int {
	return g.Rows * g.Cols
}

// Clone returns a deep copy
func (g *Gray) Clone() *Gray {
	c := NewGray(g.Rows, g.Cols)
	copy(c.Pix, g.Pix)
	return c
}

// SameShape reports whether both rasters have identical dimensions
func (g *Gray) SameShape(o *Gray) bool {
	return g.Rows == o.Rows && g.Cols == o.Cols
}

// CheckShape returns a ShapeError if a and b differ in size
func CheckShape(a, b *Gray) error {
	if !a.SameShape(b) {
		return &ShapeError{
			Rows: [2]int{a.Rows, b.Rows},
			Cols: [2]int{a.Cols, b.Cols},
		}
	}
	return nil
}

// ShapeError reports two rasters whose dimensions do not match
type ShapeError struct {
	Rows [2]int
	Cols [2]int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: %dx%d vs %dx%d", e.Rows[0], e.Cols[0], e.Rows[1], e.Cols[1])
}

// Luma weights for 8-bit channels in 14-bit fixed point (0.299, 0.587, 0.114)
const (
	lumaR     = 4899
	lumaG     = 9617
	lumaB     = 1868
	lumaShift = 14
	lumaRound = 1 << (lumaShift - 1)
)

// Luma converts an 8-bit RGB triple to gray
func Luma(r, g, b uint8) uint8 {
	return uint8((uint32(r)*lumaR + uint32(g)*lumaG + uint32(b)*lumaB + lumaRound) >> lumaShift)
}

// FromImage converts any image to a grayscale raster.
// Alpha is ignored; 16-bit channels are reduced to their high byte.
func FromImage(img image.Image) *Gray {
	bounds := img.Bounds()
	g := NewGray(bounds.Dy(), bounds.Dx())

	if src, ok := img.(*image.Gray); ok {
		for y := 0; y < g.Rows; y++ {
			off := src.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(g.Pix[y*g.Cols:(y+1)*g.Cols], src.Pix[off:off+g.Cols])
		}
		return g
	}

	for y := 0; y < g.Rows; y++ {
		for x := 0; x < g.Cols; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			g.Pix[y*g.Cols+x] = Luma(c.R, c.G, c.B)
		}
	}
	return g
}

// ToImage wraps the raster in an image.Gray
func (g *Gray) ToImage() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, g.Cols, g.Rows))
	copy(img.Pix, g.Pix)
	return img
}
