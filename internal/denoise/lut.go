package denoise

import (
	"math"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// Context lookup-table denoising.
//
// A codec maps the 3-pixel neighborhood of a noisy pixel (its row or column
// neighbors) to the mean clean value observed for that neighborhood during
// training. Several codecs are chained, alternating horizontal and vertical
// neighborhoods, each trained on the output of the passes before it.

const (
	// DefaultPasses is the number of chained codecs
	DefaultPasses = 3

	// DefaultBorder is the mirrored margin added before denoising a page
	DefaultBorder = 32

	// updateMargin keeps training samples away from the page edge
	updateMargin = 3
)

// ContextIndex packs three 8-bit values into a 24-bit table index
func ContextIndex(a, b, c uint8) uint32 {
	return uint32(a)<<16 | uint32(b)<<8 | uint32(c)
}

// Entry accumulates clean values seen for one context
type Entry struct {
	Total uint64
	Sum   uint64
}

// Table is a sparse single-moment lookup table over 24-bit contexts.
// Every context carries an implicit prior of one observation of its centre
// value, so unseen contexts map to themselves.
type Table struct {
	entries map[uint32]Entry
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{entries: make(map[uint32]Entry)}
}

// Update records one observation of x for context i
func (t *Table) Update(i uint32, x uint8) {
	e := t.entries[i]
	e.Total++
	e.Sum += uint64(x)
	t.entries[i] = e
}

// Merge adds all observations of o into t
func (t *Table) Merge(o *Table) {
	for i, oe := range o.entries {
		e := t.entries[i]
		e.Total += oe.Total
		e.Sum += oe.Sum
		t.entries[i] = e
	}
}

// Lookup returns the rounded mean for context i including the prior
func (t *Table) Lookup(i uint32) uint8 {
	center := uint64((i >> 8) & 0xff)
	e := t.entries[i]
	mean := float64(e.Sum+center) / float64(e.Total+1)
	return uint8(math.Round(mean))
}

// Len returns the number of observed contexts
func (t *Table) Len() int {
	return len(t.entries)
}

// Codec is one denoising pass over horizontal or vertical contexts
type Codec struct {
	Horizontal bool
	Table      *Table
}

// NewCodec creates an untrained codec
func NewCodec(horizontal bool) *Codec {
	return &Codec{Horizontal: horizontal, Table: NewTable()}
}

func (c *Codec) index(p *raster.Gray, i, j int) uint32 {
	if c.Horizontal {
		return ContextIndex(p.At(i, j-1), p.At(i, j), p.At(i, j+1))
	}
	return ContextIndex(p.At(i-1, j), p.At(i, j), p.At(i+1, j))
}

// Update records the clean value of every interior pixel under its noisy context
func (c *Codec) Update(clean, noisy *raster.Gray) error {
	return updateTable(c.Table, c, clean, noisy)
}

func updateTable(t *Table, c *Codec, clean, noisy *raster.Gray) error {
	if err := raster.CheckShape(clean, noisy); err != nil {
		return err
	}
	for i := updateMargin; i+updateMargin < clean.Rows; i++ {
		for j := updateMargin; j+updateMargin < clean.Cols; j++ {
			t.Update(c.index(noisy, i, j), clean.At(i, j))
		}
	}
	return nil
}

// Denoise maps every pixel at least one away from the edge through the table.
// Edge pixels are copied.
func (c *Codec) Denoise(p *raster.Gray) *raster.Gray {
	q := p.Clone()
	for i := 1; i+1 < p.Rows; i++ {
		for j := 1; j+1 < p.Cols; j++ {
			q.Set(i, j, c.Table.Lookup(c.index(p, i, j)))
		}
	}
	return q
}

// MultiCodec chains codecs, pass n using horizontal contexts when n is even
type MultiCodec struct {
	Codecs []*Codec
}

// NewMultiCodec creates an untrained chain of the given length
func NewMultiCodec(passes int) *MultiCodec {
	mc := &MultiCodec{Codecs: make([]*Codec, passes)}
	for n := range mc.Codecs {
		mc.Codecs[n] = NewCodec(n%2 == 0)
	}
	return mc
}

// Passes returns the number of chained codecs
func (mc *MultiCodec) Passes() int {
	return len(mc.Codecs)
}

// Restore runs the noisy page through the passes before pass
func (mc *MultiCodec) Restore(noisy *raster.Gray, pass int) *raster.Gray {
	t := noisy
	for n := 0; n < pass; n++ {
		t = mc.Codecs[n].Denoise(t)
	}
	return t
}

// Update trains pass using the noisy page restored up to that pass
func (mc *MultiCodec) Update(clean, noisy *raster.Gray, pass int) error {
	return mc.Codecs[pass].Update(clean, mc.Restore(noisy, pass))
}

// Denoise runs all passes
func (mc *MultiCodec) Denoise(p *raster.Gray) *raster.Gray {
	return mc.Restore(p, len(mc.Codecs))
}

// LUT is the trained lookup-table filter. Pages are padded with a mirrored
// border before denoising and cropped afterwards.
type LUT struct {
	Codec  *MultiCodec
	Border int
}

func (l *LUT) Name() string { return "lut" }

func (l *LUT) Apply(p *raster.Gray) *raster.Gray {
	border := l.Border
	// MirrorBorder requires the margin to fit inside the page
	for border > 0 && (border >= p.Rows || border >= p.Cols) {
		border /= 2
	}

	padded, err := raster.MirrorBorder(p, border)
	if err != nil {
		return l.Codec.Denoise(p)
	}
	q, err := raster.Crop(l.Codec.Denoise(padded), border)
	if err != nil {
		return l.Codec.Denoise(p)
	}
	return q
}
