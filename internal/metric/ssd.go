package metric

import (
	"log/slog"

	"golang.org/x/sys/cpu"
)

// SSD kernels over 8-bit grayscale buffers.
//
// All kernels return the integer sum of squared differences on the 0-255
// scale. Integer accumulation keeps results identical across kernels, so
// the dispatcher only chooses an unroll width.

// Backend identifies the SSD kernel in use
type Backend int

const (
	BackendNaive     Backend = iota // reference loop
	BackendUnrolled4                // 4 pixels per iteration
	BackendUnrolled8                // 8 pixels per iteration
)

func (b Backend) String() string {
	switch b {
	case BackendNaive:
		return "naive"
	case BackendUnrolled4:
		return "unrolled4"
	case BackendUnrolled8:
		return "unrolled8"
	default:
		return "unknown"
	}
}

// ActiveBackend reports which kernel was selected at initialization
var ActiveBackend Backend

var ssdKernel func(a, b []uint8) uint64

func init() {
	// Cores with 256-bit (AVX2) or NEON vector units have the load ports to
	// keep the wider unroll busy.
	if cpu.X86.HasAVX2 || cpu.ARM64.HasASIMD {
		ActiveBackend = BackendUnrolled8
		ssdKernel = ssdUnrolled8
	} else {
		ActiveBackend = BackendUnrolled4
		ssdKernel = ssdUnrolled4
	}
	slog.Debug("SSD kernel initialized", "backend", ActiveBackend.String())
}

// SSD returns the sum of squared differences of a and b on the 0-255 scale.
// The buffers must have equal length.
func SSD(a, b []uint8) uint64 {
	if len(a) != len(b) {
		panic("metric.SSD: buffer lengths must match")
	}
	return ssdKernel(a, b)
}

// NormalizedSSD is SSD with intensities scaled to [0,1]
func NormalizedSSD(a, b []uint8) float64 {
	return float64(SSD(a, b)) / (255 * 255)
}

func ssdNaive(a, b []uint8) uint64 {
	var sum uint64
	for i := range a {
		d := int64(a[i]) - int64(b[i])
		sum += uint64(d * d)
	}
	return sum
}

func ssdUnrolled4(a, b []uint8) uint64 {
	var sum uint64
	n := len(a)
	i := 0
	for ; i+4 <= n; i += 4 {
		d0 := int32(a[i]) - int32(b[i])
		d1 := int32(a[i+1]) - int32(b[i+1])
		d2 := int32(a[i+2]) - int32(b[i+2])
		d3 := int32(a[i+3]) - int32(b[i+3])
		// max 4 * 255^2 fits int32
		sum += uint64(d0*d0 + d1*d1 + d2*d2 + d3*d3)
	}
	for ; i < n; i++ {
		d := int32(a[i]) - int32(b[i])
		sum += uint64(d * d)
	}
	return sum
}

func ssdUnrolled8(a, b []uint8) uint64 {
	var sum uint64
	n := len(a)
	i := 0
	for ; i+8 <= n; i += 8 {
		a8 := a[i : i+8 : i+8]
		b8 := b[i : i+8 : i+8]
		d0 := int32(a8[0]) - int32(b8[0])
		d1 := int32(a8[1]) - int32(b8[1])
		d2 := int32(a8[2]) - int32(b8[2])
		d3 := int32(a8[3]) - int32(b8[3])
		d4 := int32(a8[4]) - int32(b8[4])
		d5 := int32(a8[5]) - int32(b8[5])
		d6 := int32(a8[6]) - int32(b8[6])
		d7 := int32(a8[7]) - int32(b8[7])
		sum += uint64(d0*d0 + d1*d1 + d2*d2 + d3*d3 + d4*d4 + d5*d5 + d6*d6 + d7*d7)
	}
	for ; i < n; i++ {
		d := int32(a[i]) - int32(b[i])
		sum += uint64(d * d)
	}
	return sum
}
