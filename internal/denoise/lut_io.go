package denoise

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Table file layout (little-endian):
//
//	magic "DNLT" | version u32 | passes u32
//	per pass: horizontal u8 | entries u64 | entries x (index u32, total u64, sum u64)
//
// Entries are written in ascending index order.
const (
	lutMagic   = "DNLT"
	lutVersion = 1
)

// ErrBadLUT is returned for files that are not lookup tables
var ErrBadLUT = errors.New("not a lookup table file")

// WriteTo serializes the chain
func (mc *MultiCodec) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}
	bw := bufio.NewWriter(cw)

	if _, err := bw.WriteString(lutMagic); err != nil {
		return cw.n, err
	}
	if err := binary.Write(bw, binary.LittleEndian, [2]uint32{lutVersion, uint32(len(mc.Codecs))}); err != nil {
		return cw.n, err
	}

	for _, c := range mc.Codecs {
		var h uint8
		if c.Horizontal {
			h = 1
		}
		if err := binary.Write(bw, binary.LittleEndian, h); err != nil {
			return cw.n, err
		}
		if err := binary.Write(bw, binary.LittleEndian, uint64(c.Table.Len())); err != nil {
			return cw.n, err
		}

		keys := make([]uint32, 0, c.Table.Len())
		for k := range c.Table.entries {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(a, b int) bool { return keys[a] < keys[b] })

		var rec [20]byte
		for _, k := range keys {
			e := c.Table.entries[k]
			binary.LittleEndian.PutUint32(rec[0:4], k)
			binary.LittleEndian.PutUint64(rec[4:12], e.Total)
			binary.LittleEndian.PutUint64(rec[12:20], e.Sum)
			if _, err := bw.Write(rec[:]); err != nil {
				return cw.n, err
			}
		}
	}

	err := bw.Flush()
	return cw.n, err
}

// ReadLUT deserializes a chain written by WriteTo
func ReadLUT(r io.Reader) (*MultiCodec, error) {
	br := bufio.NewReader(r)

	magic := make([]byte, len(lutMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return nil, fmt.Errorf("failed to read table header: %w", err)
	}
	if string(magic) != lutMagic {
		return nil, ErrBadLUT
	}

	var hdr [2]uint32
	if err := binary.Read(br, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("failed to read table header: %w", err)
	}
	if hdr[0] != lutVersion {
		return nil, fmt.Errorf("unsupported table version %d", hdr[0])
	}
	if hdr[1] == 0 || hdr[1] > 64 {
		return nil, fmt.Errorf("invalid pass count %d", hdr[1])
	}

	mc := &MultiCodec{Codecs: make([]*Codec, hdr[1])}
	var rec [20]byte
	for n := range mc.Codecs {
		var h uint8
		var count uint64
		if err := binary.Read(br, binary.LittleEndian, &h); err != nil {
			return nil, fmt.Errorf("pass %d: %w", n, err)
		}
		if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
			return nil, fmt.Errorf("pass %d: %w", n, err)
		}
		if count > 1<<24 {
			return nil, fmt.Errorf("pass %d: entry count %d exceeds context space", n, count)
		}

		c := NewCodec(h == 1)
		for k := uint64(0); k < count; k++ {
			if _, err := io.ReadFull(br, rec[:]); err != nil {
				return nil, fmt.Errorf("pass %d entry %d: %w", n, k, err)
			}
			c.Table.entries[binary.LittleEndian.Uint32(rec[0:4])] = Entry{
				Total: binary.LittleEndian.Uint64(rec[4:12]),
				Sum:   binary.LittleEndian.Uint64(rec[12:20]),
			}
		}
		mc.Codecs[n] = c
	}
	return mc, nil
}

// SaveLUT writes the chain to path atomically
func SaveLUT(path string, mc *MultiCodec) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create table directory: %w", err)
	}

	tempPath := path + ".tmp"
	f, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	if _, err := mc.WriteTo(f); err != nil {
		f.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write table: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close table file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename table file: %w", err)
	}
	return nil
}

// LoadLUT reads a chain from path
func LoadLUT(path string) (*MultiCodec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open table: %w", err)
	}
	defer f.Close()

	mc, err := ReadLUT(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return mc, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
