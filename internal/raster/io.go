package raster

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Load reads a PNG, JPEG, TIFF, BMP, WebP or binary PGM file as grayscale
func Load(path string) (*Gray, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic, err := r.Peek(2)
	if err != nil {
		return nil, fmt.Errorf("failed to read image header %s: %w", path, err)
	}
	if bytes.Equal(magic, []byte("P5")) {
		g, err := ReadPGM(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		return g, nil
	}

	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return FromImage(img), nil
}

// Save writes the raster choosing the format from the file extension.
// .pgm produces binary PGM, anything else PNG.
func Save(path string, g *Gray) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}

	w := bufio.NewWriter(f)
	if strings.EqualFold(filepath.Ext(path), ".pgm") {
		err = WritePGM(w, g)
	} else {
		err = png.Encode(w, g.ToImage())
	}
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// WritePGM encodes the raster as binary PGM (P5, maxval 255)
func WritePGM(w io.Writer, g *Gray) error {
	if _, err := fmt.Fprintf(w, "P5\n%d %d\n255\n", g.Cols, g.Rows); err != nil {
		return err
	}
	_, err := w.Write(g.Pix)
	return err
}

// ReadPGM decodes a binary PGM with maxval up to 255
func ReadPGM(r io.Reader) (*Gray, error) {
	br, ok := r.(*bufio.Reader)
	if !ok {
		br = bufio.NewReader(r)
	}

	var header [4]int
	magic, err := pgmToken(br)
	if err != nil {
		return nil, err
	}
	if magic != "P5" {
		return nil, fmt.Errorf("unsupported pnm magic %q", magic)
	}
	for i := 1; i < 4; i++ {
		tok, err := pgmToken(br)
		if err != nil {
			return nil, err
		}
		header[i], err = strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("invalid pgm header field %q: %w", tok, err)
		}
	}

	cols, rows, maxval := header[1], header[2], header[3]
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("invalid pgm dimensions %dx%d", cols, rows)
	}
	if maxval <= 0 || maxval > 255 {
		return nil, fmt.Errorf("unsupported pgm maxval %d", maxval)
	}

	g := NewGray(rows, cols)
	if _, err := io.ReadFull(br, g.Pix); err != nil {
		return nil, fmt.Errorf("truncated pgm data: %w", err)
	}
	if maxval != 255 {
		for i, v := range g.Pix {
			g.Pix[i] = uint8((int(v)*255 + maxval/2) / maxval)
		}
	}
	return g, nil
}

// pgmToken reads the next whitespace separated header token, skipping comments.
// Exactly one whitespace byte after the token is consumed.
func pgmToken(r *bufio.Reader) (string, error) {
	var sb strings.Builder
	for {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && sb.Len() > 0 {
				return sb.String(), nil
			}
			return "", fmt.Errorf("failed to read pgm header: %w", err)
		}
		switch {
		case c == '#' && sb.Len() == 0:
			if _, err := r.ReadString('\n'); err != nil {
				return "", fmt.Errorf("failed to read pgm comment: %w", err)
			}
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			if sb.Len() > 0 {
				return sb.String(), nil
			}
		default:
			sb.WriteByte(c)
		}
	}
}
