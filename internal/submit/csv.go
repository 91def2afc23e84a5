// Package submit converts denoised pages into competition submission rows.
//
// Every pixel becomes one row "<image>_<row>_<col>,<value>" with 1-based
// indices and the intensity scaled to [0,1]. Rows of an image are emitted
// column by column, the row index varying fastest, which is the order of
// the competition's sample submission.
package submit

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// Header is the first line of a merged submission
var Header = []string{"id", "value"}

// FormatValue renders a pixel as its shortest [0,1] decimal
func FormatValue(v uint8) string {
	return strconv.FormatFloat(float64(v)/255, 'g', -1, 64)
}

// ImageRows returns all rows of a page
func ImageRows(name string, g *raster.Gray) [][]string {
	rows := make([][]string, 0, g.Size())
	for j := 0; j < g.Cols; j++ {
		for i := 0; i < g.Rows; i++ {
			rows = append(rows, []string{
				name + "_" + strconv.Itoa(i+1) + "_" + strconv.Itoa(j+1),
				FormatValue(g.At(i, j)),
			})
		}
	}
	return rows
}

// WriteCSV writes the rows of a page without a header
func WriteCSV(w io.Writer, name string, g *raster.Gray) error {
	cw := csv.NewWriter(w)
	rec := make([]string, 2)
	for j := 0; j < g.Cols; j++ {
		for i := 0; i < g.Rows; i++ {
			rec[0] = name + "_" + strconv.Itoa(i+1) + "_" + strconv.Itoa(j+1)
			rec[1] = FormatValue(g.At(i, j))
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("failed to write row: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes the rows of a page to path
func WriteFile(path, name string, g *raster.Gray) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 64*1024)
	if err := WriteCSV(bw, name, g); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

// Merge writes the header followed by the contents of every per-image CSV
func Merge(w io.Writer, paths []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, path := range paths {
		if err := appendFile(w, path); err != nil {
			return err
		}
	}
	return nil
}

// MergeFile merges per-image CSVs into a single submission at path
func MergeFile(path string, parts []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if err := Merge(bw, parts); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return f.Close()
}

func appendFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to copy %s: %w", path, err)
	}
	return nil
}
