package server

import (
	"encoding/json"
	"fmt"
	"image/png"
	"math"
	"net/http"
	"path/filepath"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/metric"
	"github.com/cwbudde/docdenoise/internal/raster"
)

// finite maps infinities (PSNR of identical pages) to zero so values can be
// encoded as JSON
func finite(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// diffPage renders |prediction - truth| for one page of a job
func diffPage(cfg JobConfig, name string) (*raster.Gray, error) {
	// Only the base name is used so requests cannot leave the job directories
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) {
		return nil, fmt.Errorf("invalid page name")
	}

	pred, err := findPage(cfg.InputDir, cfg.Pattern, name)
	if err != nil {
		return nil, err
	}
	truth, err := findPage(cfg.CleanDir, cfg.Pattern, name)
	if err != nil {
		return nil, err
	}

	a, b, err := dataset.LoadPair(dataset.FilePair{A: pred, B: truth})
	if err != nil {
		return nil, err
	}
	return metric.DiffImage(a, b)
}

// findPage locates the file in dir whose stem is name
func findPage(dir, pattern, name string) (string, error) {
	files, err := dataset.Glob(dir, pattern)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if dataset.Stem(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("page %s not found in %s", name, dir)
}

func writePNG(w http.ResponseWriter, g *raster.Gray) error {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	return png.Encode(w, g.ToImage())
}
