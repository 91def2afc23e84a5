// Package dataset locates the competition image sets on disk and pairs
// them up for denoising, measurement and training.
package dataset

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// Layout names the directories of a competition workspace
type Layout struct {
	NoisyDir        string `yaml:"noisy_dir" json:"noisyDir"`
	CleanDir        string `yaml:"clean_dir" json:"cleanDir"`
	DenoisedDir     string `yaml:"denoised_dir" json:"denoisedDir"`
	TestDir         string `yaml:"test_dir" json:"testDir"`
	TestDenoisedDir string `yaml:"test_denoised_dir" json:"testDenoisedDir"`
	Pattern         string `yaml:"pattern" json:"pattern"`
}

// DefaultLayout mirrors the directory names of the competition archive
func DefaultLayout() Layout {
	return Layout{
		NoisyDir:        "train",
		CleanDir:        "train_cleaned",
		DenoisedDir:     "train_denoised",
		TestDir:         "test",
		TestDenoisedDir: "test_denoised",
		Pattern:         "*.png",
	}
}

// FilePair couples two files that describe the same page
type FilePair struct {
	A string `json:"a"`
	B string `json:"b"`
}

// CountError is returned when two file lists cannot be paired
type CountError struct {
	A, B int
}

func (e *CountError) Error() string {
	return fmt.Sprintf("file count mismatch: %d vs %d", e.A, e.B)
}

// Glob returns the sorted files in dir matching pattern
func Glob(dir, pattern string) ([]string, error) {
	fns, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	sort.Strings(fns)
	return fns, nil
}

// NoisyFiles lists the noisy training images
func (l Layout) NoisyFiles() ([]string, error) {
	return Glob(l.NoisyDir, l.Pattern)
}

// GroundTruthFiles lists the cleaned training images
func (l Layout) GroundTruthFiles() ([]string, error) {
	return Glob(l.CleanDir, l.Pattern)
}

// DenoisedFiles names the denoised training images. The names are derived
// from the ground truth list rather than globbed, so they exist before the
// files are written.
func (l Layout) DenoisedFiles() ([]string, error) {
	clean, err := l.GroundTruthFiles()
	if err != nil {
		return nil, err
	}
	return OutputPaths(clean, l.DenoisedDir, ""), nil
}

// TestFiles lists the noisy test images
func (l Layout) TestFiles() ([]string, error) {
	return Glob(l.TestDir, l.Pattern)
}

// TestDenoisedFiles names the denoised test images, one per test image
func (l Layout) TestDenoisedFiles() ([]string, error) {
	test, err := l.TestFiles()
	if err != nil {
		return nil, err
	}
	return OutputPaths(test, l.TestDenoisedDir, ""), nil
}

// OutputPaths maps every input onto dir keeping its base name. A non-empty
// ext replaces the original extension.
func OutputPaths(inputs []string, dir, ext string) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		base := filepath.Base(in)
		if ext != "" {
			base = strings.TrimSuffix(base, filepath.Ext(base)) + ext
		}
		out[i] = filepath.Join(dir, base)
	}
	return out
}

// Stem returns the base name without extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Pair zips two equally long lists
func Pair(a, b []string) ([]FilePair, error) {
	if len(a) != len(b) {
		return nil, &CountError{A: len(a), B: len(b)}
	}
	pairs := make([]FilePair, len(a))
	for i := range a {
		pairs[i] = FilePair{A: a[i], B: b[i]}
	}
	return pairs, nil
}

// TrainingPairs pairs ground truth with noisy images (clean first)
func (l Layout) TrainingPairs() ([]FilePair, error) {
	clean, err := l.GroundTruthFiles()
	if err != nil {
		return nil, err
	}
	noisy, err := l.NoisyFiles()
	if err != nil {
		return nil, err
	}
	return Pair(clean, noisy)
}

// MeasurePairs pairs existing denoised images with the ground truth
func (l Layout) MeasurePairs() ([]FilePair, error) {
	denoised, err := Glob(l.DenoisedDir, l.Pattern)
	if err != nil {
		return nil, err
	}
	clean, err := l.GroundTruthFiles()
	if err != nil {
		return nil, err
	}
	return Pair(denoised, clean)
}

// LoadPair reads both images of a pair in grayscale
func LoadPair(p FilePair) (*raster.Gray, *raster.Gray, error) {
	a, err := raster.Load(p.A)
	if err != nil {
		return nil, nil, err
	}
	b, err := raster.Load(p.B)
	if err != nil {
		return nil, nil, err
	}
	if err := raster.CheckShape(a, b); err != nil {
		return nil, nil, fmt.Errorf("%s vs %s: %w", p.A, p.B, err)
	}
	return a, b, nil
}

// Each loads every pair in order and hands it to fn, stopping on the first error
func Each(ctx context.Context, pairs []FilePair, fn func(p FilePair, a, b *raster.Gray) error) error {
	for _, p := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.Debug("Loading pair", "a", p.A, "b", p.B)

		a, b, err := LoadPair(p)
		if err != nil {
			return err
		}
		if err := fn(p, a, b); err != nil {
			return err
		}
	}
	return nil
}

// Files loads pairs lazily by index. Over TrainingPairs it yields
// (clean, noisy) and serves as a training source.
type Files []FilePair

func (f Files) Len() int { return len(f) }

func (f Files) Load(i int) (*raster.Gray, *raster.Gray, error) {
	return LoadPair(f[i])
}
