// Package pipeline runs the batch stages of the denoising workflow over
// image sets: filtering pages to disk, measuring predictions against ground
// truth, and writing submission rows.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/denoise"
	"github.com/cwbudde/docdenoise/internal/metric"
	"github.com/cwbudde/docdenoise/internal/raster"
	"github.com/cwbudde/docdenoise/internal/submit"
)

// Options configures a Pipeline
type Options struct {
	// Workers bounds concurrent pages (0 = GOMAXPROCS)
	Workers int

	// Progress is called after each page. Calls are serialized.
	Progress func(done, total int, name string)

	// Debounce is how long a watched file must be quiet before it is processed
	Debounce time.Duration
}

// Pipeline runs batch stages with shared options
type Pipeline struct {
	opts Options
	mu   sync.Mutex
}

// New creates a pipeline
func New(opts Options) *Pipeline {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 250 * time.Millisecond
	}
	return &Pipeline{opts: opts}
}

// progress tracks completed pages of one batch
type progress struct {
	p     *Pipeline
	total int
	done  int
}

func (pr *progress) step(name string) {
	pr.p.mu.Lock()
	defer pr.p.mu.Unlock()
	pr.done++
	if pr.p.opts.Progress != nil {
		pr.p.opts.Progress(pr.done, pr.total, name)
	}
}

// forEach runs fn for every index with bounded parallelism, stopping on the first error
func (p *Pipeline) forEach(ctx context.Context, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Workers)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Denoise applies f to every input and writes <outDir>/<base>.png.
// It returns the output paths in input order.
func (p *Pipeline) Denoise(ctx context.Context, f denoise.Filter, inputs []string, outDir string) ([]string, error) {
	outputs := dataset.OutputPaths(inputs, outDir, ".png")
	slog.Info("Denoising", "filter", f.Name(), "images", len(inputs), "out", outDir, "workers", p.opts.Workers)

	pr := &progress{p: p, total: len(inputs)}
	err := p.forEach(ctx, len(inputs), func(_ context.Context, i int) error {
		if err := denoiseFile(f, inputs[i], outputs[i]); err != nil {
			return err
		}
		slog.Debug("Denoised", "input", inputs[i], "output", outputs[i])
		pr.step(dataset.Stem(inputs[i]))
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Denoising complete", "images", len(outputs))
	return outputs, nil
}

func denoiseFile(f denoise.Filter, in, out string) error {
	page, err := raster.Load(in)
	if err != nil {
		return err
	}
	if err := raster.Save(out, f.Apply(page)); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	return nil
}

// Measure compares every prediction (A) with its ground truth (B) and pools
// the error. Images are reported in pair order.
func (p *Pipeline) Measure(ctx context.Context, pairs []dataset.FilePair) (*metric.Report, error) {
	slog.Info("Measuring", "pairs", len(pairs), "workers", p.opts.Workers)

	images := make([]metric.ImageError, len(pairs))
	pr := &progress{p: p, total: len(pairs)}
	err := p.forEach(ctx, len(pairs), func(_ context.Context, i int) error {
		pred, truth, err := dataset.LoadPair(pairs[i])
		if err != nil {
			return err
		}
		name := dataset.Stem(pairs[i].A)
		e, err := metric.Compare(name, pred, truth)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		images[i] = e
		slog.Debug("Measured", "name", name, "rmse", e.RMSE())
		pr.step(name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	report := metric.NewReport(images)
	slog.Info("Measure complete", "rmse", report.RMSE, "images", len(images))
	return report, nil
}

// Submit writes <outDir>/<base>.csv for every input page, then merges them
// into mergePath when it is not empty. It returns the per-page CSV paths.
func (p *Pipeline) Submit(ctx context.Context, inputs []string, outDir, mergePath string) ([]string, error) {
	parts := dataset.OutputPaths(inputs, outDir, ".csv")
	slog.Info("Writing submission rows", "images", len(inputs), "out", outDir)

	pr := &progress{p: p, total: len(inputs)}
	err := p.forEach(ctx, len(inputs), func(_ context.Context, i int) error {
		page, err := raster.Load(inputs[i])
		if err != nil {
			return err
		}
		name := dataset.Stem(inputs[i])
		if err := submit.WriteFile(parts[i], name, page); err != nil {
			return err
		}
		pr.step(name)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if mergePath != "" {
		if err := submit.MergeFile(mergePath, parts); err != nil {
			return nil, err
		}
		slog.Info("Submission merged", "path", mergePath, "parts", len(parts))
	}
	return parts, nil
}
