package denoise

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/cwbudde/docdenoise/internal/raster"
)

// PairSource yields the clean and noisy page of training pair i
type PairSource interface {
	Len() int
	Load(i int) (clean, noisy *raster.Gray, err error)
}

// TrainLUT trains a chain of passes codecs. Each pass visits every pair,
// restoring the noisy page through the already trained passes first.
// Pairs are processed by workers goroutines with private tables that are
// merged when the pass completes.
func TrainLUT(ctx context.Context, src PairSource, passes, workers int) (*MultiCodec, error) {
	if passes <= 0 {
		return nil, fmt.Errorf("passes must be positive, got %d", passes)
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	mc := NewMultiCodec(passes)
	n := src.Len()
	slog.Info("Training lookup table", "pairs", n, "passes", passes, "workers", workers)

	for pass := 0; pass < passes; pass++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		codec := mc.Codecs[pass]
		g, gctx := errgroup.WithContext(ctx)
		indices := make(chan int)

		var mu sync.Mutex
		g.Go(func() error {
			defer close(indices)
			for i := 0; i < n; i++ {
				select {
				case indices <- i:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})

		for w := 0; w < workers; w++ {
			g.Go(func() error {
				local := NewTable()
				for i := range indices {
					clean, noisy, err := src.Load(i)
					if err != nil {
						return err
					}
					slog.Debug("Training pair", "pass", pass+1, "of", passes, "index", i)
					if err := updateTable(local, codec, clean, mc.Restore(noisy, pass)); err != nil {
						return fmt.Errorf("pair %d: %w", i, err)
					}
				}
				mu.Lock()
				codec.Table.Merge(local)
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		slog.Info("Lookup table pass complete", "pass", pass+1, "of", passes, "contexts", codec.Table.Len())
	}

	return mc, nil
}

// MemoryPairs is a PairSource over pages already in memory
type MemoryPairs struct {
	Clean []*raster.Gray
	Noisy []*raster.Gray
}

func (m MemoryPairs) Len() int { return len(m.Clean) }

func (m MemoryPairs) Load(i int) (*raster.Gray, *raster.Gray, error) {
	return m.Clean[i], m.Noisy[i], nil
}
