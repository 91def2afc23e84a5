// Package tune searches filter parameters that minimize the pooled RMSE of
// a training set.
package tune

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/cwbudde/docdenoise/internal/denoise"
	"github.com/cwbudde/docdenoise/internal/metric"
	"github.com/cwbudde/docdenoise/internal/raster"
)

// Options configures a parameter search
type Options struct {
	Iters       int   // optimizer iterations per round
	Pop         int   // population size (>= 20)
	Seed        int64 // round r uses Seed+r
	Rounds      int
	Convergence ConvergenceConfig

	// Progress is called after every round with the best RMSE so far
	Progress func(round, rounds int, best float64)
}

// DefaultOptions returns the settings used by the tune command
func DefaultOptions() Options {
	return Options{
		Iters:       50,
		Pop:         20,
		Seed:        42,
		Rounds:      5,
		Convergence: DefaultConvergenceConfig(),
	}
}

// Result is the outcome of a parameter search
type Result struct {
	Params      denoise.Params `json:"params"`
	BestRMSE    float64        `json:"bestRmse"`
	InitialRMSE float64        `json:"initialRmse"` // RMSE of the unfiltered pages
	Rounds      int            `json:"rounds"`
	History     []float64      `json:"history"`
}

// jointHistogram counts (noisy, clean) intensity co-occurrences. The pooled
// RMSE of any per-pixel mapping can be computed from it exactly.
type jointHistogram struct {
	counts [256][256]uint64
	total  uint64
}

func (h *jointHistogram) add(noisy, clean *raster.Gray) {
	for i, v := range noisy.Pix {
		h.counts[v][clean.Pix[i]]++
	}
	h.total += uint64(len(noisy.Pix))
}

// rmse returns the pooled RMSE after mapping each noisy intensity v to m[v]
func (h *jointHistogram) rmse(m []uint8) float64 {
	if h.total == 0 {
		return 0
	}
	var sse float64
	for v := 0; v < 256; v++ {
		out := float64(m[v])
		for c, n := range h.counts[v] {
			if n == 0 {
				continue
			}
			d := (out - float64(c)) / 255
			sse += float64(n) * d * d
		}
	}
	return math.Sqrt(sse / float64(h.total))
}

// ramp is a 1x256 page holding every intensity once
func ramp() *raster.Gray {
	r := raster.NewGray(1, 256)
	for i := range r.Pix {
		r.Pix[i] = uint8(i)
	}
	return r
}

// TuneLevels searches the Levels black and white points over several
// optimizer rounds. src yields (clean, noisy) pairs.
func TuneLevels(ctx context.Context, src denoise.PairSource, opts Options) (*Result, error) {
	if opts.Pop < 20 {
		return nil, fmt.Errorf("population must be >= 20, got %d", opts.Pop)
	}
	if opts.Iters <= 0 || opts.Rounds <= 0 {
		return nil, fmt.Errorf("iterations and rounds must be positive")
	}

	var hist jointHistogram
	var initial metric.Accumulator
	for i := 0; i < src.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		clean, noisy, err := src.Load(i)
		if err != nil {
			return nil, err
		}
		if _, err := initial.Add(fmt.Sprint(i), noisy, clean); err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		hist.add(noisy, clean)
	}
	if hist.total == 0 {
		return nil, fmt.Errorf("no training pixels")
	}

	levels := ramp()
	eval := func(x []float64) float64 {
		return hist.rmse(denoise.NewLevels(x[0], x[1]).Apply(levels).Pix)
	}

	res := &Result{
		Params:      denoise.NewLevels(0, 1).Params(),
		BestRMSE:    initial.RMSE(),
		InitialRMSE: initial.RMSE(),
	}
	slog.Info("Tuning levels", "pixels", hist.total, "initial_rmse", res.InitialRMSE, "rounds", opts.Rounds)

	tracker := NewConvergenceTracker(opts.Convergence)
	lower := []float64{0, 0}
	upper := []float64{1, 1}

	for round := 0; round < opts.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			res.History = tracker.History()
			return res, err
		}

		optimizer := NewMayfly(opts.Iters, opts.Pop, opts.Seed+int64(round))
		best, cost := optimizer.Run(eval, lower, upper, 2)
		res.Rounds = round + 1

		if cost < res.BestRMSE {
			res.BestRMSE = cost
			res.Params = denoise.NewLevels(best[0], best[1]).Params()
		}
		slog.Info("Round complete", "round", round+1, "rmse", cost, "best_rmse", res.BestRMSE)
		if opts.Progress != nil {
			opts.Progress(round+1, opts.Rounds, res.BestRMSE)
		}

		if tracker.Update(res.BestRMSE) {
			break
		}
	}

	res.History = tracker.History()
	return res, nil
}
