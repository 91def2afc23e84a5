package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/store"
	"github.com/cwbudde/docdenoise/internal/tune"
)

var (
	tuneIters   int
	tunePop     int
	tuneSeed    int64
	tuneRounds  int
	tuneNoEarly bool
	tuneSave    bool
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Search the levels filter black and white points",
	Long: `Runs rounds of mayfly optimization over the black and white points of the
levels filter, minimizing the pooled RMSE of the filtered training pages
against the ground truth. Rounds stop early when the best RMSE stalls.

With --save the tuned filter is written to the config file.`,
	RunE: runTune,
}

func init() {
	tuneCmd.Flags().IntVar(&tuneIters, "iters", 0, "Optimizer iterations per round (default from config)")
	tuneCmd.Flags().IntVar(&tunePop, "pop", 0, "Population size, at least 20 (default from config)")
	tuneCmd.Flags().Int64Var(&tuneSeed, "seed", 0, "Random seed (default from config)")
	tuneCmd.Flags().IntVar(&tuneRounds, "rounds", 0, "Maximum rounds (default from config)")
	tuneCmd.Flags().BoolVar(&tuneNoEarly, "no-early-stop", false, "Run every round")
	tuneCmd.Flags().BoolVar(&tuneSave, "save", false, "Store the tuned filter in the config file")
	rootCmd.AddCommand(tuneCmd)
}

// tuneOptions merges flags over the configured search settings
func tuneOptions(cmd *cobra.Command) tune.Options {
	tc := cfg.Tune
	opts := tune.Options{
		Iters:  tc.Iters,
		Pop:    tc.Pop,
		Seed:   tc.Seed,
		Rounds: tc.Rounds,
		Convergence: tune.ConvergenceConfig{
			Enabled:   !tuneNoEarly,
			Patience:  tc.Patience,
			Threshold: tc.Threshold,
		},
	}
	if cmd.Flags().Changed("iters") {
		opts.Iters = tuneIters
	}
	if cmd.Flags().Changed("pop") {
		opts.Pop = tunePop
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = tuneSeed
	}
	if cmd.Flags().Changed("rounds") {
		opts.Rounds = tuneRounds
	}
	return opts
}

func runTune(cmd *cobra.Command, args []string) error {
	pairs, err := cfg.Data.TrainingPairs()
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no training pairs in %s and %s", cfg.Data.NoisyDir, cfg.Data.CleanDir)
	}

	opts := tuneOptions(cmd)
	opts.Progress = func(round, rounds int, best float64) {
		fmt.Printf("Round %d/%d: best RMSE %.6f\n", round, rounds, best)
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	res, err := tune.TuneLevels(ctx, dataset.Files(pairs), opts)
	if err != nil {
		if res == nil {
			return err
		}
		// Interrupted: report the best parameters found so far
		fmt.Printf("Interrupted after %d rounds\n", res.Rounds)
	}

	fmt.Printf("\nInitial RMSE: %.6f\n", res.InitialRMSE)
	fmt.Printf("Best RMSE:    %.6f\n", res.BestRMSE)
	if res.InitialRMSE > 0 {
		fmt.Printf("Improvement:  %.1f%%\n", 100*(res.InitialRMSE-res.BestRMSE)/res.InitialRMSE)
	}
	fmt.Printf("Parameters:   %s\n", formatParams(res.Params))
	fmt.Printf("Rounds:       %d (%s)\n", res.Rounds, time.Since(start).Round(time.Millisecond))

	rc := runConfig(cfg.Data.NoisyDir, cfg.Data.CleanDir, "")
	rc.Iters = opts.Iters
	rc.PopSize = opts.Pop
	rc.Seed = opts.Seed
	rc.Rounds = opts.Rounds
	run := store.NewRunRecord(newRunID(), store.KindTune, "levels", res.Params, rc)
	run.RMSE = res.BestRMSE
	run.InitialRMSE = res.InitialRMSE
	run.Images = len(pairs)
	recordRun(run, nil)

	if err != nil {
		return err
	}

	if tuneSave {
		cfg.Filter.Name = "levels"
		cfg.Filter.Params = res.Params
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Saved filter to %s\n", configPath)
	}
	return nil
}
