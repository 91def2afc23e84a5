package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/denoise"
	"github.com/cwbudde/docdenoise/internal/store"
)

var (
	lutPasses int
	lutOut    string
	lutNoisy  string
	lutClean  string
)

var trainLUTCmd = &cobra.Command{
	Use:   "train-lut",
	Short: "Train a lookup table denoiser on the training pairs",
	Long: `Learns, for every neighborhood context seen in the noisy training pages,
the mean clean intensity, over a chain of passes that each refine the
output of the previous one. The table is written to a single file that the
lut filter loads.`,
	RunE: runTrainLUT,
}

func init() {
	trainLUTCmd.Flags().IntVar(&lutPasses, "passes", denoise.DefaultPasses, "Number of chained passes")
	trainLUTCmd.Flags().StringVar(&lutOut, "out", "", "Table file (default: filter.lut_path from config, else lut.bin)")
	trainLUTCmd.Flags().StringVar(&lutNoisy, "noisy", "", "Noisy training pages (default from config)")
	trainLUTCmd.Flags().StringVar(&lutClean, "clean", "", "Clean training pages (default from config)")
	rootCmd.AddCommand(trainLUTCmd)
}

func runTrainLUT(cmd *cobra.Command, args []string) error {
	layout := cfg.Data
	if lutNoisy != "" {
		layout.NoisyDir = lutNoisy
	}
	if lutClean != "" {
		layout.CleanDir = lutClean
	}
	out := lutOut
	if out == "" {
		out = cfg.Filter.LUTPath
	}
	if out == "" {
		out = "lut.bin"
	}

	pairs, err := layout.TrainingPairs()
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no training pairs in %s and %s", layout.NoisyDir, layout.CleanDir)
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	mc, err := denoise.TrainLUT(ctx, dataset.Files(pairs), lutPasses, cfg.Workers)
	if err != nil {
		return err
	}
	if err := denoise.SaveLUT(out, mc); err != nil {
		return err
	}

	contexts := 0
	for _, c := range mc.Codecs {
		contexts += c.Table.Len()
	}
	fmt.Printf("Trained %d passes on %d pairs (%d contexts) in %s\n", mc.Passes(), len(pairs), contexts, time.Since(start).Round(time.Millisecond))
	fmt.Printf("Table: %s\n", out)

	rc := runConfig(layout.NoisyDir, layout.CleanDir, "")
	rc.LUTPath = out
	run := store.NewRunRecord(newRunID(), store.KindTrainLUT, "lut", denoise.Params{"passes": float64(mc.Passes())}, rc)
	run.Images = len(pairs)
	recordRun(run, nil)
	return nil
}
