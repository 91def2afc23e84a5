package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/store"
)

var (
	denoiseFilter filterFlags
	denoiseIn     string
	denoiseOut    string
	denoiseSet    string
)

var denoiseCmd = &cobra.Command{
	Use:   "denoise",
	Short: "Denoise a set of pages",
	Long: `Applies the configured filter to every page of an image set and writes
the results as PNG files with the same base names.

By default the test set is denoised into the test output directory; use
--set train to denoise the training pages for measurement.`,
	RunE: runDenoise,
}

func init() {
	denoiseFilter.register(denoiseCmd)
	denoiseCmd.Flags().StringVar(&denoiseSet, "set", "test", "Image set from the data layout: train or test")
	denoiseCmd.Flags().StringVar(&denoiseIn, "in", "", "Input directory (overrides --set)")
	denoiseCmd.Flags().StringVar(&denoiseOut, "out", "", "Output directory (overrides --set)")
	rootCmd.AddCommand(denoiseCmd)
}

// setDirs returns the input and output directories of a layout image set
func setDirs(layout dataset.Layout, set string) (string, string, error) {
	switch set {
	case "train":
		return layout.NoisyDir, layout.DenoisedDir, nil
	case "test":
		return layout.TestDir, layout.TestDenoisedDir, nil
	default:
		return "", "", fmt.Errorf("unknown set %q (valid: train, test)", set)
	}
}

func runDenoise(cmd *cobra.Command, args []string) error {
	in, out, err := setDirs(cfg.Data, denoiseSet)
	if err != nil {
		return err
	}
	if denoiseIn != "" {
		in = denoiseIn
	}
	if denoiseOut != "" {
		out = denoiseOut
	}

	fc, err := denoiseFilter.resolve(cfg.Filter)
	if err != nil {
		return err
	}
	f, err := fc.Build()
	if err != nil {
		return err
	}

	inputs, err := dataset.Glob(in, cfg.Data.Pattern)
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return fmt.Errorf("no pages matching %s in %s", cfg.Data.Pattern, in)
	}

	ctx, stop := signalContext()
	defer stop()

	start := time.Now()
	outputs, err := newPipeline().Denoise(ctx, f, inputs, out)
	if err != nil {
		return err
	}
	fmt.Printf("Denoised %d pages with %s into %s (%s)\n", len(outputs), f.Name(), out, time.Since(start).Round(time.Millisecond))

	rc := runConfig(in, "", out)
	rc.LUTPath = fc.LUTPath
	run := store.NewRunRecord(newRunID(), store.KindDenoise, f.Name(), fc.Params, rc)
	run.Images = len(outputs)
	entries := make([]store.TraceEntry, len(outputs))
	for i, o := range outputs {
		entries[i] = store.TraceEntry{Name: dataset.Stem(inputs[i]), Output: o, Timestamp: time.Now()}
	}
	recordRun(run, entries)
	return nil
}
