package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/store"
)

var (
	submitIn    string
	submitOut   string
	submitMerge string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Write the submission file for denoised test pages",
	Long: `Writes one CSV of "<page>_<row>_<col>,<value>" rows per denoised test
page, then merges them into a single submission file with an id,value
header. Pass --merge "" to skip the merged file.`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitIn, "in", "", "Denoised test pages (default from config)")
	submitCmd.Flags().StringVar(&submitOut, "out", "", "Directory for per-page CSVs (default: next to the pages)")
	submitCmd.Flags().StringVar(&submitMerge, "merge", "submission.csv", "Merged submission file")
	rootCmd.AddCommand(submitCmd)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	in := cfg.Data.TestDenoisedDir
	if submitIn != "" {
		in = submitIn
	}
	out := in
	if submitOut != "" {
		out = submitOut
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

	parts, err := newPipeline().Submit(ctx, inputs, out, submitMerge)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d page CSVs to %s\n", len(parts), out)
	if submitMerge != "" {
		fmt.Printf("Submission: %s\n", submitMerge)
	}

	run := store.NewRunRecord(newRunID(), store.KindSubmit, "", nil, runConfig(in, "", out))
	run.Images = len(parts)
	entries := make([]store.TraceEntry, len(parts))
	for i, p := range parts {
		entries[i] = store.TraceEntry{Name: dataset.Stem(inputs[i]), Output: p, Timestamp: time.Now()}
	}
	recordRun(run, entries)
	return nil
}
