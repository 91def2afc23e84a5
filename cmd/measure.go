package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/docdenoise/internal/metric"
	"github.com/cwbudde/docdenoise/internal/store"
)

var (
	measurePred  string
	measureTruth string
	measureJSON  bool
	measureQuiet bool
)

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Measure denoised pages against the ground truth",
	Long: `Compares every denoised training page with its cleaned counterpart and
reports the per-page and pooled root mean squared error on the [0,1]
intensity scale, which is the competition score.`,
	RunE: runMeasure,
}

func init() {
	measureCmd.Flags().StringVar(&measurePred, "pred", "", "Denoised pages (default from config)")
	measureCmd.Flags().StringVar(&measureTruth, "truth", "", "Ground truth pages (default from config)")
	measureCmd.Flags().BoolVar(&measureJSON, "json", false, "Print the report as JSON")
	measureCmd.Flags().BoolVarP(&measureQuiet, "quiet", "q", false, "Only print the pooled RMSE")
	rootCmd.AddCommand(measureCmd)
}

func runMeasure(cmd *cobra.Command, args []string) error {
	layout := cfg.Data
	if measurePred != "" {
		layout.DenoisedDir = measurePred
	}
	if measureTruth != "" {
		layout.CleanDir = measureTruth
	}

	pairs, err := layout.MeasurePairs()
	if err != nil {
		return err
	}
	if len(pairs) == 0 {
		return fmt.Errorf("no pages to measure in %s", layout.DenoisedDir)
	}

	ctx, stop := signalContext()
	defer stop()

	report, err := newPipeline().Measure(ctx, pairs)
	if err != nil {
		return err
	}

	switch {
	case measureJSON:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	case measureQuiet:
		fmt.Printf("%.6f\n", report.RMSE)
	default:
		printReport(report)
	}

	run := store.NewRunRecord(newRunID(), store.KindMeasure, "", nil, runConfig(layout.DenoisedDir, layout.CleanDir, ""))
	run.RMSE = report.RMSE
	run.Images = len(report.Images)
	entries := make([]store.TraceEntry, len(report.Images))
	for i, e := range report.Images {
		psnr := e.PSNR()
		if math.IsInf(psnr, 0) {
			psnr = 0
		}
		entries[i] = store.TraceEntry{Name: e.Name, RMSE: e.RMSE(), PSNR: psnr, Pixels: e.Pixels, Timestamp: time.Now()}
	}
	recordRun(run, entries)
	return nil
}

func printReport(report *metric.Report) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PAGE\tRMSE\tPSNR\tPIXELS")
	fmt.Fprintln(w, "----\t----\t----\t------")
	for _, e := range report.Images {
		psnr := "inf"
		if p := e.PSNR(); !math.IsInf(p, 0) {
			psnr = fmt.Sprintf("%.2f", p)
		}
		fmt.Fprintf(w, "%s\t%.6f\t%s\t%d\n", e.Name, e.RMSE(), psnr, e.Pixels)
	}
	w.Flush()

	s := report.Summary
	fmt.Printf("\nPages: %d\n", s.Count)
	fmt.Printf("Per-page RMSE: mean %.6f, stddev %.6f, min %.6f, max %.6f\n", s.Mean, s.StdDev, s.Min, s.Max)
	fmt.Printf("Pooled RMSE: %.6f\n", report.RMSE)
}
