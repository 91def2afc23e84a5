package main

import (
	"github.com/spf13/cobra"
)

var (
	watchFilter filterFlags
	watchDir    string
	watchOut    string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Denoise pages as they appear in a directory",
	Long: `Watches a directory and denoises every new or rewritten page matching the
data pattern, writing the result into the output directory. Runs until
interrupted.`,
	RunE: runWatch,
}

func init() {
	watchFilter.register(watchCmd)
	watchCmd.Flags().StringVar(&watchDir, "dir", "", "Directory to watch (default: test set from config)")
	watchCmd.Flags().StringVar(&watchOut, "out", "", "Output directory (default: test output from config)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := cfg.Data.TestDir
	if watchDir != "" {
		dir = watchDir
	}
	out := cfg.Data.TestDenoisedDir
	if watchOut != "" {
		out = watchOut
	}

	fc, err := watchFilter.resolve(cfg.Filter)
	if err != nil {
		return err
	}
	f, err := fc.Build()
	if err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	return newPipeline().Watch(ctx, f, dir, cfg.Data.Pattern, out)
}
