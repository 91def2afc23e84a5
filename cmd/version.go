package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sys/cpu"

	"github.com/cwbudde/docdenoise/internal/metric"
)

var version = "0.1.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("docdenoise version %s\n", version)
		fmt.Printf("go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("ssd kernel: %s\n", metric.ActiveBackend)
		switch runtime.GOARCH {
		case "amd64", "386":
			fmt.Printf("cpu: sse2=%t avx2=%t avx512f=%t\n", cpu.X86.HasSSE2, cpu.X86.HasAVX2, cpu.X86.HasAVX512F)
		case "arm64":
			fmt.Printf("cpu: asimd=%t\n", cpu.ARM64.HasASIMD)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
