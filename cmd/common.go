package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/cwbudde/docdenoise/internal/config"
	"github.com/cwbudde/docdenoise/internal/denoise"
	"github.com/cwbudde/docdenoise/internal/pipeline"
	"github.com/cwbudde/docdenoise/internal/store"
)

// filterFlags are shared by the commands that apply a filter
type filterFlags struct {
	name    string
	params  map[string]string
	lutPath string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.name, "filter", "", "Filter name (default from config)")
	cmd.Flags().StringToStringVar(&f.params, "param", nil, "Filter parameter, repeatable (e.g. --param radius=2)")
	cmd.Flags().StringVar(&f.lutPath, "lut", "", "Lookup table file for the lut filter")
}

// resolve merges the flags over the configured filter
func (f *filterFlags) resolve(base config.FilterConfig) (config.FilterConfig, error) {
	fc := base
	if f.name != "" && f.name != fc.Name {
		fc.Name = f.name
		fc.Params = nil
	}
	if f.lutPath != "" {
		fc.LUTPath = f.lutPath
	}
	if len(f.params) > 0 {
		params, err := parseParams(f.params)
		if err != nil {
			return fc, err
		}
		merged := denoise.Params{}
		for k, v := range fc.Params {
			merged[k] = v
		}
		for k, v := range params {
			merged[k] = v
		}
		fc.Params = merged
	}
	return fc, nil
}

// parseParams converts key=value flag pairs into filter parameters
func parseParams(raw map[string]string) (denoise.Params, error) {
	params := make(denoise.Params, len(raw))
	for k, v := range raw {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", k, err)
		}
		params[k] = f
	}
	return params, nil
}

// formatParams renders parameters in a stable order
func formatParams(p denoise.Params) string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	s := ""
	for i, k := range keys {
		if i > 0 {
			s += " "
		}
		s += fmt.Sprintf("%s=%g", k, p[k])
	}
	return s
}

// signalContext is cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openStore() (store.Store, error) {
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}
	return st, nil
}

// newPipeline returns a pipeline that logs progress every few pages
func newPipeline() *pipeline.Pipeline {
	return pipeline.New(pipeline.Options{
		Workers: cfg.Workers,
		Progress: func(done, total int, name string) {
			if done == total || done%25 == 0 {
				slog.Info("Progress", "done", done, "total", total, "last", name)
			}
		},
	})
}

// recordRun stores a finished CLI run in the ledger. Failures are logged,
// the command's own output is already on disk.
func recordRun(run *store.RunRecord, entries []store.TraceEntry) {
	st, err := openStore()
	if err != nil {
		slog.Warn("Run not recorded", "error", err)
		return
	}
	defer st.Close()

	if err := store.Record(st, run, entries); err != nil {
		slog.Warn("Run not recorded", "error", err)
		return
	}
	slog.Info("Run recorded", "id", run.ID, "kind", run.Kind)
}

func newRunID() string {
	return uuid.New().String()
}

// runConfig captures the settings of a CLI run
func runConfig(in, clean, out string) store.RunConfig {
	return store.RunConfig{
		InputDir: in,
		CleanDir: clean,
		OutDir:   out,
		Pattern:  cfg.Data.Pattern,
		Workers:  cfg.Workers,
	}
}
