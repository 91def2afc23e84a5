package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/denoise"
)

// Watch denoises every file matching pattern that is created or rewritten in
// dir, writing <outDir>/<base>.png once the file has been quiet for the
// debounce window. Failed pages are logged and skipped. Watch returns nil
// when ctx is cancelled.
func (p *Pipeline) Watch(ctx context.Context, f denoise.Filter, dir, pattern, outDir string) error {
	if _, err := filepath.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	if sameDir(dir, outDir) {
		return fmt.Errorf("output directory must differ from the watched directory")
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	slog.Info("Watching for pages", "dir", dir, "pattern", pattern, "filter", f.Name(), "out", outDir)

	pending := make(map[string]time.Time)
	ticker := time.NewTicker(p.opts.Debounce / 2)
	defer ticker.Stop()

	done := 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("Watch stopped", "processed", done)
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if match, _ := filepath.Match(pattern, filepath.Base(event.Name)); !match {
				continue
			}
			slog.Debug("Page event", "path", event.Name, "op", event.Op.String())
			pending[event.Name] = time.Now()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("Watcher error", "error", err)

		case <-ticker.C:
			now := time.Now()
			for path, at := range pending {
				if now.Sub(at) < p.opts.Debounce {
					continue
				}
				delete(pending, path)

				out := filepath.Join(outDir, dataset.Stem(path)+".png")
				if err := denoiseFile(f, path, out); err != nil {
					slog.Warn("Skipping page", "path", path, "error", err)
					continue
				}
				done++
				slog.Info("Denoised", "input", path, "output", out)

				p.mu.Lock()
				if p.opts.Progress != nil {
					p.opts.Progress(done, 0, filepath.Base(path))
				}
				p.mu.Unlock()
			}
		}
	}
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}
