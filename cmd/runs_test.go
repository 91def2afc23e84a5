package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cwbudde/docdenoise/internal/config"
	"github.com/cwbudde/docdenoise/internal/store"
)

// useTestConfig points the commands at a store in dir for the test's duration
func useTestConfig(t *testing.T, dir string) {
	t.Helper()
	original := cfg
	cfg = config.DefaultConfig()
	cfg.Store.Path = dir
	t.Cleanup(func() { cfg = original })
}

func TestSelectRunsForDeletion_ByAge(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{ID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{ID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{ID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{ID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 0, 7, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].ID != "run4" || toDelete[1].ID != "run1" {
		t.Errorf("Expected run4 and run1 oldest first, got %s and %s", toDelete[0].ID, toDelete[1].ID)
	}
}

func TestSelectRunsForDeletion_ByCount(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{ID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{ID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{ID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{ID: "run4", Timestamp: now.AddDate(0, 0, -30)},
	}

	toDelete := selectRunsForDeletion(infos, 2, 0, now)

	if len(toDelete) != 2 {
		t.Fatalf("Expected 2 runs to delete, got %d", len(toDelete))
	}
	if toDelete[0].ID != "run4" || toDelete[1].ID != "run1" {
		t.Error("Expected run4 and run1 to be selected for deletion (oldest)")
	}
}

func TestSelectRunsForDeletion_Combined(t *testing.T) {
	now := time.Now()
	infos := []store.RunInfo{
		{ID: "run1", Timestamp: now.AddDate(0, 0, -10)},
		{ID: "run2", Timestamp: now.AddDate(0, 0, -5)},
		{ID: "run3", Timestamp: now.AddDate(0, 0, -1)},
		{ID: "run4", Timestamp: now.AddDate(0, 0, -30)},
		{ID: "run5", Timestamp: now.AddDate(0, 0, -2)},
	}

	// Age selects run4 and run1, keeping 3 selects the same two
	toDelete := selectRunsForDeletion(infos, 3, 7, now)
	if len(toDelete) != 2 {
		t.Errorf("Expected 2 runs to delete without duplicates, got %d", len(toDelete))
	}

	// Keeping 2 adds run2
	toDelete = selectRunsForDeletion(infos, 2, 7, now)
	if len(toDelete) != 3 {
		t.Errorf("Expected 3 runs to delete, got %d", len(toDelete))
	}
}

func TestFilterKind(t *testing.T) {
	infos := []store.RunInfo{
		{ID: "a", Kind: store.KindMeasure},
		{ID: "b", Kind: store.KindDenoise},
		{ID: "c", Kind: store.KindMeasure},
	}
	if got := filterKind(infos, ""); len(got) != 3 {
		t.Errorf("Empty kind should keep all runs, got %d", len(got))
	}
	got := filterKind(infos, store.KindMeasure)
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("Unexpected filtered runs: %+v", got)
	}
}

func TestGetDirSize(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	content := []byte("Hello, World!")
	if err := os.WriteFile(testFile, content, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	size, err := getDirSize(tmpDir)
	if err != nil {
		t.Fatalf("getDirSize failed: %v", err)
	}

	if size < int64(len(content)) {
		t.Errorf("Expected size >= %d, got %d", len(content), size)
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1023, "1023 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}

	for _, tt := range tests {
		result := formatBytes(tt.bytes)
		if result != tt.expected {
			t.Errorf("formatBytes(%d) = %s, expected %s", tt.bytes, result, tt.expected)
		}
	}
}

func TestRunsListCommand_NoRuns(t *testing.T) {
	useTestConfig(t, t.TempDir())

	if err := runListRuns(listRunsCmd, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
}

func TestRunsListCommand_WithRuns(t *testing.T) {
	tmpDir := t.TempDir()

	st, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	run := store.NewRunRecord("test-run-id", store.KindMeasure, "", nil, store.RunConfig{InputDir: "train_denoised"})
	run.RMSE = 0.04
	if err := st.SaveRun(run); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	useTestConfig(t, tmpDir)

	if err := runListRuns(listRunsCmd, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := runShowRun(showRunCmd, []string{"test-run-id"}); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if err := runShowRun(showRunCmd, []string{"missing"}); err == nil {
		t.Error("Expected error for missing run")
	}
}

func TestRunsCleanCommand_NoFlags(t *testing.T) {
	useTestConfig(t, t.TempDir())

	keepLast = 0
	olderThanDays = 0

	if err := runCleanRuns(cleanRunsCmd, nil); err == nil {
		t.Error("Expected error when no flags specified")
	}
}

func TestRunsCleanCommand_WithForce(t *testing.T) {
	tmpDir := t.TempDir()

	st, err := store.NewFSStore(tmpDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	old := store.NewRunRecord("old-run", store.KindDenoise, "median", nil, store.RunConfig{})
	old.Timestamp = time.Now().AddDate(0, 0, -30)
	if err := st.SaveRun(old); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}
	fresh := store.NewRunRecord("fresh-run", store.KindDenoise, "median", nil, store.RunConfig{})
	if err := st.SaveRun(fresh); err != nil {
		t.Fatalf("Failed to save run: %v", err)
	}

	useTestConfig(t, tmpDir)

	keepLast = 0
	olderThanDays = 7
	forceClean = true
	defer func() {
		olderThanDays = 0
		forceClean = false
	}()

	if err := runCleanRuns(cleanRunsCmd, nil); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if _, err := st.LoadRun("old-run"); err == nil {
		t.Error("Expected old run to be deleted")
	}
	if _, err := st.LoadRun("fresh-run"); err != nil {
		t.Errorf("Fresh run should be kept: %v", err)
	}
}
