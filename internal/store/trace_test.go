package store

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTraceWriter_WriteAndRead(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-123"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}

	entries := []TraceEntry{
		{Name: "2", Output: "out/2.png", RMSE: 0.08, PSNR: 21.9, Pixels: 540 * 258, Timestamp: time.Now()},
		{Name: "3", Output: "out/3.png", Timestamp: time.Now()},
		{Name: "5", RMSE: 0.05, PSNR: 26.0, Pixels: 420 * 540, Timestamp: time.Now()},
	}
	for _, entry := range entries {
		if err := writer.Write(entry); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	tracePath := filepath.Join(tmpDir, "runs", runID, "trace.jsonl")
	if writer.Path() != tracePath {
		t.Errorf("Path = %s, want %s", writer.Path(), tracePath)
	}

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	got, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(got) != len(entries) {
		t.Fatalf("Expected %d entries, got %d", len(entries), len(got))
	}
	for i, entry := range got {
		want := entries[i]
		if entry.Name != want.Name || entry.Output != want.Output || entry.RMSE != want.RMSE ||
			entry.PSNR != want.PSNR || entry.Pixels != want.Pixels {
			t.Errorf("Entry %d: got %+v, want %+v", i, entry, want)
		}
	}
}

func TestTraceWriter_Append(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-append"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	if err := writer.Write(TraceEntry{Name: "1", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	writer.Close()

	writer, err = NewTraceWriter(tmpDir, runID, true)
	if err != nil {
		t.Fatalf("Failed to create trace writer in append mode: %v", err)
	}
	if err := writer.Write(TraceEntry{Name: "2", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	writer.Close()

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 2 || entries[0].Name != "1" || entries[1].Name != "2" {
		t.Errorf("Expected entries 1 and 2, got %+v", entries)
	}
}

func TestTraceWriter_Flush(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-flush"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	if err := writer.Write(TraceEntry{Name: "1", Timestamp: time.Now()}); err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	if err := writer.Flush(); err != nil {
		t.Fatalf("Failed to flush: %v", err)
	}

	// Data should be on disk now (even without closing)
	data, err := os.ReadFile(writer.Path())
	if err != nil {
		t.Fatalf("Failed to read trace file: %v", err)
	}
	if len(data) == 0 {
		t.Error("Trace file is empty after flush")
	}
}

func TestTraceReader_ReadIteratively(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-iter"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	for i := 0; i < 5; i++ {
		if err := writer.Write(TraceEntry{Name: string(rune('a' + i)), Pixels: i, Timestamp: time.Now()}); err != nil {
			t.Fatalf("Failed to write entry: %v", err)
		}
	}
	writer.Close()

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	count := 0
	for {
		entry, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Failed to read entry: %v", err)
		}
		if entry.Pixels != count {
			t.Errorf("Entry %d: expected pixels %d, got %d", count, count, entry.Pixels)
		}
		count++
	}

	if count != 5 {
		t.Errorf("Expected to read 5 entries, got %d", count)
	}
}

func TestTraceReader_NotFound(t *testing.T) {
	_, err := NewTraceReader(t.TempDir(), "nonexistent-run")
	if err == nil {
		t.Fatal("Expected error for nonexistent trace file")
	}
	if !isNotFoundError(err) {
		t.Errorf("Expected NotFoundError, got: %v", err)
	}
}

func TestTraceReader_CorruptLine(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "runs", "bad", "trace.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{\"name\":\"1\"}\nnot json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	reader, err := NewTraceReader(tmpDir, "bad")
	if err != nil {
		t.Fatal(err)
	}
	defer reader.Close()

	if _, err := reader.ReadAll(); err == nil {
		t.Error("Expected error for corrupt trace line")
	}
}

func TestDeleteTrace(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-delete"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	writer.Write(TraceEntry{Name: "1", Timestamp: time.Now()})
	writer.Close()

	if err := DeleteTrace(tmpDir, runID); err != nil {
		t.Fatalf("Failed to delete trace: %v", err)
	}
	if _, err := os.Stat(writer.Path()); !os.IsNotExist(err) {
		t.Error("Trace file still exists after delete")
	}

	// Deleting again is not an error
	if err := DeleteTrace(tmpDir, runID); err != nil {
		t.Errorf("DeleteTrace should not error for nonexistent file, got: %v", err)
	}
}

func TestTraceWriter_ConcurrentWrites(t *testing.T) {
	tmpDir := t.TempDir()
	runID := "test-run-concurrent"

	writer, err := NewTraceWriter(tmpDir, runID, false)
	if err != nil {
		t.Fatalf("Failed to create trace writer: %v", err)
	}
	defer writer.Close()

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(i int) {
			if err := writer.Write(TraceEntry{Pixels: i, Timestamp: time.Now()}); err != nil {
				t.Errorf("Concurrent write failed: %v", err)
			}
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	writer.Flush()

	reader, err := NewTraceReader(tmpDir, runID)
	if err != nil {
		t.Fatalf("Failed to create trace reader: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read entries: %v", err)
	}
	if len(entries) != 10 {
		t.Errorf("Expected 10 entries, got %d", len(entries))
	}
}

// Helper function to check if error is NotFoundError
func isNotFoundError(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

func TestRecord(t *testing.T) {
	for _, driver := range []string{"fs", "sqlite"} {
		t.Run(driver, func(t *testing.T) {
			path := t.TempDir()
			if driver == "sqlite" {
				path = filepath.Join(path, "runs.db")
			}
			st, err := Open(driver, path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			defer st.Close()

			run := NewRunRecord("rec-1", KindMeasure, "", nil, RunConfig{InputDir: "pred", CleanDir: "truth"})
			run.RMSE = 0.07
			run.Images = 2
			entries := []TraceEntry{
				{Name: "1", RMSE: 0.05, Pixels: 4, Timestamp: time.Now()},
				{Name: "2", RMSE: 0.09, Pixels: 4, Timestamp: time.Now()},
			}
			if err := Record(st, run, entries); err != nil {
				t.Fatalf("Record failed: %v", err)
			}

			loaded, err := st.LoadRun("rec-1")
			if err != nil {
				t.Fatalf("LoadRun failed: %v", err)
			}
			if loaded.Images != 2 || loaded.RMSE != 0.07 {
				t.Errorf("loaded = %+v", loaded)
			}

			reader, err := NewTraceReader(st.BaseDir(), "rec-1")
			if err != nil {
				t.Fatalf("NewTraceReader failed: %v", err)
			}
			defer reader.Close()
			got, err := reader.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != 2 || got[1].Name != "2" {
				t.Errorf("trace = %+v", got)
			}
		})
	}
}
