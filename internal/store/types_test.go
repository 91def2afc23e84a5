package store

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"
)

func TestRunRecord_JSONSerialization(t *testing.T) {
	original := createTestRun("job-42")
	original.Kind = KindTune
	original.Filter = "levels"
	original.Params = map[string]float64{"black": 0.12, "white": 0.91}

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for _, key := range []string{`"id":"job-42"`, `"kind":"tune"`, `"config":{`} {
		if !strings.Contains(string(data), key) {
			t.Errorf("Expected %s in %s", key, data)
		}
	}
	// Zero InitialRMSE is omitted
	if strings.Contains(string(data), `"initialRmse"`) {
		t.Errorf("Expected initialRmse to be omitted: %s", data)
	}

	var decoded RunRecord
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.Params["black"] != 0.12 || decoded.Config.InputDir != "train_denoised" {
		t.Errorf("Round trip lost data: %+v", decoded)
	}
}

func TestRunRecord_Validate_Valid(t *testing.T) {
	for _, kind := range Kinds {
		run := createTestRun("id")
		run.Kind = kind
		run.Filter = "copy"
		run.Params = map[string]float64{"black": 0}
		if err := run.Validate(); err != nil {
			t.Errorf("Kind %s: expected valid run, got %v", kind, err)
		}
	}
}

func TestRunRecord_Validate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *RunRecord)
		field  string
	}{
		{"empty id", func(r *RunRecord) { r.ID = "" }, "ID"},
		{"unknown kind", func(r *RunRecord) { r.Kind = "render" }, "Kind"},
		{"denoise without filter", func(r *RunRecord) { r.Kind = KindDenoise }, "Filter"},
		{"tune without params", func(r *RunRecord) { r.Kind = KindTune; r.Filter = "levels" }, "Params"},
		{"negative rmse", func(r *RunRecord) { r.RMSE = -0.1 }, "RMSE"},
		{"nan rmse", func(r *RunRecord) { r.RMSE = math.NaN() }, "RMSE"},
		{"negative initial rmse", func(r *RunRecord) { r.InitialRMSE = -1 }, "InitialRMSE"},
		{"negative images", func(r *RunRecord) { r.Images = -1 }, "Images"},
		{"zero timestamp", func(r *RunRecord) { r.Timestamp = time.Time{} }, "Timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := createTestRun("id")
			tt.mutate(run)

			err := run.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Expected field %s, got %s (%v)", tt.field, verr.Field, err)
			}
		})
	}
}

func TestRunRecord_ToInfo(t *testing.T) {
	run := createTestRun("abc")
	run.Filter = "median"

	info := run.ToInfo()
	if info.ID != "abc" || info.Kind != KindMeasure || info.Filter != "median" ||
		info.RMSE != run.RMSE || info.Images != run.Images || !info.Timestamp.Equal(run.Timestamp) {
		t.Errorf("ToInfo mismatch: %+v", info)
	}
}

func TestNewRunRecord(t *testing.T) {
	before := time.Now()
	run := NewRunRecord("id", KindDenoise, "white", nil, RunConfig{InputDir: "test"})

	if run.Timestamp.Before(before) {
		t.Error("Timestamp should be set to now")
	}
	if run.Kind != KindDenoise || run.Filter != "white" || run.Config.InputDir != "test" {
		t.Errorf("Unexpected record: %+v", run)
	}
	if err := run.Validate(); err != nil {
		t.Errorf("Expected valid record, got %v", err)
	}
}

func TestNotFoundError(t *testing.T) {
	err := &NotFoundError{ID: "x"}
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should match ErrNotFound")
	}
	if err.Error() != "run not found: x" {
		t.Errorf("Unexpected message: %s", err.Error())
	}
	if ErrNotFound.Error() != "run not found" {
		t.Errorf("Unexpected message: %s", ErrNotFound.Error())
	}
}
