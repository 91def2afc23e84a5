package store

import (
	"fmt"
	"math"
	"time"
)

// Run kinds
const (
	KindDenoise  = "denoise"
	KindMeasure  = "measure"
	KindSubmit   = "submit"
	KindTune     = "tune"
	KindTrainLUT = "train-lut"
)

// Kinds lists every run kind
var Kinds = []string{KindDenoise, KindMeasure, KindSubmit, KindTune, KindTrainLUT}

// RunConfig holds the inputs of a run (copy of the job settings).
// This avoids import cycles with the server package.
type RunConfig struct {
	InputDir string `json:"inputDir,omitempty"`
	CleanDir string `json:"cleanDir,omitempty"`
	OutDir   string `json:"outDir,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	LUTPath  string `json:"lutPath,omitempty"`
	Workers  int    `json:"workers,omitempty"`
	Iters    int    `json:"iters,omitempty"`
	PopSize  int    `json:"popSize,omitempty"`
	Seed     int64  `json:"seed,omitempty"`
	Rounds   int    `json:"rounds,omitempty"`
}

// RunRecord is the ledger entry of one finished batch run.
type RunRecord struct {
	// ID is the unique identifier (the job ID for server runs)
	ID string `json:"id"`

	// Kind is one of Kinds
	Kind string `json:"kind"`

	// Filter and Params name the denoising filter applied or tuned
	Filter string             `json:"filter,omitempty"`
	Params map[string]float64 `json:"params,omitempty"`

	// RMSE is the pooled error of the run's output (measure, tune)
	RMSE float64 `json:"rmse"`

	// InitialRMSE is the error before filtering (tune)
	InitialRMSE float64 `json:"initialRmse,omitempty"`

	// Images is the number of pages processed
	Images int `json:"images"`

	Timestamp time.Time `json:"timestamp"`

	Config RunConfig `json:"config"`
}

// RunInfo contains metadata about a run, for listings.
type RunInfo struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Filter    string    `json:"filter,omitempty"`
	RMSE      float64   `json:"rmse"`
	Images    int       `json:"images"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRunRecord creates a record stamped with the current time.
func NewRunRecord(id, kind, filter string, params map[string]float64, config RunConfig) *RunRecord {
	return &RunRecord{
		ID:        id,
		Kind:      kind,
		Filter:    filter,
		Params:    params,
		Timestamp: time.Now(),
		Config:    config,
	}
}

// ToInfo converts a full RunRecord to RunInfo (metadata only).
func (r *RunRecord) ToInfo() RunInfo {
	return RunInfo{
		ID:        r.ID,
		Kind:      r.Kind,
		Filter:    r.Filter,
		RMSE:      r.RMSE,
		Images:    r.Images,
		Timestamp: r.Timestamp,
	}
}

// Validate checks if the record has valid data.
func (r *RunRecord) Validate() error {
	if r.ID == "" {
		return &ValidationError{Field: "ID", Reason: "cannot be empty"}
	}
	known := false
	for _, k := range Kinds {
		if r.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return &ValidationError{Field: "Kind", Reason: fmt.Sprintf("unknown kind %q", r.Kind)}
	}
	switch r.Kind {
	case KindDenoise, KindTune:
		if r.Filter == "" {
			return &ValidationError{Field: "Filter", Reason: "cannot be empty for " + r.Kind}
		}
	}
	if r.Kind == KindTune && len(r.Params) == 0 {
		return &ValidationError{Field: "Params", Reason: "cannot be empty for tune"}
	}
	if r.RMSE < 0 || math.IsNaN(r.RMSE) {
		return &ValidationError{Field: "RMSE", Reason: "must be a non-negative number"}
	}
	if r.InitialRMSE < 0 || math.IsNaN(r.InitialRMSE) {
		return &ValidationError{Field: "InitialRMSE", Reason: "must be a non-negative number"}
	}
	if r.Images < 0 {
		return &ValidationError{Field: "Images", Reason: "cannot be negative"}
	}
	if r.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a run record validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
