package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/docdenoise/internal/denoise"
	"github.com/cwbudde/docdenoise/internal/store"
	"github.com/cwbudde/docdenoise/internal/tune"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the job has finished
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig describes a batch job submitted over the API
type JobConfig struct {
	Kind string `json:"kind"` // denoise, measure, submit, tune

	Filter  string         `json:"filter,omitempty"`
	Params  denoise.Params `json:"params,omitempty"`
	LUTPath string         `json:"lutPath,omitempty"`

	// InputDir holds the pages to denoise/submit, the predictions to
	// measure, or the noisy training pages to tune on.
	InputDir string `json:"inputDir"`

	// CleanDir holds the ground truth (measure, tune)
	CleanDir string `json:"cleanDir,omitempty"`

	OutDir    string `json:"outDir,omitempty"`
	MergePath string `json:"mergePath,omitempty"`
	Pattern   string `json:"pattern,omitempty"`

	Iters   int   `json:"iters,omitempty"`
	PopSize int   `json:"popSize,omitempty"`
	Seed    int64 `json:"seed,omitempty"`
	Rounds  int   `json:"rounds,omitempty"`
}

// runConfig copies the settings into the run ledger form
func (c JobConfig) runConfig(workers int) store.RunConfig {
	return store.RunConfig{
		InputDir: c.InputDir,
		CleanDir: c.CleanDir,
		OutDir:   c.OutDir,
		Pattern:  c.Pattern,
		LUTPath:  c.LUTPath,
		Workers:  workers,
		Iters:    c.Iters,
		PopSize:  c.PopSize,
		Seed:     c.Seed,
		Rounds:   c.Rounds,
	}
}

// Job represents a batch job
type Job struct {
	ID          string         `json:"id"`
	State       JobState       `json:"state"`
	Config      JobConfig      `json:"config"`
	Done        int            `json:"done"`
	Total       int            `json:"total"`
	RMSE        float64        `json:"rmse,omitempty"`
	InitialRMSE float64        `json:"initialRmse,omitempty"`
	Params      denoise.Params `json:"params,omitempty"` // tuned parameters
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime,omitempty"`
	Error       string         `json:"error,omitempty"`

	cancel context.CancelFunc
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new pending job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	c := *job
	return &c
}

// GetJob returns a snapshot of a job
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	c := *job
	return &c, true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		c := *job
		jobs = append(jobs, &c)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartTime.Equal(jobs[j].StartTime) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			c := *job
			runningJobs = append(runningJobs, &c)
		}
	}
	return runningJobs
}

// setCancel registers the function that stops a job's worker
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.UpdateJob(id, func(j *Job) {
		j.cancel = cancel
	})
}

// CancelJob stops a pending or running job. Finished jobs are left untouched.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	job, exists := jm.jobs[id]
	if !exists {
		jm.mu.Unlock()
		return fmt.Errorf("job not found: %s", id)
	}
	if job.State.Terminal() {
		state := job.State
		jm.mu.Unlock()
		return fmt.Errorf("job %s already %s", id, state)
	}
	cancel := job.cancel
	jm.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return nil
}

// Job kinds accepted by the server
var jobKinds = []string{store.KindDenoise, store.KindMeasure, store.KindSubmit, store.KindTune}

// withDefaults fills unset fields
func (c JobConfig) withDefaults() JobConfig {
	if c.Pattern == "" {
		c.Pattern = "*.png"
	}
	if c.Kind == store.KindDenoise && c.Filter == "" {
		c.Filter = "copy"
	}
	if c.Kind == store.KindTune {
		def := tune.DefaultOptions()
		c.Filter = "levels"
		if c.Iters <= 0 {
			c.Iters = def.Iters
		}
		if c.PopSize <= 0 {
			c.PopSize = def.Pop
		}
		if c.Seed == 0 {
			c.Seed = def.Seed
		}
		if c.Rounds <= 0 {
			c.Rounds = def.Rounds
		}
	}
	return c
}

// Validate checks that the job can be run
func (c JobConfig) Validate() error {
	known := false
	for _, k := range jobKinds {
		if c.Kind == k {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown kind %q (valid: %s)", c.Kind, strings.Join(jobKinds, ", "))
	}
	if c.InputDir == "" {
		return fmt.Errorf("inputDir is required")
	}
	switch c.Kind {
	case store.KindDenoise, store.KindSubmit:
		if c.OutDir == "" {
			return fmt.Errorf("outDir is required for %s", c.Kind)
		}
	case store.KindMeasure, store.KindTune:
		if c.CleanDir == "" {
			return fmt.Errorf("cleanDir is required for %s", c.Kind)
		}
	}
	if c.Kind == store.KindDenoise {
		if _, err := denoise.New(c.Filter, c.Params, c.LUTPath); err != nil {
			return err
		}
	}
	if c.Kind == store.KindTune && c.PopSize < 20 {
		return fmt.Errorf("popSize must be >= 20, got %d", c.PopSize)
	}
	return nil
}
