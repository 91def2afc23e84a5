package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cwbudde/docdenoise/internal/dataset"
	"github.com/cwbudde/docdenoise/internal/denoise"
	"github.com/cwbudde/docdenoise/internal/pipeline"
	"github.com/cwbudde/docdenoise/internal/store"
	"github.com/cwbudde/docdenoise/internal/tune"
)

// outcome is what a finished job contributes to its run record
type outcome struct {
	filter      string
	params      denoise.Params
	rmse        float64
	initialRMSE float64
	images      int
	entries     []store.TraceEntry
}

// runJob executes a job in the background and records it in st when it
// completes. st may be nil.
func runJob(ctx context.Context, jm *JobManager, st store.Store, jobID string, workers int) error {
	job, exists := jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if ctx.Err() != nil {
		markJobCancelled(jm, jobID)
		return ctx.Err()
	}

	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}
	jm.broadcaster.Broadcast(ProgressEvent{JobID: jobID, State: StateRunning, Timestamp: time.Now()})

	cfg := job.Config
	slog.Info("Starting job", "job_id", jobID, "kind", cfg.Kind, "input", cfg.InputDir)

	p := pipeline.New(pipeline.Options{
		Workers: workers,
		Progress: func(done, total int, name string) {
			reportProgress(jm, jobID, done, total, name, 0)
		},
	})

	start := time.Now()
	var out *outcome
	var err error
	switch cfg.Kind {
	case store.KindDenoise:
		out, err = runDenoise(ctx, p, cfg)
	case store.KindMeasure:
		out, err = runMeasure(ctx, p, cfg)
	case store.KindSubmit:
		out, err = runSubmit(ctx, p, cfg)
	case store.KindTune:
		out, err = runTune(ctx, jm, jobID, cfg)
	default:
		err = fmt.Errorf("unknown kind: %s", cfg.Kind)
	}

	if err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			markJobCancelled(jm, jobID)
		} else {
			markJobFailed(jm, jobID, err)
		}
		return err
	}

	if st != nil {
		run := store.NewRunRecord(jobID, cfg.Kind, out.filter, out.params, cfg.runConfig(workers))
		run.RMSE = out.rmse
		run.InitialRMSE = out.initialRMSE
		run.Images = out.images
		if err := store.Record(st, run, out.entries); err != nil {
			// The job's own output is on disk, only the ledger entry is missing
			slog.Error("Failed to record run", "job_id", jobID, "error", err)
		}
	}

	endTime := time.Now()
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.RMSE = out.rmse
		j.InitialRMSE = out.initialRMSE
		j.Params = out.params
		j.EndTime = &endTime
	}); err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"kind", cfg.Kind,
		"elapsed", time.Since(start),
		"images", out.images,
		"rmse", out.rmse,
	)

	final, _ := jm.GetJob(jobID)
	jm.broadcaster.Broadcast(jobEvent(final))
	return nil
}

// reportProgress stores and broadcasts a progress step
func reportProgress(jm *JobManager, jobID string, done, total int, name string, rmse float64) {
	var ev ProgressEvent
	jm.UpdateJob(jobID, func(j *Job) {
		j.Done = done
		j.Total = total
		if rmse > 0 {
			j.RMSE = rmse
		}
		ev = ProgressEvent{
			JobID:     jobID,
			State:     j.State,
			Done:      done,
			Total:     total,
			Name:      name,
			RMSE:      j.RMSE,
			Timestamp: time.Now(),
		}
	})
	jm.broadcaster.Broadcast(ev)
}

func runDenoise(ctx context.Context, p *pipeline.Pipeline, cfg JobConfig) (*outcome, error) {
	f, err := denoise.New(cfg.Filter, cfg.Params, cfg.LUTPath)
	if err != nil {
		return nil, err
	}
	inputs, err := dataset.Glob(cfg.InputDir, cfg.Pattern)
	if err != nil {
		return nil, err
	}
	outputs, err := p.Denoise(ctx, f, inputs, cfg.OutDir)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]store.TraceEntry, len(inputs))
	for i, in := range inputs {
		entries[i] = store.TraceEntry{Name: dataset.Stem(in), Output: outputs[i], Timestamp: now}
	}
	return &outcome{filter: f.Name(), params: cfg.Params, images: len(outputs), entries: entries}, nil
}

func runMeasure(ctx context.Context, p *pipeline.Pipeline, cfg JobConfig) (*outcome, error) {
	layout := dataset.Layout{DenoisedDir: cfg.InputDir, CleanDir: cfg.CleanDir, Pattern: cfg.Pattern}
	pairs, err := layout.MeasurePairs()
	if err != nil {
		return nil, err
	}
	report, err := p.Measure(ctx, pairs)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]store.TraceEntry, len(report.Images))
	for i, e := range report.Images {
		entries[i] = store.TraceEntry{Name: e.Name, RMSE: e.RMSE(), PSNR: finite(e.PSNR()), Pixels: e.Pixels, Timestamp: now}
	}
	return &outcome{rmse: report.RMSE, images: len(report.Images), entries: entries}, nil
}

func runSubmit(ctx context.Context, p *pipeline.Pipeline, cfg JobConfig) (*outcome, error) {
	inputs, err := dataset.Glob(cfg.InputDir, cfg.Pattern)
	if err != nil {
		return nil, err
	}
	parts, err := p.Submit(ctx, inputs, cfg.OutDir, cfg.MergePath)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	entries := make([]store.TraceEntry, len(parts))
	for i, part := range parts {
		entries[i] = store.TraceEntry{Name: dataset.Stem(inputs[i]), Output: part, Timestamp: now}
	}
	return &outcome{images: len(parts), entries: entries}, nil
}

func runTune(ctx context.Context, jm *JobManager, jobID string, cfg JobConfig) (*outcome, error) {
	layout := dataset.Layout{NoisyDir: cfg.InputDir, CleanDir: cfg.CleanDir, Pattern: cfg.Pattern}
	pairs, err := layout.TrainingPairs()
	if err != nil {
		return nil, err
	}

	opts := tune.DefaultOptions()
	opts.Iters = cfg.Iters
	opts.Pop = cfg.PopSize
	opts.Seed = cfg.Seed
	opts.Rounds = cfg.Rounds
	opts.Progress = func(round, rounds int, best float64) {
		reportProgress(jm, jobID, round, rounds, fmt.Sprintf("round %d", round), best)
	}

	res, err := tune.TuneLevels(ctx, dataset.Files(pairs), opts)
	if err != nil {
		return nil, err
	}
	return &outcome{
		filter:      "levels",
		params:      res.Params,
		rmse:        res.BestRMSE,
		initialRMSE: res.InitialRMSE,
		images:      len(pairs),
	}, nil
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	slog.Error("Job failed", "job_id", jobID, "error", err)
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(jobEvent(job))
	}
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	slog.Info("Job cancelled", "job_id", jobID)
	if job, ok := jm.GetJob(jobID); ok {
		jm.broadcaster.Broadcast(jobEvent(job))
	}
}
