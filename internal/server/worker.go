package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/cwbudde/soilfit/internal/fit"
	"github.com/cwbudde/soilfit/internal/metrics"
)

// runJob executes a fitting job. Progress is broadcast after every starting
// point; the context is checked between starting points.
func runJob(ctx context.Context, jm *JobManager, jobID string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		session   *fit.Session
		cancelled bool
	)
	err := jm.UpdateJob(jobID, func(j *Job) {
		if j.State == StateCancelled {
			cancelled = true
			return
		}
		j.State = StateRunning
		j.cancel = cancel
		session = j.session
	})
	if err != nil {
		return err
	}
	if cancelled {
		slog.Info("Job cancelled before start", "job_id", jobID)
		return context.Canceled
	}
	if session == nil {
		err := fmt.Errorf("job %s has no session", jobID)
		markJobFailed(jm, jobID, err)
		return err
	}

	method := session.Method.Name()
	slog.Info("Starting job", "job_id", jobID, "method", method, "samples", session.Curve.Len())

	// Work on a copy so the stored session keeps its original observer
	run := *session
	run.Options.Observer = func(t fit.Trial) {
		metrics.ObserveStart(method)
		recordTrial(jm, jobID, t)
	}

	start := time.Now()
	result, err := run.Run(ctx)
	elapsed := time.Since(start)

	switch {
	case errors.Is(err, context.Canceled):
		metrics.ObserveFit(method, elapsed, metrics.OutcomeCancelled)
		markJobCancelled(jm, jobID)
		return err
	case err != nil:
		metrics.ObserveFit(method, elapsed, metrics.OutcomeError)
		markJobFailed(jm, jobID, err)
		return err
	}
	metrics.ObserveFit(method, elapsed, metrics.OutcomeSuccess)

	endTime := time.Now()
	var event ProgressEvent
	err = jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Result = result
		j.EndTime = &endTime
		j.cancel = nil
		event = newProgressEvent(j, nil)
	})
	if err != nil {
		return err
	}

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", elapsed,
		"method", result.Method,
		"mse", result.MSE,
		"params", result.Params.String(),
		"start_index", result.StartIndex,
	)

	jm.broadcaster.Broadcast(event)
	return nil
}

// recordTrial folds a finished start into the job and broadcasts the progress
func recordTrial(jm *JobManager, jobID string, t fit.Trial) {
	var event ProgressEvent
	err := jm.UpdateJob(jobID, func(j *Job) {
		j.Completed++
		j.Total = t.Total
		if j.Best == nil || math.IsNaN(j.Best.MSE) || t.MSE < j.Best.MSE {
			best := t
			j.Best = &best
		}
		event = newProgressEvent(j, &t)
	})
	if err != nil {
		slog.Warn("Dropping progress update", "job_id", jobID, "error", err)
		return
	}
	jm.broadcaster.Broadcast(event)
}

// markJobFailed marks a job as failed with an error message
func markJobFailed(jm *JobManager, jobID string, err error) {
	endTime := time.Now()
	var event ProgressEvent
	if uerr := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
		j.cancel = nil
		event = newProgressEvent(j, nil)
	}); uerr != nil {
		slog.Error("Failed to mark job failed", "job_id", jobID, "error", uerr)
		return
	}
	jm.broadcaster.Broadcast(event)
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func markJobCancelled(jm *JobManager, jobID string) {
	endTime := time.Now()
	var event ProgressEvent
	if err := jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
		j.cancel = nil
		event = newProgressEvent(j, nil)
	}); err != nil {
		slog.Error("Failed to mark job cancelled", "job_id", jobID, "error", err)
		return
	}
	jm.broadcaster.Broadcast(event)
	slog.Info("Job cancelled", "job_id", jobID)
}
