// Package river provides integration between krama pipelines and River queue.
//
// This package provides a worker adapter that executes krama pipelines as
// River jobs. It handles:
//   - Resolving stage names from a registry into an ordered pipeline
//   - Context propagation for graceful shutdown
//   - Error classification for River's retry logic
package river

import (
	"context"
	"errors"
	"fmt"

	"github.com/riverqueue/river"

	"krama/pkg/krama"
)

// PipelineArgs are the job arguments for a pipeline run: the ordered list
// of stage names to resolve and execute.
type PipelineArgs struct {
	Stages []string `json:"stages"`
}

func (PipelineArgs) Kind() string { return "krama_pipeline" }

// PipelineWorker is a River worker that executes a krama pipeline.
// Stage names from the job args are resolved against the registry, so the
// set of runnable stages is fixed at worker construction time.
type PipelineWorker struct {
	river.WorkerDefaults[PipelineArgs]

	// Pipeline is the configured pipeline to execute jobs with.
	Pipeline *krama.Pipeline

	// Registry maps the job's stage names to stages.
	Registry *krama.Registry
}

// NewPipelineWorker creates a worker that runs jobs through the given
// pipeline, resolving stage names against the given registry.
func NewPipelineWorker(pipeline *krama.Pipeline, registry *krama.Registry) *PipelineWorker {
	return &PipelineWorker{Pipeline: pipeline, Registry: registry}
}

// Work resolves the job's stage names and executes them as one pipeline
// run. An unknown stage name is a permanent failure: retrying cannot fix
// it, so the job is cancelled rather than retried.
func (w *PipelineWorker) Work(ctx context.Context, job *river.Job[PipelineArgs]) error {
	stages, err := w.Registry.Resolve(job.Args.Stages...)
	if err != nil {
		if errors.Is(err, krama.ErrUnknownStage) {
			return river.JobCancel(err)
		}
		return err
	}

	run, err := w.Pipeline.Run(ctx, stages...)
	if err != nil {
		return classifyError(run.ID, err)
	}

	return nil
}

// classifyError converts pipeline errors to River-appropriate errors.
// This helps River decide whether to retry or discard the job.
func classifyError(runID string, err error) error {
	// Panics could be due to bad data; wrap with context but allow retry.
	var panicErr *krama.StagePanicError
	if errors.As(err, &panicErr) {
		return fmt.Errorf("panic in stage %s (run %s): %w", panicErr.Stage, runID, err)
	}

	// Context cancellation - don't retry, job was cancelled
	if errors.Is(err, context.Canceled) {
		return river.JobCancel(err)
	}

	// Deadline exceeded - allow retry with backoff
	if errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Default: return error as-is, let River retry
	return err
}
