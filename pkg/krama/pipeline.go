// Package krama executes ordered pipelines of stages that share one
// mutable namespace, transparently memoizing the results of
// namespace-defined callables so reruns skip unchanged computation.
//
// After each stage completes, callables the stage defined are wrapped in a
// caching proxy: subsequent invocations are fingerprinted and routed
// through the cache store before the underlying body executes. On a hit
// the cached value is returned and the body does not run; its side effects
// are not reproduced. Calls that cannot be fingerprinted or serialized
// execute normally and are never treated as failures.
package krama

import (
	"context"
	"errors"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"krama/pkg/cache"
	"krama/pkg/fingerprint"
	"krama/pkg/history"
)

// Pipeline runs ordered stage lists. A Pipeline is configured once and may
// execute any number of runs; each run gets a fresh namespace that is
// discarded when the run ends.
//
// A run moves from idle through running(stage index) to exactly one of
// completed or failed(stage index, error). Stages execute strictly in the
// given order on the calling goroutine; stage N+1 never begins before
// stage N completes.
type Pipeline struct {
	store            cache.Store
	ledger           *history.Ledger
	fp               *fingerprint.Fingerprinter
	obs              Observer
	warnNotCacheable bool
}

// New creates a Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		fp:  fingerprint.New(),
		obs: NoopObserver{},
	}
	for _, opt := range opts {
		opt.apply(p)
	}
	return p
}

// Run executes the stages in order against one shared namespace.
//
// The first stage error aborts all remaining stages and is returned as a
// *StageError carrying the failing stage's index; duration is measured up
// to the failure point. The finalized run summary is appended to the
// ledger when one is configured; a ledger failure is surfaced as a
// *HistoryError joined with any stage error, and does not affect cache
// state.
func (p *Pipeline) Run(ctx context.Context, stages ...Stage) (*history.Run, error) {
	names := make([]string, len(stages))
	for i, s := range stages {
		names[i] = s.Name()
	}

	run := &history.Run{
		ID:          uuid.NewString(),
		Stages:      names,
		StartedAt:   time.Now(),
		FailedStage: -1,
	}
	ns := NewNamespace()

	p.obs.OnRunStart(ctx, &RunStartEvent{
		RunID:     run.ID,
		Stages:    names,
		StartTime: run.StartedAt,
	})

	var stageErr error
	for i, stage := range stages {
		if err := ctx.Err(); err != nil {
			stageErr = &StageError{RunID: run.ID, Index: i, Stage: stage.Name(), Cause: err}
			run.FailedStage = i
			break
		}

		start := time.Now()
		p.obs.OnStageStart(ctx, &StageStartEvent{
			RunID:     run.ID,
			Index:     i,
			Stage:     stage.Name(),
			StartTime: start,
		})

		err := p.runStage(ctx, run.ID, i, stage, ns)

		var panicked *StagePanicError
		p.obs.OnStageEnd(ctx, &StageEndEvent{
			RunID:    run.ID,
			Index:    i,
			Stage:    stage.Name(),
			Duration: time.Since(start),
			Error:    err,
			Panicked: errors.As(err, &panicked),
		})

		if err != nil {
			stageErr = err
			run.FailedStage = i
			break
		}

		p.intercept(ctx, run.ID, stage.Name(), ns)
	}

	run.FinishedAt = time.Now()
	if stageErr != nil {
		run.Outcome = history.OutcomeFailed
		run.Error = stageErr.Error()
	} else {
		run.Outcome = history.OutcomeCompleted
	}

	p.obs.OnRunEnd(ctx, &RunEndEvent{
		RunID:       run.ID,
		Duration:    run.Duration(),
		Error:       stageErr,
		FailedStage: run.FailedStage,
	})

	var histErr error
	if p.ledger != nil {
		if err := p.ledger.Append(ctx, run); err != nil {
			histErr = &HistoryError{RunID: run.ID, Cause: err}
		}
	}

	return run, errors.Join(stageErr, histErr)
}

// runStage executes one stage, converting panics and errors into a
// *StageError attributed to the stage's index.
func (p *Pipeline) runStage(ctx context.Context, runID string, index int, stage Stage, ns *Namespace) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &StagePanicError{
				StageError: &StageError{
					RunID: runID,
					Index: index,
					Stage: stage.Name(),
					Cause: ErrStagePanicked,
				},
				PanicValue: r,
				Stack:      debug.Stack(),
			}
		}
	}()

	if err := stage.Run(ctx, ns); err != nil {
		return &StageError{RunID: runID, Index: index, Stage: stage.Name(), Cause: err}
	}
	return nil
}

// intercept wraps the callables the finished stage journaled so that later
// invocations route through the fingerprinter and cache store. Non-func
// bindings pass through untouched.
func (p *Pipeline) intercept(ctx context.Context, runID, stageName string, ns *Namespace) {
	for _, name := range ns.drainJournal() {
		if p.store == nil {
			continue
		}

		v, ok := ns.Lookup(name)
		if !ok {
			continue
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Func || rv.IsNil() {
			continue
		}

		ns.replace(name, p.memoize(ctx, runID, name, v))
		p.obs.OnIntercept(ctx, &InterceptEvent{
			RunID:    runID,
			Stage:    stageName,
			Callable: name,
		})
	}
}
