package krama

import (
	"context"
	"time"
)

// Observer is the interface for observing pipeline execution events.
// Implementations can emit metrics, logs, or traces to their observability
// backend.
//
// All Observer methods are called synchronously during execution, so
// implementations should be fast and non-blocking.
type Observer interface {
	// OnRunStart is called when a pipeline run begins.
	OnRunStart(ctx context.Context, event *RunStartEvent)

	// OnRunEnd is called when a pipeline run completes or fails.
	OnRunEnd(ctx context.Context, event *RunEndEvent)

	// OnStageStart is called when a stage begins execution.
	OnStageStart(ctx context.Context, event *StageStartEvent)

	// OnStageEnd is called when a stage completes (success or failure).
	OnStageEnd(ctx context.Context, event *StageEndEvent)

	// OnIntercept is called when a newly defined callable is wrapped in
	// the memoizing proxy.
	OnIntercept(ctx context.Context, event *InterceptEvent)

	// OnCacheCheck is called for every fingerprinted invocation of an
	// intercepted callable.
	OnCacheCheck(ctx context.Context, event *CacheCheckEvent)
}

// RunStartEvent is emitted when a pipeline run begins.
type RunStartEvent struct {
	RunID     string
	Stages    []string
	StartTime time.Time
}

// RunEndEvent is emitted when a pipeline run completes or fails.
type RunEndEvent struct {
	RunID       string
	Duration    time.Duration
	Error       error // nil if completed
	FailedStage int   // -1 if completed
}

// StageStartEvent is emitted when a stage begins execution.
type StageStartEvent struct {
	RunID     string
	Index     int
	Stage     string
	StartTime time.Time
}

// StageEndEvent is emitted when a stage completes execution.
type StageEndEvent struct {
	RunID    string
	Index    int
	Stage    string
	Duration time.Duration
	Error    error // nil if successful
	Panicked bool  // true if the stage panicked
}

// InterceptEvent is emitted when a callable is wrapped for memoization.
type InterceptEvent struct {
	RunID    string
	Stage    string
	Callable string
}

// CacheCheckEvent is emitted when an intercepted call consults the cache
// store.
type CacheCheckEvent struct {
	RunID    string
	Callable string
	Digest   string // empty when fingerprinting failed
	Hit      bool
	Latency  time.Duration

	// NotCacheable is true when the call could not be fingerprinted or
	// its result could not be serialized; the call executed normally and
	// nothing was stored.
	NotCacheable bool

	// Warn is set on NotCacheable events when the pipeline was configured
	// with WithWarnNotCacheable; observers should then surface the event
	// at warning level instead of debug.
	Warn bool

	// Error holds a store read/write failure; such failures degrade to a
	// miss and never fail the pipeline.
	Error error
}

// NoopObserver is a no-op implementation of Observer.
// Useful as a base for partial implementations.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(ctx context.Context, event *RunStartEvent)     {}
func (NoopObserver) OnRunEnd(ctx context.Context, event *RunEndEvent)         {}
func (NoopObserver) OnStageStart(ctx context.Context, event *StageStartEvent) {}
func (NoopObserver) OnStageEnd(ctx context.Context, event *StageEndEvent)     {}
func (NoopObserver) OnIntercept(ctx context.Context, event *InterceptEvent)   {}
func (NoopObserver) OnCacheCheck(ctx context.Context, event *CacheCheckEvent) {}

// MultiObserver combines multiple observers into one.
// Events are sent to all observers in order.
type MultiObserver struct {
	Observers []Observer
}

func (m *MultiObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	for _, obs := range m.Observers {
		obs.OnRunStart(ctx, event)
	}
}

func (m *MultiObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	for _, obs := range m.Observers {
		obs.OnRunEnd(ctx, event)
	}
}

func (m *MultiObserver) OnStageStart(ctx context.Context, event *StageStartEvent) {
	for _, obs := range m.Observers {
		obs.OnStageStart(ctx, event)
	}
}

func (m *MultiObserver) OnStageEnd(ctx context.Context, event *StageEndEvent) {
	for _, obs := range m.Observers {
		obs.OnStageEnd(ctx, event)
	}
}

func (m *MultiObserver) OnIntercept(ctx context.Context, event *InterceptEvent) {
	for _, obs := range m.Observers {
		obs.OnIntercept(ctx, event)
	}
}

func (m *MultiObserver) OnCacheCheck(ctx context.Context, event *CacheCheckEvent) {
	for _, obs := range m.Observers {
		obs.OnCacheCheck(ctx, event)
	}
}
