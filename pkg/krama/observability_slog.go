package krama

import (
	"context"
	"log/slog"
)

// SlogObserver implements Observer using Go's structured logging (log/slog).
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	observer := krama.NewSlogObserver(logger, slog.LevelInfo)
//	pipe := krama.New(krama.WithObserver(observer))
type SlogObserver struct {
	logger   *slog.Logger
	minLevel slog.Level
}

// NewSlogObserver creates an observer that logs to the given slog.Logger.
// Only events at or above minLevel will be logged.
func NewSlogObserver(logger *slog.Logger, minLevel slog.Level) *SlogObserver {
	return &SlogObserver{logger: logger, minLevel: minLevel}
}

func (o *SlogObserver) OnRunStart(ctx context.Context, event *RunStartEvent) {
	if o.minLevel <= slog.LevelInfo {
		o.logger.InfoContext(ctx, "pipeline run started",
			slog.String("run_id", event.RunID),
			slog.Int("stages", len(event.Stages)),
		)
	}
}

func (o *SlogObserver) OnRunEnd(ctx context.Context, event *RunEndEvent) {
	if event.Error != nil {
		if o.minLevel <= slog.LevelError {
			o.logger.ErrorContext(ctx, "pipeline run failed",
				slog.String("run_id", event.RunID),
				slog.Duration("duration", event.Duration),
				slog.Int("failed_stage", event.FailedStage),
				slog.String("error", event.Error.Error()),
			)
		}
	} else {
		if o.minLevel <= slog.LevelInfo {
			o.logger.InfoContext(ctx, "pipeline run completed",
				slog.String("run_id", event.RunID),
				slog.Duration("duration", event.Duration),
			)
		}
	}
}

func (o *SlogObserver) OnStageStart(ctx context.Context, event *StageStartEvent) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "stage started",
			slog.String("run_id", event.RunID),
			slog.Int("index", event.Index),
			slog.String("stage", event.Stage),
		)
	}
}

func (o *SlogObserver) OnStageEnd(ctx context.Context, event *StageEndEvent) {
	if event.Error != nil {
		if o.minLevel <= slog.LevelWarn {
			o.logger.WarnContext(ctx, "stage failed",
				slog.String("run_id", event.RunID),
				slog.Int("index", event.Index),
				slog.String("stage", event.Stage),
				slog.Duration("duration", event.Duration),
				slog.Bool("panicked", event.Panicked),
				slog.String("error", event.Error.Error()),
			)
		}
	} else {
		if o.minLevel <= slog.LevelDebug {
			o.logger.DebugContext(ctx, "stage completed",
				slog.String("run_id", event.RunID),
				slog.Int("index", event.Index),
				slog.String("stage", event.Stage),
				slog.Duration("duration", event.Duration),
			)
		}
	}
}

func (o *SlogObserver) OnIntercept(ctx context.Context, event *InterceptEvent) {
	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "callable intercepted",
			slog.String("run_id", event.RunID),
			slog.String("stage", event.Stage),
			slog.String("callable", event.Callable),
		)
	}
}

func (o *SlogObserver) OnCacheCheck(ctx context.Context, event *CacheCheckEvent) {
	if event.NotCacheable {
		if event.Warn && o.minLevel <= slog.LevelWarn {
			o.logger.WarnContext(ctx, "call not cacheable, executing without cache",
				slog.String("run_id", event.RunID),
				slog.String("callable", event.Callable),
			)
		} else if o.minLevel <= slog.LevelDebug {
			o.logger.DebugContext(ctx, "call not cacheable, executing without cache",
				slog.String("run_id", event.RunID),
				slog.String("callable", event.Callable),
			)
		}
		return
	}

	if o.minLevel <= slog.LevelDebug {
		o.logger.DebugContext(ctx, "cache check",
			slog.String("run_id", event.RunID),
			slog.String("callable", event.Callable),
			slog.String("digest", event.Digest),
			slog.Bool("hit", event.Hit),
			slog.Duration("latency", event.Latency),
		)
	}
}
