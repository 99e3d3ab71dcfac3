package krama

import (
	"errors"
	"fmt"
)

// StageError reports the failure of one pipeline stage. It carries the
// zero-based stage index so callers and the history ledger can attribute
// the failure; remaining stages never run.
type StageError struct {
	// RunID identifies the pipeline run.
	RunID string

	// Index is the zero-based position of the failing stage.
	Index int

	// Stage is the failing stage's name.
	Stage string

	// Cause is the underlying error.
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("[%s] stage %d (%s) failed: %v", e.RunID, e.Index, e.Stage, e.Cause)
}

func (e *StageError) Unwrap() error {
	return e.Cause
}

// StagePanicError represents a panic recovered inside a stage.
type StagePanicError struct {
	*StageError
	PanicValue any
	Stack      []byte
}

func (e *StagePanicError) Error() string {
	return fmt.Sprintf("panic in stage %d (%s): %v", e.Index, e.Stage, e.PanicValue)
}

func (e *StagePanicError) Unwrap() error {
	return e.StageError
}

// HistoryError wraps a ledger read/write failure. It is surfaced to the
// caller but does not affect cache correctness: the run's cache entries
// remain valid even when its summary could not be recorded.
type HistoryError struct {
	RunID string
	Cause error
}

func (e *HistoryError) Error() string {
	return fmt.Sprintf("[%s] history ledger: %v", e.RunID, e.Cause)
}

func (e *HistoryError) Unwrap() error {
	return e.Cause
}

// Common sentinel errors.
var (
	// ErrUnknownStage is returned when a registry lookup names no stage.
	ErrUnknownStage = errors.New("unknown stage")

	// ErrNotFunc is returned when DefineFunc is given a non-function value.
	ErrNotFunc = errors.New("value is not a function")

	// ErrNotCallable is returned by Namespace.Call when the named value is
	// missing or not a function.
	ErrNotCallable = errors.New("name is not callable")

	// ErrStagePanicked marks stage failures caused by a recovered panic.
	ErrStagePanicked = errors.New("stage panicked")
)
