// Package history provides the durable, append-only ledger of pipeline run
// summaries.
package history

import "time"

// Outcome is the terminal state of a pipeline run.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Run is one pipeline run summary. A Run is created when the pipeline
// starts, finalized exactly once at completion or first fatal stage error,
// and never mutated after it has been appended to the ledger.
type Run struct {
	// ID uniquely identifies the run.
	ID string

	// Stages are the ordered stage names the run was asked to execute.
	Stages []string

	// StartedAt and FinishedAt bound the run. For failed runs FinishedAt
	// marks the failure point.
	StartedAt  time.Time
	FinishedAt time.Time

	// Outcome is OutcomeCompleted or OutcomeFailed.
	Outcome Outcome

	// FailedStage is the zero-based index of the failing stage, or -1 for
	// completed runs.
	FailedStage int

	// Error holds the failure message for failed runs.
	Error string
}

// Duration is the elapsed wall time of the run, measured up to the failure
// point for failed runs.
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
