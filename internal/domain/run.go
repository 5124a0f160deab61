package domain

import (
	"errors"
	"time"
)

var ErrRunNotFound = errors.New("run not found")

// Outcome is the explicit result a pipeline executor reports for an attempt,
// replacing exception-driven control flow: the worker branches on this value
// rather than on a recovered panic or an error type assertion.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeRetryableFailure Outcome = "retryable_failure"
	OutcomeTerminalFailure  Outcome = "terminal_failure"
)

// Run is one executed attempt of a Firing.
type Run struct {
	ID       string
	TaskID   string
	FiringID string

	LockedBy string // worker identity that held the lease during this attempt
	Attempt  int

	StartedAt  time.Time
	FinishedAt time.Time

	Outcome Outcome
	Output  string
	Error   string

	CreatedAt time.Time
}

// Done reports whether the run has finished (either outcome).
func (r *Run) Done() bool {
	return !r.FinishedAt.IsZero()
}

// Succeeded reports whether the run finished with OutcomeSuccess.
func (r *Run) Succeeded() bool {
	return r.Outcome == OutcomeSuccess
}
