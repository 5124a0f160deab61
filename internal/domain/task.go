package domain

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrTaskNotFound       = errors.New("task not found")
	ErrInvalidSchedule    = errors.New("invalid schedule expression")
	ErrInvalidTimezone    = errors.New("invalid IANA timezone")
	ErrTaskCanceled       = errors.New("task is canceled")
	ErrTaskNotActive      = errors.New("task is not active")
	ErrTaskNotPaused      = errors.New("task is not paused")
	ErrInvalidPriority    = errors.New("priority must be between 1 and 9")
	ErrInvalidRetryPolicy = errors.New("invalid retry policy")
)

// ScheduleKind identifies how a task's firings are produced.
type ScheduleKind string

const (
	ScheduleCron  ScheduleKind = "cron"
	ScheduleRRule ScheduleKind = "rrule"
	ScheduleOnce  ScheduleKind = "once"
	ScheduleEvent ScheduleKind = "event"
)

// Status is the task's position in the lifecycle state machine.
type Status string

const (
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusCanceled Status = "canceled"
)

// Backoff selects the retry delay curve a worker applies between attempts.
type Backoff string

const (
	BackoffExponentialJitter Backoff = "exponential_jitter"
	BackoffLinear            Backoff = "linear"
	BackoffFixed             Backoff = "fixed"
)

// RetryPolicy bounds how many times a firing is retried and how the delay grows.
type RetryPolicy struct {
	MaxRetries int
	Backoff    Backoff
}

// Task is a declarative, agent-owned unit of recurring or one-shot work.
type Task struct {
	ID          string
	Title       string
	Description string
	CreatedBy   string // Agent.ID

	ScheduleKind ScheduleKind
	ScheduleExpr string
	Timezone     string

	// Payload is an opaque, schema-free document handed verbatim to the
	// pipeline executor. The core never introspects it.
	Payload json.RawMessage

	Status   Status
	Priority int // 1 (highest) .. 9 (lowest)

	DedupeKey           string
	DedupeWindowSeconds int

	Retry RetryPolicy

	ConcurrencyKey string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Validate checks the invariants a task must satisfy at create/update
// time: cron/rrule/once require a non-empty expression, priority is in
// range, and the retry policy is well formed. Timezone and schedule
// expression syntax are checked by the schedule evaluator, not here.
func (t *Task) Validate() error {
	switch t.ScheduleKind {
	case ScheduleCron, ScheduleRRule, ScheduleOnce:
		if t.ScheduleExpr == "" {
			return ErrInvalidSchedule
		}
	case ScheduleEvent:
		// schedule_expr is the topic name; may be empty only if the caller
		// truly wants to never receive events, which is allowed but odd.
	default:
		return ErrInvalidSchedule
	}

	if t.Priority < 1 || t.Priority > 9 {
		return ErrInvalidPriority
	}

	if t.Retry.MaxRetries < 0 {
		return ErrInvalidRetryPolicy
	}
	switch t.Retry.Backoff {
	case BackoffExponentialJitter, BackoffLinear, BackoffFixed:
	default:
		return ErrInvalidRetryPolicy
	}

	return nil
}

// IsRecurring reports whether the scheduler loop should re-arm a timer for
// this task after it fires.
func (t *Task) IsRecurring() bool {
	return t.ScheduleKind == ScheduleCron || t.ScheduleKind == ScheduleRRule
}
