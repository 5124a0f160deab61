// Package store defines the durable store and lease primitive contracts
// consumed by the scheduler, worker, and lifecycle packages. Concrete
// implementations live in subpackages (store/postgres); callers depend
// only on these interfaces so the backing technology can change without
// touching the core.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
)

// ErrDuplicateFiring is returned by Enqueue when the dedupe window
// suppresses the insert — a non-error, caller-visible outcome.
var ErrDuplicateFiring = errors.New("firing suppressed by dedupe window")

// Cursor paginates admin list queries on (createdAt, id), opaque to callers.
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type ListRunsInput struct {
	TaskID  string         // empty means all tasks
	Outcome domain.Outcome // empty means any outcome
	Cursor  *Cursor
	Limit   int
}

type TaskStatsInput struct {
	TaskID string
	Period time.Duration
}

// ListTasksInput filters and paginates the admin task listing.
type ListTasksInput struct {
	Status       domain.Status       // empty means any status
	CreatedBy    string              // empty means any creator
	ScheduleKind domain.ScheduleKind // empty means any kind
	Cursor       *Cursor
	Limit        int
}

type TaskStats struct {
	TaskID       string
	Period       time.Duration
	TotalRuns    int
	SuccessCount int
	FailureCount int
	P50Duration  time.Duration
	P95Duration  time.Duration
}

// AgentStore is CRUD for agent identities.
type AgentStore interface {
	CreateAgent(ctx context.Context, a *domain.Agent) (*domain.Agent, error)
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)
	GetAgentByName(ctx context.Context, name string) (*domain.Agent, error)
	DeleteAgent(ctx context.Context, id string) error
}

// TaskStore is CRUD and lifecycle persistence for tasks.
type TaskStore interface {
	CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error)
	GetTask(ctx context.Context, id string) (*domain.Task, error)
	UpdateTask(ctx context.Context, t *domain.Task) (*domain.Task, error)
	SetTaskStatus(ctx context.Context, id string, status domain.Status) error
	DeleteTask(ctx context.Context, id string) error
	ListActiveTasks(ctx context.Context) ([]*domain.Task, error)
	ListTasksBySchedule(ctx context.Context, kind domain.ScheduleKind, expr string) ([]*domain.Task, error)
	ListTasks(ctx context.Context, input ListTasksInput) ([]*domain.Task, error)
}

// QueueStore is the durable work queue / lease primitive.
type QueueStore interface {
	// Enqueue atomically inserts a firing for (taskID, runAt), respecting the
	// task's dedupe window. Returns ErrDuplicateFiring (not an error the
	// caller should log) when an existing firing suppresses the insert.
	Enqueue(ctx context.Context, taskID string, runAt time.Time) (*domain.Firing, error)

	// LeaseNext atomically claims one eligible firing for workerID, honoring
	// FIFO-by-run_at ordering and skip-over semantics under concurrency. A
	// nil result with a nil error means no eligible firing exists.
	LeaseNext(ctx context.Context, workerID string, leaseDuration time.Duration) (*domain.Firing, error)

	// ExtendLease pushes LockedUntil forward for an in-progress lease held
	// by workerID; it is a no-op (returning domain.ErrLeaseExpired) if the
	// lease has already expired or moved to another worker.
	ExtendLease(ctx context.Context, firingID, workerID string, leaseDuration time.Duration) error

	// CompleteRun records the outcome of one attempt and either removes the
	// firing (terminal outcome) or bumps its run_at for a retry.
	CompleteRun(ctx context.Context, firingID, workerID string, run *domain.Run, retryAt *time.Time) error

	// ConcurrencyKeyBusy reports whether some other leased firing belongs to
	// a task sharing concurrencyKey with excludeFiringID's task. Used for
	// the admission check before execution; empty concurrencyKey is always
	// reported idle.
	ConcurrencyKeyBusy(ctx context.Context, concurrencyKey, excludeFiringID string) (bool, error)

	// ReleaseForConcurrency clears a lease and re-queues the firing a short
	// delay out without bumping attempt or recording a run — the admission
	// check's "try again shortly" outcome, distinct from a retry.
	ReleaseForConcurrency(ctx context.Context, firingID, workerID string, delay time.Duration) error

	// CancelPending deletes unleased firings for a task (update/cancel).
	CancelPending(ctx context.Context, taskID string) error

	// Snooze shifts unleased pending firings for a task forward by delta;
	// leased firings are untouched.
	Snooze(ctx context.Context, taskID string, delta time.Duration) error

	// OldestEligibleAge returns the age of the oldest eligible, unclaimed
	// firing — the scheduler lag observable.
	OldestEligibleAge(ctx context.Context, now time.Time) (time.Duration, error)
}

// RunStore is administrative read access over executed runs.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*domain.Run, error)
	ListRuns(ctx context.Context, input ListRunsInput) ([]*domain.Run, error)
	TaskStats(ctx context.Context, input TaskStatsInput) (*TaskStats, error)

	// FailureRatio is the fraction of runs across all tasks that did not
	// succeed within the trailing window, feeding the failure-rate alert
	// rule. A window with zero runs reports 0, not an error.
	FailureRatio(ctx context.Context, window time.Duration) (float64, error)
}

// AuditStore records and lists immutable audit entries.
type AuditStore interface {
	RecordAudit(ctx context.Context, rec *domain.AuditRecord) error
	ListAudit(ctx context.Context, subjectID string, limit int) ([]*domain.AuditRecord, error)
}

// Store is the full durable store contract; store/postgres.Store implements it.
type Store interface {
	AgentStore
	TaskStore
	QueueStore
	RunStore
	AuditStore
}
