package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/store"
)

type fakeTaskStore struct {
	store.TaskStore
	task *domain.Task
}

func (f *fakeTaskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return f.task, nil
}

type fakeQueueStore struct {
	store.QueueStore
	mu               sync.Mutex
	busy             bool
	released         bool
	completedRun     *domain.Run
	completedRetryAt *time.Time
}

func (f *fakeQueueStore) ConcurrencyKeyBusy(ctx context.Context, key, excludeFiringID string) (bool, error) {
	return f.busy, nil
}

func (f *fakeQueueStore) ReleaseForConcurrency(ctx context.Context, firingID, workerID string, delay time.Duration) error {
	f.mu.Lock()
	f.released = true
	f.mu.Unlock()
	return nil
}

func (f *fakeQueueStore) ExtendLease(ctx context.Context, firingID, workerID string, leaseDuration time.Duration) error {
	return nil
}

func (f *fakeQueueStore) CompleteRun(ctx context.Context, firingID, workerID string, run *domain.Run, retryAt *time.Time) error {
	f.mu.Lock()
	f.completedRun = run
	f.completedRetryAt = retryAt
	f.mu.Unlock()
	return nil
}

type fakeAuditStore struct {
	store.AuditStore
	mu      sync.Mutex
	records []*domain.AuditRecord
}

func (f *fakeAuditStore) RecordAudit(ctx context.Context, rec *domain.AuditRecord) error {
	f.mu.Lock()
	f.records = append(f.records, rec)
	f.mu.Unlock()
	return nil
}

type fakeExecutor struct {
	result ExecutionResult
}

func (f *fakeExecutor) Execute(ctx context.Context, task *domain.Task, attempt int) ExecutionResult {
	return f.result
}

func newTestPool(tasks *fakeTaskStore, queue *fakeQueueStore, audit *fakeAuditStore, exec Executor) *Pool {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewPool(tasks, queue, audit, exec, logger, 1, time.Millisecond, time.Minute)
}

func TestPool_Handle_SuccessDeletesFiringAndAudits(t *testing.T) {
	task := &domain.Task{ID: "t1", Retry: domain.RetryPolicy{MaxRetries: 3, Backoff: domain.BackoffFixed}}
	tasks := &fakeTaskStore{task: task}
	queue := &fakeQueueStore{}
	audit := &fakeAuditStore{}
	exec := &fakeExecutor{result: ExecutionResult{Outcome: domain.OutcomeSuccess, Output: "ok"}}

	p := newTestPool(tasks, queue, audit, exec)
	p.handle(context.Background(), &domain.Firing{ID: "f1", TaskID: "t1", Attempt: 1})

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.completedRun == nil || queue.completedRun.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected a success run to be completed, got %+v", queue.completedRun)
	}
	if queue.completedRetryAt != nil {
		t.Fatalf("expected no retry for a successful run")
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.records) != 1 || audit.records[0].Action != domain.AuditRunSucceeded {
		t.Fatalf("expected one run.succeeded audit record, got %+v", audit.records)
	}
}

func TestPool_Handle_RetryableFailureSchedulesRetry(t *testing.T) {
	task := &domain.Task{ID: "t1", Retry: domain.RetryPolicy{MaxRetries: 3, Backoff: domain.BackoffFixed}}
	tasks := &fakeTaskStore{task: task}
	queue := &fakeQueueStore{}
	audit := &fakeAuditStore{}
	exec := &fakeExecutor{result: ExecutionResult{Outcome: domain.OutcomeRetryableFailure}}

	p := newTestPool(tasks, queue, audit, exec)
	p.handle(context.Background(), &domain.Firing{ID: "f1", TaskID: "t1", Attempt: 1})

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.completedRetryAt == nil {
		t.Fatalf("expected a retry to be scheduled")
	}

	audit.mu.Lock()
	defer audit.mu.Unlock()
	if len(audit.records) != 0 {
		t.Fatalf("expected no audit record for a failure, got %+v", audit.records)
	}
}

func TestPool_Handle_RetryableFailureExhaustedIsTerminal(t *testing.T) {
	task := &domain.Task{ID: "t1", Retry: domain.RetryPolicy{MaxRetries: 2, Backoff: domain.BackoffFixed}}
	tasks := &fakeTaskStore{task: task}
	queue := &fakeQueueStore{}
	audit := &fakeAuditStore{}
	exec := &fakeExecutor{result: ExecutionResult{Outcome: domain.OutcomeRetryableFailure}}

	p := newTestPool(tasks, queue, audit, exec)
	p.handle(context.Background(), &domain.Firing{ID: "f1", TaskID: "t1", Attempt: 2})

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if queue.completedRetryAt != nil {
		t.Fatalf("expected retries exhausted at max attempt, no further retry scheduled")
	}
}

func TestPool_Handle_ConcurrencyKeyBusyReleasesWithoutExecuting(t *testing.T) {
	task := &domain.Task{ID: "t1", ConcurrencyKey: "shared", Retry: domain.RetryPolicy{MaxRetries: 3, Backoff: domain.BackoffFixed}}
	tasks := &fakeTaskStore{task: task}
	queue := &fakeQueueStore{busy: true}
	audit := &fakeAuditStore{}
	var executed bool

	p := newTestPool(tasks, queue, audit, execWrap(func(ctx context.Context, task *domain.Task, attempt int) ExecutionResult {
		executed = true
		return ExecutionResult{Outcome: domain.OutcomeSuccess}
	}))
	p.handle(context.Background(), &domain.Firing{ID: "f1", TaskID: "t1", Attempt: 1})

	if executed {
		t.Fatalf("expected executor not to run while concurrency key is busy")
	}
	queue.mu.Lock()
	defer queue.mu.Unlock()
	if !queue.released {
		t.Fatalf("expected firing to be released for concurrency")
	}
	if queue.completedRun != nil {
		t.Fatalf("expected no run to be recorded for a concurrency-key release")
	}
}

// execWrap adapts a plain function to the Executor interface for tests
// that need to observe whether Execute was invoked.
type execWrap func(ctx context.Context, task *domain.Task, attempt int) ExecutionResult

func (f execWrap) Execute(ctx context.Context, task *domain.Task, attempt int) ExecutionResult {
	return f(ctx, task, attempt)
}
