// Package worker runs M parallel lease-loop goroutines per process: each
// repeatedly leases the next eligible firing, applies concurrency-key
// admission control, executes the task's pipeline, and records the
// resulting outcome — retrying, failing terminally, or completing the
// firing.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/store"
)

// concurrencyRetryDelay is the short delay applied when a firing yields to
// another execution already holding its concurrency key (suggested 1-5s).
const concurrencyRetryDelay = 3 * time.Second

// heartbeatInterval governs how often an in-flight execution extends its
// lease; it must be comfortably shorter than leaseDuration.
const heartbeatInterval = 10 * time.Second

type Pool struct {
	id            string
	tasks         store.TaskStore
	queue         store.QueueStore
	audit         store.AuditStore
	executor      Executor
	logger        *slog.Logger
	concurrency   int
	pollInterval  time.Duration
	leaseDuration time.Duration
}

func NewPool(tasks store.TaskStore, queue store.QueueStore, audit store.AuditStore, executor Executor, logger *slog.Logger, concurrency int, pollInterval, leaseDuration time.Duration) *Pool {
	hostname, _ := os.Hostname()
	return &Pool{
		id:            fmt.Sprintf("%s-%d", hostname, os.Getpid()),
		tasks:         tasks,
		queue:         queue,
		audit:         audit,
		executor:      executor,
		logger:        logger.With("component", "worker", "worker_id", fmt.Sprintf("%s-%d", hostname, os.Getpid())),
		concurrency:   concurrency,
		pollInterval:  pollInterval,
		leaseDuration: leaseDuration,
	}
}

// Start runs concurrency independent lease loops until ctx is canceled,
// then waits for in-flight executions to finish (their leases either
// complete or expire naturally; no execution is interrupted mid-flight,
// matching the completion contract every attempt must honor).
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("worker pool started", "concurrency", p.concurrency)

	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			p.loop(ctx, slot)
		}(i)
	}
	wg.Wait()
	p.logger.Info("worker pool shut down")
}

// emptyLeaseBackoffCap bounds the idle-poll backoff growth (no eligible
// firing found) so a quiet queue never leaves a worker sleeping too long
// to notice new work.
const emptyLeaseBackoffCap = time.Second

func (p *Pool) loop(ctx context.Context, slot int) {
	backoff := p.pollInterval

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		firing, err := p.queue.LeaseNext(ctx, p.id, p.leaseDuration)
		if err != nil {
			p.logger.Error("lease next", "slot", slot, "error", err)
			p.sleep(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}
		if firing == nil {
			p.sleep(ctx, backoff)
			backoff = nextBackoff(backoff)
			continue
		}
		backoff = p.pollInterval

		p.handle(ctx, firing)
	}
}

func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > emptyLeaseBackoffCap {
		d = emptyLeaseBackoffCap
	}
	return d
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// handle applies concurrency-key admission control, then executes the
// firing's task and records the outcome.
func (p *Pool) handle(ctx context.Context, firing *domain.Firing) {
	// A leased firing runs to completion even when the pool is shutting
	// down, so the execution and its completion write are not aborted.
	ctx = context.WithoutCancel(ctx)

	task, err := p.tasks.GetTask(ctx, firing.TaskID)
	if err != nil {
		p.logger.Error("load task for firing", "firing_id", firing.ID, "error", err)
		return
	}

	if task.ConcurrencyKey != "" {
		busy, err := p.queue.ConcurrencyKeyBusy(ctx, task.ConcurrencyKey, firing.ID)
		if err != nil {
			p.logger.Error("check concurrency key", "firing_id", firing.ID, "error", err)
			return
		}
		if busy {
			if err := p.queue.ReleaseForConcurrency(ctx, firing.ID, p.id, concurrencyRetryDelay); err != nil {
				p.logger.Error("release for concurrency", "firing_id", firing.ID, "error", err)
			}
			return
		}
	}

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	go p.heartbeat(heartbeatCtx, firing.ID)

	startedAt := time.Now()
	result := p.executor.Execute(ctx, task, firing.Attempt)
	cancelHeartbeat()
	finishedAt := time.Now()

	run := &domain.Run{
		ID:         uuid.NewString(),
		TaskID:     task.ID,
		FiringID:   firing.ID,
		LockedBy:   p.id,
		Attempt:    firing.Attempt,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Outcome:    result.Outcome,
		Output:     result.Output,
	}
	if result.Err != nil {
		run.Error = result.Err.Error()
	}

	var retryAt *time.Time
	if result.Outcome == domain.OutcomeRetryableFailure && firing.Attempt < task.Retry.MaxRetries {
		at := finishedAt.Add(retryDelay(task.Retry.Backoff, firing.Attempt))
		retryAt = &at
	}

	if err := p.queue.CompleteRun(ctx, firing.ID, p.id, run, retryAt); err != nil {
		if err == domain.ErrLeaseExpired {
			p.logger.Warn("lease expired before completion recorded; another worker will reclaim",
				"firing_id", firing.ID, "task_id", task.ID)
			return
		}
		p.logger.Error("complete run", "firing_id", firing.ID, "error", err)
		return
	}

	p.logger.Info("run recorded", "task_id", task.ID, "firing_id", firing.ID,
		"outcome", result.Outcome, "attempt", firing.Attempt, "retry_at", retryAt)

	// An audit record is emitted on success only; failures (retryable or
	// terminal) are fully captured by the task_run row itself.
	if p.audit != nil && result.Outcome == domain.OutcomeSuccess {
		_ = p.audit.RecordAudit(ctx, &domain.AuditRecord{
			ID:        uuid.NewString(),
			Action:    domain.AuditRunSucceeded,
			SubjectID: task.ID,
			Details:   fmt.Sprintf("firing_id=%s attempt=%d", firing.ID, firing.Attempt),
			CreatedAt: finishedAt,
		})
	}
}

// heartbeat extends the firing's lease on an interval shorter than the
// lease duration until ctx is canceled (execution finished or its own
// lease was already lost).
func (p *Pool) heartbeat(ctx context.Context, firingID string) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.ExtendLease(ctx, firingID, p.id, p.leaseDuration); err != nil {
				p.logger.Warn("heartbeat extend lease failed", "firing_id", firingID, "error", err)
				return
			}
		}
	}
}
