// Package scheduler arms one time.Timer per active task and enqueues a
// firing when it fires, re-arming recurring tasks against their own next
// occurrence. A periodic reconciliation sweep rebuilds the registry from
// the task table, so a process restart (which loses every in-memory timer)
// self-heals without an external trigger.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/schedule"
	"github.com/ordinaut/ordinaut/internal/store"
)

// Scheduler owns the in-memory timer registry. Safe for concurrent use;
// Start runs its own loop, and Arm/Cancel may be called from lifecycle
// operations on other goroutines.
type Scheduler struct {
	tasks store.TaskStore
	queue store.QueueStore
	log   *slog.Logger

	reconcileInterval time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer // task ID -> armed timer
}

func New(tasks store.TaskStore, queue store.QueueStore, log *slog.Logger, reconcileInterval time.Duration) *Scheduler {
	return &Scheduler{
		tasks:             tasks,
		queue:             queue,
		log:               log.With("component", "scheduler"),
		reconcileInterval: reconcileInterval,
		timers:            make(map[string]*time.Timer),
	}
}

// Start reconciles the full active-task set immediately, then re-reconciles
// on reconcileInterval as a self-healing fallback until ctx is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	s.reconcile(ctx)

	ticker := time.NewTicker(s.reconcileInterval)
	defer ticker.Stop()

	s.log.Info("scheduler started", "reconcile_interval", s.reconcileInterval)

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			s.log.Info("scheduler shut down")
			return
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// reconcile lists every active task and arms a timer for any task that
// does not already have one. It does not disarm timers for tasks that
// disappeared from the active set since the last sweep — Cancel/Pause
// remove them synchronously at the moment of the transition instead.
func (s *Scheduler) reconcile(ctx context.Context) {
	active, err := s.tasks.ListActiveTasks(ctx)
	if err != nil {
		s.log.Error("reconcile: list active tasks", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range active {
		if _, armed := s.timers[t.ID]; armed {
			continue
		}
		s.armLocked(ctx, t, time.Now())
	}
}

// Arm computes the task's next occurrence and schedules a timer to enqueue
// it, replacing any timer already registered for the task. Called by
// lifecycle on create/update/resume.
func (s *Scheduler) Arm(ctx context.Context, t *domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(t.ID)
	s.armLocked(ctx, t, time.Now())
}

// Cancel disarms the task's timer, if any. Called by lifecycle on
// pause/cancel/delete.
func (s *Scheduler) Cancel(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked(taskID)
}

func (s *Scheduler) cancelLocked(taskID string) {
	if timer, ok := s.timers[taskID]; ok {
		timer.Stop()
		delete(s.timers, taskID)
	}
}

// armLocked must be called with s.mu held. from is the point the next
// occurrence is computed after: time.Now() for an external (re)arm, or the
// occurrence that just fired when re-arming a recurring task from fire, so
// re-arming measures from the schedule's own clock rather than wall-clock
// drift accumulated by timer latency.
func (s *Scheduler) armLocked(ctx context.Context, t *domain.Task, from time.Time) {
	if t.Status != domain.StatusActive {
		return
	}
	if t.ScheduleKind == domain.ScheduleEvent {
		// event tasks never get a timer; publishEvent enqueues them directly.
		return
	}

	next, err := schedule.NextAfter(t.ScheduleKind, t.ScheduleExpr, t.Timezone, from)
	if err != nil {
		s.log.Error("arm: compute next occurrence", "task_id", t.ID, "error", err)
		return
	}
	if next.IsZero() {
		// once tasks with a past timestamp, or exhausted rrules: nothing more to arm.
		return
	}

	delay := time.Until(next)
	if delay < 0 {
		delay = 0
	}

	taskID := t.ID
	occurrence := next
	timer := time.AfterFunc(delay, func() {
		s.fire(context.Background(), taskID, occurrence)
	})
	s.timers[taskID] = timer
}

// fire enqueues a firing for the task's scheduled occurrence, then re-arms
// a new timer computed from that same occurrence (recurring schedules
// only) rather than from time.Now(), so re-arming does not drift off the
// schedule's own grid at period boundaries.
func (s *Scheduler) fire(ctx context.Context, taskID string, scheduledAt time.Time) {
	s.mu.Lock()
	delete(s.timers, taskID)
	s.mu.Unlock()

	t, err := s.tasks.GetTask(ctx, taskID)
	if err != nil {
		s.log.Error("fire: load task", "task_id", taskID, "error", err)
		return
	}
	if t.Status != domain.StatusActive {
		return
	}

	if _, err := s.queue.Enqueue(ctx, t.ID, scheduledAt); err != nil {
		if err != store.ErrDuplicateFiring {
			s.log.Error("fire: enqueue", "task_id", t.ID, "error", err)
		}
	}

	if t.IsRecurring() {
		s.mu.Lock()
		s.armLocked(ctx, t, scheduledAt)
		s.mu.Unlock()
	}
}

func (s *Scheduler) stopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
	}
}

// Lag reports the age of the oldest eligible, unclaimed firing — the
// scheduler-lag observable the health checker and alerting poll for
// staleness.
func (s *Scheduler) Lag(ctx context.Context) (time.Duration, error) {
	return s.queue.OldestEligibleAge(ctx, time.Now())
}

// RunNow inserts an immediate firing for taskID without touching the task's
// armed timer: the next regularly scheduled occurrence still fires on its
// own time.
func (s *Scheduler) RunNow(ctx context.Context, taskID string) (*domain.Firing, error) {
	return s.queue.Enqueue(ctx, taskID, time.Now())
}

// Snooze shifts every unleased pending firing for taskID forward by delta,
// leaving the armed timer (and thus future occurrences) untouched.
func (s *Scheduler) Snooze(ctx context.Context, taskID string, delta time.Duration) error {
	return s.queue.Snooze(ctx, taskID, delta)
}
