// Package lifecycle implements the task state machine external operations
// (create/update/pause/resume/cancel/delete/runNow/snooze/publishEvent)
// plus the read-side listing/stats operations, enforcing scope checks on
// every mutating call and keeping the scheduler's timer registry and the
// durable store in lockstep per the transition table.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ordinaut/ordinaut/internal/authz"
	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/schedule"
	"github.com/ordinaut/ordinaut/internal/scheduler"
	"github.com/ordinaut/ordinaut/internal/store"
)

// Service is the external-interface entry point: one method per operation
// named in the task submission contract.
type Service struct {
	store store.Store
	sched *scheduler.Scheduler
}

func New(st store.Store, sched *scheduler.Scheduler) *Service {
	return &Service{store: st, sched: sched}
}

// CreateTaskInput mirrors the fields a caller may set at creation; server-
// assigned fields (ID, status, timestamps) are not accepted here.
type CreateTaskInput struct {
	Title               string
	Description         string
	ScheduleKind        domain.ScheduleKind
	ScheduleExpr        string
	Timezone            string
	Payload             []byte
	Priority            int
	DedupeKey           string
	DedupeWindowSeconds int
	Retry               domain.RetryPolicy
	ConcurrencyKey      string
}

func (s *Service) CreateTask(ctx context.Context, actor authz.Actor, input CreateTaskInput) (*domain.Task, error) {
	if err := authz.RequireScope(actor, authz.ScopeTaskCreate); err != nil {
		return nil, err
	}

	timezone := input.Timezone
	if timezone == "" {
		timezone = "UTC"
	}
	priority := input.Priority
	if priority == 0 {
		priority = 5
	}
	retry := input.Retry
	if retry.Backoff == "" {
		retry.Backoff = domain.BackoffExponentialJitter
	}

	t := &domain.Task{
		ID:                  uuid.NewString(),
		Title:               input.Title,
		Description:         input.Description,
		CreatedBy:           actor.AgentID,
		ScheduleKind:        input.ScheduleKind,
		ScheduleExpr:        input.ScheduleExpr,
		Timezone:            timezone,
		Payload:             input.Payload,
		Status:              domain.StatusActive,
		Priority:            priority,
		DedupeKey:           input.DedupeKey,
		DedupeWindowSeconds: input.DedupeWindowSeconds,
		Retry:               retry,
		ConcurrencyKey:      input.ConcurrencyKey,
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := validateSchedule(t.ScheduleKind, t.ScheduleExpr, t.Timezone); err != nil {
		return nil, err
	}

	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	s.sched.Arm(ctx, created)
	s.audit(ctx, actor, domain.AuditTaskCreated, created.ID, "")

	return created, nil
}

func (s *Service) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return s.store.GetTask(ctx, id)
}

func (s *Service) ListTasks(ctx context.Context, input store.ListTasksInput) ([]*domain.Task, error) {
	return s.store.ListTasks(ctx, input)
}

// UpdateTaskInput carries only the fields being patched; zero values are
// treated as "not set" and left unchanged except where noted.
type UpdateTaskInput struct {
	Title               *string
	Description         *string
	ScheduleKind        *domain.ScheduleKind
	ScheduleExpr        *string
	Timezone            *string
	Payload             []byte
	Priority            *int
	DedupeKey           *string
	DedupeWindowSeconds *int
	Retry               *domain.RetryPolicy
	ConcurrencyKey      *string
}

// UpdateTask requires status=active per the transition table, re-arms the
// timer with the new schedule, and deletes+regenerates unleased firings
// (a leased firing in flight is left alone; it completes against the old
// payload, matching the cancellation-semantics rule that in-flight runs
// are never interrupted).
func (s *Service) UpdateTask(ctx context.Context, actor authz.Actor, id string, input UpdateTaskInput) (*domain.Task, error) {
	if err := authz.RequireScope(actor, authz.ScopeTaskManage); err != nil {
		return nil, err
	}

	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.StatusActive {
		return nil, domain.ErrTaskNotActive
	}

	applyUpdate(t, input)
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if err := validateSchedule(t.ScheduleKind, t.ScheduleExpr, t.Timezone); err != nil {
		return nil, err
	}

	updated, err := s.store.UpdateTask(ctx, t)
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}

	if err := s.store.CancelPending(ctx, updated.ID); err != nil {
		return nil, fmt.Errorf("clear stale firings: %w", err)
	}
	s.sched.Arm(ctx, updated)
	s.audit(ctx, actor, domain.AuditTaskUpdated, updated.ID, "")

	return updated, nil
}

func applyUpdate(t *domain.Task, in UpdateTaskInput) {
	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.ScheduleKind != nil {
		t.ScheduleKind = *in.ScheduleKind
	}
	if in.ScheduleExpr != nil {
		t.ScheduleExpr = *in.ScheduleExpr
	}
	if in.Timezone != nil {
		t.Timezone = *in.Timezone
	}
	if in.Payload != nil {
		t.Payload = in.Payload
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.DedupeKey != nil {
		t.DedupeKey = *in.DedupeKey
	}
	if in.DedupeWindowSeconds != nil {
		t.DedupeWindowSeconds = *in.DedupeWindowSeconds
	}
	if in.Retry != nil {
		t.Retry = *in.Retry
	}
	if in.ConcurrencyKey != nil {
		t.ConcurrencyKey = *in.ConcurrencyKey
	}
}

// PauseTask cancels the armed timer but leaves pending firings in place;
// workers still drain any already-leased firing to completion.
func (s *Service) PauseTask(ctx context.Context, actor authz.Actor, id string) error {
	if err := authz.RequireScope(actor, authz.ScopeTaskRun); err != nil {
		return err
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != domain.StatusActive {
		return domain.ErrTaskNotActive
	}
	if err := s.store.SetTaskStatus(ctx, id, domain.StatusPaused); err != nil {
		return err
	}
	s.sched.Cancel(id)
	s.audit(ctx, actor, domain.AuditTaskPaused, id, "")
	return nil
}

// ResumeTask re-arms the timer against whatever occurrence is next from
// now; no pending firings are touched.
func (s *Service) ResumeTask(ctx context.Context, actor authz.Actor, id string) error {
	if err := authz.RequireScope(actor, authz.ScopeTaskRun); err != nil {
		return err
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != domain.StatusPaused {
		return domain.ErrTaskNotPaused
	}
	if err := s.store.SetTaskStatus(ctx, id, domain.StatusActive); err != nil {
		return err
	}
	t.Status = domain.StatusActive
	s.sched.Arm(ctx, t)
	s.audit(ctx, actor, domain.AuditTaskResumed, id, "")
	return nil
}

// CancelTask is valid from active or paused, cancels the timer, and
// deletes unleased firings; it does not interrupt an in-flight run.
func (s *Service) CancelTask(ctx context.Context, actor authz.Actor, id string) error {
	if err := authz.RequireScope(actor, authz.ScopeTaskRun); err != nil {
		return err
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == domain.StatusCanceled {
		return domain.ErrTaskCanceled
	}
	if err := s.store.SetTaskStatus(ctx, id, domain.StatusCanceled); err != nil {
		return err
	}
	s.sched.Cancel(id)
	if err := s.store.CancelPending(ctx, id); err != nil {
		return fmt.Errorf("cancel pending firings: %w", err)
	}
	s.audit(ctx, actor, domain.AuditTaskCanceled, id, "")
	return nil
}

// DeleteTask has no status precondition, cancels the timer, and relies on
// the schema's cascade delete from tasks to due_work (task_run rows are
// kept: soft-break, no cascade there).
func (s *Service) DeleteTask(ctx context.Context, actor authz.Actor, id string) error {
	if err := authz.RequireScope(actor, authz.ScopeTaskManage); err != nil {
		return err
	}
	s.sched.Cancel(id)
	if err := s.store.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.audit(ctx, actor, domain.AuditTaskDeleted, id, "")
	return nil
}

// RunNow requires status=active, inserts an immediate firing, and leaves
// the task's armed timer untouched.
func (s *Service) RunNow(ctx context.Context, actor authz.Actor, id string) (*domain.Firing, error) {
	if err := authz.RequireScope(actor, authz.ScopeTaskRun); err != nil {
		return nil, err
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Status != domain.StatusActive {
		return nil, domain.ErrTaskNotActive
	}
	firing, err := s.sched.RunNow(ctx, id)
	if err != nil {
		return nil, err
	}
	s.audit(ctx, actor, domain.AuditTaskRunNow, id, fmt.Sprintf("firing_id=%s", firing.ID))
	return firing, nil
}

// SnoozeTask requires status=active and shifts every unleased pending
// firing forward by delta; the armed timer (and future occurrences) is
// untouched.
func (s *Service) SnoozeTask(ctx context.Context, actor authz.Actor, id string, delta time.Duration) error {
	if err := authz.RequireScope(actor, authz.ScopeTaskRun); err != nil {
		return err
	}
	t, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if t.Status != domain.StatusActive {
		return domain.ErrTaskNotActive
	}
	if err := s.sched.Snooze(ctx, id, delta); err != nil {
		return err
	}
	s.audit(ctx, actor, domain.AuditTaskSnoozed, id, fmt.Sprintf("delta_seconds=%d", int(delta.Seconds())))
	return nil
}

// PublishEvent enqueues a firing for every active task whose schedule
// kind is event and whose schedule expression matches topic. Only
// active-status filtering is applied; no per-topic rate limiting or
// dedupe storm protection is attempted.
func (s *Service) PublishEvent(ctx context.Context, actor authz.Actor, topic string, payload []byte) (int, error) {
	if err := authz.RequireScope(actor, authz.ScopeEventPublish); err != nil {
		return 0, err
	}

	tasks, err := s.store.ListTasksBySchedule(ctx, domain.ScheduleEvent, topic)
	if err != nil {
		return 0, fmt.Errorf("list event tasks: %w", err)
	}

	now := time.Now()
	enqueued := 0
	for _, t := range tasks {
		if _, err := s.store.Enqueue(ctx, t.ID, now); err != nil {
			if err == store.ErrDuplicateFiring {
				continue
			}
			return enqueued, fmt.Errorf("enqueue event firing for %s: %w", t.ID, err)
		}
		enqueued++
	}

	s.audit(ctx, actor, domain.AuditEventPublish, "", fmt.Sprintf("topic=%s fired=%d", topic, enqueued))
	return enqueued, nil
}

func (s *Service) ListRuns(ctx context.Context, input store.ListRunsInput) ([]*domain.Run, error) {
	return s.store.ListRuns(ctx, input)
}

func (s *Service) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	return s.store.GetRun(ctx, id)
}

func (s *Service) TaskStats(ctx context.Context, input store.TaskStatsInput) (*store.TaskStats, error) {
	return s.store.TaskStats(ctx, input)
}

// validateSchedule translates the pure evaluator's own error vocabulary
// into the domain sentinels callers (and the HTTP layer) switch on.
func validateSchedule(kind domain.ScheduleKind, expr, timezone string) error {
	_, err := schedule.NextAfter(kind, expr, timezone, time.Now())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, schedule.ErrInvalidZone):
		return domain.ErrInvalidTimezone
	case errors.Is(err, schedule.ErrInvalidExpression):
		return domain.ErrInvalidSchedule
	default:
		return err
	}
}

func (s *Service) audit(ctx context.Context, actor authz.Actor, action, subjectID, details string) {
	_ = s.store.RecordAudit(ctx, &domain.AuditRecord{
		ID:           uuid.NewString(),
		ActorAgentID: actor.AgentID,
		Action:       action,
		SubjectID:    subjectID,
		Details:      details,
		CreatedAt:    time.Now(),
	})
}
