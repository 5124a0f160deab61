package lifecycle

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ordinaut/ordinaut/internal/authz"
	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/scheduler"
	"github.com/ordinaut/ordinaut/internal/store"
)

type fakeStore struct {
	store.Store

	mu      sync.Mutex
	tasks   map[string]*domain.Task
	records []*domain.AuditRecord
	pending map[string]bool // taskID -> has pending firings
	snoozed map[string]time.Duration
	fired   []string // task IDs enqueued via PublishEvent
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tasks:   make(map[string]*domain.Task),
		pending: make(map[string]bool),
		snoozed: make(map[string]time.Duration),
	}
}

func (f *fakeStore) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t, nil
}

func (f *fakeStore) UpdateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[t.ID] = t
	return t, nil
}

func (f *fakeStore) SetTaskStatus(ctx context.Context, id string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	t.Status = status
	return nil
}

func (f *fakeStore) DeleteTask(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, id)
	return nil
}

func (f *fakeStore) ListTasksBySchedule(ctx context.Context, kind domain.ScheduleKind, expr string) ([]*domain.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Task
	for _, t := range f.tasks {
		if t.ScheduleKind == kind && t.ScheduleExpr == expr && t.Status == domain.StatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeStore) Enqueue(ctx context.Context, taskID string, runAt time.Time) (*domain.Firing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fired = append(f.fired, taskID)
	return &domain.Firing{ID: "fire-" + taskID, TaskID: taskID}, nil
}

func (f *fakeStore) CancelPending(ctx context.Context, taskID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[taskID] = false
	return nil
}

func (f *fakeStore) Snooze(ctx context.Context, taskID string, delta time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snoozed[taskID] = delta
	return nil
}

func (f *fakeStore) RecordAudit(ctx context.Context, rec *domain.AuditRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	sched := scheduler.New(st, st, logger, time.Hour)
	return New(st, sched), st
}

func adminActor() authz.Actor {
	return authz.Actor{AgentID: "admin-agent", Scopes: []string{authz.ScopeAdmin}}
}

func TestCreateTask_RequiresScope(t *testing.T) {
	svc, _ := newTestService(t)
	unauthorized := authz.Actor{AgentID: "bob", Scopes: []string{"task.update"}}

	_, err := svc.CreateTask(context.Background(), unauthorized, CreateTaskInput{
		Title: "x", ScheduleKind: domain.ScheduleOnce, ScheduleExpr: "2099-01-01T00:00:00Z",
	})
	if err != authz.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestCreateTask_PersistsAndAudits(t *testing.T) {
	svc, st := newTestService(t)

	created, err := svc.CreateTask(context.Background(), adminActor(), CreateTaskInput{
		Title:        "nightly export",
		ScheduleKind: domain.ScheduleCron,
		ScheduleExpr: "0 2 * * *",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Status != domain.StatusActive {
		t.Fatalf("expected new task to be active, got %s", created.Status)
	}
	if created.Timezone != "UTC" {
		t.Fatalf("expected default timezone UTC, got %s", created.Timezone)
	}
	if created.Retry.Backoff != domain.BackoffExponentialJitter {
		t.Fatalf("expected default backoff exponential_jitter, got %s", created.Retry.Backoff)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.records) != 1 || st.records[0].Action != domain.AuditTaskCreated {
		t.Fatalf("expected one task.created audit record, got %+v", st.records)
	}
}

func TestCreateTask_InvalidScheduleRejected(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.CreateTask(context.Background(), adminActor(), CreateTaskInput{
		Title: "bad", ScheduleKind: domain.ScheduleCron, ScheduleExpr: "",
	})
	if err != domain.ErrInvalidSchedule {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}
}

func TestUpdateTask_RejectsNonActive(t *testing.T) {
	svc, st := newTestService(t)
	st.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusPaused, ScheduleKind: domain.ScheduleOnce, ScheduleExpr: "2099-01-01T00:00:00Z", Priority: 5, Retry: domain.RetryPolicy{Backoff: domain.BackoffFixed}}

	newTitle := "renamed"
	_, err := svc.UpdateTask(context.Background(), adminActor(), "t1", UpdateTaskInput{Title: &newTitle})
	if err != domain.ErrTaskNotActive {
		t.Fatalf("expected ErrTaskNotActive, got %v", err)
	}
}

func TestPauseResumeTask(t *testing.T) {
	svc, st := newTestService(t)
	st.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusActive, ScheduleKind: domain.ScheduleOnce, ScheduleExpr: "2099-01-01T00:00:00Z", Priority: 5, Retry: domain.RetryPolicy{Backoff: domain.BackoffFixed}}

	if err := svc.PauseTask(context.Background(), adminActor(), "t1"); err != nil {
		t.Fatalf("pause: unexpected error: %v", err)
	}
	if st.tasks["t1"].Status != domain.StatusPaused {
		t.Fatalf("expected task paused")
	}

	if err := svc.ResumeTask(context.Background(), adminActor(), "t1"); err != nil {
		t.Fatalf("resume: unexpected error: %v", err)
	}
	if st.tasks["t1"].Status != domain.StatusActive {
		t.Fatalf("expected task active again")
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.records) != 2 {
		t.Fatalf("expected pause+resume audit records, got %+v", st.records)
	}
}

func TestCancelTask_ClearsPendingFirings(t *testing.T) {
	svc, st := newTestService(t)
	st.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusActive, ScheduleKind: domain.ScheduleOnce, ScheduleExpr: "2099-01-01T00:00:00Z", Priority: 5, Retry: domain.RetryPolicy{Backoff: domain.BackoffFixed}}
	st.pending["t1"] = true

	if err := svc.CancelTask(context.Background(), adminActor(), "t1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if st.tasks["t1"].Status != domain.StatusCanceled {
		t.Fatalf("expected task canceled")
	}
	if st.pending["t1"] {
		t.Fatalf("expected pending firings cleared")
	}
}

func TestCancelTask_AlreadyCanceledIsRejected(t *testing.T) {
	svc, st := newTestService(t)
	st.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusCanceled}

	if err := svc.CancelTask(context.Background(), adminActor(), "t1"); err != domain.ErrTaskCanceled {
		t.Fatalf("expected ErrTaskCanceled, got %v", err)
	}
}

func TestRunNow_RequiresActiveAndEnqueues(t *testing.T) {
	svc, st := newTestService(t)
	st.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusActive, ScheduleKind: domain.ScheduleOnce, ScheduleExpr: "2099-01-01T00:00:00Z", Priority: 5, Retry: domain.RetryPolicy{Backoff: domain.BackoffFixed}}

	firing, err := svc.RunNow(context.Background(), adminActor(), "t1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if firing.TaskID != "t1" {
		t.Fatalf("expected firing for t1, got %+v", firing)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.fired) != 1 || st.fired[0] != "t1" {
		t.Fatalf("expected one immediate firing enqueued, got %+v", st.fired)
	}
}

func TestSnoozeTask_ShiftsPendingFirings(t *testing.T) {
	svc, st := newTestService(t)
	st.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusActive, ScheduleKind: domain.ScheduleOnce, ScheduleExpr: "2099-01-01T00:00:00Z", Priority: 5, Retry: domain.RetryPolicy{Backoff: domain.BackoffFixed}}

	if err := svc.SnoozeTask(context.Background(), adminActor(), "t1", 10*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.snoozed["t1"] != 10*time.Minute {
		t.Fatalf("expected 10m snooze recorded, got %v", st.snoozed["t1"])
	}
}

func TestPublishEvent_FansOutToMatchingActiveTasks(t *testing.T) {
	svc, st := newTestService(t)
	st.tasks["t1"] = &domain.Task{ID: "t1", Status: domain.StatusActive, ScheduleKind: domain.ScheduleEvent, ScheduleExpr: "order.created"}
	st.tasks["t2"] = &domain.Task{ID: "t2", Status: domain.StatusActive, ScheduleKind: domain.ScheduleEvent, ScheduleExpr: "order.shipped"}
	st.tasks["t3"] = &domain.Task{ID: "t3", Status: domain.StatusPaused, ScheduleKind: domain.ScheduleEvent, ScheduleExpr: "order.created"}

	n, err := svc.PublishEvent(context.Background(), adminActor(), "order.created", []byte(`{}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected exactly one matching active task fired, got %d", n)
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if len(st.fired) != 1 || st.fired[0] != "t1" {
		t.Fatalf("expected t1 fired, got %+v", st.fired)
	}
}

func TestPublishEvent_RequiresScope(t *testing.T) {
	svc, _ := newTestService(t)
	unauthorized := authz.Actor{AgentID: "bob", Scopes: []string{"task.create"}}

	_, err := svc.PublishEvent(context.Background(), unauthorized, "order.created", nil)
	if err != authz.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
