package scheduler_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/scheduler"
	"github.com/ordinaut/ordinaut/internal/store"
)

// ---- fakes ----

type fakeTaskStore struct {
	store.TaskStore
	tasks map[string]*domain.Task
}

func (f *fakeTaskStore) ListActiveTasks(ctx context.Context) ([]*domain.Task, error) {
	var out []*domain.Task
	for _, t := range f.tasks {
		if t.Status == domain.StatusActive {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t, nil
}

type fakeQueueStore struct {
	store.QueueStore
	mu       sync.Mutex
	enqueued []string
	enqCh    chan string
}

func (f *fakeQueueStore) Enqueue(ctx context.Context, taskID string, runAt time.Time) (*domain.Firing, error) {
	f.mu.Lock()
	f.enqueued = append(f.enqueued, taskID)
	f.mu.Unlock()
	if f.enqCh != nil {
		f.enqCh <- taskID
	}
	return &domain.Firing{ID: "firing-1", TaskID: taskID, RunAt: runAt}, nil
}

func (f *fakeQueueStore) Snooze(ctx context.Context, taskID string, delta time.Duration) error {
	return nil
}

func (f *fakeQueueStore) OldestEligibleAge(ctx context.Context, now time.Time) (time.Duration, error) {
	return 0, nil
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestScheduler_ArmFiresOnceAtComputedTime(t *testing.T) {
	task := &domain.Task{
		ID:           "t1",
		ScheduleKind: domain.ScheduleOnce,
		ScheduleExpr: time.Now().Add(30 * time.Millisecond).Format(time.RFC3339Nano),
		Timezone:     "UTC",
		Status:       domain.StatusActive,
	}
	tasks := &fakeTaskStore{tasks: map[string]*domain.Task{task.ID: task}}
	queue := &fakeQueueStore{enqCh: make(chan string, 1)}

	s := scheduler.New(tasks, queue, newTestLogger(), time.Hour)
	s.Arm(context.Background(), task)

	select {
	case id := <-queue.enqCh:
		if id != task.ID {
			t.Fatalf("expected firing for %s, got %s", task.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for firing")
	}
}

func TestScheduler_CancelPreventsFiring(t *testing.T) {
	task := &domain.Task{
		ID:           "t2",
		ScheduleKind: domain.ScheduleOnce,
		ScheduleExpr: time.Now().Add(30 * time.Millisecond).Format(time.RFC3339Nano),
		Timezone:     "UTC",
		Status:       domain.StatusActive,
	}
	tasks := &fakeTaskStore{tasks: map[string]*domain.Task{task.ID: task}}
	queue := &fakeQueueStore{enqCh: make(chan string, 1)}

	s := scheduler.New(tasks, queue, newTestLogger(), time.Hour)
	s.Arm(context.Background(), task)
	s.Cancel(task.ID)

	select {
	case id := <-queue.enqCh:
		t.Fatalf("expected no firing after cancel, got one for %s", id)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduler_ReconcileArmsUntimedActiveTasks(t *testing.T) {
	task := &domain.Task{
		ID:           "t3",
		ScheduleKind: domain.ScheduleOnce,
		ScheduleExpr: time.Now().Add(30 * time.Millisecond).Format(time.RFC3339Nano),
		Timezone:     "UTC",
		Status:       domain.StatusActive,
	}
	tasks := &fakeTaskStore{tasks: map[string]*domain.Task{task.ID: task}}
	queue := &fakeQueueStore{enqCh: make(chan string, 1)}

	s := scheduler.New(tasks, queue, newTestLogger(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	select {
	case id := <-queue.enqCh:
		if id != task.ID {
			t.Fatalf("expected firing for %s, got %s", task.ID, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reconcile to arm and fire the task")
	}
}

func TestScheduler_RunNowEnqueuesWithoutArming(t *testing.T) {
	tasks := &fakeTaskStore{tasks: map[string]*domain.Task{}}
	queue := &fakeQueueStore{}

	s := scheduler.New(tasks, queue, newTestLogger(), time.Hour)
	if _, err := s.RunNow(context.Background(), "t4"); err != nil {
		t.Fatalf("RunNow: %v", err)
	}

	queue.mu.Lock()
	defer queue.mu.Unlock()
	if len(queue.enqueued) != 1 || queue.enqueued[0] != "t4" {
		t.Fatalf("expected one immediate enqueue for t4, got %v", queue.enqueued)
	}
}
