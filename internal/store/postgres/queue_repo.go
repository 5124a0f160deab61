package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type QueueRepository struct {
	pool *pgxpool.Pool
}

func NewQueueRepository(pool *pgxpool.Pool) *QueueRepository {
	return &QueueRepository{pool: pool}
}

// Enqueue inserts a firing for (taskID, runAt), suppressing the insert when
// the task's dedupe window already holds a firing within [runAt-N, runAt+N]
// of the same dedupe key. The whole check-then-insert happens inside one
// transaction so concurrent enqueues for the same key cannot both pass the
// suppression check.
func (r *QueueRepository) Enqueue(ctx context.Context, taskID string, runAt time.Time) (*domain.Firing, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var dedupeKey string
	var dedupeWindow int
	err = tx.QueryRow(ctx,
		`SELECT dedupe_key, dedupe_window_seconds FROM tasks WHERE id = $1 FOR UPDATE`,
		taskID,
	).Scan(&dedupeKey, &dedupeWindow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("lookup task for enqueue: %w", err)
	}

	if dedupeKey != "" && dedupeWindow > 0 {
		window := time.Duration(dedupeWindow) * time.Second
		var exists bool
		err = tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM due_work
				WHERE task_id = $1 AND run_at BETWEEN $2 AND $3
			)`,
			taskID, runAt.Add(-window), runAt.Add(window),
		).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check dedupe window: %w", err)
		}
		if exists {
			return nil, store.ErrDuplicateFiring
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO due_work (id, task_id, run_at, attempt)
		VALUES ($1, $2, $3, 1)
		RETURNING id, task_id, run_at, locked_by, locked_until, attempt, created_at`,
		uuid.NewString(), taskID, runAt,
	)
	firing, err := scanFiring(row)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit enqueue: %w", err)
	}
	return firing, nil
}

// LeaseNext claims the oldest eligible, unlocked firing for workerID using
// FOR UPDATE SKIP LOCKED — the single statement realizes eligibility,
// ordering, atomicity, and bounded-hold in one round trip.
func (r *QueueRepository) LeaseNext(ctx context.Context, workerID string, leaseDuration time.Duration) (*domain.Firing, error) {
	now := time.Now()
	lockedUntil := now.Add(leaseDuration)
	row := r.pool.QueryRow(ctx, `
		UPDATE due_work
		SET locked_by = $1, locked_until = $2,
		    attempt = CASE WHEN locked_until IS NOT NULL THEN attempt + 1 ELSE attempt END
		WHERE id = (
			SELECT id FROM due_work
			WHERE run_at <= $3 AND (locked_until IS NULL OR locked_until < $3)
			ORDER BY run_at ASC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, task_id, run_at, locked_by, locked_until, attempt, created_at`,
		workerID, lockedUntil, now,
	)

	firing, err := scanFiring(row)
	if err != nil {
		if errors.Is(err, domain.ErrFiringNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return firing, nil
}

func (r *QueueRepository) ExtendLease(ctx context.Context, firingID, workerID string, leaseDuration time.Duration) error {
	now := time.Now()
	tag, err := r.pool.Exec(ctx, `
		UPDATE due_work
		SET locked_until = $4
		WHERE id = $1 AND locked_by = $2 AND locked_until > $3`,
		firingID, workerID, now, now.Add(leaseDuration),
	)
	if err != nil {
		return fmt.Errorf("extend lease: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLeaseExpired
	}
	return nil
}

// CompleteRun persists the run outcome and either deletes the firing (on a
// terminal outcome: success or retries exhausted) or bumps run_at and
// clears the lease for a retry. Both happen in one transaction so a worker
// crash between the two writes is impossible.
func (r *QueueRepository) CompleteRun(ctx context.Context, firingID, workerID string, run *domain.Run, retryAt *time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO task_run (
			id, task_id, firing_id, locked_by, attempt, started_at,
			finished_at, outcome, output, error
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		run.ID, run.TaskID, run.FiringID, run.LockedBy, run.Attempt, run.StartedAt,
		run.FinishedAt, run.Outcome, run.Output, run.Error,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if retryAt != nil {
		tag, err := tx.Exec(ctx, `
			UPDATE due_work
			SET run_at = $3, attempt = attempt + 1, locked_by = NULL, locked_until = NULL
			WHERE id = $1 AND locked_by = $2`,
			firingID, workerID, *retryAt,
		)
		if err != nil {
			return fmt.Errorf("reschedule firing: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLeaseExpired
		}
	} else {
		tag, err := tx.Exec(ctx, `DELETE FROM due_work WHERE id = $1 AND locked_by = $2`, firingID, workerID)
		if err != nil {
			return fmt.Errorf("delete firing: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrLeaseExpired
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit complete run: %w", err)
	}
	return nil
}

// ConcurrencyKeyBusy checks for another currently leased firing whose task
// shares concurrencyKey with excludeFiringID's task. A leased, non-expired due_work row is
// the stand-in for "unfinished run" since task_run rows are only written
// at completion.
func (r *QueueRepository) ConcurrencyKeyBusy(ctx context.Context, concurrencyKey, excludeFiringID string) (bool, error) {
	if concurrencyKey == "" {
		return false, nil
	}
	var busy bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM due_work dw
			JOIN tasks t ON t.id = dw.task_id
			WHERE t.concurrency_key = $1
			  AND dw.id != $2
			  AND dw.locked_by IS NOT NULL
			  AND dw.locked_until > NOW()
		)`,
		concurrencyKey, excludeFiringID,
	).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("check concurrency key: %w", err)
	}
	return busy, nil
}

// ReleaseForConcurrency clears the lease and pushes run_at out by delay
// without incrementing attempt or writing a task_run row — yielding to
// whichever execution already holds the concurrency key.
func (r *QueueRepository) ReleaseForConcurrency(ctx context.Context, firingID, workerID string, delay time.Duration) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE due_work
		SET run_at = $3, locked_by = NULL, locked_until = NULL
		WHERE id = $1 AND locked_by = $2`,
		firingID, workerID, time.Now().Add(delay),
	)
	if err != nil {
		return fmt.Errorf("release for concurrency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrLeaseExpired
	}
	return nil
}

func (r *QueueRepository) CancelPending(ctx context.Context, taskID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM due_work WHERE task_id = $1 AND locked_by IS NULL`, taskID)
	if err != nil {
		return fmt.Errorf("cancel pending firings: %w", err)
	}
	return nil
}

func (r *QueueRepository) Snooze(ctx context.Context, taskID string, delta time.Duration) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE due_work
		SET run_at = run_at + make_interval(secs => $2::double precision)
		WHERE task_id = $1 AND locked_by IS NULL`,
		taskID, delta.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("snooze pending firings: %w", err)
	}
	return nil
}

func (r *QueueRepository) OldestEligibleAge(ctx context.Context, now time.Time) (time.Duration, error) {
	var oldest *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MIN(run_at) FROM due_work
		WHERE run_at <= $1 AND (locked_until IS NULL OR locked_until < $1)`,
		now,
	).Scan(&oldest)
	if err != nil {
		return 0, fmt.Errorf("oldest eligible age: %w", err)
	}
	if oldest == nil {
		return 0, nil
	}
	return now.Sub(*oldest), nil
}

func scanFiring(row rowScanner) (*domain.Firing, error) {
	var f domain.Firing
	var lockedBy *string
	var lockedUntil *time.Time
	err := row.Scan(&f.ID, &f.TaskID, &f.RunAt, &lockedBy, &lockedUntil, &f.Attempt, &f.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFiringNotFound
		}
		return nil, fmt.Errorf("scan firing: %w", err)
	}
	if lockedBy != nil {
		f.LockedBy = *lockedBy
	}
	if lockedUntil != nil {
		f.LockedUntil = *lockedUntil
	}
	return &f, nil
}
