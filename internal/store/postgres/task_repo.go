package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TaskRepository struct {
	pool *pgxpool.Pool
}

func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

const taskColumns = `
	id, title, description, created_by, schedule_kind, schedule_expr,
	timezone, payload, status, priority, dedupe_key, dedupe_window_seconds,
	max_retries, backoff, concurrency_key, created_at, updated_at`

func (r *TaskRepository) CreateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO tasks (
			id, title, description, created_by, schedule_kind, schedule_expr,
			timezone, payload, status, priority, dedupe_key, dedupe_window_seconds,
			max_retries, backoff, concurrency_key
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, t.CreatedBy, t.ScheduleKind, t.ScheduleExpr,
		t.Timezone, t.Payload, t.Status, t.Priority, t.DedupeKey, t.DedupeWindowSeconds,
		t.Retry.MaxRetries, t.Retry.Backoff, t.ConcurrencyKey,
	)

	created, err := scanTask(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("create task: %w", err)
		}
		return nil, err
	}
	return created, nil
}

func (r *TaskRepository) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	return scanTask(row)
}

func (r *TaskRepository) UpdateTask(ctx context.Context, t *domain.Task) (*domain.Task, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE tasks
		SET title = $2, description = $3, schedule_kind = $4, schedule_expr = $5,
		    timezone = $6, payload = $7, priority = $8, dedupe_key = $9,
		    dedupe_window_seconds = $10, max_retries = $11, backoff = $12,
		    concurrency_key = $13, updated_at = NOW()
		WHERE id = $1
		RETURNING `+taskColumns,
		t.ID, t.Title, t.Description, t.ScheduleKind, t.ScheduleExpr,
		t.Timezone, t.Payload, t.Priority, t.DedupeKey, t.DedupeWindowSeconds,
		t.Retry.MaxRetries, t.Retry.Backoff, t.ConcurrencyKey,
	)
	return scanTask(row)
}

func (r *TaskRepository) SetTaskStatus(ctx context.Context, id string, status domain.Status) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE tasks SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set task status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) DeleteTask(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *TaskRepository) ListActiveTasks(ctx context.Context) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = $1`, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (r *TaskRepository) ListTasksBySchedule(ctx context.Context, kind domain.ScheduleKind, expr string) ([]*domain.Task, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE schedule_kind = $1 AND schedule_expr = $2 AND status = $3`,
		kind, expr, domain.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("list tasks by schedule: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

// ListTasks is the admin listing behind the listTasks(filters, pagination)
// operation, cursor-paginated on (created_at, id) like run_repo.go's
// ListRuns.
func (r *TaskRepository) ListTasks(ctx context.Context, input store.ListTasksInput) ([]*domain.Task, error) {
	args := []any{}
	where := []string{"1=1"}

	if input.Status != "" {
		args = append(args, input.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if input.CreatedBy != "" {
		args = append(args, input.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}
	if input.ScheduleKind != "" {
		args = append(args, input.ScheduleKind)
		where = append(where, fmt.Sprintf("schedule_kind = $%d", len(args)))
	}
	if input.Cursor != nil {
		args = append(args, input.Cursor.CreatedAt, input.Cursor.ID)
		where = append(where, fmt.Sprintf("(created_at, id) < ($%d, $%d)", len(args)-1, len(args)))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT %s FROM tasks
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		taskColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	var tasks []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.Title, &t.Description, &t.CreatedBy, &t.ScheduleKind, &t.ScheduleExpr,
		&t.Timezone, &t.Payload, &t.Status, &t.Priority, &t.DedupeKey, &t.DedupeWindowSeconds,
		&t.Retry.MaxRetries, &t.Retry.Backoff, &t.ConcurrencyKey, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &t, nil
}
