package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ordinaut/ordinaut/internal/domain"
	"github.com/ordinaut/ordinaut/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RunRepository struct {
	pool *pgxpool.Pool
}

func NewRunRepository(pool *pgxpool.Pool) *RunRepository {
	return &RunRepository{pool: pool}
}

const runColumns = `
	id, task_id, firing_id, locked_by, attempt, started_at,
	finished_at, outcome, output, error, created_at`

func (r *RunRepository) GetRun(ctx context.Context, id string) (*domain.Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM task_run WHERE id = $1`, id)
	return scanRun(row)
}

func (r *RunRepository) ListRuns(ctx context.Context, input store.ListRunsInput) ([]*domain.Run, error) {
	args := []any{}
	where := []string{"1=1"}

	if input.TaskID != "" {
		args = append(args, input.TaskID)
		where = append(where, fmt.Sprintf("task_id = $%d", len(args)))
	}
	if input.Outcome != "" {
		args = append(args, input.Outcome)
		where = append(where, fmt.Sprintf("outcome = $%d", len(args)))
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
		SELECT %s FROM task_run
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`,
		runColumns, strings.Join(where, " AND "), len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// TaskStats aggregates counts and duration percentiles over the trailing
// window named by input.Period, using Postgres's percentile_cont for the
// p50/p95 over the task stats window.
func (r *RunRepository) TaskStats(ctx context.Context, input store.TaskStatsInput) (*store.TaskStats, error) {
	var stats store.TaskStats
	stats.TaskID = input.TaskID
	stats.Period = input.Period

	var p50, p95 *float64
	cutoff := time.Now().Add(-input.Period)
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE true),
			COUNT(*) FILTER (WHERE outcome = $2),
			COUNT(*) FILTER (WHERE outcome != $2),
			percentile_cont(0.5) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM (finished_at - started_at))),
			percentile_cont(0.95) WITHIN GROUP (ORDER BY EXTRACT(EPOCH FROM (finished_at - started_at)))
		FROM task_run
		WHERE task_id = $1 AND created_at >= $3`,
		input.TaskID, domain.OutcomeSuccess, cutoff,
	).Scan(&stats.TotalRuns, &stats.SuccessCount, &stats.FailureCount, &p50, &p95)
	if err != nil {
		return nil, fmt.Errorf("task stats: %w", err)
	}

	if p50 != nil {
		stats.P50Duration = durationFromSeconds(*p50)
	}
	if p95 != nil {
		stats.P95Duration = durationFromSeconds(*p95)
	}
	return &stats, nil
}

// FailureRatio mirrors the HighTaskFailureRate alert query, generalized
// from a single task's stats to every task's runs in window.
func (r *RunRepository) FailureRatio(ctx context.Context, window time.Duration) (float64, error) {
	var total, failed int
	cutoff := time.Now().Add(-window)
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome != $1)
		FROM task_run
		WHERE created_at >= $2`,
		domain.OutcomeSuccess, cutoff,
	).Scan(&total, &failed)
	if err != nil {
		return 0, fmt.Errorf("failure ratio: %w", err)
	}
	if total == 0 {
		return 0, nil
	}
	return float64(failed) / float64(total), nil
}

func durationFromSeconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func scanRun(row rowScanner) (*domain.Run, error) {
	var run domain.Run
	err := row.Scan(
		&run.ID, &run.TaskID, &run.FiringID, &run.LockedBy, &run.Attempt, &run.StartedAt,
		&run.FinishedAt, &run.Outcome, &run.Output, &run.Error, &run.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRunNotFound
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return &run, nil
}
