// Package postgres is the pgx-backed implementation of internal/store,
// carrying proven pool tuning values and the FOR UPDATE SKIP LOCKED lease
// pattern over from webhook jobs to Ordinaut's task/firing/run model.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens a tuned pgxpool.Pool and verifies connectivity with a ping.
func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	cfg.MaxConns = 25
	cfg.MinConns = 5
	cfg.MaxConnLifetime = 1 * time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second
	cfg.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return pool, nil
}

// Store bundles every repository over a single pool, satisfying
// internal/store.Store.
type Store struct {
	*AgentRepository
	*TaskRepository
	*QueueRepository
	*RunRepository
	*AuditRepository
}

// NewStore wires every repository against pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		AgentRepository: NewAgentRepository(pool),
		TaskRepository:  NewTaskRepository(pool),
		QueueRepository: NewQueueRepository(pool),
		RunRepository:   NewRunRepository(pool),
		AuditRepository: NewAuditRepository(pool),
	}
}

// rowScanner is satisfied by both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}
