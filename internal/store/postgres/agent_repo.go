package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ordinaut/ordinaut/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type AgentRepository struct {
	pool *pgxpool.Pool
}

func NewAgentRepository(pool *pgxpool.Pool) *AgentRepository {
	return &AgentRepository{pool: pool}
}

func (r *AgentRepository) CreateAgent(ctx context.Context, a *domain.Agent) (*domain.Agent, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO agents (id, name, scopes)
		VALUES ($1, $2, $3)
		RETURNING id, name, scopes, created_at`,
		a.ID, a.Name, a.Scopes,
	)

	created, err := scanAgent(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, domain.ErrAgentNameConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *AgentRepository) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, scopes, created_at FROM agents WHERE id = $1`, id)
	return scanAgent(row)
}

func (r *AgentRepository) GetAgentByName(ctx context.Context, name string) (*domain.Agent, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, scopes, created_at FROM agents WHERE name = $1`, name)
	return scanAgent(row)
}

func (r *AgentRepository) DeleteAgent(ctx context.Context, id string) error {
	agent, err := r.GetAgent(ctx, id)
	if err != nil {
		return err
	}
	if agent.Name == domain.SystemAgentName {
		return domain.ErrSystemAgentDelete
	}

	tag, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAgentNotFound
	}
	return nil
}

func scanAgent(row rowScanner) (*domain.Agent, error) {
	var a domain.Agent
	err := row.Scan(&a.ID, &a.Name, &a.Scopes, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAgentNotFound
		}
		return nil, fmt.Errorf("scan agent: %w", err)
	}
	return &a, nil
}
