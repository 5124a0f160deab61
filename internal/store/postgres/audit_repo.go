package postgres

import (
	"context"
	"fmt"

	"github.com/ordinaut/ordinaut/internal/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) RecordAudit(ctx context.Context, rec *domain.AuditRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_record (id, actor_agent_id, action, subject_id, details)
		VALUES ($1, NULLIF($2, ''), $3, NULLIF($4, ''), $5)`,
		rec.ID, rec.ActorAgentID, rec.Action, rec.SubjectID, rec.Details,
	)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListAudit(ctx context.Context, subjectID string, limit int) ([]*domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, COALESCE(actor_agent_id, ''), action, COALESCE(subject_id, ''), details, created_at
		FROM audit_record
		WHERE subject_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		subjectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []*domain.AuditRecord
	for rows.Next() {
		var rec domain.AuditRecord
		if err := rows.Scan(&rec.ID, &rec.ActorAgentID, &rec.Action, &rec.SubjectID, &rec.Details, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
