package auditlogs

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/boleyla/panel/internal/dbx"
	"github.com/boleyla/panel/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, e *models.AuditEntry) error {
	query :=
		`INSERT INTO audit_logs (actor_id, action, resource, resource_id, details, ip_address, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`

	var actor, resourceID any
	if e.ActorID != nil {
		actor = *e.ActorID
	}
	if e.ResourceID != nil {
		resourceID = *e.ResourceID
	}

	err := r.db.QueryRowContext(ctx, query, actor, e.Action, e.Resource, resourceID, e.Details, e.IPAddress, e.CreatedAt).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListByResource(ctx context.Context, resource string, resourceID int64, limit int) ([]models.AuditEntry, error) {
	query :=
		`SELECT id, actor_id, action, resource, resource_id, details, ip_address, created_at
		 FROM audit_logs
		 WHERE resource = $1 AND resource_id = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT $3`

	rows, err := r.db.QueryContext(ctx, query, resource, resourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var (
			e                 models.AuditEntry
			actor, resourceNo sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &actor, &e.Action, &e.Resource, &resourceNo, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if actor.Valid {
			e.ActorID = &actor.Int64
		}
		if resourceNo.Valid {
			e.ResourceID = &resourceNo.Int64
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
