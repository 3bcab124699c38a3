// Package auditlogs stores the trail of administrative actions.
package auditlogs

import (
	"context"

	"github.com/boleyla/panel/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, e *models.AuditEntry) error
	// ListByResource returns at most limit entries about one resource,
	// newest first.
	ListByResource(ctx context.Context, resource string, resourceID int64, limit int) ([]models.AuditEntry, error)
}
