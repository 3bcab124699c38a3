// Package history stores append-only traffic snapshots.
package history

import (
	"context"
	"iter"
	"time"

	"github.com/boleyla/panel/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, s *models.TrafficSnapshot) (*models.TrafficSnapshot, error)
	// Since yields snapshots of the account recorded at or after since,
	// newest first. The query runs when the sequence is ranged over.
	Since(ctx context.Context, accountID int64, since time.Time) iter.Seq2[models.TrafficSnapshot, error]
}
