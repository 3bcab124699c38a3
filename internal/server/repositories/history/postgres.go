package history

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/boleyla/panel/internal/dbx"
	"github.com/boleyla/panel/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, s *models.TrafficSnapshot) (*models.TrafficSnapshot, error) {
	query :=
		`INSERT INTO traffic_history (account_id, upload, download, total, recorded_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id`

	out := *s
	if err := r.db.QueryRowContext(ctx, query, s.AccountID, s.Upload, s.Download, s.Total, s.RecordedAt).Scan(&out.ID); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &out, nil
}

func (r *PostgresRepository) Since(ctx context.Context, accountID int64, since time.Time) iter.Seq2[models.TrafficSnapshot, error] {
	query :=
		`SELECT id, account_id, upload, download, total, recorded_at
		 FROM traffic_history
		 WHERE account_id = $1 AND recorded_at >= $2
		 ORDER BY recorded_at DESC, id DESC`

	return func(yield func(models.TrafficSnapshot, error) bool) {
		rows, err := r.db.QueryContext(ctx, query, accountID, since)
		if err != nil {
			yield(models.TrafficSnapshot{}, fmt.Errorf("db error: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var s models.TrafficSnapshot
			if err := rows.Scan(&s.ID, &s.AccountID, &s.Upload, &s.Download, &s.Total, &s.RecordedAt); err != nil {
				yield(models.TrafficSnapshot{}, fmt.Errorf("db error: %w", err))
				return
			}
			if !yield(s, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(models.TrafficSnapshot{}, fmt.Errorf("db error: %w", err))
		}
	}
}
