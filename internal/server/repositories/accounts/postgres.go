package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/dbx"
	"github.com/boleyla/panel/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectAccount = `SELECT id, username, email, role, is_active, data_limit, expire_at, created_at, updated_at
		 FROM accounts
		 WHERE id = $1`

func (r *PostgresRepository) get(ctx context.Context, query string, id int64) (*models.Account, error) {
	var (
		a        models.Account
		role     string
		limit    sql.NullInt64
		expireAt sql.NullTime
	)

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&a.ID, &a.Username, &a.Email, &role, &a.IsActive, &limit, &expireAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.Role = models.ParseRole(role)
	if limit.Valid {
		a.DataLimit = &limit.Int64
	}
	if expireAt.Valid {
		t := expireAt.Time
		a.ExpireAt = &t
	}
	return &a, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.get(ctx, selectAccount, id)
}

func (r *PostgresRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	return r.get(ctx, selectAccount+"\n\t\t FOR UPDATE", id)
}

func (r *PostgresRepository) Exists(ctx context.Context, id int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`

	var ok bool
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return ok, nil
}

func (r *PostgresRepository) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) UpdateDataLimit(ctx context.Context, id int64, limit int64) error {
	query :=
		`UPDATE accounts SET data_limit = $2, updated_at = now()
		 WHERE id = $1`

	return r.exec(ctx, query, id, limit)
}

func (r *PostgresRepository) UpdateExpireAt(ctx context.Context, id int64, expireAt time.Time) error {
	query :=
		`UPDATE accounts SET expire_at = $2, updated_at = now()
		 WHERE id = $1`

	return r.exec(ctx, query, id, expireAt)
}
