package traffic

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

const selectLedger = `SELECT id, account_id, upload, download, total, reset_count, last_reset_at
		 FROM user_traffic
		 WHERE account_id = $1`

type scanner interface {
	Scan(dest ...any) error
}

func scanLedger(row scanner, l *models.TrafficLedger, extra ...any) error {
	var lastReset sql.NullTime
	dest := append([]any{&l.ID, &l.AccountID, &l.Upload, &l.Download, &l.Total, &l.ResetCount, &lastReset}, extra...)
	if err := row.Scan(dest...); err != nil {
		return err
	}
	l.LastResetAt = nil
	if lastReset.Valid {
		t := lastReset.Time
		l.LastResetAt = &t
	}
	return nil
}

func (r *PostgresRepository) get(ctx context.Context, query string, accountID int64) (*models.TrafficLedger, error) {
	l := &models.TrafficLedger{}
	if err := scanLedger(r.db.QueryRowContext(ctx, query, accountID), l); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) GetByAccount(ctx context.Context, accountID int64) (*models.TrafficLedger, error) {
	return r.get(ctx, selectLedger, accountID)
}

func (r *PostgresRepository) GetByAccountForUpdate(ctx context.Context, accountID int64) (*models.TrafficLedger, error) {
	return r.get(ctx, selectLedger+"\n\t\t FOR UPDATE", accountID)
}

func (r *PostgresRepository) Update(ctx context.Context, l *models.TrafficLedger) (*models.TrafficLedger, error) {
	query :=
		`UPDATE user_traffic
		 SET upload = $2, download = $3, reset_count = $4, last_reset_at = $5
		 WHERE account_id = $1
		 RETURNING id, account_id, upload, download, total, reset_count, last_reset_at`

	var lastReset any
	if l.LastResetAt != nil {
		lastReset = *l.LastResetAt
	}

	out := &models.TrafficLedger{}
	err := scanLedger(r.db.QueryRowContext(ctx, query, l.AccountID, l.Upload, l.Download, l.ResetCount, lastReset), out)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) ListWithAccounts(ctx context.Context, offset, limit int) ([]AccountLedger, error) {
	query :=
		`SELECT t.id, t.account_id, t.upload, t.download, t.total, t.reset_count, t.last_reset_at,
		        a.username, a.role, a.is_active, a.data_limit, a.expire_at
		 FROM user_traffic t
		 JOIN accounts a ON a.id = t.account_id
		 ORDER BY a.id
		 OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []AccountLedger
	for rows.Next() {
		var (
			al       AccountLedger
			role     string
			dl       sql.NullInt64
			expireAt sql.NullTime
		)
		if err := scanLedger(rows, &al.Ledger, &al.Account.Username, &role, &al.Account.IsActive, &dl, &expireAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		al.Account.ID = al.Ledger.AccountID
		al.Account.Role = models.ParseRole(role)
		if dl.Valid {
			v := dl.Int64
			al.Account.DataLimit = &v
		}
		if expireAt.Valid {
			t := expireAt.Time
			al.Account.ExpireAt = &t
		}
		out = append(out, al)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Top(ctx context.Context, limit int) ([]models.TopUser, error) {
	query :=
		`SELECT a.id, a.username, t.upload, t.download, t.total
		 FROM user_traffic t
		 JOIN accounts a ON a.id = t.account_id
		 ORDER BY t.total DESC, a.id ASC
		 LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]models.TopUser, 0, limit)
	for rows.Next() {
		var u models.TopUser
		if err := rows.Scan(&u.AccountID, &u.Username, &u.Upload, &u.Download, &u.Total); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) Totals(ctx context.Context) (*models.SystemTotals, error) {
	query :=
		`SELECT COALESCE(SUM(upload), 0), COALESCE(SUM(download), 0), COALESCE(SUM(total), 0), COUNT(*)
		 FROM user_traffic`

	t := &models.SystemTotals{}
	if err := r.db.QueryRowContext(ctx, query).Scan(&t.Upload, &t.Download, &t.Total, &t.Accounts); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return t, nil
}
