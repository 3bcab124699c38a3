package profiles

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

func (r *PostgresRepository) ListActiveViews(ctx context.Context) ([]models.ProfileView, error) {
	query :=
		`SELECT c.id, c.name, c.account_id, c.server_id, c.protocol, c.config_data,
		        c.traffic_limit_gb, c.traffic_used_gb, c.expiry_date, c.is_active,
		        a.id, a.username, a.email,
		        s.id, s.host, s.port, s.type
		 FROM configs c
		 LEFT JOIN accounts a ON a.id = c.account_id
		 LEFT JOIN servers s ON s.id = c.server_id
		 WHERE c.is_active = TRUE
		 ORDER BY c.id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []models.ProfileView
	for rows.Next() {
		var (
			v        models.ProfileView
			limitGB  sql.NullFloat64
			expiry   sql.NullTime
			accID    sql.NullInt64
			accName  sql.NullString
			accEmail sql.NullString
			srvID    sql.NullInt64
			srvHost  sql.NullString
			srvPort  sql.NullInt32
			srvType  sql.NullString
		)
		p := &v.Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.AccountID, &p.ServerID, &p.Protocol, &p.ConfigData,
			&limitGB, &p.TrafficUsedGB, &expiry, &p.IsActive,
			&accID, &accName, &accEmail,
			&srvID, &srvHost, &srvPort, &srvType); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		if limitGB.Valid {
			g := limitGB.Float64
			p.TrafficLimitGB = &g
		}
		if expiry.Valid {
			t := expiry.Time
			p.ExpiryDate = &t
		}
		if accID.Valid {
			v.Account = &models.AccountRef{ID: accID.Int64, Username: accName.String, Email: accEmail.String}
		}
		if srvID.Valid {
			v.Server = &models.ServerRef{ID: srvID.Int64, Host: srvHost.String, Port: int(srvPort.Int32), Type: srvType.String}
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}
