package profiles

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const qActive = `(?s)^SELECT\s+c\.id,.*FROM\s+configs\s+c\s+LEFT\s+JOIN\s+accounts\s+a\s+ON\s+a\.id\s*=\s*c\.account_id\s+LEFT\s+JOIN\s+servers\s+s\s+ON\s+s\.id\s*=\s*c\.server_id\s+WHERE\s+c\.is_active\s*=\s*TRUE\s+ORDER\s+BY\s+c\.id\s+ASC\s*$`

var viewCols = []string{
	"id", "name", "account_id", "server_id", "protocol", "config_data",
	"traffic_limit_gb", "traffic_used_gb", "expiry_date", "is_active",
	"a_id", "username", "email", "s_id", "host", "port", "type",
}

func TestListActiveViews(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()
	repo := NewPostgresRepository(db)

	mock.ExpectQuery(qActive).WillReturnRows(sqlmock.NewRows(viewCols).
		AddRow(int64(1), "alice-de", int64(10), int64(100), "vless", `{"id":"x"}`, 50.0, 1.5, nil, true,
			int64(10), "alice", "a@example.com", int64(100), "de.example.com", int64(443), "xray").
		AddRow(int64(2), "ghost", int64(11), int64(100), "vmess", `{}`, nil, 0.0, nil, true,
			nil, nil, nil, int64(100), "de.example.com", int64(443), "xray"))

	got, err := repo.ListActiveViews(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].Profile.ID)
	assert.Equal(t, "vless", got[0].Profile.Protocol)
	require.NotNil(t, got[0].Profile.TrafficLimitGB)
	assert.Equal(t, 50.0, *got[0].Profile.TrafficLimitGB)
	assert.Equal(t, &models.AccountRef{ID: 10, Username: "alice", Email: "a@example.com"}, got[0].Account)
	assert.Equal(t, &models.ServerRef{ID: 100, Host: "de.example.com", Port: 443, Type: "xray"}, got[0].Server)

	assert.Nil(t, got[1].Account, "vanished account stays nil")
	assert.Nil(t, got[1].Profile.TrafficLimitGB)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveViews_DBError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(qActive).WillReturnError(errors.New("timeout"))
	_, err = NewPostgresRepository(db).ListActiveViews(context.Background())
	require.ErrorContains(t, err, "db error: timeout")
}
