package services

import (
	"context"
	"database/sql"
	"iter"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/dbx"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/boleyla/panel/internal/server/repositories/accounts"
	"github.com/boleyla/panel/internal/server/repositories/auditlogs"
	"github.com/boleyla/panel/internal/server/repositories/history"
	"github.com/boleyla/panel/internal/server/repositories/profiles"
	"github.com/boleyla/panel/internal/server/repositories/traffic"
	"github.com/stretchr/testify/require"
)

// store is an in-memory stand-in for the tables the services touch. It logs
// every write so tests can assert ordering.
type store struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	ledgers  map[int64]*models.TrafficLedger
	history  []models.TrafficSnapshot
	audit    []models.AuditEntry
	writes   []string

	failOn map[string]error
}

func newStore() *store {
	return &store{
		accounts: map[int64]*models.Account{},
		ledgers:  map[int64]*models.TrafficLedger{},
		failOn:   map[string]error{},
	}
}

func (s *store) addAccount(a models.Account, l models.TrafficLedger) {
	s.accounts[a.ID] = &a
	l.AccountID = a.ID
	l.Total = l.Upload + l.Download
	s.ledgers[a.ID] = &l
}

func (s *store) fail(op string) error { return s.failOn[op] }

type fakeAccounts struct{ s *store }

func (f fakeAccounts) GetByID(_ context.Context, id int64) (*models.Account, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail("accounts.get"); err != nil {
		return nil, err
	}
	a, ok := f.s.accounts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (f fakeAccounts) GetByIDForUpdate(ctx context.Context, id int64) (*models.Account, error) {
	return f.GetByID(ctx, id)
}

func (f fakeAccounts) Exists(_ context.Context, id int64) (bool, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	_, ok := f.s.accounts[id]
	return ok, nil
}

func (f fakeAccounts) UpdateDataLimit(_ context.Context, id int64, limit int64) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail("accounts.limit"); err != nil {
		return err
	}
	f.s.accounts[id].DataLimit = &limit
	f.s.writes = append(f.s.writes, "accounts.limit")
	return nil
}

func (f fakeAccounts) UpdateExpireAt(_ context.Context, id int64, at time.Time) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	f.s.accounts[id].ExpireAt = &at
	f.s.writes = append(f.s.writes, "accounts.expire")
	return nil
}

type fakeTraffic struct{ s *store }

func (f fakeTraffic) GetByAccount(_ context.Context, id int64) (*models.TrafficLedger, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	l, ok := f.s.ledgers[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *l
	return &cp, nil
}

func (f fakeTraffic) GetByAccountForUpdate(ctx context.Context, id int64) (*models.TrafficLedger, error) {
	return f.GetByAccount(ctx, id)
}

func (f fakeTraffic) Update(_ context.Context, l *models.TrafficLedger) (*models.TrafficLedger, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail("traffic.update"); err != nil {
		return nil, err
	}
	cp := *l
	cp.Total = cp.Upload + cp.Download
	f.s.ledgers[l.AccountID] = &cp
	f.s.writes = append(f.s.writes, "traffic.update")
	out := cp
	return &out, nil
}

func (f fakeTraffic) ListWithAccounts(_ context.Context, offset, limit int) ([]traffic.AccountLedger, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	var out []traffic.AccountLedger
	for id := int64(1); id <= int64(len(f.s.accounts)+offset) && len(out) < limit; id++ {
		a, ok := f.s.accounts[id]
		if !ok || id <= int64(offset) {
			continue
		}
		out = append(out, traffic.AccountLedger{Account: *a, Ledger: *f.s.ledgers[id]})
	}
	return out, nil
}

func (f fakeTraffic) Top(context.Context, int) ([]models.TopUser, error) {
	return []models.TopUser{{AccountID: 1, Username: "alice", Total: 10}}, nil
}

func (f fakeTraffic) Totals(context.Context) (*models.SystemTotals, error) {
	return &models.SystemTotals{}, nil
}

type fakeHistory struct{ s *store }

func (f fakeHistory) Create(_ context.Context, snap *models.TrafficSnapshot) (*models.TrafficSnapshot, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail("history.create"); err != nil {
		return nil, err
	}
	cp := *snap
	cp.ID = int64(len(f.s.history) + 1)
	f.s.history = append(f.s.history, cp)
	f.s.writes = append(f.s.writes, "history.create")
	return &cp, nil
}

func (f fakeHistory) Since(_ context.Context, accountID int64, since time.Time) iter.Seq2[models.TrafficSnapshot, error] {
	return func(yield func(models.TrafficSnapshot, error) bool) {
		f.s.mu.Lock()
		rows := append([]models.TrafficSnapshot(nil), f.s.history...)
		f.s.mu.Unlock()
		for i := len(rows) - 1; i >= 0; i-- {
			r := rows[i]
			if r.AccountID != accountID || r.RecordedAt.Before(since) {
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

type fakeAudit struct{ s *store }

func (f fakeAudit) Create(_ context.Context, e *models.AuditEntry) error {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail("audit.create"); err != nil {
		return err
	}
	f.s.audit = append(f.s.audit, *e)
	f.s.writes = append(f.s.writes, "audit.create")
	return nil
}

func (f fakeAudit) ListByResource(_ context.Context, resource string, resourceID int64, limit int) ([]models.AuditEntry, error) {
	f.s.mu.Lock()
	defer f.s.mu.Unlock()
	if err := f.s.fail("audit.list"); err != nil {
		return nil, err
	}
	var out []models.AuditEntry
	for i := len(f.s.audit) - 1; i >= 0 && len(out) < limit; i-- {
		e := f.s.audit[i]
		if e.Resource == resource && e.ResourceID != nil && *e.ResourceID == resourceID {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeRepoManager struct{ s *store }

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accounts.Repository       { return fakeAccounts{m.s} }
func (m *fakeRepoManager) Traffic(dbx.DBTX) traffic.Repository         { return fakeTraffic{m.s} }
func (m *fakeRepoManager) History(dbx.DBTX) history.Repository         { return fakeHistory{m.s} }
func (m *fakeRepoManager) Profiles(dbx.DBTX) profiles.Repository       { return nil }
func (m *fakeRepoManager) AuditLogs(dbx.DBTX) auditlogs.Repository     { return fakeAudit{m.s} }

func newSQLMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}
