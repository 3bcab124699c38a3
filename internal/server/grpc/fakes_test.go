package grpc

import (
	"context"
	"iter"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/models"
)

var testNow = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

type fakeAccounts struct {
	stats     map[int64]*models.TrafficStats
	audit     []models.AuditEntry
	err       error
	lastSave  *bool
	lastGB    float64
	lastDays  int
	lastLimit int
}

func (f *fakeAccounts) ResetTraffic(_ context.Context, id int64, save bool) (*models.TrafficLedger, error) {
	f.lastSave = &save
	if f.err != nil {
		return nil, f.err
	}
	at := testNow
	return &models.TrafficLedger{AccountID: id, ResetCount: 1, LastResetAt: &at}, nil
}

func (f *fakeAccounts) AddTraffic(_ context.Context, id int64, gb float64) (*models.Account, error) {
	f.lastGB = gb
	if f.err != nil {
		return nil, f.err
	}
	limit := int64(gb * float64(common.GiB))
	return &models.Account{ID: id, Username: "alice", DataLimit: &limit}, nil
}

func (f *fakeAccounts) ExtendExpiry(_ context.Context, id int64, days int) (*models.Account, error) {
	f.lastDays = days
	if f.err != nil {
		return nil, f.err
	}
	at := testNow.Add(time.Duration(days) * 24 * time.Hour)
	return &models.Account{ID: id, Username: "alice", ExpireAt: &at}, nil
}

func (f *fakeAccounts) TrafficStats(_ context.Context, id int64) (*models.TrafficStats, error) {
	if f.err != nil {
		return nil, f.err
	}
	st, ok := f.stats[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return st, nil
}

func (f *fakeAccounts) ListTrafficStats(_ context.Context, offset, limit int) ([]models.TrafficStats, error) {
	if limit > common.MaxTopLimit {
		return nil, common.ErrorInvalidArgument
	}
	var out []models.TrafficStats
	for id := int64(1); id <= int64(len(f.stats)); id++ {
		if st, ok := f.stats[id]; ok && id > int64(offset) && len(out) < limit {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (f *fakeAccounts) ActivityLog(_ context.Context, id int64, limit int) ([]models.AuditEntry, error) {
	f.lastLimit = limit
	if limit < common.MinActivityLimit || limit > common.MaxActivityLimit {
		return nil, common.ErrorInvalidArgument
	}
	if _, ok := f.stats[id]; !ok {
		return nil, common.ErrorNotFound
	}
	var out []models.AuditEntry
	for _, e := range f.audit {
		if e.ResourceID != nil && *e.ResourceID == id && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeHistory struct {
	snaps []models.TrafficSnapshot
	err   error
}

func (f *fakeHistory) Snapshot(_ context.Context, id int64) (*models.TrafficSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.TrafficSnapshot{ID: 9, AccountID: id, Upload: 1, Download: 2, Total: 3, RecordedAt: testNow}, nil
}

func (f *fakeHistory) History(_ context.Context, id int64, days int) (iter.Seq2[models.TrafficSnapshot, error], error) {
	if days < common.MinHistoryDays || days > common.MaxHistoryDays {
		return nil, common.ErrorInvalidArgument
	}
	if f.err != nil {
		return nil, f.err
	}
	return func(yield func(models.TrafficSnapshot, error) bool) {
		for _, s := range f.snaps {
			if s.AccountID == id && !yield(s, nil) {
				return
			}
		}
	}, nil
}

func (f *fakeHistory) TopUsers(_ context.Context, limit int) ([]models.TopUser, error) {
	return []models.TopUser{{AccountID: 2, Username: "bob", Total: 100}, {AccountID: 1, Username: "alice", Total: 50}}[:min(limit, 2)], nil
}

func (f *fakeHistory) SystemTotals(context.Context) (*models.SystemTotals, error) {
	return &models.SystemTotals{Upload: 10, Download: 20, Total: 30, Accounts: 2}, nil
}

type fakeSyncer struct {
	res *models.SyncResult
	err error
}

func (f *fakeSyncer) Run(context.Context) (*models.SyncResult, error) {
	return f.res, f.err
}

func newTestServer(secret string) (*GRPCServer, *fakeAccounts, *fakeHistory, *fakeSyncer) {
	limit := int64(1000)
	as := &fakeAccounts{stats: map[int64]*models.TrafficStats{
		1: {AccountID: 1, Username: "alice", DataLimit: &limit, TrafficUsage: models.TrafficUsage{Upload: 500, Download: 300, Total: 800, UsagePercent: 80}},
		2: {AccountID: 2, Username: "bob"},
	}}
	hs := &fakeHistory{snaps: []models.TrafficSnapshot{
		{ID: 2, AccountID: 1, Total: 20, RecordedAt: testNow},
		{ID: 1, AccountID: 1, Total: 10, RecordedAt: testNow.Add(-time.Hour)},
	}}
	sy := &fakeSyncer{res: &models.SyncResult{RunID: "run-1", Status: models.SyncSucceeded, StartedAt: testNow, FinishedAt: testNow}}
	return NewGRPCServer("127.0.0.1:0", logging.Nop{}, as, hs, sy, secret), as, hs, sy
}
