package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/auth"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/coder/quartz"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestAccountService_ResetTraffic_SnapshotsBeforeZeroing(t *testing.T) {
	db, mock := newSQLMockDB(t)
	clock := quartz.NewMock(t)
	clock.Set(testNow)
	s := newStore()
	s.addAccount(models.Account{ID: 1, Username: "alice", DataLimit: ptr[int64](1000)},
		models.TrafficLedger{Upload: 500, Download: 300})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	usage, err := svc.ComputeUsage(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 80.0, usage.UsagePercent)
	assert.False(t, usage.IsQuotaExceeded)

	out, err := svc.ResetTraffic(context.Background(), 1, true)
	require.NoError(t, err)

	assert.Equal(t, int64(0), out.Total)
	assert.Equal(t, 1, out.ResetCount)
	require.NotNil(t, out.LastResetAt)
	assert.Equal(t, testNow, *out.LastResetAt)

	require.Len(t, s.history, 1)
	assert.Equal(t, models.TrafficSnapshot{ID: 1, AccountID: 1, Upload: 500, Download: 300, Total: 800, RecordedAt: testNow}, s.history[0])
	assert.Equal(t, []string{"history.create", "traffic.update", "audit.create"}, s.writes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_ResetTraffic_NoSnapshot(t *testing.T) {
	tests := []struct {
		name   string
		ledger models.TrafficLedger
		save   bool
	}{
		{name: "save disabled", ledger: models.TrafficLedger{Upload: 10, Download: 5}, save: false},
		{name: "nothing recorded", ledger: models.TrafficLedger{}, save: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			clock := quartz.NewMock(t)
			clock.Set(testNow)
			s := newStore()
			s.addAccount(models.Account{ID: 7, Username: "bob"}, tt.ledger)
			svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

			mock.ExpectBegin()
			mock.ExpectCommit()

			out, err := svc.ResetTraffic(context.Background(), 7, tt.save)
			require.NoError(t, err)
			assert.Equal(t, int64(0), out.Total)
			assert.Empty(t, s.history)
			assert.Equal(t, []string{"traffic.update", "audit.create"}, s.writes)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountService_ResetTraffic_RollsBackOnFailure(t *testing.T) {
	for _, op := range []string{"history.create", "traffic.update", "audit.create"} {
		t.Run(op, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			clock := quartz.NewMock(t)
			clock.Set(testNow)
			s := newStore()
			s.addAccount(models.Account{ID: 1, Username: "alice"}, models.TrafficLedger{Upload: 1, Download: 2})
			s.failOn[op] = errors.New("boom")
			svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

			mock.ExpectBegin()
			mock.ExpectRollback()

			out, err := svc.ResetTraffic(context.Background(), 1, true)
			require.Error(t, err)
			assert.Nil(t, out)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountService_ResetTraffic_NotFound(t *testing.T) {
	db, mock := newSQLMockDB(t)
	clock := quartz.NewMock(t)
	s := newStore()
	svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.ResetTraffic(context.Background(), 42, true)
	require.ErrorIs(t, err, common.ErrorNotFound)
	assert.Empty(t, s.writes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_ResetTraffic_AuditActor(t *testing.T) {
	db, mock := newSQLMockDB(t)
	clock := quartz.NewMock(t)
	clock.Set(testNow)
	s := newStore()
	s.addAccount(models.Account{ID: 3, Username: "carol"}, models.TrafficLedger{Upload: 9})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

	mock.ExpectBegin()
	mock.ExpectCommit()

	ctx := auth.WithIdentity(context.Background(), auth.Identity{AccountID: 99, Role: models.RoleAdmin, Addr: "10.0.0.1:5555"})
	_, err := svc.ResetTraffic(ctx, 3, false)
	require.NoError(t, err)

	require.Len(t, s.audit, 1)
	e := s.audit[0]
	assert.Equal(t, "reset_traffic", e.Action)
	assert.Equal(t, "account", e.Resource)
	assert.Equal(t, ptr[int64](3), e.ResourceID)
	assert.Equal(t, ptr[int64](99), e.ActorID)
	assert.Equal(t, "10.0.0.1:5555", e.IPAddress)
	assert.Equal(t, "save_to_history=false", e.Details)
	assert.Equal(t, testNow, e.CreatedAt)
}

func TestAccountService_AddTraffic(t *testing.T) {
	tests := []struct {
		name  string
		limit *int64
		gb    float64
		want  int64
	}{
		{name: "unlimited becomes finite", limit: nil, gb: 1, want: common.GiB},
		{name: "adds to existing", limit: ptr[int64](1000), gb: 0.5, want: 1000 + common.GiB/2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			clock := quartz.NewMock(t)
			s := newStore()
			s.addAccount(models.Account{ID: 1, Username: "alice", DataLimit: tt.limit}, models.TrafficLedger{})
			svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

			mock.ExpectBegin()
			mock.ExpectCommit()

			out, err := svc.AddTraffic(context.Background(), 1, tt.gb)
			require.NoError(t, err)
			require.NotNil(t, out.DataLimit)
			assert.Equal(t, tt.want, *out.DataLimit)
			assert.Equal(t, tt.want, *s.accounts[1].DataLimit)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountService_AddTraffic_Invalid(t *testing.T) {
	for _, gb := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		db, mock := newSQLMockDB(t)
		s := newStore()
		svc := NewAccountService(db, &fakeRepoManager{s: s}, quartz.NewMock(t), logging.Nop{}, nil)

		// Validation happens before the account is looked up.
		_, err := svc.AddTraffic(context.Background(), 404, gb)
		require.ErrorIs(t, err, common.ErrorInvalidArgument, "gb=%v", gb)
		require.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestAccountService_AddTraffic_Overflow(t *testing.T) {
	db, mock := newSQLMockDB(t)
	s := newStore()
	s.addAccount(models.Account{ID: 1, DataLimit: ptr[int64](math.MaxInt64 - 10)}, models.TrafficLedger{})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, quartz.NewMock(t), logging.Nop{}, nil)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, err := svc.AddTraffic(context.Background(), 1, 1)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)
	assert.Equal(t, int64(math.MaxInt64-10), *s.accounts[1].DataLimit)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_ExtendExpiry(t *testing.T) {
	future := testNow.Add(48 * time.Hour)
	past := testNow.Add(-48 * time.Hour)

	tests := []struct {
		name    string
		current *time.Time
		want    time.Time
	}{
		{name: "unset", current: nil, want: testNow.Add(30 * 24 * time.Hour)},
		{name: "lapsed", current: &past, want: testNow.Add(30 * 24 * time.Hour)},
		{name: "equal to now", current: ptr(testNow), want: testNow.Add(30 * 24 * time.Hour)},
		{name: "future", current: &future, want: future.Add(30 * 24 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newSQLMockDB(t)
			clock := quartz.NewMock(t)
			clock.Set(testNow)
			s := newStore()
			s.addAccount(models.Account{ID: 1, ExpireAt: tt.current}, models.TrafficLedger{})
			svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

			mock.ExpectBegin()
			mock.ExpectCommit()

			out, err := svc.ExtendExpiry(context.Background(), 1, 30)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *out.ExpireAt)
			assert.Equal(t, tt.want, *s.accounts[1].ExpireAt)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestAccountService_ExtendExpiry_Invalid(t *testing.T) {
	db, mock := newSQLMockDB(t)
	svc := NewAccountService(db, &fakeRepoManager{s: newStore()}, quartz.NewMock(t), logging.Nop{}, nil)

	for _, days := range []int{0, -3, common.MaxExtendDays + 1, 110000} {
		_, err := svc.ExtendExpiry(context.Background(), 404, days)
		require.ErrorIs(t, err, common.ErrorInvalidArgument)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_ComputeUsage(t *testing.T) {
	tests := []struct {
		name    string
		account models.Account
		ledger  models.TrafficLedger
		want    models.TrafficUsage
	}{
		{
			name:    "unlimited",
			account: models.Account{ID: 1},
			ledger:  models.TrafficLedger{Upload: 10, Download: 20},
			want:    models.TrafficUsage{Upload: 10, Download: 20, Total: 30},
		},
		{
			name:    "exceeded at exact limit",
			account: models.Account{ID: 1, DataLimit: ptr[int64](30)},
			ledger:  models.TrafficLedger{Upload: 10, Download: 20},
			want:    models.TrafficUsage{Upload: 10, Download: 20, Total: 30, UsagePercent: 100, IsQuotaExceeded: true},
		},
		{
			name:    "rounded percent",
			account: models.Account{ID: 1, DataLimit: ptr[int64](3)},
			ledger:  models.TrafficLedger{Upload: 1},
			want:    models.TrafficUsage{Upload: 1, Total: 1, UsagePercent: 33.33},
		},
		{
			name:    "expired",
			account: models.Account{ID: 1, ExpireAt: ptr(testNow.Add(-time.Second))},
			ledger:  models.TrafficLedger{},
			want:    models.TrafficUsage{IsExpired: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, _ := newSQLMockDB(t)
			clock := quartz.NewMock(t)
			clock.Set(testNow)
			s := newStore()
			s.addAccount(tt.account, tt.ledger)
			svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

			got, err := svc.ComputeUsage(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestAccountService_ComputeUsage_NotFound(t *testing.T) {
	db, _ := newSQLMockDB(t)
	svc := NewAccountService(db, &fakeRepoManager{s: newStore()}, quartz.NewMock(t), logging.Nop{}, nil)

	_, err := svc.ComputeUsage(context.Background(), 5)
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestAccountService_ListTrafficStats(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newStore()
	s.addAccount(models.Account{ID: 1, Username: "a", DataLimit: ptr[int64](100)}, models.TrafficLedger{Upload: 50})
	s.addAccount(models.Account{ID: 2, Username: "b"}, models.TrafficLedger{Download: 5})
	s.addAccount(models.Account{ID: 3, Username: "c"}, models.TrafficLedger{})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, quartz.NewMock(t), logging.Nop{}, nil)

	got, err := svc.ListTrafficStats(context.Background(), 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].Username)
	assert.Equal(t, "c", got[1].Username)

	got, err = svc.ListTrafficStats(context.Background(), 0, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 50.0, got[0].UsagePercent)

	_, err = svc.ListTrafficStats(context.Background(), -1, 10)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)
	_, err = svc.ListTrafficStats(context.Background(), 0, 0)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)
	_, err = svc.ListTrafficStats(context.Background(), 0, 101)
	require.ErrorIs(t, err, common.ErrorInvalidArgument)
}

func TestAccountService_ActivityLog(t *testing.T) {
	db, mock := newSQLMockDB(t)
	clock := quartz.NewMock(t)
	clock.Set(testNow)
	s := newStore()
	s.addAccount(models.Account{ID: 1, Username: "a"}, models.TrafficLedger{})
	s.addAccount(models.Account{ID: 2, Username: "b"}, models.TrafficLedger{})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)
	ctx := context.Background()

	for _, id := range []int64{1, 2, 1} {
		mock.ExpectBegin()
		mock.ExpectCommit()
		_, err := svc.ExtendExpiry(ctx, id, 1)
		require.NoError(t, err)
	}
	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.AddTraffic(ctx, 1, 1)
	require.NoError(t, err)

	got, err := svc.ActivityLog(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "add_traffic", got[0].Action, "newest first")
	assert.Equal(t, "extend_expiry", got[1].Action)
	for _, e := range got {
		assert.Equal(t, int64(1), *e.ResourceID)
	}

	got, err = svc.ActivityLog(ctx, 2, 50)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAccountService_ActivityLog_Errors(t *testing.T) {
	db, _ := newSQLMockDB(t)
	s := newStore()
	s.addAccount(models.Account{ID: 1}, models.TrafficLedger{})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, quartz.NewMock(t), logging.Nop{}, nil)
	ctx := context.Background()

	_, err := svc.ActivityLog(ctx, 404, 50)
	require.ErrorIs(t, err, common.ErrorNotFound)

	for _, limit := range []int{0, -1, common.MaxActivityLimit + 1} {
		_, err := svc.ActivityLog(ctx, 1, limit)
		require.ErrorIs(t, err, common.ErrorInvalidArgument, limit)
	}

	got, err := svc.ActivityLog(ctx, 1, common.MaxActivityLimit)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAccountService_ConcurrentResetsAreSerialized(t *testing.T) {
	db, mock := newSQLMockDB(t)
	clock := quartz.NewMock(t)
	s := newStore()
	s.addAccount(models.Account{ID: 1}, models.TrafficLedger{Upload: 100})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, clock, logging.Nop{}, nil)

	const n = 5
	for range n {
		mock.ExpectBegin()
		mock.ExpectCommit()
	}

	errs := make(chan error, n)
	for range n {
		go func() {
			_, err := svc.ResetTraffic(context.Background(), 1, true)
			errs <- err
		}()
	}
	for range n {
		require.NoError(t, <-errs)
	}

	// Only the first reset saw traffic worth keeping.
	assert.Len(t, s.history, 1)
	assert.Equal(t, n, s.ledgers[1].ResetCount)
}

func TestAccountService_Metrics(t *testing.T) {
	db, mock := newSQLMockDB(t)
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	s := newStore()
	s.addAccount(models.Account{ID: 1}, models.TrafficLedger{})
	svc := NewAccountService(db, &fakeRepoManager{s: s}, quartz.NewMock(t), logging.Nop{}, m)

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err := svc.ExtendExpiry(context.Background(), 1, 1)
	require.NoError(t, err)
	_, err = svc.ExtendExpiry(context.Background(), 1, 0)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("extend_expiry", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ops.WithLabelValues("extend_expiry", "invalid_argument")))
}
