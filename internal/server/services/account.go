// Package services contains the server-side business logic of the panel:
// account lifecycle and quota operations, and the traffic history reports.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/dbx"
	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/auth"
	"github.com/boleyla/panel/internal/server/ledger"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/boleyla/panel/internal/server/repositories/repomanager"
	"github.com/coder/quartz"
	"github.com/dustin/go-humanize"
)

// AccountService applies quota and expiry changes to accounts. Every mutation
// holds the account's in-process lock and runs in a single transaction with
// the ledger row locked, so concurrent calls for one account are serialized
// and a failure leaves nothing half-applied.
type AccountService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       quartz.Clock
	locks       *keyLock
	logger      logging.Logger
	metrics     *Metrics
}

// NewAccountService returns a service that reads and writes through db.
// metrics may be nil.
func NewAccountService(db *sql.DB, m repomanager.RepositoryManager, clock quartz.Clock, l logging.Logger, metrics *Metrics) *AccountService {
	return &AccountService{
		db:          db,
		repomanager: m,
		clock:       clock,
		locks:       newKeyLock(),
		logger:      l.With("module", "account_service"),
		metrics:     metrics,
	}
}

func (s *AccountService) mutate(ctx context.Context, accountID int64, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	unlock, err := s.locks.Lock(ctx, accountID)
	if err != nil {
		return err
	}
	defer unlock()

	return dbx.WithTx(ctx, s.db, dbx.ReadCommitted, fn)
}

const auditResource = "account"

func (s *AccountService) audit(ctx context.Context, tx dbx.DBTX, action string, accountID int64, details string) error {
	e := &models.AuditEntry{
		Action:     action,
		Resource:   auditResource,
		ResourceID: &accountID,
		Details:    details,
		CreatedAt:  s.clock.Now(),
	}
	if id, ok := auth.FromContext(ctx); ok {
		actor := id.AccountID
		e.ActorID = &actor
		e.IPAddress = id.Addr
	}
	return s.repomanager.AuditLogs(tx).Create(ctx, e)
}

// ResetTraffic zeroes the account's counters. With saveToHistory and any
// recorded traffic, the pre-reset counters are appended to the history
// before the zeroing update, inside the same transaction.
func (s *AccountService) ResetTraffic(ctx context.Context, accountID int64, saveToHistory bool) (out *models.TrafficLedger, err error) {
	defer func() { s.metrics.observe("reset_traffic", err) }()

	var before models.TrafficLedger
	var snapshotted bool

	err = s.mutate(ctx, accountID, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repomanager.Accounts(tx).GetByID(ctx, accountID); err != nil {
			return fmt.Errorf("account %d: %w", accountID, err)
		}
		cur, err := s.repomanager.Traffic(tx).GetByAccountForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("ledger of account %d: %w", accountID, err)
		}
		before = *cur

		now := s.clock.Now()
		if saveToHistory && ledger.HasTraffic(cur) {
			if _, err := s.repomanager.History(tx).Create(ctx, ledger.Snapshot(cur, now)); err != nil {
				return fmt.Errorf("snapshot: %w", err)
			}
			snapshotted = true
		}

		zeroed := ledger.Zeroed(*cur, now)
		out, err = s.repomanager.Traffic(tx).Update(ctx, &zeroed)
		if err != nil {
			return fmt.Errorf("zero ledger: %w", err)
		}

		return s.audit(ctx, tx, "reset_traffic", accountID, "save_to_history="+strconv.FormatBool(saveToHistory))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "traffic reset",
		"account_id", accountID,
		"discarded", humanize.IBytes(uint64(before.Total)),
		"snapshot", snapshotted,
		"reset_count", out.ResetCount)
	return out, nil
}

// AddTraffic raises the account's data limit by gigabytes (binary GiB).
// An unlimited account ends up with exactly the added amount.
func (s *AccountService) AddTraffic(ctx context.Context, accountID int64, gigabytes float64) (out *models.Account, err error) {
	defer func() { s.metrics.observe("add_traffic", err) }()

	bytes, err := ledger.QuotaBytes(gigabytes)
	if err != nil {
		return nil, err
	}

	err = s.mutate(ctx, accountID, func(ctx context.Context, tx dbx.DBTX) error {
		acc, err := s.repomanager.Accounts(tx).GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", accountID, err)
		}
		limit, err := ledger.AddQuota(acc.DataLimit, bytes)
		if err != nil {
			return err
		}
		if err := s.repomanager.Accounts(tx).UpdateDataLimit(ctx, accountID, limit); err != nil {
			return fmt.Errorf("update data limit: %w", err)
		}
		acc.DataLimit = &limit
		out = acc

		return s.audit(ctx, tx, "add_traffic", accountID, "bytes="+strconv.FormatInt(bytes, 10))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "traffic added",
		"account_id", accountID,
		"added", humanize.IBytes(uint64(bytes)),
		"data_limit", humanize.IBytes(uint64(*out.DataLimit)))
	return out, nil
}

// ExtendExpiry pushes the account's expiry out by days. A lapsed or unset
// expiry restarts from now.
func (s *AccountService) ExtendExpiry(ctx context.Context, accountID int64, days int) (out *models.Account, err error) {
	defer func() { s.metrics.observe("extend_expiry", err) }()

	if days <= 0 || days > common.MaxExtendDays {
		return nil, fmt.Errorf("%w: days must be within [1, %d]", common.ErrorInvalidArgument, common.MaxExtendDays)
	}

	err = s.mutate(ctx, accountID, func(ctx context.Context, tx dbx.DBTX) error {
		acc, err := s.repomanager.Accounts(tx).GetByIDForUpdate(ctx, accountID)
		if err != nil {
			return fmt.Errorf("account %d: %w", accountID, err)
		}
		next, err := ledger.NextExpiry(acc.ExpireAt, days, s.clock.Now())
		if err != nil {
			return err
		}
		if err := s.repomanager.Accounts(tx).UpdateExpireAt(ctx, accountID, next); err != nil {
			return fmt.Errorf("update expiry: %w", err)
		}
		acc.ExpireAt = &next
		out = acc

		return s.audit(ctx, tx, "extend_expiry", accountID, "days="+strconv.Itoa(days))
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "expiry extended", "account_id", accountID, "days", days, "expire_at", *out.ExpireAt)
	return out, nil
}

// ComputeUsage evaluates the account's ledger against its quota and expiry.
func (s *AccountService) ComputeUsage(ctx context.Context, accountID int64) (*models.TrafficUsage, error) {
	st, err := s.TrafficStats(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &st.TrafficUsage, nil
}

// TrafficStats is ComputeUsage plus the account fields a report shows.
func (s *AccountService) TrafficStats(ctx context.Context, accountID int64) (st *models.TrafficStats, err error) {
	defer func() { s.metrics.observe("traffic_stats", err) }()

	acc, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	l, err := s.repomanager.Traffic(s.db).GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ledger of account %d: %w", accountID, err)
	}
	return stats(acc, l, s.clock), nil
}

// ListTrafficStats pages through every account's stats in id order.
func (s *AccountService) ListTrafficStats(ctx context.Context, offset, limit int) (out []models.TrafficStats, err error) {
	defer func() { s.metrics.observe("list_traffic_stats", err) }()

	if offset < 0 {
		return nil, fmt.Errorf("%w: offset must not be negative", common.ErrorInvalidArgument)
	}
	if limit < common.MinTopLimit || limit > common.MaxTopLimit {
		return nil, fmt.Errorf("%w: limit must be within [%d, %d]", common.ErrorInvalidArgument, common.MinTopLimit, common.MaxTopLimit)
	}

	rows, err := s.repomanager.Traffic(s.db).ListWithAccounts(ctx, offset, limit)
	if err != nil {
		return nil, err
	}
	out = make([]models.TrafficStats, 0, len(rows))
	for i := range rows {
		out = append(out, *stats(&rows[i].Account, &rows[i].Ledger, s.clock))
	}
	return out, nil
}

// ActivityLog returns up to limit audit entries about the account, newest
// first. A missing account is NotFound even though its entries may remain.
func (s *AccountService) ActivityLog(ctx context.Context, accountID int64, limit int) (out []models.AuditEntry, err error) {
	defer func() { s.metrics.observe("activity_log", err) }()

	if limit < common.MinActivityLimit || limit > common.MaxActivityLimit {
		return nil, fmt.Errorf("%w: limit must be within [%d, %d]", common.ErrorInvalidArgument, common.MinActivityLimit, common.MaxActivityLimit)
	}
	if _, err := s.repomanager.Accounts(s.db).GetByID(ctx, accountID); err != nil {
		return nil, fmt.Errorf("account %d: %w", accountID, err)
	}
	out, err = s.repomanager.AuditLogs(s.db).ListByResource(ctx, auditResource, accountID, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func stats(acc *models.Account, l *models.TrafficLedger, clock quartz.Clock) *models.TrafficStats {
	return &models.TrafficStats{
		AccountID:    acc.ID,
		Username:     acc.Username,
		DataLimit:    acc.DataLimit,
		ResetCount:   l.ResetCount,
		LastResetAt:  l.LastResetAt,
		ExpireAt:     acc.ExpireAt,
		TrafficUsage: ledger.Usage(acc, l, clock.Now()),
	}
}
