package services

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/ledger"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/boleyla/panel/internal/server/repositories/repomanager"
	"github.com/coder/quartz"
)

// HistoryService records traffic snapshots and serves the traffic reports.
type HistoryService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	clock       quartz.Clock
	logger      logging.Logger
	metrics     *Metrics
}

// NewHistoryService returns a service over db that stamps snapshots with
// clock. metrics may be nil.
func NewHistoryService(db *sql.DB, m repomanager.RepositoryManager, clock quartz.Clock, l logging.Logger, metrics *Metrics) *HistoryService {
	return &HistoryService{
		db:          db,
		repomanager: m,
		clock:       clock,
		logger:      l.With("module", "history_service"),
		metrics:     metrics,
	}
}

// Snapshot appends the account's current counters to its history.
func (s *HistoryService) Snapshot(ctx context.Context, accountID int64) (out *models.TrafficSnapshot, err error) {
	defer func() { s.metrics.observe("snapshot", err) }()

	l, err := s.repomanager.Traffic(s.db).GetByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ledger of account %d: %w", accountID, err)
	}
	out, err = s.repomanager.History(s.db).Create(ctx, ledger.Snapshot(l, s.clock.Now()))
	if err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "snapshot recorded", "account_id", accountID, "snapshot_id", out.ID)
	return out, nil
}

// History returns the account's snapshots of the last windowDays days,
// newest first. Nothing is read until the sequence is ranged over, and every
// range runs the query again over the same window.
func (s *HistoryService) History(ctx context.Context, accountID int64, windowDays int) (seq iter.Seq2[models.TrafficSnapshot, error], err error) {
	defer func() { s.metrics.observe("history", err) }()

	if windowDays < common.MinHistoryDays || windowDays > common.MaxHistoryDays {
		return nil, fmt.Errorf("%w: days must be within [%d, %d]", common.ErrorInvalidArgument, common.MinHistoryDays, common.MaxHistoryDays)
	}
	ok, err := s.repomanager.Accounts(s.db).Exists(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("account %d: %w", accountID, common.ErrorNotFound)
	}

	since := s.clock.Now().Add(-time.Duration(windowDays) * 24 * time.Hour)
	return s.repomanager.History(s.db).Since(ctx, accountID, since), nil
}

// TopUsers ranks accounts by total traffic, ties broken by ascending id.
func (s *HistoryService) TopUsers(ctx context.Context, limit int) (out []models.TopUser, err error) {
	defer func() { s.metrics.observe("top_users", err) }()

	if limit < common.MinTopLimit || limit > common.MaxTopLimit {
		return nil, fmt.Errorf("%w: limit must be within [%d, %d]", common.ErrorInvalidArgument, common.MinTopLimit, common.MaxTopLimit)
	}
	return s.repomanager.Traffic(s.db).Top(ctx, limit)
}

// SystemTotals sums every ledger. An empty system reports zeros.
func (s *HistoryService) SystemTotals(ctx context.Context) (out *models.SystemTotals, err error) {
	defer func() { s.metrics.observe("system_totals", err) }()
	return s.repomanager.Traffic(s.db).Totals(ctx)
}
