package client

import "context"

// Client is the admin API as panelctl sees it.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	TrafficStats(ctx context.Context, accountID int64) (*TrafficStats, error)
	MyTrafficStats(ctx context.Context) (*TrafficStats, error)
	ListTrafficStats(ctx context.Context, offset, limit int) ([]TrafficStats, error)
	TopUsers(ctx context.Context, limit int) ([]TopUser, error)
	SystemTotals(ctx context.Context) (*Totals, error)
	CreateSnapshot(ctx context.Context, accountID int64) (*Snapshot, error)
	History(ctx context.Context, accountID int64, days int) ([]Snapshot, error)
	ResetTraffic(ctx context.Context, accountID int64, saveToHistory bool) (*Ledger, error)
	ExtendExpiry(ctx context.Context, accountID int64, days int) (*Account, error)
	AddTraffic(ctx context.Context, accountID int64, gigabytes float64) (*Account, error)
	RunSync(ctx context.Context) (*SyncResult, error)
	ActivityLog(ctx context.Context, accountID int64, limit int) ([]ActivityEntry, error)
}

var _ Client = (*GRPCClient)(nil)
