package models

import "time"

// TrafficLedger is the live traffic counter of one account.
// Total is maintained by the database as Upload + Download.
type TrafficLedger struct {
	ID          int64
	AccountID   int64
	Upload      int64
	Download    int64
	Total       int64
	ResetCount  int
	LastResetAt *time.Time
}

// TrafficSnapshot is an immutable copy of ledger counters.
type TrafficSnapshot struct {
	ID         int64
	AccountID  int64
	Upload     int64
	Download   int64
	Total      int64
	RecordedAt time.Time
}

// TrafficUsage is the quota evaluation of a ledger against its account.
type TrafficUsage struct {
	Upload          int64
	Download        int64
	Total           int64
	UsagePercent    float64
	IsExpired       bool
	IsQuotaExceeded bool
}

// TrafficStats is the reporting view combining an account, its ledger and
// the usage evaluation.
type TrafficStats struct {
	AccountID   int64
	Username    string
	DataLimit   *int64
	ResetCount  int
	LastResetAt *time.Time
	ExpireAt    *time.Time
	TrafficUsage
}

// TopUser is one row of the traffic leaderboard.
type TopUser struct {
	AccountID int64
	Username  string
	Upload    int64
	Download  int64
	Total     int64
}

// SystemTotals aggregates every ledger row.
type SystemTotals struct {
	Upload   int64
	Download int64
	Total    int64
	Accounts int64
}
