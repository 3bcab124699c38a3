package client

import (
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
	"google.golang.org/protobuf/types/known/structpb"
)

type TrafficStats struct {
	AccountID       int64      `mapstructure:"account_id"`
	Username        string     `mapstructure:"username"`
	Upload          int64      `mapstructure:"upload"`
	Download        int64      `mapstructure:"download"`
	Total           int64      `mapstructure:"total"`
	UsagePercent    float64    `mapstructure:"usage_percent"`
	IsExpired       bool       `mapstructure:"is_expired"`
	IsQuotaExceeded bool       `mapstructure:"is_quota_exceeded"`
	DataLimit       *int64     `mapstructure:"data_limit"`
	ResetCount      int        `mapstructure:"reset_count"`
	LastResetAt     *time.Time `mapstructure:"last_reset_at"`
	ExpireAt        *time.Time `mapstructure:"expire_at"`
}

type Ledger struct {
	AccountID   int64      `mapstructure:"account_id"`
	Upload      int64      `mapstructure:"upload"`
	Download    int64      `mapstructure:"download"`
	Total       int64      `mapstructure:"total"`
	ResetCount  int        `mapstructure:"reset_count"`
	LastResetAt *time.Time `mapstructure:"last_reset_at"`
}

type Account struct {
	AccountID int64      `mapstructure:"account_id"`
	Username  string     `mapstructure:"username"`
	Role      string     `mapstructure:"role"`
	IsActive  bool       `mapstructure:"is_active"`
	DataLimit *int64     `mapstructure:"data_limit"`
	ExpireAt  *time.Time `mapstructure:"expire_at"`
}

type Snapshot struct {
	ID         int64     `mapstructure:"id"`
	AccountID  int64     `mapstructure:"account_id"`
	Upload     int64     `mapstructure:"upload"`
	Download   int64     `mapstructure:"download"`
	Total      int64     `mapstructure:"total"`
	RecordedAt time.Time `mapstructure:"recorded_at"`
}

type TopUser struct {
	AccountID int64  `mapstructure:"account_id"`
	Username  string `mapstructure:"username"`
	Upload    int64  `mapstructure:"upload"`
	Download  int64  `mapstructure:"download"`
	Total     int64  `mapstructure:"total"`
}

type Totals struct {
	Upload   int64 `mapstructure:"upload"`
	Download int64 `mapstructure:"download"`
	Total    int64 `mapstructure:"total"`
	Accounts int64 `mapstructure:"accounts"`
}

type SyncItem struct {
	ProfileID int64  `mapstructure:"profile_id"`
	OK        bool   `mapstructure:"ok"`
	Code      string `mapstructure:"code"`
	Error     string `mapstructure:"error"`
}

type SyncResult struct {
	RunID        string     `mapstructure:"run_id"`
	Status       string     `mapstructure:"status"`
	Items        []SyncItem `mapstructure:"items"`
	ArtifactPath string     `mapstructure:"artifact_path"`
	Changed      bool       `mapstructure:"changed"`
	Error        string     `mapstructure:"error"`
	ArchiveKey   string     `mapstructure:"archive_key"`
	ArchiveError string     `mapstructure:"archive_error"`
	StartedAt    time.Time  `mapstructure:"started_at"`
	FinishedAt   time.Time  `mapstructure:"finished_at"`
}

// ActivityEntry is one audit record about an account. ActorID is nil
// for changes made by the scheduler.
type ActivityEntry struct {
	ID         int64     `mapstructure:"id"`
	ActorID    *int64    `mapstructure:"actor_id"`
	Action     string    `mapstructure:"action"`
	Resource   string    `mapstructure:"resource"`
	ResourceID *int64    `mapstructure:"resource_id"`
	Details    string    `mapstructure:"details"`
	IPAddress  string    `mapstructure:"ip_address"`
	CreatedAt  time.Time `mapstructure:"created_at"`
}

// decode copies a response document into out. Timestamps arrive as
// RFC 3339 strings and numbers as doubles.
func decode(in *structpb.Struct, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339Nano),
		Result:     out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(in.AsMap()); err != nil {
		return fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	return nil
}
