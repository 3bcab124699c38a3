// Package ledger holds the quota arithmetic of the traffic ledger. Nothing in
// here touches storage; callers load rows, apply these functions and persist.
package ledger

import (
	"fmt"
	"math"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/server/models"
)

// QuotaBytes converts gigabytes to bytes with 1 GiB = 2^30 bytes, truncating
// toward zero. Inputs that are not finite or do not land in [1, MaxInt64)
// bytes are rejected.
func QuotaBytes(gigabytes float64) (int64, error) {
	if math.IsNaN(gigabytes) || math.IsInf(gigabytes, 0) || gigabytes <= 0 {
		return 0, fmt.Errorf("%w: gigabytes must be a positive number", common.ErrorInvalidArgument)
	}
	b := math.Trunc(gigabytes * float64(common.GiB))
	if b < 1 || b >= math.MaxInt64 {
		return 0, fmt.Errorf("%w: %v gigabytes is out of range", common.ErrorInvalidArgument, gigabytes)
	}
	return int64(b), nil
}

// AddQuota adds bytes to limit. A nil limit (unlimited) counts as zero, so a
// top-up always yields a finite limit.
func AddQuota(limit *int64, bytes int64) (int64, error) {
	var base int64
	if limit != nil {
		base = *limit
	}
	if bytes > math.MaxInt64-base {
		return 0, fmt.Errorf("%w: data limit would overflow", common.ErrorInvalidArgument)
	}
	return base + bytes, nil
}

// Usage evaluates a ledger against its account at instant now.
func Usage(a *models.Account, l *models.TrafficLedger, now time.Time) models.TrafficUsage {
	u := models.TrafficUsage{
		Upload:   l.Upload,
		Download: l.Download,
		Total:    l.Total,
	}
	if a.DataLimit != nil && *a.DataLimit > 0 {
		limit := *a.DataLimit
		u.UsagePercent = math.Round(float64(l.Total)/float64(limit)*100*100) / 100
		u.IsQuotaExceeded = l.Total >= limit
	}
	u.IsExpired = a.ExpireAt != nil && a.ExpireAt.Before(now)
	return u
}

// NextExpiry computes the expiry after adding days. An unset or lapsed expiry
// restarts from now; a future one is extended from where it stands. The
// result is always after now.
func NextExpiry(current *time.Time, days int, now time.Time) (time.Time, error) {
	if days <= 0 {
		return time.Time{}, fmt.Errorf("%w: days must be positive", common.ErrorInvalidArgument)
	}
	if days > common.MaxExtendDays {
		return time.Time{}, fmt.Errorf("%w: days must not exceed %d", common.ErrorInvalidArgument, common.MaxExtendDays)
	}
	from := now
	if current != nil && current.After(now) {
		from = *current
	}
	next := from.Add(time.Duration(days) * 24 * time.Hour)
	if !next.After(now) {
		return time.Time{}, fmt.Errorf("%w: expiry out of range", common.ErrorInvalidArgument)
	}
	return next, nil
}

// Zeroed returns l after a reset at instant now.
func Zeroed(l models.TrafficLedger, now time.Time) models.TrafficLedger {
	l.Upload, l.Download, l.Total = 0, 0, 0
	l.ResetCount++
	at := now
	l.LastResetAt = &at
	return l
}

// Snapshot copies the counters of l as they are at instant now.
func Snapshot(l *models.TrafficLedger, now time.Time) *models.TrafficSnapshot {
	return &models.TrafficSnapshot{
		AccountID:  l.AccountID,
		Upload:     l.Upload,
		Download:   l.Download,
		Total:      l.Total,
		RecordedAt: now,
	}
}

// HasTraffic reports whether a reset of l would discard anything.
func HasTraffic(l *models.TrafficLedger) bool {
	return l.Upload > 0 || l.Download > 0
}
