package grpc

import (
	"fmt"
	"math"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/server/models"
	"google.golang.org/protobuf/types/known/structpb"
)

// maxExactInt is the largest integer a JSON number carries without loss.
const maxExactInt = 1 << 53

func numberArg(in *structpb.Struct, name string) (float64, bool, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return 0, false, nil
	}
	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, false, fmt.Errorf("%w: %s must be a number", common.ErrorInvalidArgument, name)
	}
	return n.NumberValue, true, nil
}

func intArg(in *structpb.Struct, name string, def int64, required bool) (int64, error) {
	f, ok, err := numberArg(in, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		if required {
			return 0, fmt.Errorf("%w: %s is required", common.ErrorInvalidArgument, name)
		}
		return def, nil
	}
	if f != math.Trunc(f) || math.Abs(f) > maxExactInt {
		return 0, fmt.Errorf("%w: %s must be an integer", common.ErrorInvalidArgument, name)
	}
	return int64(f), nil
}

func floatArg(in *structpb.Struct, name string) (float64, error) {
	f, ok, err := numberArg(in, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: %s is required", common.ErrorInvalidArgument, name)
	}
	return f, nil
}

func boolArg(in *structpb.Struct, name string, def bool) (bool, error) {
	v, ok := in.GetFields()[name]
	if !ok {
		return def, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", common.ErrorInvalidArgument, name)
	}
	return b.BoolValue, nil
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func int64Value(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func usageMap(u models.TrafficUsage) map[string]any {
	return map[string]any{
		"upload":            u.Upload,
		"download":          u.Download,
		"total":             u.Total,
		"usage_percent":     u.UsagePercent,
		"is_expired":        u.IsExpired,
		"is_quota_exceeded": u.IsQuotaExceeded,
	}
}

func statsMap(st *models.TrafficStats) map[string]any {
	m := usageMap(st.TrafficUsage)
	m["account_id"] = st.AccountID
	m["username"] = st.Username
	m["data_limit"] = int64Value(st.DataLimit)
	m["reset_count"] = st.ResetCount
	m["last_reset_at"] = timeValue(st.LastResetAt)
	m["expire_at"] = timeValue(st.ExpireAt)
	return m
}

func ledgerMap(l *models.TrafficLedger) map[string]any {
	return map[string]any{
		"account_id":    l.AccountID,
		"upload":        l.Upload,
		"download":      l.Download,
		"total":         l.Total,
		"reset_count":   l.ResetCount,
		"last_reset_at": timeValue(l.LastResetAt),
	}
}

func accountMap(a *models.Account) map[string]any {
	return map[string]any{
		"account_id": a.ID,
		"username":   a.Username,
		"role":       a.Role.String(),
		"is_active":  a.IsActive,
		"data_limit": int64Value(a.DataLimit),
		"expire_at":  timeValue(a.ExpireAt),
	}
}

func snapshotMap(s *models.TrafficSnapshot) map[string]any {
	return map[string]any{
		"id":          s.ID,
		"account_id":  s.AccountID,
		"upload":      s.Upload,
		"download":    s.Download,
		"total":       s.Total,
		"recorded_at": timeValue(&s.RecordedAt),
	}
}

func topUserMap(u *models.TopUser) map[string]any {
	return map[string]any{
		"account_id": u.AccountID,
		"username":   u.Username,
		"upload":     u.Upload,
		"download":   u.Download,
		"total":      u.Total,
	}
}

func totalsMap(t *models.SystemTotals) map[string]any {
	return map[string]any{
		"upload":   t.Upload,
		"download": t.Download,
		"total":    t.Total,
		"accounts": t.Accounts,
	}
}

func auditEntryMap(e *models.AuditEntry) map[string]any {
	return map[string]any{
		"id":          e.ID,
		"actor_id":    int64Value(e.ActorID),
		"action":      e.Action,
		"resource":    e.Resource,
		"resource_id": int64Value(e.ResourceID),
		"details":     e.Details,
		"ip_address":  e.IPAddress,
		"created_at":  timeValue(&e.CreatedAt),
	}
}

func syncResultMap(r *models.SyncResult) map[string]any {
	items := make([]any, 0, len(r.Items))
	for _, it := range r.Items {
		item := map[string]any{"profile_id": it.ProfileID, "ok": it.OK}
		if !it.OK {
			item["code"] = it.Code
			item["error"] = it.Error
		}
		items = append(items, item)
	}
	m := map[string]any{
		"run_id":        r.RunID,
		"status":        string(r.Status),
		"items":         items,
		"artifact_path": r.ArtifactPath,
		"changed":       r.Changed,
		"started_at":    timeValue(&r.StartedAt),
		"finished_at":   timeValue(&r.FinishedAt),
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	if r.ArchiveKey != "" {
		m["archive_key"] = r.ArchiveKey
	}
	if r.ArchiveError != "" {
		m["archive_error"] = r.ArchiveError
	}
	return m
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	st, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("%w: encode response: %w", common.ErrorInternal, err)
	}
	return st, nil
}
