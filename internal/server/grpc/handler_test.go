package grpc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/server/auth"
	"github.com/boleyla/panel/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func req(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, want, status.Code(err), "error: %v", err)
}

func TestToStatus(t *testing.T) {
	s, _, _, _ := newTestServer("secret")
	tests := []struct {
		err  error
		want codes.Code
	}{
		{fmt.Errorf("account 1: %w", common.ErrorNotFound), codes.NotFound},
		{common.ErrorInvalidArgument, codes.InvalidArgument},
		{common.ErrorSyncInProgress, codes.Aborted},
		{fmt.Errorf("%w: bad json", common.ErrorTemplate), codes.FailedPrecondition},
		{fmt.Errorf("%w: disk full", common.ErrorArtifactWrite), codes.Internal},
		{common.ErrorUnauthorized, codes.Unauthenticated},
		{common.ErrTokenExpired, codes.Unauthenticated},
		{common.ErrorForbidden, codes.PermissionDenied},
		{context.Canceled, codes.Canceled},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{errors.New("db exploded"), codes.Internal},
		{status.Error(codes.Unavailable, "x"), codes.Unavailable},
	}
	for _, tt := range tests {
		requireCode(t, s.toStatus(context.Background(), tt.err), tt.want)
	}

	// Internal details stay in the log.
	st := status.Convert(s.toStatus(context.Background(), errors.New("password=hunter2")))
	assert.Equal(t, "internal error", st.Message())
}

func TestGetTrafficStats(t *testing.T) {
	s, _, _, _ := newTestServer("secret")
	ctx := context.Background()

	out, err := s.GetTrafficStats(ctx, req(t, map[string]any{"account_id": 1}))
	require.NoError(t, err)
	m := out.AsMap()
	assert.Equal(t, "alice", m["username"])
	assert.Equal(t, 80.0, m["usage_percent"])
	assert.Equal(t, 1000.0, m["data_limit"])
	assert.Nil(t, m["expire_at"])

	_, err = s.GetTrafficStats(ctx, req(t, map[string]any{"account_id": 404}))
	requireCode(t, err, codes.NotFound)

	_, err = s.GetTrafficStats(ctx, req(t, map[string]any{}))
	requireCode(t, err, codes.InvalidArgument)

	_, err = s.GetTrafficStats(ctx, req(t, map[string]any{"account_id": 1.5}))
	requireCode(t, err, codes.InvalidArgument)

	_, err = s.GetTrafficStats(ctx, req(t, map[string]any{"account_id": "1"}))
	requireCode(t, err, codes.InvalidArgument)
}

func TestGetMyTrafficStats(t *testing.T) {
	s, _, _, _ := newTestServer("secret")

	_, err := s.GetMyTrafficStats(context.Background(), req(t, nil))
	requireCode(t, err, codes.Unauthenticated)

	ctx := auth.WithIdentity(context.Background(), auth.Identity{AccountID: 2, Role: models.RoleViewer})
	out, err := s.GetMyTrafficStats(ctx, req(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "bob", out.AsMap()["username"])
}

func TestListAndTop(t *testing.T) {
	s, _, _, _ := newTestServer("secret")
	ctx := context.Background()

	out, err := s.ListTrafficStats(ctx, req(t, map[string]any{"offset": 1}))
	require.NoError(t, err)
	items := out.AsMap()["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "bob", items[0].(map[string]any)["username"])

	_, err = s.ListTrafficStats(ctx, req(t, map[string]any{"limit": 1000}))
	requireCode(t, err, codes.InvalidArgument)

	out, err = s.GetTopUsers(ctx, req(t, map[string]any{"limit": 1}))
	require.NoError(t, err)
	top := out.AsMap()["items"].([]any)
	require.Len(t, top, 1)
	assert.Equal(t, "bob", top[0].(map[string]any)["username"])

	out, err = s.GetSystemTotals(ctx, req(t, nil))
	require.NoError(t, err)
	assert.Equal(t, 30.0, out.AsMap()["total"])
}

func TestMutations(t *testing.T) {
	s, as, _, _ := newTestServer("secret")
	ctx := context.Background()

	out, err := s.ResetTraffic(ctx, req(t, map[string]any{"account_id": 1}))
	require.NoError(t, err)
	require.NotNil(t, as.lastSave)
	assert.True(t, *as.lastSave, "save_to_history defaults to true")
	assert.Equal(t, 1.0, out.AsMap()["reset_count"])

	_, err = s.ResetTraffic(ctx, req(t, map[string]any{"account_id": 1, "save_to_history": false}))
	require.NoError(t, err)
	assert.False(t, *as.lastSave)

	_, err = s.ResetTraffic(ctx, req(t, map[string]any{"account_id": 1, "save_to_history": "no"}))
	requireCode(t, err, codes.InvalidArgument)

	out, err = s.AddTraffic(ctx, req(t, map[string]any{"account_id": 1, "gigabytes": 1.5}))
	require.NoError(t, err)
	assert.Equal(t, 1.5, as.lastGB)
	assert.Equal(t, float64(common.GiB)*1.5, out.AsMap()["data_limit"])

	_, err = s.AddTraffic(ctx, req(t, map[string]any{"account_id": 1}))
	requireCode(t, err, codes.InvalidArgument)

	out, err = s.ExtendExpiry(ctx, req(t, map[string]any{"account_id": 1, "days": 30}))
	require.NoError(t, err)
	assert.Equal(t, 30, as.lastDays)
	assert.Equal(t, "2026-05-01T10:00:00Z", out.AsMap()["expire_at"])

	as.err = fmt.Errorf("%w: days must be positive", common.ErrorInvalidArgument)
	_, err = s.ExtendExpiry(ctx, req(t, map[string]any{"account_id": 1, "days": 0}))
	requireCode(t, err, codes.InvalidArgument)
}

func TestGetActivityLog(t *testing.T) {
	s, as, _, _ := newTestServer("secret")
	ctx := context.Background()
	actor, target := int64(9), int64(1)
	as.audit = []models.AuditEntry{
		{ID: 2, ActorID: &actor, Action: "add_traffic", Resource: "account", ResourceID: &target, Details: "bytes=1", IPAddress: "10.0.0.1", CreatedAt: testNow},
		{ID: 1, Action: "reset_traffic", Resource: "account", ResourceID: &target, CreatedAt: testNow.Add(-time.Hour)},
	}

	out, err := s.GetActivityLog(ctx, req(t, map[string]any{"account_id": 1}))
	require.NoError(t, err)
	assert.Equal(t, 50, as.lastLimit, "limit defaults to 50")
	items := out.AsMap()["items"].([]any)
	require.Len(t, items, 2)
	first := items[0].(map[string]any)
	assert.Equal(t, "add_traffic", first["action"])
	assert.Equal(t, 9.0, first["actor_id"])
	assert.Equal(t, "2026-04-01T10:00:00Z", first["created_at"])
	assert.Nil(t, items[1].(map[string]any)["actor_id"])

	out, err = s.GetActivityLog(ctx, req(t, map[string]any{"account_id": 2, "limit": 5}))
	require.NoError(t, err)
	assert.Empty(t, out.AsMap()["items"])

	_, err = s.GetActivityLog(ctx, req(t, map[string]any{"account_id": 404}))
	requireCode(t, err, codes.NotFound)

	_, err = s.GetActivityLog(ctx, req(t, map[string]any{"account_id": 1, "limit": 501}))
	requireCode(t, err, codes.InvalidArgument)

	_, err = s.GetActivityLog(ctx, req(t, map[string]any{}))
	requireCode(t, err, codes.InvalidArgument)
}

func TestCreateSnapshot(t *testing.T) {
	s, _, hs, _ := newTestServer("secret")

	out, err := s.CreateSnapshot(context.Background(), req(t, map[string]any{"account_id": 1}))
	require.NoError(t, err)
	assert.Equal(t, 3.0, out.AsMap()["total"])
	assert.Equal(t, "2026-04-01T10:00:00Z", out.AsMap()["recorded_at"])

	hs.err = common.ErrorNotFound
	_, err = s.CreateSnapshot(context.Background(), req(t, map[string]any{"account_id": 1}))
	requireCode(t, err, codes.NotFound)
}

func TestRunSync(t *testing.T) {
	s, _, _, sy := newTestServer("secret")
	ctx := context.Background()

	out, err := s.RunSync(ctx, req(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "succeeded", out.AsMap()["status"])
	assert.Equal(t, "run-1", out.AsMap()["run_id"])

	sy.res, sy.err = nil, common.ErrorSyncInProgress
	_, err = s.RunSync(ctx, req(t, nil))
	requireCode(t, err, codes.Aborted)

	sy.res = &models.SyncResult{RunID: "run-2", Status: models.SyncFailed, Error: "template error"}
	sy.err = fmt.Errorf("%w: missing", common.ErrorTemplate)
	_, err = s.RunSync(ctx, req(t, nil))
	requireCode(t, err, codes.FailedPrecondition)

	details := status.Convert(err).Details()
	require.Len(t, details, 1)
	detail, ok := details[0].(*structpb.Struct)
	require.True(t, ok)
	assert.Equal(t, "failed", detail.AsMap()["status"])
	assert.Equal(t, "run-2", detail.AsMap()["run_id"])
}

func TestSyncResultMap_Items(t *testing.T) {
	m := syncResultMap(&models.SyncResult{
		Status: models.SyncPartial,
		Items: []models.SyncItem{
			{ProfileID: 1, OK: true},
			{ProfileID: 2, Code: models.ItemRenderError, Error: "bad uuid"},
		},
		ArchiveError: "bucket gone",
	})
	_, err := structpb.NewStruct(m)
	require.NoError(t, err)

	items := m["items"].([]any)
	assert.Equal(t, map[string]any{"profile_id": int64(1), "ok": true}, items[0])
	assert.Equal(t, map[string]any{"profile_id": int64(2), "ok": false, "code": "render_error", "error": "bad uuid"}, items[1])
	assert.Equal(t, "bucket gone", m["archive_error"])
	assert.NotContains(t, m, "archive_key")
}

func TestPing(t *testing.T) {
	s, _, _, _ := newTestServer("secret")
	out, err := s.Ping(context.Background(), req(t, nil))
	require.NoError(t, err)
	assert.Equal(t, "OK", out.AsMap()["status"])
}
