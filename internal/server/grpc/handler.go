package grpc

import (
	"context"
	"errors"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultListLimit     = 50
	defaultTopLimit      = 10
	defaultHistoryDays   = 30
	defaultActivityLimit = 50
)

// toStatus maps a service error to a gRPC status. Unknown errors are logged
// and reported as Internal without detail.
func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, common.ErrorInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorSyncInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, common.ErrorTemplate):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, common.ErrorUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return status.Error(codes.Unauthenticated, "unauthorized")
	case errors.Is(err, common.ErrorForbidden):
		return status.Error(codes.PermissionDenied, "forbidden")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, common.ErrorArtifactWrite):
		s.logger.Error(ctx, "artifact write failed", "error", err)
		return status.Error(codes.Internal, err.Error())
	default:
		s.logger.Error(ctx, "request failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

func (s *GRPCServer) reply(ctx context.Context, m map[string]any) (*structpb.Struct, error) {
	out, err := toStruct(m)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return out, nil
}

func (s *GRPCServer) GetTrafficStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intArg(req, "account_id", 0, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	st, err := s.accounts.TrafficStats(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, statsMap(st))
}

func (s *GRPCServer) GetMyTrafficStats(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	id, ok := auth.FromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	st, err := s.accounts.TrafficStats(ctx, id.AccountID)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, statsMap(st))
}

func (s *GRPCServer) ListTrafficStats(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	offset, err := intArg(req, "offset", 0, false)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	limit, err := intArg(req, "limit", defaultListLimit, false)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	rows, err := s.accounts.ListTrafficStats(ctx, int(offset), int(limit))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	items := make([]any, 0, len(rows))
	for i := range rows {
		items = append(items, statsMap(&rows[i]))
	}
	return s.reply(ctx, map[string]any{"items": items})
}

func (s *GRPCServer) GetTopUsers(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, err := intArg(req, "limit", defaultTopLimit, false)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	rows, err := s.history.TopUsers(ctx, int(limit))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	items := make([]any, 0, len(rows))
	for i := range rows {
		items = append(items, topUserMap(&rows[i]))
	}
	return s.reply(ctx, map[string]any{"items": items})
}

func (s *GRPCServer) GetSystemTotals(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	t, err := s.history.SystemTotals(ctx)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, totalsMap(t))
}

func (s *GRPCServer) CreateSnapshot(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intArg(req, "account_id", 0, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	snap, err := s.history.Snapshot(ctx, id)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, snapshotMap(snap))
}

// GetHistory streams one message per snapshot, newest first.
func (s *GRPCServer) GetHistory(req *structpb.Struct, stream grpc.ServerStream) error {
	ctx := stream.Context()

	id, err := intArg(req, "account_id", 0, true)
	if err != nil {
		return s.toStatus(ctx, err)
	}
	days, err := intArg(req, "days", defaultHistoryDays, false)
	if err != nil {
		return s.toStatus(ctx, err)
	}

	seq, err := s.history.History(ctx, id, int(days))
	if err != nil {
		return s.toStatus(ctx, err)
	}
	for snap, err := range seq {
		if err != nil {
			return s.toStatus(ctx, err)
		}
		msg, err := toStruct(snapshotMap(&snap))
		if err != nil {
			return s.toStatus(ctx, err)
		}
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

func (s *GRPCServer) ResetTraffic(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intArg(req, "account_id", 0, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	save, err := boolArg(req, "save_to_history", true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	l, err := s.accounts.ResetTraffic(ctx, id, save)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, ledgerMap(l))
}

func (s *GRPCServer) ExtendExpiry(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intArg(req, "account_id", 0, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	days, err := intArg(req, "days", 0, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	a, err := s.accounts.ExtendExpiry(ctx, id, int(days))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, accountMap(a))
}

func (s *GRPCServer) AddTraffic(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intArg(req, "account_id", 0, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	gb, err := floatArg(req, "gigabytes")
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	a, err := s.accounts.AddTraffic(ctx, id, gb)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return s.reply(ctx, accountMap(a))
}

// GetActivityLog lists the audit trail of one account, newest first.
func (s *GRPCServer) GetActivityLog(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intArg(req, "account_id", 0, true)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	limit, err := intArg(req, "limit", defaultActivityLimit, false)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	rows, err := s.accounts.ActivityLog(ctx, id, int(limit))
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	items := make([]any, 0, len(rows))
	for i := range rows {
		items = append(items, auditEntryMap(&rows[i]))
	}
	return s.reply(ctx, map[string]any{"items": items})
}

// RunSync triggers a sync and returns its result. A run that started and
// then failed reports its result in the status details.
func (s *GRPCServer) RunSync(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.syncer.Run(ctx)
	if err != nil {
		st := status.Convert(s.toStatus(ctx, err))
		if res != nil {
			if detail, derr := toStruct(syncResultMap(res)); derr == nil {
				if withDetail, werr := st.WithDetails(detail); werr == nil {
					st = withDetail
				}
			}
		}
		return nil, st.Err()
	}
	return s.reply(ctx, syncResultMap(res))
}

func (s *GRPCServer) Ping(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return s.reply(ctx, map[string]any{"status": "OK"})
}
