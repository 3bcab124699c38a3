package client

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/boleyla/panel/internal/common"
	gs "github.com/boleyla/panel/internal/server/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

var historyStream = &grpc.StreamDesc{StreamName: gs.MethodGetHistory, ServerStreams: true}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	return invoker(withAccessToken(ctx, s.accessToken), method, req, reply, cc, opts...)
}

func (s *GRPCClient) streamAccessTokenInterceptor(
	ctx context.Context,
	desc *grpc.StreamDesc,
	cc *grpc.ClientConn,
	method string,
	streamer grpc.Streamer,
	opts ...grpc.CallOption,
) (grpc.ClientStream, error) {
	return streamer(withAccessToken(ctx, s.accessToken), desc, cc, method, opts...)
}

// NewAdminClient connects to the panel admin API. accessToken may be empty
// for calls that do not need one, such as Ping.
func NewAdminClient(endpointURL, accessToken string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, accessToken: accessToken}

	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(c.accessTokenInterceptor),
		grpc.WithStreamInterceptor(c.streamAccessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(endpointURL, opts...)
	if err != nil {
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) call(ctx context.Context, method string, args map[string]any, out any) error {
	req, err := structpb.NewStruct(args)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	resp := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, gs.FullMethod(method), req, resp); err != nil {
		return s.mapError(err)
	}
	if out == nil {
		return nil
	}
	return decode(resp, out)
}

func (s *GRPCClient) TrafficStats(ctx context.Context, accountID int64) (*TrafficStats, error) {
	var out TrafficStats
	if err := s.call(ctx, gs.MethodGetTrafficStats, map[string]any{"account_id": accountID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GRPCClient) MyTrafficStats(ctx context.Context) (*TrafficStats, error) {
	var out TrafficStats
	if err := s.call(ctx, gs.MethodGetMyTrafficStats, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GRPCClient) ListTrafficStats(ctx context.Context, offset, limit int) ([]TrafficStats, error) {
	var out struct {
		Items []TrafficStats `mapstructure:"items"`
	}
	args := map[string]any{"offset": offset, "limit": limit}
	if err := s.call(ctx, gs.MethodListTrafficStats, args, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (s *GRPCClient) TopUsers(ctx context.Context, limit int) ([]TopUser, error) {
	var out struct {
		Items []TopUser `mapstructure:"items"`
	}
	if err := s.call(ctx, gs.MethodGetTopUsers, map[string]any{"limit": limit}, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

// ActivityLog returns the newest audit entries about one account.
func (s *GRPCClient) ActivityLog(ctx context.Context, accountID int64, limit int) ([]ActivityEntry, error) {
	var out struct {
		Items []ActivityEntry `mapstructure:"items"`
	}
	args := map[string]any{"account_id": accountID, "limit": limit}
	if err := s.call(ctx, gs.MethodGetActivityLog, args, &out); err != nil {
		return nil, err
	}
	return out.Items, nil
}

func (s *GRPCClient) SystemTotals(ctx context.Context) (*Totals, error) {
	var out Totals
	if err := s.call(ctx, gs.MethodGetSystemTotals, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GRPCClient) CreateSnapshot(ctx context.Context, accountID int64) (*Snapshot, error) {
	var out Snapshot
	if err := s.call(ctx, gs.MethodCreateSnapshot, map[string]any{"account_id": accountID}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// History reads the account's snapshots for the last days, newest first.
func (s *GRPCClient) History(ctx context.Context, accountID int64, days int) ([]Snapshot, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := structpb.NewStruct(map[string]any{"account_id": accountID, "days": days})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}

	stream, err := s.conn.NewStream(ctx, historyStream, gs.FullMethod(gs.MethodGetHistory))
	if err != nil {
		return nil, s.mapError(err)
	}
	if err := stream.SendMsg(req); err != nil {
		return nil, s.mapError(err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, s.mapError(err)
	}

	var out []Snapshot
	for {
		msg := new(structpb.Struct)
		if err := stream.RecvMsg(msg); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, s.mapError(err)
		}
		var snap Snapshot
		if err := decode(msg, &snap); err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
}

func (s *GRPCClient) ResetTraffic(ctx context.Context, accountID int64, saveToHistory bool) (*Ledger, error) {
	var out Ledger
	args := map[string]any{"account_id": accountID, "save_to_history": saveToHistory}
	if err := s.call(ctx, gs.MethodResetTraffic, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GRPCClient) ExtendExpiry(ctx context.Context, accountID int64, days int) (*Account, error) {
	var out Account
	args := map[string]any{"account_id": accountID, "days": days}
	if err := s.call(ctx, gs.MethodExtendExpiry, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *GRPCClient) AddTraffic(ctx context.Context, accountID int64, gigabytes float64) (*Account, error) {
	var out Account
	args := map[string]any{"account_id": accountID, "gigabytes": gigabytes}
	if err := s.call(ctx, gs.MethodAddTraffic, args, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RunSync triggers a sync. When the run started but failed, the result is
// returned together with the error.
func (s *GRPCClient) RunSync(ctx context.Context) (*SyncResult, error) {
	req := &structpb.Struct{}
	resp := new(structpb.Struct)
	if err := s.conn.Invoke(ctx, gs.FullMethod(gs.MethodRunSync), req, resp); err != nil {
		return syncDetail(err), s.mapError(err)
	}
	var out SyncResult
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func syncDetail(err error) *SyncResult {
	st, ok := status.FromError(err)
	if !ok {
		return nil
	}
	for _, d := range st.Details() {
		doc, ok := d.(*structpb.Struct)
		if !ok {
			continue
		}
		var out SyncResult
		if decode(doc, &out) == nil {
			return &out
		}
	}
	return nil
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	var out struct {
		Status string `mapstructure:"status"`
	}
	if err := s.call(ctx, gs.MethodPing, nil, &out); err != nil {
		return err
	}
	if out.Status != "OK" {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("rpc error: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated:
		return ErrUnauthorized
	case codes.PermissionDenied:
		return ErrForbidden
	case codes.NotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", ErrInvalid, st.Message())
	case codes.Aborted:
		return ErrSyncBusy
	case codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrSyncFailed, st.Message())
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
