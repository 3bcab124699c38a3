package grpc

import (
	"context"
	"iter"
	"net"

	"github.com/boleyla/panel/internal/logging"
	"github.com/boleyla/panel/internal/server/models"
	"google.golang.org/grpc"
)

// AccountService is the account side of the API.
type AccountService interface {
	ResetTraffic(ctx context.Context, accountID int64, saveToHistory bool) (*models.TrafficLedger, error)
	AddTraffic(ctx context.Context, accountID int64, gigabytes float64) (*models.Account, error)
	ExtendExpiry(ctx context.Context, accountID int64, days int) (*models.Account, error)
	TrafficStats(ctx context.Context, accountID int64) (*models.TrafficStats, error)
	ListTrafficStats(ctx context.Context, offset, limit int) ([]models.TrafficStats, error)
	ActivityLog(ctx context.Context, accountID int64, limit int) ([]models.AuditEntry, error)
}

// HistoryService is the reporting side of the API.
type HistoryService interface {
	Snapshot(ctx context.Context, accountID int64) (*models.TrafficSnapshot, error)
	History(ctx context.Context, accountID int64, windowDays int) (iter.Seq2[models.TrafficSnapshot, error], error)
	TopUsers(ctx context.Context, limit int) ([]models.TopUser, error)
	SystemTotals(ctx context.Context) (*models.SystemTotals, error)
}

type SyncRunner interface {
	Run(ctx context.Context) (*models.SyncResult, error)
}

type GRPCServer struct {
	address   string
	accounts  AccountService
	history   HistoryService
	syncer    SyncRunner
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, as AccountService, hs HistoryService, sr SyncRunner, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		accounts:  as,
		history:   hs,
		syncer:    sr,
		jwtSecret: []byte(secretKey),
	}
}

// NewServer builds a grpc.Server with the admin service and its
// interceptors registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor),
		grpc.ChainStreamInterceptor(s.streamAccessTokenInterceptor),
	)
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&ServiceDesc, s)
	return srv
}

// Run serves until ctx is done, then stops gracefully.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *GRPCServer) Serve(ctx context.Context, listen net.Listener) error {
	srv := s.NewServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil {
		return err
	}
	<-stopped
	return nil
}
