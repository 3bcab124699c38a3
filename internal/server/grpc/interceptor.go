package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/boleyla/panel/internal/common"
	"github.com/boleyla/panel/internal/server/auth"
	"github.com/boleyla/panel/internal/server/models"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// access describes who may call a method.
type access struct {
	public bool
	role   models.Role
}

// methodAccess lists the exceptions; every other method needs an admin token.
var methodAccess = map[string]access{
	FullMethod(MethodPing):              {public: true},
	FullMethod(MethodGetMyTrafficStats): {role: models.RoleViewer},
}

func accessFor(fullMethod string) access {
	if a, ok := methodAccess[fullMethod]; ok {
		return a
	}
	return access{role: models.RoleAdmin}
}

// authenticate resolves the caller of fullMethod and returns ctx carrying
// its auth.Identity.
func (s *GRPCServer) authenticate(ctx context.Context, fullMethod string) (context.Context, error) {
	a := accessFor(fullMethod)
	if a.public {
		return ctx, nil
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	id, err := auth.ParseToken(accessToken, s.jwtSecret)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, "token expired")
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		id.Addr = p.Addr.String()
	}
	if id.Role < a.role {
		s.logger.Warn(ctx, "permission denied", "method", fullMethod, "account_id", id.AccountID, "role", id.Role.String())
		return nil, status.Error(codes.PermissionDenied, "forbidden")
	}

	return auth.WithIdentity(ctx, id), nil
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	ctx, err := s.authenticate(ctx, info.FullMethod)
	if err != nil {
		return nil, err
	}
	return handler(ctx, req)
}

// authStream overrides the context of an authenticated stream.
type authStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (a *authStream) Context() context.Context { return a.ctx }

func (s *GRPCServer) streamAccessTokenInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx, err := s.authenticate(ss.Context(), info.FullMethod)
	if err != nil {
		return err
	}
	return handler(srv, &authStream{ServerStream: ss, ctx: ctx})
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "took", time.Since(start))
	return resp, err
}
