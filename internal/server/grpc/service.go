package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified name of the admin API. Requests and
// responses are google.protobuf.Struct documents.
const ServiceName = "boleyla.admin.v1.AdminService"

// Method names.
const (
	MethodGetTrafficStats   = "GetTrafficStats"
	MethodGetMyTrafficStats = "GetMyTrafficStats"
	MethodListTrafficStats  = "ListTrafficStats"
	MethodGetTopUsers       = "GetTopUsers"
	MethodGetSystemTotals   = "GetSystemTotals"
	MethodCreateSnapshot    = "CreateSnapshot"
	MethodGetHistory        = "GetHistory"
	MethodResetTraffic      = "ResetTraffic"
	MethodExtendExpiry      = "ExtendExpiry"
	MethodAddTraffic        = "AddTraffic"
	MethodGetActivityLog    = "GetActivityLog"
	MethodRunSync           = "RunSync"
	MethodPing              = "Ping"
)

// FullMethod returns the path a client invokes for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AdminServer is the server API of the admin service.
type AdminServer interface {
	GetTrafficStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetMyTrafficStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListTrafficStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTopUsers(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSystemTotals(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(*structpb.Struct, grpc.ServerStream) error
	ResetTraffic(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ExtendExpiry(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AddTraffic(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetActivityLog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunSync(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(AdminServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AdminServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AdminServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the admin service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AdminServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetTrafficStats, AdminServer.GetTrafficStats),
		unary(MethodGetMyTrafficStats, AdminServer.GetMyTrafficStats),
		unary(MethodListTrafficStats, AdminServer.ListTrafficStats),
		unary(MethodGetTopUsers, AdminServer.GetTopUsers),
		unary(MethodGetSystemTotals, AdminServer.GetSystemTotals),
		unary(MethodCreateSnapshot, AdminServer.CreateSnapshot),
		unary(MethodResetTraffic, AdminServer.ResetTraffic),
		unary(MethodExtendExpiry, AdminServer.ExtendExpiry),
		unary(MethodAddTraffic, AdminServer.AddTraffic),
		unary(MethodGetActivityLog, AdminServer.GetActivityLog),
		unary(MethodRunSync, AdminServer.RunSync),
		unary(MethodPing, AdminServer.Ping),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodGetHistory,
			ServerStreams: true,
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(structpb.Struct)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(AdminServer).GetHistory(in, stream)
			},
		},
	},
	Metadata: "boleyla/admin/v1/admin.proto",
}
