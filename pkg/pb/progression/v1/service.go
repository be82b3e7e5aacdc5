// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

// Package progressionv1 describes the progression.v1.ProgressionService gRPC
// service. Requests and responses are google.protobuf.Struct messages, so the
// service needs no generated message types.
package progressionv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "progression.v1.ProgressionService"

const (
	MethodCanAccessActivity = "CanAccessActivity"
	MethodAdvancePhase      = "AdvancePhase"
	MethodSetGuidedMode     = "SetGuidedMode"
	MethodAwardXP           = "AwardXP"
	MethodCheckBadges       = "CheckBadges"
	MethodRecordActivity    = "RecordActivity"
	MethodGetSnapshot       = "GetSnapshot"
)

// FullMethod returns the /service/method path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ProgressionServiceServer is the server API for ProgressionService.
type ProgressionServiceServer interface {
	CanAccessActivity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AdvancePhase(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetGuidedMode(context.Context, *structpb.Struct) (*structpb.Struct, error)
	AwardXP(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckBadges(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecordActivity(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedProgressionServiceServer answers every method with Unimplemented.
// Embed it to stay forward compatible when methods are added.
type UnimplementedProgressionServiceServer struct{}

func (UnimplementedProgressionServiceServer) CanAccessActivity(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodCanAccessActivity)
}

func (UnimplementedProgressionServiceServer) AdvancePhase(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodAdvancePhase)
}

func (UnimplementedProgressionServiceServer) SetGuidedMode(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodSetGuidedMode)
}

func (UnimplementedProgressionServiceServer) AwardXP(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodAwardXP)
}

func (UnimplementedProgressionServiceServer) CheckBadges(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodCheckBadges)
}

func (UnimplementedProgressionServiceServer) RecordActivity(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodRecordActivity)
}

func (UnimplementedProgressionServiceServer) GetSnapshot(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method %s not implemented", MethodGetSnapshot)
}

type unaryCall func(ProgressionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ProgressionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ProgressionServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc is the grpc.ServiceDesc for ProgressionService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ProgressionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodCanAccessActivity, ProgressionServiceServer.CanAccessActivity),
		unary(MethodAdvancePhase, ProgressionServiceServer.AdvancePhase),
		unary(MethodSetGuidedMode, ProgressionServiceServer.SetGuidedMode),
		unary(MethodAwardXP, ProgressionServiceServer.AwardXP),
		unary(MethodCheckBadges, ProgressionServiceServer.CheckBadges),
		unary(MethodRecordActivity, ProgressionServiceServer.RecordActivity),
		unary(MethodGetSnapshot, ProgressionServiceServer.GetSnapshot),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "progression/v1/service.proto",
}

// RegisterProgressionServiceServer registers srv on s.
func RegisterProgressionServiceServer(s grpc.ServiceRegistrar, srv ProgressionServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ProgressionServiceClient is the client API for ProgressionService.
type ProgressionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewProgressionServiceClient creates a client over cc.
func NewProgressionServiceClient(cc grpc.ClientConnInterface) *ProgressionServiceClient {
	return &ProgressionServiceClient{cc: cc}
}

// Call invokes method with req.
func (c *ProgressionServiceClient) Call(ctx context.Context, method string, req *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
