package grpcapi

// service.go declares the socassist.risk.v1.RiskEngine service. Messages
// are google.protobuf.Struct so the default proto codec carries them
// without generated types.

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "socassist.risk.v1.RiskEngine"

const (
	methodEvaluate  = "/" + ServiceName + "/Evaluate"
	methodCalibrate = "/" + ServiceName + "/Calibrate"
	methodGetConfig = "/" + ServiceName + "/GetConfig"
)

// #region server-api
// RiskEngineServer is the server API for the RiskEngine service.
type RiskEngineServer interface {
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Calibrate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetConfig(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedRiskEngineServer answers every method with Unimplemented.
type UnimplementedRiskEngineServer struct{}

func (UnimplementedRiskEngineServer) Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Evaluate not implemented")
}
func (UnimplementedRiskEngineServer) Calibrate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Calibrate not implemented")
}
func (UnimplementedRiskEngineServer) GetConfig(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetConfig not implemented")
}

// RegisterRiskEngineServer registers srv with s.
func RegisterRiskEngineServer(s grpc.ServiceRegistrar, srv RiskEngineServer) {
	s.RegisterService(&riskEngineServiceDesc, srv)
}

var riskEngineServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RiskEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: unaryHandler(methodEvaluate, RiskEngineServer.Evaluate)},
		{MethodName: "Calibrate", Handler: unaryHandler(methodCalibrate, RiskEngineServer.Calibrate)},
		{MethodName: "GetConfig", Handler: unaryHandler(methodGetConfig, RiskEngineServer.GetConfig)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "socassist/risk/v1/risk_engine.proto",
}

type unaryMethod func(RiskEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RiskEngineServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(RiskEngineServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
// #endregion server-api

// #region client-api
// RiskEngineClient is the client API for the RiskEngine service.
type RiskEngineClient interface {
	Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Calibrate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetConfig(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type riskEngineClient struct {
	cc grpc.ClientConnInterface
}

// NewRiskEngineClient creates a client stub over cc.
func NewRiskEngineClient(cc grpc.ClientConnInterface) RiskEngineClient {
	return &riskEngineClient{cc: cc}
}

func (c *riskEngineClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodEvaluate, in, opts)
}

func (c *riskEngineClient) Calibrate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodCalibrate, in, opts)
}

func (c *riskEngineClient) GetConfig(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, methodGetConfig, in, opts)
}

func (c *riskEngineClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
// #endregion client-api
