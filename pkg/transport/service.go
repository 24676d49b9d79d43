package transport

// This file hand-authors the grpc.ServiceDesc, client and server stream
// wrappers that protoc-gen-go-grpc would otherwise generate from a
// transport.proto. No .proto source for this service exists in the source
// tree this was built from, and no protoc invocation is available here, so
// the generated-code shape is reproduced directly against the well-known
// protobuf types (structpb.Struct, emptypb.Empty) instead of a custom
// message schema.

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "fleethq.transport.Transport"

// TransportServer is implemented by the orchestrator.
type TransportServer interface {
	// Connect opens the orchestrator->worker push stream. The worker's
	// registerWorker envelope (hostname, startTime, currentUser) arrives as
	// the single request value and then only reads.
	Connect(*structpb.Struct, Transport_ConnectServer) error
	// Send carries every worker->orchestrator unary message.
	Send(context.Context, *structpb.Struct) (*emptypb.Empty, error)
}

// Transport_ConnectServer is the server-side handle for the Connect stream.
type Transport_ConnectServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type transportConnectServer struct{ grpc.ServerStream }

func (x *transportConnectServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func _Transport_Connect_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(TransportServer).Connect(m, &transportConnectServer{stream})
}

func _Transport_Send_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TransportServer).Send(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/Send"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TransportServer).Send(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is registered against a *grpc.Server with RegisterTransportServer.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TransportServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Send", Handler: _Transport_Send_Handler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Connect", Handler: _Transport_Connect_Handler, ServerStreams: true},
	},
	Metadata: "transport.proto",
}

// RegisterTransportServer registers srv on s.
func RegisterTransportServer(s grpc.ServiceRegistrar, srv TransportServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// TransportClient is implemented by the worker agent's connection to the
// orchestrator.
type TransportClient interface {
	Connect(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (Transport_ConnectClient, error)
	Send(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type transportClient struct {
	cc grpc.ClientConnInterface
}

// NewTransportClient wraps an established *grpc.ClientConn.
func NewTransportClient(cc grpc.ClientConnInterface) TransportClient {
	return &transportClient{cc: cc}
}

// Transport_ConnectClient is the client-side handle for the Connect stream.
type Transport_ConnectClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type transportConnectClient struct{ grpc.ClientStream }

func (x *transportConnectClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (c *transportClient) Connect(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (Transport_ConnectClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], serviceName+"/Connect", opts...)
	if err != nil {
		return nil, err
	}
	x := &transportConnectClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

func (c *transportClient) Send(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, serviceName+"/Send", in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
