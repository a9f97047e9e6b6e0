// Package grpcbus exposes a transport.Bus over gRPC so processes without a
// shared broker can exchange driver topics.
//
// The service is described by hand with well-known wrapper types instead of
// generated stubs:
//
//	service Bus {
//	  rpc Publish(google.protobuf.BytesValue) returns (google.protobuf.Empty);
//	  rpc Subscribe(google.protobuf.StringValue) returns (stream google.protobuf.BytesValue);
//	}
//
// Publish carries its topic in the x-robotdriver-topic metadata key.
package grpcbus

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName      = "robotdriver.transport.v1.Bus"
	publishMethod    = "/" + serviceName + "/Publish"
	subscribeMethod  = "/" + serviceName + "/Subscribe"
	topicMetadataKey = "x-robotdriver-topic"
)

// busService is the server-side contract checked by grpc.RegisterService.
type busService interface {
	Publish(ctx context.Context, in *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Subscribe(in *wrapperspb.StringValue, stream grpc.ServerStream) error
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*busService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Publish", Handler: publishHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Subscribe", Handler: subscribeHandler, ServerStreams: true},
	},
	Metadata: "robotdriver/transport/v1/bus.proto",
}

func publishHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(busService).Publish(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: publishMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(busService).Publish(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func subscribeHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(busService).Subscribe(in, stream)
}

func topicFromIncoming(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get(topicMetadataKey); len(values) > 0 {
		return values[0]
	}
	return ""
}
