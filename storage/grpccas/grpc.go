package grpccas

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// The service is described with protobuf well-known wrapper types so no
// protoc step is needed:
//
//	service BlockStore {
//	  rpc Put(google.protobuf.BytesValue) returns (google.protobuf.StringValue);
//	  rpc Get(google.protobuf.StringValue) returns (google.protobuf.BytesValue);
//	  rpc Has(google.protobuf.StringValue) returns (google.protobuf.BoolValue);
//	}
const (
	ServiceName = "xdao.dagfs.storage.v1.BlockStore"

	methodPut = "Put"
	methodGet = "Get"
	methodHas = "Has"
)

func fullMethod(m string) string { return "/" + ServiceName + "/" + m }

// BlockStoreServer is the server API of the block store service.
type BlockStoreServer interface {
	Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error)
	Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error)
	Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error)
}

// UnimplementedBlockStoreServer answers every call with codes.Unimplemented.
type UnimplementedBlockStoreServer struct{}

func (UnimplementedBlockStoreServer) Put(context.Context, *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	return nil, status.Error(codes.Unimplemented, "Put not implemented")
}

func (UnimplementedBlockStoreServer) Get(context.Context, *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "Get not implemented")
}

func (UnimplementedBlockStoreServer) Has(context.Context, *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	return nil, status.Error(codes.Unimplemented, "Has not implemented")
}

// RegisterBlockStoreServer registers srv on s.
func RegisterBlockStoreServer(s grpc.ServiceRegistrar, srv BlockStoreServer) {
	s.RegisterService(&BlockStoreServiceDesc, srv)
}

// BlockStoreClient is the client API of the block store service.
type BlockStoreClient interface {
	Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error)
	Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error)
}

type blockStoreClient struct{ cc grpc.ClientConnInterface }

func NewBlockStoreClient(cc grpc.ClientConnInterface) BlockStoreClient {
	return &blockStoreClient{cc: cc}
}

func invoke[Out proto.Message](ctx context.Context, cc grpc.ClientConnInterface, method string, in proto.Message, out Out, opts []grpc.CallOption) (Out, error) {
	if err := cc.Invoke(ctx, fullMethod(method), in, out, opts...); err != nil {
		var zero Out
		return zero, err
	}
	return out, nil
}

func (c *blockStoreClient) Put(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.StringValue, error) {
	return invoke(ctx, c.cc, methodPut, in, new(wrapperspb.StringValue), opts)
}

func (c *blockStoreClient) Get(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke(ctx, c.cc, methodGet, in, new(wrapperspb.BytesValue), opts)
}

func (c *blockStoreClient) Has(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke(ctx, c.cc, methodHas, in, new(wrapperspb.BoolValue), opts)
}

// unaryHandler adapts one typed server method to the grpc.MethodDesc shape,
// routing through the interceptor when one is installed.
func unaryHandler[In, Out proto.Message](method string, newIn func() In, call func(BlockStoreServer, context.Context, In) (Out, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := newIn()
			if err := dec(in); err != nil {
				return nil, err
			}
			bs := srv.(BlockStoreServer)
			if interceptor == nil {
				return call(bs, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(bs, ctx, req.(In))
			})
		},
	}
}

// BlockStoreServiceDesc is the grpc.ServiceDesc of the block store service.
var BlockStoreServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BlockStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(methodPut, func() *wrapperspb.BytesValue { return new(wrapperspb.BytesValue) }, BlockStoreServer.Put),
		unaryHandler(methodGet, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, BlockStoreServer.Get),
		unaryHandler(methodHas, func() *wrapperspb.StringValue { return new(wrapperspb.StringValue) }, BlockStoreServer.Has),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "blockstore.proto",
}
