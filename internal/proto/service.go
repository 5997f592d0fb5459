package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "vaxsync.v1.Records"

// Full method names.
const (
	MethodPing             = "/" + ServiceName + "/Ping"
	MethodFetch            = "/" + ServiceName + "/Fetch"
	MethodList             = "/" + ServiceName + "/List"
	MethodQuery            = "/" + ServiceName + "/Query"
	MethodSubmitMessage    = "/" + ServiceName + "/SubmitMessage"
	MethodApplyProfileEdit = "/" + ServiceName + "/ApplyProfileEdit"
)

// RecordsServer is the server API for the Records service.
type RecordsServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Fetch(context.Context, *structpb.Struct) (*structpb.Struct, error)
	List(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Query(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitMessage(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ApplyProfileEdit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RecordsClient is the client API for the Records service.
type RecordsClient interface {
	Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Fetch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SubmitMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ApplyProfileEdit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type recordsClient struct {
	cc grpc.ClientConnInterface
}

func NewRecordsClient(cc grpc.ClientConnInterface) RecordsClient {
	return &recordsClient{cc: cc}
}

func (c *recordsClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *recordsClient) Ping(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodPing, in, opts)
}

func (c *recordsClient) Fetch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodFetch, in, opts)
}

func (c *recordsClient) List(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodList, in, opts)
}

func (c *recordsClient) Query(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodQuery, in, opts)
}

func (c *recordsClient) SubmitMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodSubmitMessage, in, opts)
}

func (c *recordsClient) ApplyProfileEdit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, MethodApplyProfileEdit, in, opts)
}

// RegisterRecordsServer registers srv on s.
func RegisterRecordsServer(s grpc.ServiceRegistrar, srv RecordsServer) {
	s.RegisterService(&RecordsServiceDesc, srv)
}

func unaryHandler(method string, call func(RecordsServer, context.Context, *structpb.Struct) (*structpb.Struct, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(RecordsServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(RecordsServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// RecordsServiceDesc is the grpc.ServiceDesc for the Records service.
var RecordsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordsServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("Ping", RecordsServer.Ping),
		unaryHandler("Fetch", RecordsServer.Fetch),
		unaryHandler("List", RecordsServer.List),
		unaryHandler("Query", RecordsServer.Query),
		unaryHandler("SubmitMessage", RecordsServer.SubmitMessage),
		unaryHandler("ApplyProfileEdit", RecordsServer.ApplyProfileEdit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vaxsync/v1/records.proto",
}
