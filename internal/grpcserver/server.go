// Package grpcserver exposes a read-only view of the directory over gRPC.
//
// The service is described by hand with well-known protobuf types, so no
// generated code is needed on either side:
//
//	rango.Directory/TopCategories(google.protobuf.Int32Value) returns (google.protobuf.ListValue)
//	rango.Directory/Category(google.protobuf.StringValue) returns (google.protobuf.Struct)
//	rango.Directory/TopPages(google.protobuf.Int32Value) returns (google.protobuf.ListValue)
package grpcserver

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/patric-chuzhbe/rango/internal/grpcserver/interceptor"
)

// ServiceName is the full name of the directory service.
const ServiceName = "rango.Directory"

// Full method names of the directory service.
const (
	TopCategoriesMethod = "/" + ServiceName + "/TopCategories"
	CategoryMethod      = "/" + ServiceName + "/Category"
	TopPagesMethod      = "/" + ServiceName + "/TopPages"
)

// DirectoryServer is implemented by DirectoryHandler.
type DirectoryServer interface {
	TopCategories(ctx context.Context, limit *wrapperspb.Int32Value) (*structpb.ListValue, error)
	Category(ctx context.Context, slug *wrapperspb.StringValue) (*structpb.Struct, error)
	TopPages(ctx context.Context, limit *wrapperspb.Int32Value) (*structpb.ListValue, error)
}

func topCategoriesHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	unaryInterceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if unaryInterceptor == nil {
		return srv.(DirectoryServer).TopCategories(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TopCategoriesMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DirectoryServer).TopCategories(ctx, req.(*wrapperspb.Int32Value))
	}
	return unaryInterceptor(ctx, in, info, handler)
}

func categoryHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	unaryInterceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if unaryInterceptor == nil {
		return srv.(DirectoryServer).Category(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: CategoryMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DirectoryServer).Category(ctx, req.(*wrapperspb.StringValue))
	}
	return unaryInterceptor(ctx, in, info, handler)
}

func topPagesHandler(
	srv interface{},
	ctx context.Context,
	dec func(interface{}) error,
	unaryInterceptor grpc.UnaryServerInterceptor,
) (interface{}, error) {
	in := new(wrapperspb.Int32Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if unaryInterceptor == nil {
		return srv.(DirectoryServer).TopPages(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: TopPagesMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DirectoryServer).TopPages(ctx, req.(*wrapperspb.Int32Value))
	}
	return unaryInterceptor(ctx, in, info, handler)
}

// DirectoryServiceDesc describes rango.Directory to grpc.Server.
var DirectoryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "TopCategories", Handler: topCategoriesHandler},
		{MethodName: "Category", Handler: categoryHandler},
		{MethodName: "TopPages", Handler: topPagesHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rango/directory.proto",
}

// NewServer returns a grpc.Server with the directory service registered.
func NewServer(handler DirectoryServer) *grpc.Server {
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			interceptor.UnaryRecoveryInterceptor(),
			interceptor.UnaryLoggingInterceptor([]string{
				TopCategoriesMethod,
				CategoryMethod,
				TopPagesMethod,
			}),
		),
	)
	server.RegisterService(&DirectoryServiceDesc, handler)

	return server
}

// NewGRPCServer listens on addr and returns the server to serve on it.
func NewGRPCServer(addr string, handler DirectoryServer) (*grpc.Server, net.Listener, error) {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, err
	}

	return NewServer(handler), lis, nil
}

// DirectoryClient calls rango.Directory.
type DirectoryClient struct {
	cc grpc.ClientConnInterface
}

// NewDirectoryClient returns a client over cc.
func NewDirectoryClient(cc grpc.ClientConnInterface) *DirectoryClient {
	return &DirectoryClient{cc: cc}
}

// TopCategories returns up to limit categories, most liked first.
func (c *DirectoryClient) TopCategories(ctx context.Context, limit int32, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, TopCategoriesMethod, wrapperspb.Int32(limit), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Category returns the category with the given slug and its pages.
func (c *DirectoryClient) Category(ctx context.Context, slug string, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CategoryMethod, wrapperspb.String(slug), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// TopPages returns up to limit pages, most viewed first.
func (c *DirectoryClient) TopPages(ctx context.Context, limit int32, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, TopPagesMethod, wrapperspb.Int32(limit), out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
