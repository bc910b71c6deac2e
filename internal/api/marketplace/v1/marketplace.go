// Package marketplacepb describes the openslots.v1.Marketplace gRPC service.
//
// Messages are google.protobuf.Struct documents with camelCase keys, so the
// service needs no generated code and stays wire-compatible with any client
// that speaks Struct.
package marketplacepb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "openslots.v1.Marketplace"

// Method names.
const (
	MethodSearch             = "Search"
	MethodCreateNegotiation  = "CreateNegotiation"
	MethodCounter            = "Counter"
	MethodAccept             = "Accept"
	MethodCancel             = "Cancel"
	MethodGetNegotiation     = "GetNegotiation"
	MethodGetHistory         = "GetHistory"
	MethodCancelBooking      = "CancelBooking"
	MethodListBookings       = "ListBookings"
	MethodWithdrawSlot       = "WithdrawSlot"
	MethodDeactivateProvider = "DeactivateProvider"
)

// FullMethod returns the "/package.Service/Method" path of a method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

type MarketplaceServer interface {
	Search(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateNegotiation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Counter(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Accept(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Cancel(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetNegotiation(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHistory(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelBooking(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListBookings(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WithdrawSlot(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeactivateProvider(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(MarketplaceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(MarketplaceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(MarketplaceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var Marketplace_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MarketplaceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodSearch, MarketplaceServer.Search),
		unary(MethodCreateNegotiation, MarketplaceServer.CreateNegotiation),
		unary(MethodCounter, MarketplaceServer.Counter),
		unary(MethodAccept, MarketplaceServer.Accept),
		unary(MethodCancel, MarketplaceServer.Cancel),
		unary(MethodGetNegotiation, MarketplaceServer.GetNegotiation),
		unary(MethodGetHistory, MarketplaceServer.GetHistory),
		unary(MethodCancelBooking, MarketplaceServer.CancelBooking),
		unary(MethodListBookings, MarketplaceServer.ListBookings),
		unary(MethodWithdrawSlot, MarketplaceServer.WithdrawSlot),
		unary(MethodDeactivateProvider, MarketplaceServer.DeactivateProvider),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "openslots/v1/marketplace.proto",
}

func RegisterMarketplaceServer(s grpc.ServiceRegistrar, srv MarketplaceServer) {
	s.RegisterService(&Marketplace_ServiceDesc, srv)
}

// MarketplaceClient invokes Marketplace methods over any client connection.
type MarketplaceClient struct {
	cc grpc.ClientConnInterface
}

func NewMarketplaceClient(cc grpc.ClientConnInterface) *MarketplaceClient {
	return &MarketplaceClient{cc: cc}
}

// Call invokes method with in and returns the decoded reply.
func (c *MarketplaceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
