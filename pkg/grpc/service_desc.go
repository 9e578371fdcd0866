package grpc

import (
	"context"

	"google.golang.org/grpc"
)

const orderServiceName = "foodcart.order.OrderService"

// OrderServiceServer is the server API of the order service.
type OrderServiceServer interface {
	PlaceOrder(context.Context, *PlaceOrderRequest) (*OrderResponse, error)
	GetOrder(context.Context, *GetOrderRequest) (*OrderResponse, error)
	ListOrders(context.Context, *ListOrdersRequest) (*ListOrdersResponse, error)
	UpdateOrderStatus(context.Context, *UpdateOrderStatusRequest) (*OrderResponse, error)
	CancelOrder(context.Context, *CancelOrderRequest) (*OrderResponse, error)
	GetOrderHistory(context.Context, *GetOrderHistoryRequest) (*OrderHistoryResponse, error)
	WatchOrders(*WatchOrdersRequest, OrderService_WatchOrdersServer) error
}

type OrderService_WatchOrdersServer interface {
	Send(*WatchOrdersResponse) error
	grpc.ServerStream
}

type watchOrdersServer struct {
	grpc.ServerStream
}

func (x *watchOrdersServer) Send(m *WatchOrdersResponse) error {
	return x.ServerStream.SendMsg(m)
}

func fullMethod(name string) string {
	return "/" + orderServiceName + "/" + name
}

// unary builds a method handler for one request type.
func unary[Req any, Resp any](name string, call func(OrderServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OrderServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(OrderServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchOrdersHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(WatchOrdersRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(OrderServiceServer).WatchOrders(in, &watchOrdersServer{stream})
}

var orderServiceDesc = grpc.ServiceDesc{
	ServiceName: orderServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("PlaceOrder", OrderServiceServer.PlaceOrder),
		unary("GetOrder", OrderServiceServer.GetOrder),
		unary("ListOrders", OrderServiceServer.ListOrders),
		unary("UpdateOrderStatus", OrderServiceServer.UpdateOrderStatus),
		unary("CancelOrder", OrderServiceServer.CancelOrder),
		unary("GetOrderHistory", OrderServiceServer.GetOrderHistory),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchOrders",
			Handler:       watchOrdersHandler,
			ServerStreams: true,
		},
	},
}

func RegisterOrderServiceServer(s grpc.ServiceRegistrar, srv OrderServiceServer) {
	s.RegisterService(&orderServiceDesc, srv)
}
