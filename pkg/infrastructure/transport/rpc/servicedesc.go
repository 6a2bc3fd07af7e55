package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

type unaryMethod func(server OrderServiceServer, ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(name string, method unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return method(srv.(OrderServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return method(srv.(OrderServiceServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OrderServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler("CreateOrder", OrderServiceServer.CreateOrder),
		unaryHandler("GetOrder", OrderServiceServer.GetOrder),
		unaryHandler("ListOrdersByCustomer", OrderServiceServer.ListOrdersByCustomer),
		unaryHandler("ListOrdersByRestaurant", OrderServiceServer.ListOrdersByRestaurant),
		unaryHandler("ListActiveOrdersByRestaurant", OrderServiceServer.ListActiveOrdersByRestaurant),
		unaryHandler("ListOrdersByStatus", OrderServiceServer.ListOrdersByStatus),
		unaryHandler("UpdateOrderStatus", OrderServiceServer.UpdateOrderStatus),
		unaryHandler("CancelOrder", OrderServiceServer.CancelOrder),
		unaryHandler("ApplyDiscount", OrderServiceServer.ApplyDiscount),
	},
	Streams: []grpc.StreamDesc{},
}
