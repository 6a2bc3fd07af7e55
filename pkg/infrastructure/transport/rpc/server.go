package rpc

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/model"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/domain/service"
	"github.com/GrigoriyPoshnagovInstitute/FoodOrderService/pkg/infrastructure/transport"
)

const ServiceName = "orderservice.v1.OrderService"

// OrderServiceServer exchanges the JSON documents of the REST API wrapped in
// google.protobuf.Struct messages.
type OrderServiceServer interface {
	CreateOrder(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	GetOrder(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	ListOrdersByCustomer(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	ListOrdersByRestaurant(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	ListActiveOrdersByRestaurant(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	ListOrdersByStatus(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	UpdateOrderStatus(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	ApplyDiscount(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
}

type orderRequest struct {
	ID uuid.UUID `json:"id"`
}

type customerRequest struct {
	CustomerID uuid.UUID `json:"customerId"`
}

type restaurantRequest struct {
	RestaurantID uuid.UUID `json:"restaurantId"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type updateStatusRequest struct {
	ID uuid.UUID `json:"id"`
	transport.UpdateOrderStatusRequest
}

type cancelRequest struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

type discountRequest struct {
	ID     uuid.UUID       `json:"id"`
	Amount decimal.Decimal `json:"amount"`
}

type ordersResponse struct {
	Orders []transport.OrderResponse `json:"orders"`
}

func NewServer(orders service.Order, logger logrus.FieldLogger) *grpc.Server {
	server := grpc.NewServer(grpc.UnaryInterceptor(loggingInterceptor(logger)))
	RegisterOrderServiceServer(server, NewOrderServiceServer(orders))
	return server
}

func RegisterOrderServiceServer(registrar grpc.ServiceRegistrar, server OrderServiceServer) {
	registrar.RegisterService(&serviceDesc, server)
}

func NewOrderServiceServer(orders service.Order) OrderServiceServer {
	return &orderServiceServer{orders: orders}
}

type orderServiceServer struct {
	orders service.Order
}

func (s *orderServiceServer) CreateOrder(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req transport.CreateOrderRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	return orderReply(s.orders.CreateOrder(ctx, req.ToInput()))
}

func (s *orderServiceServer) GetOrder(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req orderRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	return orderReply(s.orders.GetOrder(ctx, req.ID))
}

func (s *orderServiceServer) ListOrdersByCustomer(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req customerRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	return ordersReply(s.orders.ListByCustomer(ctx, req.CustomerID))
}

func (s *orderServiceServer) ListOrdersByRestaurant(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req restaurantRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	return ordersReply(s.orders.ListByRestaurant(ctx, req.RestaurantID))
}

func (s *orderServiceServer) ListActiveOrdersByRestaurant(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req restaurantRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	return ordersReply(s.orders.ListActiveByRestaurant(ctx, req.RestaurantID))
}

func (s *orderServiceServer) ListOrdersByStatus(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req statusRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	orderStatus, err := model.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, toStatus(err)
	}
	return ordersReply(s.orders.ListByStatus(ctx, orderStatus))
}

func (s *orderServiceServer) UpdateOrderStatus(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req updateStatusRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	input, err := req.ToInput()
	if err != nil {
		return nil, toStatus(err)
	}
	return orderReply(s.orders.UpdateStatus(ctx, req.ID, input))
}

func (s *orderServiceServer) CancelOrder(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req cancelRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	return orderReply(s.orders.CancelOrder(ctx, req.ID, req.Reason))
}

func (s *orderServiceServer) ApplyDiscount(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	var req discountRequest
	if err := decode(request, &req); err != nil {
		return nil, err
	}
	return orderReply(s.orders.ApplyDiscount(ctx, req.ID, req.Amount))
}

func decode(request *structpb.Struct, v interface{}) error {
	data, err := protojson.Marshal(request)
	if err == nil {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return status.Errorf(codes.InvalidArgument, "malformed request: %s", err)
	}
	return nil
}

func encode(v interface{}) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %s", err)
	}
	reply := &structpb.Struct{}
	if err := protojson.Unmarshal(data, reply); err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %s", err)
	}
	return reply, nil
}

func orderReply(order *model.Order, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(transport.NewOrderResponse(order))
}

func ordersReply(orders []*model.Order, err error) (*structpb.Struct, error) {
	if err != nil {
		return nil, toStatus(err)
	}
	return encode(ordersResponse{Orders: transport.NewOrderResponses(orders)})
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, model.ErrOrderNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrRestaurantNotAcceptingOrders):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, model.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrOrderConcurrentModification):
		return status.Error(codes.Aborted, err.Error())
	default:
		return status.Error(codes.Internal, "an unexpected error occurred")
	}
}

func loggingInterceptor(logger logrus.FieldLogger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			entry := logger.WithError(err).WithField("method", info.FullMethod)
			if status.Code(err) == codes.Internal {
				entry.Error("rpc failed")
			} else {
				entry.Warn("rpc rejected")
			}
		}
		return resp, err
	}
}
