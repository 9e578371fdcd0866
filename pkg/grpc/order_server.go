package grpc

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const authorizationKey = "authorization"

// OrderServer exposes order.Service over gRPC. Callers identify themselves
// with a bearer token in the authorization metadata.
type OrderServer struct {
	service *order.Service
	watcher *observe.Watcher
	tokens  *auth.Tokens
	logger  *zap.Logger
	srv     *grpc.Server
	health  *health.Server
}

func NewOrderServer(service *order.Service, watcher *observe.Watcher, tokens *auth.Tokens, logger *zap.Logger) *OrderServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OrderServer{
		service: service,
		watcher: watcher,
		tokens:  tokens,
		logger:  logger.Named("grpc"),
		health:  health.NewServer(),
	}
	s.srv = grpc.NewServer(grpc.ChainUnaryInterceptor(s.logUnary))
	RegisterOrderServiceServer(s.srv, s)
	healthpb.RegisterHealthServer(s.srv, s.health)
	s.health.SetServingStatus(orderServiceName, healthpb.HealthCheckResponse_SERVING)
	return s
}

// Serve blocks serving on lis until Stop is called.
func (s *OrderServer) Serve(lis net.Listener) error {
	s.logger.Info("Order service started", zap.String("address", lis.Addr().String()))
	return s.srv.Serve(lis)
}

func (s *OrderServer) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(lis)
}

func (s *OrderServer) Stop() {
	s.health.Shutdown()
	s.srv.GracefulStop()
}

func (s *OrderServer) logUnary(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	resp, err := handler(ctx, req)
	if err == nil {
		return resp, err
	}
	switch code := status.Code(err); code {
	case codes.Internal, codes.Unavailable:
		s.logger.Error("Request failed", zap.String("method", info.FullMethod), zap.String("code", code.String()), zap.Error(err))
	default:
		s.logger.Debug("Request failed", zap.String("method", info.FullMethod), zap.String("code", code.String()), zap.Error(err))
	}
	return resp, err
}

// identity reads the caller from the bearer token. No token means an
// anonymous caller; the service decides whether that is allowed.
func (s *OrderServer) identity(ctx context.Context) (auth.Identity, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return auth.Identity{}, nil
	}
	values := md.Get(authorizationKey)
	if len(values) == 0 {
		return auth.Identity{}, nil
	}
	token := strings.TrimPrefix(values[0], "Bearer ")
	id, err := s.tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, toStatus(err)
	}
	return id, nil
}

func (s *OrderServer) PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*OrderResponse, error) {
	caller, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	// Only the gateway charges cards, so a prepaid order must come through it.
	if req.PaymentStatus == models.PaymentPaid && !caller.Relayed && !caller.IsStaff() {
		return nil, toStatus(fmt.Errorf("%w: prepaid orders must be placed through checkout", order.ErrForbidden))
	}
	o, err := s.service.PlaceOrder(ctx, caller, req.Items, order.Payment{
		Status:    req.PaymentStatus,
		Reference: req.PaymentReference,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderResponse{Order: o}, nil
}

func (s *OrderServer) GetOrder(ctx context.Context, req *GetOrderRequest) (*OrderResponse, error) {
	caller, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.service.GetOrder(ctx, caller, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderResponse{Order: o}, nil
}

func (s *OrderServer) ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error) {
	caller, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	orders, err := s.service.ListOrders(ctx, caller, order.Filter{
		UserID:   req.UserID,
		Statuses: req.Statuses,
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &ListOrdersResponse{Orders: orders}, nil
}

func (s *OrderServer) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*OrderResponse, error) {
	caller, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.service.AdvanceStatus(ctx, caller, req.OrderID, req.Status)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderResponse{Order: o}, nil
}

func (s *OrderServer) CancelOrder(ctx context.Context, req *CancelOrderRequest) (*OrderResponse, error) {
	caller, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	o, err := s.service.CancelOrder(ctx, caller, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderResponse{Order: o}, nil
}

func (s *OrderServer) GetOrderHistory(ctx context.Context, req *GetOrderHistoryRequest) (*OrderHistoryResponse, error) {
	caller, err := s.identity(ctx)
	if err != nil {
		return nil, err
	}
	entries, err := s.service.OrderHistory(ctx, caller, req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &OrderHistoryResponse{Entries: entries}, nil
}

// WatchOrders streams a full snapshot on subscribe and after every relevant
// change. A slow client only ever receives the latest snapshot.
func (s *OrderServer) WatchOrders(req *WatchOrdersRequest, stream OrderService_WatchOrdersServer) error {
	ctx := stream.Context()
	caller, err := s.identity(ctx)
	if err != nil {
		return err
	}
	if !caller.Authenticated() {
		return toStatus(order.ErrUnauthenticated)
	}

	latest := make(chan []*models.Order, 1)
	push := func(orders []*models.Order) {
		for {
			select {
			case latest <- orders:
				return
			default:
				select {
				case <-latest:
				default:
				}
			}
		}
	}

	var stop func()
	if caller.IsStaff() && !req.Mine {
		stop, err = s.watcher.WatchStaff(ctx, push)
	} else {
		stop, err = s.watcher.WatchCustomer(ctx, caller.UserID, push)
	}
	if err != nil {
		return toStatus(err)
	}
	defer stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case orders := <-latest:
			if err := stream.Send(&WatchOrdersResponse{Orders: orders}); err != nil {
				return err
			}
		}
	}
}
