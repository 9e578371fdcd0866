package grpc

import (
	"context"
	"sync"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// OrderClient calls the order service with the same signatures as
// order.Service. Each call carries a short-lived relay token for the caller,
// which is what lets the order service accept prepaid orders.
type OrderClient struct {
	conn   grpc.ClientConnInterface
	tokens *auth.Tokens
}

func NewOrderClient(conn grpc.ClientConnInterface, tokens *auth.Tokens) *OrderClient {
	return &OrderClient{conn: conn, tokens: tokens}
}

func (c *OrderClient) withCaller(ctx context.Context, caller auth.Identity) (context.Context, error) {
	if !caller.Authenticated() {
		return ctx, nil
	}
	token, err := c.tokens.IssueRelay(caller)
	if err != nil {
		return nil, err
	}
	return metadata.AppendToOutgoingContext(ctx, authorizationKey, "Bearer "+token), nil
}

func (c *OrderClient) invoke(ctx context.Context, caller auth.Identity, method string, req, resp interface{}) error {
	ctx, err := c.withCaller(ctx, caller)
	if err != nil {
		return err
	}
	return fromStatus(c.conn.Invoke(ctx, fullMethod(method), req, resp, grpc.CallContentSubtype(codecName)))
}

func (c *OrderClient) PlaceOrder(ctx context.Context, buyer auth.Identity, lines []models.LineSnapshot, pay order.Payment) (*models.Order, error) {
	resp := new(OrderResponse)
	req := &PlaceOrderRequest{Items: lines, PaymentStatus: pay.Status, PaymentReference: pay.Reference}
	if err := c.invoke(ctx, buyer, "PlaceOrder", req, resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *OrderClient) GetOrder(ctx context.Context, caller auth.Identity, orderID string) (*models.Order, error) {
	resp := new(OrderResponse)
	if err := c.invoke(ctx, caller, "GetOrder", &GetOrderRequest{ID: orderID}, resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *OrderClient) ListOrders(ctx context.Context, caller auth.Identity, f order.Filter) ([]*models.Order, error) {
	resp := new(ListOrdersResponse)
	req := &ListOrdersRequest{UserID: f.UserID, Statuses: f.Statuses, Limit: f.Limit}
	if err := c.invoke(ctx, caller, "ListOrders", req, resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

func (c *OrderClient) AdvanceStatus(ctx context.Context, caller auth.Identity, orderID string, target models.OrderStatus) (*models.Order, error) {
	resp := new(OrderResponse)
	req := &UpdateOrderStatusRequest{OrderID: orderID, Status: target}
	if err := c.invoke(ctx, caller, "UpdateOrderStatus", req, resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *OrderClient) CancelOrder(ctx context.Context, caller auth.Identity, orderID string) (*models.Order, error) {
	resp := new(OrderResponse)
	if err := c.invoke(ctx, caller, "CancelOrder", &CancelOrderRequest{OrderID: orderID}, resp); err != nil {
		return nil, err
	}
	return resp.Order, nil
}

func (c *OrderClient) OrderHistory(ctx context.Context, caller auth.Identity, orderID string) ([]order.HistoryEntry, error) {
	resp := new(OrderHistoryResponse)
	if err := c.invoke(ctx, caller, "GetOrderHistory", &GetOrderHistoryRequest{OrderID: orderID}, resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// WatchOrders opens a live view and waits for the first snapshot before
// returning. Later snapshots are delivered from a goroutine that stop ends.
func (c *OrderClient) WatchOrders(ctx context.Context, caller auth.Identity, mine bool, fn observe.SnapshotFunc) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)
	callCtx, err := c.withCaller(ctx, caller)
	if err != nil {
		cancel()
		return nil, err
	}

	stream, err := c.conn.NewStream(callCtx, &orderServiceDesc.Streams[0], fullMethod("WatchOrders"), grpc.CallContentSubtype(codecName))
	if err != nil {
		cancel()
		return nil, fromStatus(err)
	}
	if err := stream.SendMsg(&WatchOrdersRequest{Mine: mine}); err != nil {
		cancel()
		return nil, fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		cancel()
		return nil, fromStatus(err)
	}

	first := new(WatchOrdersResponse)
	if err := stream.RecvMsg(first); err != nil {
		cancel()
		return nil, fromStatus(err)
	}
	fn(first.Orders)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			resp := new(WatchOrdersResponse)
			if err := stream.RecvMsg(resp); err != nil {
				return
			}
			fn(resp.Orders)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}
