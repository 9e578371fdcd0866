package grpc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
	"github.com/example/foodcart/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

var (
	alice = auth.Identity{UserID: "alice", Role: auth.RoleCustomer, Email: "alice@example.com"}
	bob   = auth.Identity{UserID: "bob", Role: auth.RoleCustomer}
	staff = auth.Identity{UserID: "kitchen", Role: auth.RoleStaff}
)

var lines = []models.LineSnapshot{{
	LineID:    "l1",
	FoodID:    "burger",
	Name:      "Burger",
	BasePrice: decimal.NewFromInt(50),
	UnitPrice: decimal.NewFromInt(65),
	Quantity:  2,
	Customization: models.Customization{
		Extras: []models.ExtraSelection{{OptionID: "cheese", Quantity: 1}},
	},
	Total: decimal.NewFromInt(130),
}}

type harness struct {
	client *OrderClient
	conn   *grpc.ClientConn
	tokens *auth.Tokens
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo, err := repository.NewMemoryOrderRepository()
	require.NoError(t, err)
	feed := observe.NewLocalFeed(nil)
	svc := order.NewService(repo, nil, order.WithPublisher(feed), order.WithHistory(repository.NewMemoryHistory()))
	tokens := auth.NewTokens(config.AuthConfig{JWTSecret: "test-secret", Issuer: "foodcart", TokenTTL: time.Minute})

	server := NewOrderServer(svc, observe.NewWatcher(repo, feed, nil), tokens, nil)
	lis := bufconn.Listen(1 << 20)
	go server.Serve(lis)
	t.Cleanup(server.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &harness{client: NewOrderClient(conn, tokens), conn: conn, tokens: tokens}
}

func TestOrderService_placeAndGet(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o, err := h.client.PlaceOrder(ctx, alice, lines, order.Payment{Status: models.PaymentPaid, Reference: "pay-1"})
	require.NoError(t, err)
	assert.Equal(t, "alice", o.UserID)
	assert.Equal(t, "alice@example.com", o.CustomerEmail)
	assert.Equal(t, models.StatusPending, o.Status)
	assert.True(t, o.TotalAmount.Equal(decimal.NewFromInt(130)))

	got, err := h.client.GetOrder(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "cheese", got.Items[0].Customization.Extras[0].OptionID)

	_, err = h.client.GetOrder(ctx, bob, o.ID)
	assert.ErrorIs(t, err, order.ErrForbidden)

	_, err = h.client.GetOrder(ctx, staff, "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestOrderService_errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.client.PlaceOrder(ctx, alice, nil, order.Payment{})
	assert.ErrorIs(t, err, order.ErrEmptyCart)

	_, err = h.client.PlaceOrder(ctx, auth.Identity{}, lines, order.Payment{})
	assert.ErrorIs(t, err, order.ErrUnauthenticated)

	o, err := h.client.PlaceOrder(ctx, alice, lines, order.Payment{})
	require.NoError(t, err)

	_, err = h.client.AdvanceStatus(ctx, alice, o.ID, models.StatusPreparing)
	assert.ErrorIs(t, err, order.ErrForbidden)

	_, err = h.client.AdvanceStatus(ctx, staff, o.ID, models.StatusCompleted)
	assert.ErrorIs(t, err, order.ErrInvalidTransition)
}

func TestOrderService_lifecycleAndHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	o, err := h.client.PlaceOrder(ctx, alice, lines, order.Payment{})
	require.NoError(t, err)

	for _, next := range []models.OrderStatus{models.StatusPreparing, models.StatusReady, models.StatusCompleted} {
		updated, err := h.client.AdvanceStatus(ctx, staff, o.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	history, err := h.client.OrderHistory(ctx, alice, o.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, models.StatusCompleted, history[3].To)

	other, err := h.client.PlaceOrder(ctx, alice, lines, order.Payment{})
	require.NoError(t, err)
	cancelled, err := h.client.CancelOrder(ctx, alice, other.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, cancelled.Status)

	mine, err := h.client.ListOrders(ctx, alice, order.Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 2)

	active, err := h.client.ListOrders(ctx, staff, order.Filter{Statuses: []models.OrderStatus{models.StatusCancelled}})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, other.ID, active[0].ID)
}

// placeDirect calls PlaceOrder with an identity-provider token, skipping the
// gateway relay.
func (h *harness) placeDirect(t *testing.T, who auth.Identity, req *PlaceOrderRequest) error {
	t.Helper()
	token, err := h.tokens.Issue(who)
	require.NoError(t, err)
	ctx := metadata.AppendToOutgoingContext(context.Background(), authorizationKey, "Bearer "+token)
	return h.conn.Invoke(ctx, fullMethod("PlaceOrder"), req, new(OrderResponse), grpc.CallContentSubtype(codecName))
}

func TestOrderService_prepaidRequiresRelay(t *testing.T) {
	h := newHarness(t)
	free := []models.LineSnapshot{{FoodID: "burger", Name: "Burger", UnitPrice: decimal.Zero, Quantity: 5}}

	err := h.placeDirect(t, alice, &PlaceOrderRequest{Items: free, PaymentStatus: models.PaymentPaid})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	err = h.placeDirect(t, alice, &PlaceOrderRequest{Items: lines, PaymentStatus: models.PaymentPaid, PaymentReference: "pay-1"})
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	// Unpaid orders are still accepted directly and settled at collection.
	err = h.placeDirect(t, alice, &PlaceOrderRequest{Items: lines})
	assert.NoError(t, err)

	err = h.placeDirect(t, alice, &PlaceOrderRequest{Items: free})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = h.client.PlaceOrder(context.Background(), alice, free, order.Payment{Status: models.PaymentPaid, Reference: "pay-1"})
	assert.ErrorIs(t, err, order.ErrInvalidLine)

	_, err = h.client.PlaceOrder(context.Background(), alice, lines, order.Payment{Status: "comped"})
	assert.ErrorIs(t, err, order.ErrInvalidPayment)

	mine, err := h.client.ListOrders(context.Background(), alice, order.Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, models.PaymentUnpaid, mine[0].PaymentStatus)
}

func TestOrderServer_logUnaryLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := NewOrderServer(nil, nil, nil, zap.New(core))
	info := &grpc.UnaryServerInfo{FullMethod: fullMethod("GetOrder")}

	tests := []struct {
		code  codes.Code
		level zapcore.Level
	}{
		{codes.Internal, zapcore.ErrorLevel},
		{codes.Unavailable, zapcore.ErrorLevel},
		{codes.NotFound, zapcore.DebugLevel},
		{codes.PermissionDenied, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		_, err := s.logUnary(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
			return nil, status.Error(tt.code, "boom")
		})
		require.Error(t, err)
		entries := logs.TakeAll()
		require.Len(t, entries, 1, tt.code.String())
		assert.Equal(t, tt.level, entries[0].Level, tt.code.String())
	}

	_, err := s.logUnary(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return &OrderResponse{}, nil
	})
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestOrderService_rejectsBadToken(t *testing.T) {
	h := newHarness(t)
	other := NewOrderClient(h.conn, auth.NewTokens(config.AuthConfig{JWTSecret: "wrong", Issuer: "foodcart"}))

	_, err := other.ListOrders(context.Background(), alice, order.Filter{})
	assert.ErrorIs(t, err, order.ErrUnauthenticated)
}

func TestOrderService_watch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	existing, err := h.client.PlaceOrder(ctx, alice, lines, order.Payment{})
	require.NoError(t, err)

	snapshots := make(chan []*models.Order, 32)
	stop, err := h.client.WatchOrders(ctx, staff, false, func(orders []*models.Order) {
		snapshots <- orders
	})
	require.NoError(t, err)
	defer stop()

	initial := <-snapshots
	require.Len(t, initial, 1)
	assert.Equal(t, existing.ID, initial[0].ID)

	_, err = h.client.AdvanceStatus(ctx, staff, existing.ID, models.StatusPreparing)
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case s := <-snapshots:
			if len(s) == 1 && s[0].Status == models.StatusPreparing {
				return
			}
		case <-deadline:
			t.Fatal("no updated snapshot")
		}
	}
}

func TestOrderService_watchRequiresIdentity(t *testing.T) {
	h := newHarness(t)
	_, err := h.client.WatchOrders(context.Background(), auth.Identity{}, false, func([]*models.Order) {})
	assert.ErrorIs(t, err, order.ErrUnauthenticated)
}

func TestOrderService_health(t *testing.T) {
	h := newHarness(t)
	resp, err := healthpb.NewHealthClient(h.conn).Check(context.Background(),
		&healthpb.HealthCheckRequest{Service: orderServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{order.ErrEmptyCart, codes.InvalidArgument},
		{order.ErrInvalidLine, codes.InvalidArgument},
		{order.ErrInvalidPayment, codes.InvalidArgument},
		{order.ErrUnauthenticated, codes.Unauthenticated},
		{order.ErrForbidden, codes.PermissionDenied},
		{order.ErrNotFound, codes.NotFound},
		{order.ErrInvalidTransition, codes.FailedPrecondition},
		{order.ErrPersistence, codes.Unavailable},
	}
	for _, tt := range tests {
		st, _ := status.FromError(toStatus(tt.err))
		assert.Equal(t, tt.code, st.Code(), tt.err.Error())
		assert.ErrorIs(t, fromStatus(toStatus(tt.err)), tt.err)
	}

	conflict := toStatus(order.ErrStatusConflict)
	st, _ := status.FromError(conflict)
	assert.Equal(t, codes.Aborted, st.Code())
	assert.ErrorIs(t, fromStatus(conflict), order.ErrInvalidTransition)
	assert.ErrorIs(t, fromStatus(conflict), order.ErrStatusConflict)
}
