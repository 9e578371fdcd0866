package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
	"github.com/example/foodcart/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func change(id string, from, to models.OrderStatus) observe.StatusChange {
	return observe.StatusChange{
		OrderID:  id,
		Previous: from,
		Current:  to,
		Order:    &models.Order{ID: id, UserID: "alice", Status: to},
	}
}

func TestShortID(t *testing.T) {
	assert.Equal(t, "89abcdef", ShortID("0123456789abcdef"))
	assert.Equal(t, "abc", ShortID("abc"))
}

func TestForChange(t *testing.T) {
	tests := []struct {
		to      models.OrderStatus
		title   string
		message string
	}{
		{models.StatusPreparing, "Order Started", "Order #12345678 is now being prepared!"},
		{models.StatusReady, "Order Ready!", "Order #12345678 is ready for pickup!"},
		{models.StatusCompleted, "Order Completed", "Order #12345678 has been completed. Enjoy!"},
		{models.StatusCancelled, "Order Cancelled", "Order #12345678 has been cancelled."},
	}
	for _, tt := range tests {
		n, ok := ForChange(change("order-12345678", models.StatusPending, tt.to))
		require.True(t, ok, tt.to)
		assert.Equal(t, tt.title, n.Title)
		assert.Equal(t, tt.message, n.Message)
		assert.Equal(t, "alice", n.UserID)
		assert.Equal(t, tt.to, n.Status)
	}

	_, ok := ForChange(change("x", models.StatusPreparing, models.StatusPending))
	assert.False(t, ok)
}

type recordingSink struct {
	mu   sync.Mutex
	sent []Notification
	err  error
}

func (s *recordingSink) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) titles() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.sent))
	for i, n := range s.sent {
		out[i] = n.Title
	}
	return out
}

func TestDispatcher_deliversInOrder(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDispatcher(actor.NewActorSystem(), sink, nil, nil)
	require.NoError(t, err)
	defer d.Stop()

	assert.True(t, d.Dispatch(change("o1", models.StatusPending, models.StatusPreparing)))
	assert.True(t, d.Dispatch(change("o1", models.StatusPreparing, models.StatusReady)))
	require.NoError(t, d.DispatchAndWait(change("o1", models.StatusReady, models.StatusCompleted), time.Second))

	assert.Equal(t, []string{"Order Started", "Order Ready!", "Order Completed"}, sink.titles())
}

func TestDispatcher_skipsChangesWithoutNotification(t *testing.T) {
	sink := &recordingSink{}
	d, err := NewDispatcher(actor.NewActorSystem(), sink, nil, nil)
	require.NoError(t, err)
	defer d.Stop()

	assert.False(t, d.Dispatch(change("o1", models.StatusPreparing, models.StatusPending)))
	require.NoError(t, d.DispatchAndWait(change("o1", models.StatusPreparing, models.StatusPending), time.Second))
	assert.Empty(t, sink.titles())
}

func TestDispatcher_reportsSinkFailure(t *testing.T) {
	d, err := NewDispatcher(actor.NewActorSystem(), &recordingSink{err: errors.New("push gateway down")}, nil, nil)
	require.NoError(t, err)
	defer d.Stop()

	err = d.DispatchAndWait(change("o1", models.StatusPending, models.StatusCancelled), time.Second)
	assert.ErrorContains(t, err, "push gateway down")
}

type memoryInbox struct {
	items map[string][]interface{}
}

func (m *memoryInbox) PushNotification(_ context.Context, userID string, n interface{}) error {
	m.items[userID] = append(m.items[userID], n)
	return nil
}

func TestMultiSink(t *testing.T) {
	inbox := &memoryInbox{items: map[string][]interface{}{}}
	rec := &recordingSink{}
	failing := &recordingSink{err: errors.New("boom")}

	n, _ := ForChange(change("o1", models.StatusPending, models.StatusPreparing))
	err := MultiSink{failing, NewInboxSink(inbox), rec}.Send(context.Background(), n)

	assert.EqualError(t, err, "boom")
	assert.Len(t, inbox.items["alice"], 1)
	assert.Equal(t, []string{"Order Started"}, rec.titles())
}

// firstQuery closes queried once the first snapshot has been read.
type firstQuery struct {
	observe.Source
	once    sync.Once
	queried chan struct{}
}

func (f *firstQuery) Query(ctx context.Context, filter order.Filter) ([]*models.Order, error) {
	orders, err := f.Source.Query(ctx, filter)
	f.once.Do(func() { close(f.queried) })
	return orders, err
}

func TestDispatcher_runFollowsOrders(t *testing.T) {
	repo, err := repository.NewMemoryOrderRepository()
	require.NoError(t, err)
	feed := observe.NewLocalFeed(nil)
	svc := order.NewService(repo, nil, order.WithPublisher(feed))
	ctx := context.Background()

	alice := auth.Identity{UserID: "alice", Role: auth.RoleCustomer}
	staff := auth.Identity{UserID: "kitchen", Role: auth.RoleStaff}
	lines := []models.LineSnapshot{{FoodID: "burger", Name: "Burger", UnitPrice: decimal.NewFromInt(50), Quantity: 1}}
	existing, err := svc.PlaceOrder(ctx, alice, lines, order.Payment{})
	require.NoError(t, err)

	sink := &recordingSink{}
	d, err := NewDispatcher(actor.NewActorSystem(), sink, nil, nil)
	require.NoError(t, err)
	defer d.Stop()

	source := &firstQuery{Source: repo, queried: make(chan struct{})}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- d.Run(runCtx, observe.NewWatcher(source, feed, nil)) }()

	select {
	case <-source.queried:
	case <-time.After(2 * time.Second):
		t.Fatal("watch never took its first snapshot")
	}
	_, err = svc.AdvanceStatus(ctx, staff, existing.ID, models.StatusPreparing)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(sink.titles()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"Order Started"}, sink.titles())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
