package observe_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
	"github.com/example/foodcart/pkg/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = auth.Identity{UserID: "alice", Role: auth.RoleCustomer}
	bob   = auth.Identity{UserID: "bob", Role: auth.RoleCustomer}
	staff = auth.Identity{UserID: "kitchen", Role: auth.RoleStaff}
)

const wait = 2 * time.Second

type env struct {
	svc     *order.Service
	watcher *observe.Watcher
	now     time.Time
}

func newEnv(t *testing.T) *env {
	t.Helper()
	repo, err := repository.NewMemoryOrderRepository()
	require.NoError(t, err)
	feed := observe.NewLocalFeed(nil)
	e := &env{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	e.svc = order.NewService(repo, nil,
		order.WithPublisher(feed),
		order.WithClock(func() time.Time {
			e.now = e.now.Add(time.Second)
			return e.now
		}),
	)
	e.watcher = observe.NewWatcher(repo, feed, nil)
	return e
}

func (e *env) place(t *testing.T, who auth.Identity) *models.Order {
	t.Helper()
	o, err := e.svc.PlaceOrder(context.Background(), who, []models.LineSnapshot{{
		FoodID: "burger", Name: "Burger", UnitPrice: decimal.NewFromInt(50), Quantity: 1,
	}}, order.Payment{})
	require.NoError(t, err)
	return o
}

func collect() (observe.SnapshotFunc, <-chan []*models.Order) {
	ch := make(chan []*models.Order, 64)
	return func(orders []*models.Order) { ch <- orders }, ch
}

func next(t *testing.T, ch <-chan []*models.Order) []*models.Order {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(wait):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

// waitFor reads snapshots until one satisfies ok.
func waitFor(t *testing.T, ch <-chan []*models.Order, ok func([]*models.Order) bool) []*models.Order {
	t.Helper()
	deadline := time.After(wait)
	for {
		select {
		case s := <-ch:
			if ok(s) {
				return s
			}
		case <-deadline:
			t.Fatal("expected snapshot never arrived")
			return nil
		}
	}
}

func TestWatchStaff_initialSnapshotNewestFirst(t *testing.T) {
	e := newEnv(t)
	first := e.place(t, alice)
	second := e.place(t, bob)

	fn, ch := collect()
	stop, err := e.watcher.WatchStaff(context.Background(), fn)
	require.NoError(t, err)
	defer stop()

	initial := next(t, ch)
	require.Len(t, initial, 2)
	assert.Equal(t, second.ID, initial[0].ID)
	assert.Equal(t, first.ID, initial[1].ID)
}

func TestWatchStaff_refreshesOnChange(t *testing.T) {
	e := newEnv(t)
	o := e.place(t, alice)

	fn, ch := collect()
	stop, err := e.watcher.WatchStaff(context.Background(), fn)
	require.NoError(t, err)
	defer stop()
	next(t, ch)

	_, err = e.svc.AdvanceStatus(context.Background(), staff, o.ID, models.StatusPreparing)
	require.NoError(t, err)

	s := waitFor(t, ch, func(s []*models.Order) bool {
		return len(s) == 1 && s[0].Status == models.StatusPreparing
	})
	assert.Equal(t, o.ID, s[0].ID)

	added := e.place(t, bob)
	s = waitFor(t, ch, func(s []*models.Order) bool { return len(s) == 2 })
	assert.Equal(t, added.ID, s[0].ID)
}

func TestWatchCustomer_onlyOwnOrders(t *testing.T) {
	e := newEnv(t)
	mine := e.place(t, alice)
	e.place(t, bob)

	fn, ch := collect()
	stop, err := e.watcher.WatchCustomer(context.Background(), "alice", fn)
	require.NoError(t, err)
	defer stop()

	initial := next(t, ch)
	require.Len(t, initial, 1)
	assert.Equal(t, mine.ID, initial[0].ID)

	other := e.place(t, bob)
	_, err = e.svc.CancelOrder(context.Background(), bob, other.ID)
	require.NoError(t, err)
	_, err = e.svc.AdvanceStatus(context.Background(), staff, mine.ID, models.StatusPreparing)
	require.NoError(t, err)

	s := waitFor(t, ch, func(s []*models.Order) bool {
		return len(s) == 1 && s[0].Status == models.StatusPreparing
	})
	assert.Equal(t, mine.ID, s[0].ID)
}

func TestWatchCustomer_requiresUser(t *testing.T) {
	e := newEnv(t)
	_, err := e.watcher.WatchCustomer(context.Background(), "", func([]*models.Order) {})
	assert.ErrorIs(t, err, order.ErrUnauthenticated)
}

func TestWatch_stopEndsDelivery(t *testing.T) {
	e := newEnv(t)
	fn, ch := collect()
	stop, err := e.watcher.WatchStaff(context.Background(), fn)
	require.NoError(t, err)
	next(t, ch)

	stop()
	stop()

	e.place(t, alice)
	select {
	case s := <-ch:
		t.Fatalf("snapshot after stop: %v", s)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatch_contextCancelEndsWatch(t *testing.T) {
	e := newEnv(t)
	ctx, cancel := context.WithCancel(context.Background())
	fn, ch := collect()
	stop, err := e.watcher.WatchStaff(ctx, fn)
	require.NoError(t, err)
	next(t, ch)

	cancel()
	returned := make(chan struct{})
	go func() {
		stop()
		close(returned)
	}()
	select {
	case <-returned:
	case <-time.After(wait):
		t.Fatal("watch goroutine did not exit")
	}
}

type brokenSource struct{}

func (brokenSource) Query(context.Context, order.Filter) ([]*models.Order, error) {
	return nil, errors.New("connection refused")
}

func TestWatch_initialQueryFailure(t *testing.T) {
	w := observe.NewWatcher(brokenSource{}, observe.NewLocalFeed(nil), nil)
	_, err := w.WatchStaff(context.Background(), func([]*models.Order) {})
	assert.ErrorIs(t, err, order.ErrPersistence)
}

func TestWatchStatusChanges(t *testing.T) {
	e := newEnv(t)
	existing := e.place(t, alice)

	changes := make(chan observe.StatusChange, 16)
	stop, err := e.watcher.WatchStatusChanges(context.Background(), "alice", func(c observe.StatusChange) {
		changes <- c
	})
	require.NoError(t, err)
	defer stop()

	// A new order is not a status change.
	fresh := e.place(t, alice)
	_, err = e.svc.AdvanceStatus(context.Background(), staff, existing.ID, models.StatusPreparing)
	require.NoError(t, err)

	select {
	case c := <-changes:
		assert.Equal(t, existing.ID, c.OrderID)
		assert.Equal(t, models.StatusPending, c.Previous)
		assert.Equal(t, models.StatusPreparing, c.Current)
	case <-time.After(wait):
		t.Fatal("no status change reported")
	}

	_, err = e.svc.CancelOrder(context.Background(), alice, fresh.ID)
	require.NoError(t, err)
	select {
	case c := <-changes:
		assert.Equal(t, fresh.ID, c.OrderID)
		assert.Equal(t, models.StatusCancelled, c.Current)
	case <-time.After(wait):
		t.Fatal("no status change reported for the later order")
	}
}
