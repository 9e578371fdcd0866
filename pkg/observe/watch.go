// Package observe keeps live views of orders: every subscriber gets a full
// snapshot immediately and a fresh one after each relevant change.
package observe

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/order"
	"go.uber.org/zap"
)

// Source answers snapshot queries. order.Repository satisfies it.
type Source interface {
	Query(ctx context.Context, f order.Filter) ([]*models.Order, error)
}

// SnapshotFunc receives every snapshot of a watch, newest order first.
// It is never called concurrently for the same watch and must not call the
// watch's stop function.
type SnapshotFunc func(orders []*models.Order)

type Watcher struct {
	source  Source
	feed    Feed
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type Option func(*Watcher)

func WithMetrics(m *metrics.Metrics) Option {
	return func(w *Watcher) { w.metrics = m }
}

func NewWatcher(source Source, feed Feed, logger *zap.Logger, opts ...Option) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{source: source, feed: feed, logger: logger.Named("observe")}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// WatchCustomer follows one customer's orders.
func (w *Watcher) WatchCustomer(ctx context.Context, userID string, fn SnapshotFunc) (func(), error) {
	if userID == "" {
		return nil, order.ErrUnauthenticated
	}
	return w.Watch(ctx, "customer", order.Filter{UserID: userID}, fn)
}

// WatchStaff follows every order.
func (w *Watcher) WatchStaff(ctx context.Context, fn SnapshotFunc) (func(), error) {
	return w.Watch(ctx, "staff", order.Filter{}, fn)
}

// WatchStatusChanges follows a customer's orders and reports only status
// changes of orders already known when the watch started or seen since.
func (w *Watcher) WatchStatusChanges(ctx context.Context, userID string, fn func(StatusChange)) (func(), error) {
	d := NewDiffer()
	return w.WatchCustomer(ctx, userID, func(orders []*models.Order) {
		for _, c := range d.Diff(orders) {
			fn(c)
		}
	})
}

// Watch subscribes to the feed first, then delivers the initial snapshot
// before returning, so no change between the two is lost. The returned stop
// function cancels the watch and waits for its goroutine to exit; it is safe
// to call more than once. Cancelling ctx also ends the watch.
func (w *Watcher) Watch(ctx context.Context, view string, filter order.Filter, fn SnapshotFunc) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	changes, err := w.feed.Subscribe(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	initial, err := w.source.Query(ctx, filter)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %w", order.ErrPersistence, err)
	}
	fn(initial)

	closed := w.metrics.WatcherOpened(view)
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer closed()
		w.loop(ctx, filter, changes, fn)
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return stop, nil
}

func (w *Watcher) loop(ctx context.Context, filter order.Filter, changes <-chan models.OrderChange, fn SnapshotFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case change, ok := <-changes:
			if !ok {
				return
			}
			relevant := w.relevant(filter, change)
			// Coalesce whatever else is already queued into one query.
		drain:
			for {
				select {
				case c, ok := <-changes:
					if !ok {
						break drain
					}
					relevant = relevant || w.relevant(filter, c)
				default:
					break drain
				}
			}
			if !relevant {
				continue
			}

			orders, err := w.source.Query(ctx, filter)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("Failed to refresh order snapshot", zap.Error(err))
				continue
			}
			if ctx.Err() != nil {
				return
			}
			fn(orders)
		}
	}
}

func (w *Watcher) relevant(filter order.Filter, change models.OrderChange) bool {
	return filter.UserID == "" || filter.UserID == change.UserID
}
