package observe

import (
	"context"

	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/example/foodcart/pkg/models"
)

// Feed delivers order changes. The subscription is live when Subscribe
// returns and ends when ctx is done, at which point the channel is closed.
type Feed interface {
	Subscribe(ctx context.Context) (<-chan models.OrderChange, error)
}

// LocalFeed is an in-process Feed and order.Publisher on top of an actor
// system's event stream.
type LocalFeed struct {
	stream *eventstream.EventStream
}

// NewLocalFeed wraps stream. Pass system.EventStream to share the actor
// system's stream, or nil for a private one.
func NewLocalFeed(stream *eventstream.EventStream) *LocalFeed {
	if stream == nil {
		stream = eventstream.NewEventStream()
	}
	return &LocalFeed{stream: stream}
}

func (f *LocalFeed) Publish(_ context.Context, change models.OrderChange) error {
	f.stream.Publish(change)
	return nil
}

// Subscribe never blocks the publisher. When a subscriber falls behind,
// changes are dropped but at least one stays queued, which is enough for
// watchers that re-query on every change.
func (f *LocalFeed) Subscribe(ctx context.Context) (<-chan models.OrderChange, error) {
	pending := make(chan models.OrderChange, 16)
	sub := f.stream.Subscribe(func(evt interface{}) {
		change, ok := evt.(models.OrderChange)
		if !ok {
			return
		}
		select {
		case pending <- change:
		default:
		}
	})

	out := make(chan models.OrderChange)
	go func() {
		defer close(out)
		defer f.stream.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case change := <-pending:
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
