// Package notify turns observed order status changes into customer
// notifications and delivers them from an actor.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"go.uber.org/zap"
)

// SendNotification asks the actor to deliver one notification.
type SendNotification struct {
	Notification Notification
}

type NotificationResponse struct {
	Success bool
	Error   string
}

// NotificationActor delivers notifications one at a time.
type NotificationActor struct {
	sink    Sink
	timeout time.Duration
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func (a *NotificationActor) Receive(ctx actor.Context) {
	switch msg := ctx.Message().(type) {
	case *SendNotification:
		sendCtx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.sink.Send(sendCtx, msg.Notification)
		cancel()

		resp := &NotificationResponse{Success: err == nil}
		if err != nil {
			resp.Error = err.Error()
			a.logger.Warn("Failed to send notification",
				zap.String("order_id", msg.Notification.OrderID),
				zap.Error(err))
		} else {
			a.metrics.NotificationDispatched(string(msg.Notification.Status))
		}
		if ctx.Sender() != nil {
			ctx.Respond(resp)
		}

	case *actor.Started:
		a.logger.Info("Notification actor started")

	case *actor.Stopped:
		a.logger.Info("Notification actor stopped")
	}
}

// Dispatcher owns the notification actor.
type Dispatcher struct {
	system *actor.ActorSystem
	pid    *actor.PID
	logger *zap.Logger
}

func NewDispatcher(system *actor.ActorSystem, sink Sink, logger *zap.Logger, m *metrics.Metrics) (*Dispatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	props := actor.PropsFromProducer(func() actor.Actor {
		return &NotificationActor{
			sink:    sink,
			timeout: 5 * time.Second,
			logger:  logger.Named("notification-actor"),
			metrics: m,
		}
	})
	pid, err := system.Root.SpawnNamed(props, "notification-actor")
	if err != nil {
		return nil, fmt.Errorf("failed to spawn notification actor: %w", err)
	}
	return &Dispatcher{system: system, pid: pid, logger: logger}, nil
}

// Dispatch queues the notification for a change, if the change has one.
func (d *Dispatcher) Dispatch(c observe.StatusChange) bool {
	n, ok := ForChange(c)
	if !ok {
		return false
	}
	d.system.Root.Send(d.pid, &SendNotification{Notification: n})
	return true
}

// DispatchAndWait delivers the notification for a change and waits for the
// sink's result.
func (d *Dispatcher) DispatchAndWait(c observe.StatusChange, timeout time.Duration) error {
	n, ok := ForChange(c)
	if !ok {
		return nil
	}
	res, err := d.system.Root.RequestFuture(d.pid, &SendNotification{Notification: n}, timeout).Result()
	if err != nil {
		return err
	}
	resp, ok := res.(*NotificationResponse)
	if !ok {
		return fmt.Errorf("unexpected response %T", res)
	}
	if !resp.Success {
		return fmt.Errorf("notification failed: %s", resp.Error)
	}
	return nil
}

func (d *Dispatcher) Stop() error {
	return d.system.Root.StopFuture(d.pid).Wait()
}

// Run watches every order and dispatches a notification for each status
// change until ctx is done.
func (d *Dispatcher) Run(ctx context.Context, w *observe.Watcher) error {
	differ := observe.NewDiffer()
	stop, err := w.WatchStaff(ctx, func(orders []*models.Order) {
		for _, c := range differ.Diff(orders) {
			d.Dispatch(c)
		}
	})
	if err != nil {
		return err
	}
	d.logger.Info("Dispatching order notifications")
	<-ctx.Done()
	stop()
	return nil
}
