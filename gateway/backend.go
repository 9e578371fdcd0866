package gateway

import (
	"context"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/checkout"
	"github.com/example/foodcart/pkg/menu"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
)

// OrderBackend is everything the gateway needs from the order service. The
// gRPC client implements it; LocalBackend serves it in-process.
type OrderBackend interface {
	checkout.Placer
	GetOrder(ctx context.Context, caller auth.Identity, orderID string) (*models.Order, error)
	ListOrders(ctx context.Context, caller auth.Identity, f order.Filter) ([]*models.Order, error)
	AdvanceStatus(ctx context.Context, caller auth.Identity, orderID string, target models.OrderStatus) (*models.Order, error)
	CancelOrder(ctx context.Context, caller auth.Identity, orderID string) (*models.Order, error)
	OrderHistory(ctx context.Context, caller auth.Identity, orderID string) ([]order.HistoryEntry, error)
	WatchOrders(ctx context.Context, caller auth.Identity, mine bool, fn observe.SnapshotFunc) (func(), error)
}

type MenuStore interface {
	List(ctx context.Context, opts menu.ListOptions) ([]models.FoodItem, error)
	Get(ctx context.Context, id string) (*models.FoodItem, error)
	Create(ctx context.Context, in menu.ItemInput) (*models.FoodItem, error)
	Update(ctx context.Context, id string, in menu.ItemInput) (*models.FoodItem, error)
	Delete(ctx context.Context, id string) error
}

// LocalBackend serves orders from an in-process service.
type LocalBackend struct {
	*order.Service
	Watcher *observe.Watcher
}

func (b *LocalBackend) WatchOrders(ctx context.Context, caller auth.Identity, mine bool, fn observe.SnapshotFunc) (func(), error) {
	if !caller.Authenticated() {
		return nil, order.ErrUnauthenticated
	}
	if caller.IsStaff() && !mine {
		return b.Watcher.WatchStaff(ctx, fn)
	}
	return b.Watcher.WatchCustomer(ctx, caller.UserID, fn)
}
