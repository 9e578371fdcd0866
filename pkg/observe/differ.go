package observe

import (
	"sync"

	"github.com/example/foodcart/pkg/models"
)

// StatusChange is an observed status move of one order.
type StatusChange struct {
	OrderID  string
	Previous models.OrderStatus
	Current  models.OrderStatus
	Order    *models.Order
}

// Differ compares successive snapshots by order id. The first snapshot only
// sets the baseline, and orders that show up later are recorded silently.
type Differ struct {
	mu     sync.Mutex
	primed bool
	known  map[string]models.OrderStatus
}

func NewDiffer() *Differ {
	return &Differ{known: make(map[string]models.OrderStatus)}
}

func (d *Differ) Diff(orders []*models.Order) []StatusChange {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make(map[string]models.OrderStatus, len(orders))
	var changes []StatusChange
	for _, o := range orders {
		next[o.ID] = o.Status
		if !d.primed {
			continue
		}
		if prev, ok := d.known[o.ID]; ok && prev != o.Status {
			changes = append(changes, StatusChange{
				OrderID:  o.ID,
				Previous: prev,
				Current:  o.Status,
				Order:    o,
			})
		}
	}
	d.known = next
	d.primed = true
	return changes
}
