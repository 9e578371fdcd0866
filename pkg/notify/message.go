package notify

import (
	"fmt"
	"time"

	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
)

// Notification is what a customer sees when one of their orders moves.
type Notification struct {
	UserID  string             `json:"user_id"`
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
	Title   string             `json:"title"`
	Message string             `json:"message"`
	At      time.Time          `json:"at"`
}

// ShortID is the customer-facing order number: the last eight characters.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[len(id)-8:]
}

// ForChange builds the notification for a status change. Moves into pending
// have no notification.
func ForChange(c observe.StatusChange) (Notification, bool) {
	n := Notification{OrderID: c.OrderID, Status: c.Current}
	if c.Order != nil {
		n.UserID = c.Order.UserID
		n.At = c.Order.UpdatedAt
	}
	short := ShortID(c.OrderID)
	switch c.Current {
	case models.StatusPreparing:
		n.Title = "Order Started"
		n.Message = fmt.Sprintf("Order #%s is now being prepared!", short)
	case models.StatusReady:
		n.Title = "Order Ready!"
		n.Message = fmt.Sprintf("Order #%s is ready for pickup!", short)
	case models.StatusCompleted:
		n.Title = "Order Completed"
		n.Message = fmt.Sprintf("Order #%s has been completed. Enjoy!", short)
	case models.StatusCancelled:
		n.Title = "Order Cancelled"
		n.Message = fmt.Sprintf("Order #%s has been cancelled.", short)
	default:
		return Notification{}, false
	}
	return n, true
}
