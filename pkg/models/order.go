package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of a placed order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
)

// AllStatuses lists the statuses in lifecycle order.
var AllStatuses = []OrderStatus{StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled}

// Valid reports whether s is one of the known lifecycle states.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is permitted.
func (s OrderStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// PaymentStatus records whether the order was paid at checkout.
type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "unpaid"
	PaymentPaid   PaymentStatus = "paid"
)

type Order struct {
	ID               string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID           string          `gorm:"type:varchar(128);not null;index" json:"user_id"`
	CustomerEmail    string          `gorm:"type:varchar(255)" json:"customer_email,omitempty"`
	Items            []LineSnapshot  `gorm:"type:text;serializer:json" json:"items"`
	TotalAmount      decimal.Decimal `gorm:"type:decimal(10,2)" json:"total_amount"`
	Status           OrderStatus     `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	PaymentStatus    PaymentStatus   `gorm:"type:varchar(20);default:'unpaid'" json:"payment_status"`
	PaymentReference string          `gorm:"type:varchar(128)" json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// Clone returns a deep copy so callers never share line slices with a store.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = make([]LineSnapshot, len(o.Items))
	for i, item := range o.Items {
		c.Items[i] = item.Clone()
	}
	return &c
}

// LineSnapshot is a frozen, priced copy of a cart line stored inside an order.
// LineID is kept for display only.
type LineSnapshot struct {
	LineID        string          `json:"line_id"`
	FoodID        string          `json:"food_id"`
	Name          string          `json:"name"`
	BasePrice     decimal.Decimal `json:"base_price"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Quantity      int             `json:"quantity"`
	ImageURL      string          `json:"image_url,omitempty"`
	Customization Customization   `json:"customization"`
	Total         decimal.Decimal `json:"total"`
}

func (l LineSnapshot) Clone() LineSnapshot {
	l.Customization = l.Customization.Clone()
	return l
}

// OrderChange is published after an order is created or its status moves.
type OrderChange struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	Status  OrderStatus `json:"status"`
	At      time.Time   `json:"at"`
}
