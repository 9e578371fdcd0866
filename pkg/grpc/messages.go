package grpc

import (
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/order"
)

type PlaceOrderRequest struct {
	Items            []models.LineSnapshot `json:"items"`
	PaymentStatus    models.PaymentStatus  `json:"payment_status"`
	PaymentReference string                `json:"payment_reference,omitempty"`
}

type GetOrderRequest struct {
	ID string `json:"id"`
}

type ListOrdersRequest struct {
	UserID   string               `json:"user_id,omitempty"`
	Statuses []models.OrderStatus `json:"statuses,omitempty"`
	Limit    int                  `json:"limit,omitempty"`
}

type ListOrdersResponse struct {
	Orders []*models.Order `json:"orders"`
}

type UpdateOrderStatusRequest struct {
	OrderID string             `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

type CancelOrderRequest struct {
	OrderID string `json:"order_id"`
}

type OrderResponse struct {
	Order *models.Order `json:"order"`
}

type GetOrderHistoryRequest struct {
	OrderID string `json:"order_id"`
}

type OrderHistoryResponse struct {
	Entries []order.HistoryEntry `json:"entries"`
}

// WatchOrdersRequest opens a live order view. Staff get every order unless
// Mine is set; customers always get their own.
type WatchOrdersRequest struct {
	Mine bool `json:"mine,omitempty"`
}

type WatchOrdersResponse struct {
	Orders []*models.Order `json:"orders"`
}
