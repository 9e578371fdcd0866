package gateway

import (
	"errors"
	"net/http"

	"github.com/example/foodcart/pkg/cart"
	"github.com/example/foodcart/pkg/catalog"
	"github.com/example/foodcart/pkg/checkout"
	"github.com/example/foodcart/pkg/menu"
	"github.com/example/foodcart/pkg/order"
	"github.com/example/foodcart/pkg/payment"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorMapping struct {
	target error
	status int
	code   string
}

// Checked in order; the first match wins.
var errorMappings = []errorMapping{
	{checkout.ErrOrderAfterPayment, http.StatusBadGateway, "order_after_payment"},
	{payment.ErrCancelled, http.StatusConflict, "payment_cancelled"},
	{payment.ErrFailed, http.StatusPaymentRequired, "payment_failed"},
	{order.ErrEmptyCart, http.StatusBadRequest, "empty_cart"},
	{order.ErrInvalidLine, http.StatusBadRequest, "invalid_line"},
	{order.ErrInvalidPayment, http.StatusBadRequest, "invalid_payment"},
	{cart.ErrInvalidSelection, http.StatusBadRequest, "invalid_selection"},
	{menu.ErrInvalidItem, http.StatusBadRequest, "invalid_item"},
	{menu.ErrInvalidImage, http.StatusBadRequest, "invalid_image"},
	{order.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{order.ErrForbidden, http.StatusForbidden, "forbidden"},
	{order.ErrNotFound, http.StatusNotFound, "order_not_found"},
	{cart.ErrLineNotFound, http.StatusNotFound, "line_not_found"},
	{menu.ErrNotFound, http.StatusNotFound, "item_not_found"},
	{catalog.ErrNotFound, http.StatusNotFound, "option_not_found"},
	{order.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{order.ErrPersistence, http.StatusServiceUnavailable, "persistence"},
}

func (g *Gateway) fail(c *gin.Context, err error) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.target) {
			continue
		}
		body := gin.H{"error": err.Error(), "code": m.code}
		var captured *checkout.PaymentCapturedError
		if errors.As(err, &captured) {
			body["payment_reference"] = captured.Receipt.Reference
		}
		c.AbortWithStatusJSON(m.status, body)
		return
	}
	g.logger.Error("Unhandled error", zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error", "code": "internal"})
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "bad_request"})
}
