package gateway

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/example/foodcart/pkg/checkout"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/notify"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	Method checkout.Method `json:"method" binding:"required,oneof=card collection"`
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required,oneof=pending preparing ready completed cancelled"`
}

func (g *Gateway) checkoutCart(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	caller := identity(c)
	store := g.carts.Get(ctx, caller.UserID)
	o, err := g.checkout.Checkout(ctx, caller, store, req.Method)
	if err != nil {
		g.fail(c, err)
		return
	}
	g.carts.Save(ctx, caller.UserID, store)
	c.JSON(http.StatusCreated, gin.H{"order": o})
}

func filterFromQuery(c *gin.Context) order.Filter {
	var f order.Filter
	for _, s := range c.QueryArray("status") {
		f.Statuses = append(f.Statuses, models.OrderStatus(s))
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		f.Limit = limit
	}
	return f
}

func (g *Gateway) listOrders(c *gin.Context) {
	caller := identity(c)
	f := filterFromQuery(c)
	f.UserID = caller.UserID
	orders, err := g.orders.ListOrders(c.Request.Context(), caller, f)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

func (g *Gateway) listAllOrders(c *gin.Context) {
	f := filterFromQuery(c)
	f.UserID = c.Query("user_id")
	orders, err := g.orders.ListOrders(c.Request.Context(), identity(c), f)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders, "total": len(orders)})
}

func (g *Gateway) getOrder(c *gin.Context) {
	o, err := g.orders.GetOrder(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (g *Gateway) getOrderHistory(c *gin.Context) {
	entries, err := g.orders.OrderHistory(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries})
}

func (g *Gateway) cancelOrder(c *gin.Context) {
	o, err := g.orders.CancelOrder(c.Request.Context(), identity(c), c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (g *Gateway) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	o, err := g.orders.AdvanceStatus(c.Request.Context(), identity(c), c.Param("id"), req.Status)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

// advanceOrder moves an order one step forward, like the console's
// single action button.
func (g *Gateway) advanceOrder(c *gin.Context) {
	ctx := c.Request.Context()
	caller := identity(c)
	current, err := g.orders.GetOrder(ctx, caller, c.Param("id"))
	if err != nil {
		g.fail(c, err)
		return
	}
	next, ok := order.NextForward(current.Status)
	if !ok {
		g.fail(c, order.CanTransition(current.Status, current.Status, caller.Role))
		return
	}
	o, err := g.orders.AdvanceStatus(ctx, caller, current.ID, next)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o})
}

func (g *Gateway) listNotifications(c *gin.Context) {
	if g.inbox == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []interface{}{}})
		return
	}
	items, err := g.inbox.Notifications(c.Request.Context(), identity(c).UserID, 0)
	if err != nil {
		g.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// streamMyOrders sends "orders" events with the caller's full order list and
// "notification" events whenever one of those orders changes status.
func (g *Gateway) streamMyOrders(c *gin.Context) {
	differ := observe.NewDiffer()
	g.streamOrders(c, true, func(orders []*models.Order) []notify.Notification {
		var out []notify.Notification
		for _, change := range differ.Diff(orders) {
			if n, ok := notify.ForChange(change); ok {
				out = append(out, n)
			}
		}
		return out
	})
}

// streamAllOrders feeds the staff console: every order, newest first.
func (g *Gateway) streamAllOrders(c *gin.Context) {
	g.streamOrders(c, false, nil)
}

type streamUpdate struct {
	orders        []*models.Order
	notifications []notify.Notification
}

func (g *Gateway) streamOrders(c *gin.Context, mine bool, diff func([]*models.Order) []notify.Notification) {
	ctx, cancel := context.WithCancel(c.Request.Context())
	updates := make(chan streamUpdate, 16)
	stop, err := g.orders.WatchOrders(ctx, identity(c), mine, func(orders []*models.Order) {
		u := streamUpdate{orders: orders}
		if diff != nil {
			u.notifications = diff(orders)
		}
		select {
		case updates <- u:
		case <-ctx.Done():
		}
	})
	if err != nil {
		cancel()
		g.fail(c, err)
		return
	}
	defer func() {
		cancel()
		stop()
	}()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case u := <-updates:
			for _, n := range u.notifications {
				c.SSEvent("notification", n)
			}
			c.SSEvent("orders", gin.H{"orders": u.orders})
			return true
		}
	})
}
