package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/catalog"
	"github.com/example/foodcart/pkg/checkout"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/menu"
	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/payment"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// Dependencies wires the gateway to its backends. Carts and Inbox are
// optional.
type Dependencies struct {
	Orders   OrderBackend
	Menu     MenuStore
	Images   *menu.ImageStore
	Catalog  *catalog.Catalog
	Payments payment.Provider
	Carts    CartPersistence
	Inbox    NotificationInbox
	Tokens   *auth.Tokens
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
}

type Gateway struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	server   *http.Server
	orders   OrderBackend
	menu     MenuStore
	images   *menu.ImageStore
	catalog  *catalog.Catalog
	carts    *CartSessions
	checkout *checkout.Flow
	inbox    NotificationInbox
	tokens   *auth.Tokens
	gatherer prometheus.Gatherer
}

func NewGateway(cfg *config.Config, logger *zap.Logger, deps Dependencies) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	return &Gateway{
		config:   cfg,
		logger:   logger,
		router:   router,
		orders:   deps.Orders,
		menu:     deps.Menu,
		images:   deps.Images,
		catalog:  cat,
		carts:    NewCartSessions(cat, deps.Carts, logger),
		checkout: checkout.NewFlow(deps.Orders, deps.Payments, cfg.Payment.Timeout, logger, deps.Metrics),
		inbox:    deps.Inbox,
		tokens:   deps.Tokens,
		gatherer: gatherer,
	}
}

func (g *Gateway) SetupRoutes() {
	// Health check
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	g.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(g.gatherer, promhttp.HandlerOpts{})))

	if g.images != nil {
		g.router.StaticFS(g.images.Prefix(), g.images.FileSystem())
	}

	v1 := g.router.Group("/api/v1")
	{
		v1.GET("/menu", g.listMenu)
		v1.GET("/menu/:id", g.getMenuItem)
		v1.GET("/customizations", g.listCustomizations)

		authed := v1.Group("", g.authRequired())

		cartRoutes := authed.Group("/cart")
		{
			cartRoutes.GET("", g.getCart)
			cartRoutes.DELETE("", g.clearCart)
			cartRoutes.POST("/items", g.addCartItem)
			cartRoutes.PUT("/items/:id", g.editCartItem)
			cartRoutes.PATCH("/items/:id", g.setCartItemQuantity)
			cartRoutes.DELETE("/items/:id", g.removeCartItem)
		}

		authed.POST("/checkout", g.checkoutCart)
		authed.GET("/notifications", g.listNotifications)

		orders := authed.Group("/orders")
		{
			orders.GET("", g.listOrders)
			orders.GET("/stream", g.streamMyOrders)
			orders.GET("/:id", g.getOrder)
			orders.GET("/:id/history", g.getOrderHistory)
			orders.POST("/:id/cancel", g.cancelOrder)
		}

		admin := authed.Group("/admin", staffOnly())
		{
			admin.GET("/orders", g.listAllOrders)
			admin.GET("/orders/stream", g.streamAllOrders)
			admin.PUT("/orders/:id/status", g.updateOrderStatus)
			admin.POST("/orders/:id/advance", g.advanceOrder)
			admin.POST("/orders/:id/cancel", g.cancelOrder)

			admin.POST("/menu", g.createMenuItem)
			admin.PUT("/menu/:id", g.updateMenuItem)
			admin.DELETE("/menu/:id", g.deleteMenuItem)
			admin.POST("/menu/:id/image", g.uploadMenuImage)
		}
	}

	// Swagger
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router, mainly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

func (g *Gateway) Start() error {
	addr := g.addr()
	g.server = &http.Server{Addr: addr, Handler: g.router}
	g.logger.Info("Gateway starting", zap.String("address", addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	return g.server.Shutdown(ctx)
}

func (g *Gateway) addr() string {
	return config.ServerConfig{Host: g.config.Gateway.Host, Port: g.config.Gateway.Port}.Addr()
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
