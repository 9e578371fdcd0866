package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/foodcart/gateway"
	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/catalog"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/discovery"
	"github.com/example/foodcart/pkg/grpc"
	"github.com/example/foodcart/pkg/logging"
	"github.com/example/foodcart/pkg/menu"
	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/payment"
	"github.com/example/foodcart/pkg/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.Load("config/config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting API Gateway",
		zap.Int("port", cfg.Gateway.Port),
		zap.String("host", cfg.Gateway.Host))

	// Setup service discovery
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Warn("Failed to connect to etcd, continuing without service discovery", zap.Error(err))
	}

	tokens := auth.NewTokens(cfg.Auth)
	clients := grpc.NewClientManager(cfg, logger, sd, tokens)
	if err := clients.Connect(); err != nil {
		logger.Fatal("Failed to connect to backend services", zap.Error(err))
	}
	defer clients.Close()

	db, err := repository.OpenDatabase(cfg, &models.FoodItem{})
	if err != nil {
		logger.Fatal("Failed to open menu database", zap.Error(err))
	}
	images, err := menu.NewImageStore(afero.NewOsFs(), cfg.Storage)
	if err != nil {
		logger.Fatal("Failed to prepare image storage", zap.Error(err))
	}
	cat, err := catalog.FromConfig(cfg.Catalog)
	if err != nil {
		logger.Fatal("Invalid catalog", zap.Error(err))
	}
	payments, err := payment.NewSimulated(cfg.Payment, logger)
	if err != nil {
		logger.Fatal("Failed to create payment provider", zap.Error(err))
	}

	deps := gateway.Dependencies{
		Orders:   clients.OrderClient(),
		Menu:     menu.NewGormStore(db),
		Images:   images,
		Catalog:  cat,
		Payments: payments,
		Tokens:   tokens,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
	}

	rdb := repository.NewRedisRepository(&cfg.Redis)
	if err := rdb.Ping(context.Background()); err != nil {
		logger.Warn("Redis connection failed, carts will not survive restarts", zap.Error(err))
		rdb.Close()
	} else {
		defer rdb.Close()
		deps.Carts = rdb
		deps.Inbox = rdb
	}

	// Create gateway
	gw := gateway.NewGateway(cfg, logger, deps)
	gw.SetupRoutes()

	// Start gateway in goroutine
	gwErr := make(chan error, 1)
	go func() {
		if err := gw.Start(); err != nil {
			gwErr <- err
		}
	}()

	logger.Info("Gateway started successfully")

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-gwErr:
		logger.Fatal("Gateway error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := gw.Shutdown(ctx); err != nil {
		logger.Error("Gateway shutdown failed", zap.Error(err))
	}

	if sd != nil {
		sd.Close()
	}

	logger.Info("Gateway stopped")
}
