package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/discovery"
	"github.com/example/foodcart/pkg/grpc"
	"github.com/example/foodcart/pkg/logging"
	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/order"
	"github.com/example/foodcart/pkg/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.Load("config/order-config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting order service",
		zap.String("name", cfg.Server.Name),
		zap.Int("port", cfg.Server.Port),
		zap.String("driver", cfg.Database.Driver))

	ctx := context.Background()
	m := metrics.New(prometheus.DefaultRegisterer)

	var repo order.Repository
	if cfg.Database.Driver == "memory" {
		repo, err = repository.NewMemoryOrderRepository()
		if err != nil {
			logger.Fatal("Failed to create memory store", zap.Error(err))
		}
	} else {
		db, err := repository.OpenDatabase(cfg, &models.Order{})
		if err != nil {
			logger.Fatal("Failed to open database", zap.Error(err))
		}
		repo = repository.NewOrderRepository(db)
	}

	// Redis carries the change feed between services and caches orders.
	// Without it changes stay in-process.
	var (
		publisher order.Publisher
		feed      observe.Feed
	)
	rdb := repository.NewRedisRepository(&cfg.Redis)
	if err := rdb.Ping(ctx); err != nil {
		logger.Warn("Redis connection failed, using in-process change feed", zap.Error(err))
		rdb.Close()
		local := observe.NewLocalFeed(nil)
		publisher, feed = local, local
	} else {
		defer rdb.Close()
		logger.Info("Redis connected successfully")
		repo = repository.NewCachedOrderRepository(repo, rdb, logger)
		publisher, feed = rdb, rdb
	}

	var history order.History = repository.NewMemoryHistory()
	if cfg.MongoDB.URI != "" {
		mongo, err := repository.NewMongoRepository(&cfg.MongoDB)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err = mongo.Ping(pingCtx)
			cancel()
		}
		if err != nil {
			logger.Warn("MongoDB connection failed, keeping status history in memory", zap.Error(err))
		} else {
			defer mongo.Close(context.Background())
			history = mongo
		}
	}

	svc := order.NewService(repo, logger,
		order.WithPublisher(publisher),
		order.WithHistory(history),
		order.WithMetrics(m),
	)
	watcher := observe.NewWatcher(repo, feed, logger, observe.WithMetrics(m))
	server := grpc.NewOrderServer(svc, watcher, auth.NewTokens(cfg.Auth), logger)

	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	// Connect to etcd for service discovery
	sd, err := discovery.NewServiceDiscovery(&cfg.Etcd)
	if err != nil {
		logger.Fatal("Failed to connect to etcd", zap.Error(err))
	}
	defer sd.Close()

	instance := &discovery.ServiceInstance{
		Name: cfg.Server.Name,
		Host: cfg.Server.AdvertiseHost,
		Port: cfg.Server.Port,
	}
	if err := sd.Register(ctx, instance); err != nil {
		logger.Fatal("Failed to register service", zap.Error(err))
	}
	logger.Info("Service registered in etcd",
		zap.String("name", instance.Name),
		zap.String("address", instance.Addr()))

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Addr()); err != nil {
			serverErr <- err
		}
	}()

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Fatal("Server error", zap.Error(err))
	}

	// Deregister service
	if err := sd.Deregister(ctx, instance); err != nil {
		logger.Error("Failed to deregister service", zap.Error(err))
	}

	server.Stop()
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("Service stopped")
}
