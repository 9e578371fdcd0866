package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/logging"
	"github.com/example/foodcart/pkg/metrics"
	"github.com/example/foodcart/pkg/notify"
	"github.com/example/foodcart/pkg/observe"
	"github.com/example/foodcart/pkg/repository"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load config
	cfg, err := config.Load("config/notifier-config.yaml")
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting notification service")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The notifier reads the order service's store and feed, so both must
	// be shared.
	if cfg.Database.Driver == "memory" {
		logger.Fatal("The notifier needs a shared order database, not the memory driver")
	}
	db, err := repository.OpenDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	rdb := repository.NewRedisRepository(&cfg.Redis)
	if err := rdb.Ping(ctx); err != nil {
		logger.Fatal("Redis connection failed", zap.Error(err))
	}
	defer rdb.Close()

	m := metrics.New(prometheus.DefaultRegisterer)
	metricsServer := &http.Server{Addr: cfg.Server.MetricsAddr, Handler: promhttp.Handler()}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()

	system := actor.NewActorSystem()
	sink := notify.MultiSink{notify.NewLogSink(logger), notify.NewInboxSink(rdb)}
	dispatcher, err := notify.NewDispatcher(system, sink, logger, m)
	if err != nil {
		logger.Fatal("Failed to start dispatcher", zap.Error(err))
	}

	watcher := observe.NewWatcher(repository.NewOrderRepository(db), rdb, logger, observe.WithMetrics(m))
	if err := dispatcher.Run(ctx, watcher); err != nil {
		logger.Error("Dispatcher stopped", zap.Error(err))
	}

	logger.Info("Received shutdown signal")
	if err := dispatcher.Stop(); err != nil {
		logger.Error("Failed to stop notification actor", zap.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("Notification service stopped")
}
