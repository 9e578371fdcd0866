package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/foodcart/pkg/auth"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ClientManager manages the gateway's connection to the order service
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	tokens    *auth.Tokens
	logger    *zap.Logger

	orderClient *OrderClient
	orderConn   *grpc.ClientConn
}

// NewClientManager creates a new gRPC client manager. disc may be nil.
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery, tokens *auth.Tokens) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		tokens:    tokens,
		logger:    logger,
	}
}

// Connect establishes the connection to the order service
func (m *ClientManager) Connect() error {
	if err := m.connectOrderService(); err != nil {
		return fmt.Errorf("failed to connect to order service: %w", err)
	}
	return nil
}

// resolve prefers an address registered in etcd over the configured default.
func (m *ClientManager) resolve(service, fallback string) string {
	target := fallback
	if m.discovery == nil {
		return target
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	instances, err := m.discovery.Discover(ctx, service)
	if err == nil && len(instances) > 0 {
		target = instances[0].Addr()
		m.logger.Info("Discovered service", zap.String("service", service), zap.String("address", target))
	} else {
		m.logger.Info("Using default address", zap.String("service", service), zap.String("address", target))
	}
	return target
}

func (m *ClientManager) connectOrderService() error {
	target := m.resolve(m.config.Gateway.OrderService, m.config.Gateway.OrderAddr)

	m.logger.Info("Connecting to order service", zap.String("target", target))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := grpc.DialContext(ctx, target,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithBlock(),
	)
	if err != nil {
		return err
	}

	m.orderConn = conn
	m.orderClient = NewOrderClient(conn, m.tokens)

	m.logger.Info("Successfully connected to order service")
	return nil
}

// OrderClient returns the order service client
func (m *ClientManager) OrderClient() *OrderClient {
	return m.orderClient
}

// Close closes the connection
func (m *ClientManager) Close() error {
	if m.orderConn != nil {
		if err := m.orderConn.Close(); err != nil {
			return fmt.Errorf("order connection close error: %w", err)
		}
	}
	return nil
}
