package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/example/foodcart/pkg/cart"
	"github.com/example/foodcart/pkg/catalog"
	"go.uber.org/zap"
)

// CartPersistence stores session carts between requests and restarts.
type CartPersistence interface {
	SaveCart(ctx context.Context, sessionID string, lines []cart.SavedLine) error
	LoadCart(ctx context.Context, sessionID string) ([]cart.SavedLine, error)
}

// NotificationInbox lists the notifications stored for a user.
type NotificationInbox interface {
	Notifications(ctx context.Context, userID string, limit int64) ([]json.RawMessage, error)
}

// CartSessions holds one cart per signed-in user.
type CartSessions struct {
	mu      sync.Mutex
	carts   map[string]*cart.Store
	catalog *catalog.Catalog
	persist CartPersistence
	logger  *zap.Logger
}

func NewCartSessions(cat *catalog.Catalog, persist CartPersistence, logger *zap.Logger) *CartSessions {
	return &CartSessions{
		carts:   make(map[string]*cart.Store),
		catalog: cat,
		persist: persist,
		logger:  logger,
	}
}

// Get returns the session's cart, restoring it from persistence the first
// time it is seen.
func (s *CartSessions) Get(ctx context.Context, sessionID string) *cart.Store {
	s.mu.Lock()
	defer s.mu.Unlock()

	if store, ok := s.carts[sessionID]; ok {
		return store
	}
	store := cart.NewStore(s.catalog)
	if s.persist != nil {
		lines, err := s.persist.LoadCart(ctx, sessionID)
		if err != nil {
			s.logger.Warn("Failed to load saved cart", zap.String("session", sessionID), zap.Error(err))
		} else if len(lines) > 0 {
			store.Restore(lines)
		}
	}
	s.carts[sessionID] = store
	return store
}

// Save writes the cart through to persistence. Failures are logged, not
// returned.
func (s *CartSessions) Save(ctx context.Context, sessionID string, store *cart.Store) {
	if s.persist == nil {
		return
	}
	if err := s.persist.SaveCart(ctx, sessionID, store.Export()); err != nil {
		s.logger.Warn("Failed to save cart", zap.String("session", sessionID), zap.Error(err))
	}
}
