package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodcart/pkg/cart"
	"github.com/example/foodcart/pkg/config"
	"github.com/example/foodcart/pkg/models"
	"github.com/example/foodcart/pkg/order"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type RedisRepository struct {
	client *redis.Client
	config *config.RedisConfig
}

func NewRedisRepository(cfg *config.RedisConfig) *RedisRepository {
	return NewRedisRepositoryWithClient(redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}), cfg)
}

func NewRedisRepositoryWithClient(client *redis.Client, cfg *config.RedisConfig) *RedisRepository {
	return &RedisRepository{client: client, config: cfg}
}

func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisRepository) Del(ctx context.Context, keys ...string) error {
	return r.client.Del(ctx, keys...).Err()
}

func (r *RedisRepository) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, key, data, expiration).Err()
}

func (r *RedisRepository) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

func orderKey(id string) string {
	return fmt.Sprintf("order:%s", id)
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:%s", sessionID)
}

func (r *RedisRepository) CacheOrder(ctx context.Context, o *models.Order) error {
	return r.SetJSON(ctx, orderKey(o.ID), o, r.config.OrderTTL)
}

// GetCachedOrder returns (nil, nil) on a cache miss.
func (r *RedisRepository) GetCachedOrder(ctx context.Context, id string) (*models.Order, error) {
	var o models.Order
	err := r.GetJSON(ctx, orderKey(id), &o)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Publish sends an order change to the configured pub/sub channel.
func (r *RedisRepository) Publish(ctx context.Context, change models.OrderChange) error {
	data, err := json.Marshal(change)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.config.Channel, data).Err()
}

// Subscribe listens on the change channel until ctx is done. The subscription
// is confirmed before Subscribe returns, so no change published afterwards is
// missed. The returned channel is closed when the subscription ends.
func (r *RedisRepository) Subscribe(ctx context.Context) (<-chan models.OrderChange, error) {
	pubsub := r.client.Subscribe(ctx, r.config.Channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", r.config.Channel, err)
	}

	out := make(chan models.OrderChange)
	go func() {
		defer close(out)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var change models.OrderChange
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					continue
				}
				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// SaveCart persists a session cart. An empty cart deletes the key.
func (r *RedisRepository) SaveCart(ctx context.Context, sessionID string, lines []cart.SavedLine) error {
	if len(lines) == 0 {
		return r.Del(ctx, cartKey(sessionID))
	}
	return r.SetJSON(ctx, cartKey(sessionID), lines, r.config.CartTTL)
}

// LoadCart returns the saved lines of a session, or nil if none are stored.
func (r *RedisRepository) LoadCart(ctx context.Context, sessionID string) ([]cart.SavedLine, error) {
	var lines []cart.SavedLine
	err := r.GetJSON(ctx, cartKey(sessionID), &lines)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return lines, err
}

// CacheOrderIfNewer caches o unless the cached copy was updated later. It
// keeps a slow read-through from overwriting a fresher status.
func (r *RedisRepository) CacheOrderIfNewer(ctx context.Context, o *models.Order) error {
	key := orderKey(o.ID)
	data, err := json.Marshal(o)
	if err != nil {
		return err
	}
	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		switch {
		case errors.Is(err, redis.Nil):
		case err != nil:
			return err
		default:
			var cached models.Order
			if json.Unmarshal(raw, &cached) == nil && newer(&cached, o) {
				return nil
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.config.OrderTTL)
			return nil
		})
		return err
	}
	for i := 0; i < 3; i++ {
		err = r.client.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return err
}

// newer reports whether a is a later version of the same order than b.
// Statuses only move forward through AllStatuses, which breaks clock ties.
func newer(a, b *models.Order) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return statusRank(a.Status) > statusRank(b.Status)
}

func statusRank(s models.OrderStatus) int {
	for i, st := range models.AllStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// CachedOrderRepository serves order reads from Redis in front of another
// repository. Writes always go to the inner repository first and the result
// is written back, so the cache never holds an older status than the store
// returned last.
type CachedOrderRepository struct {
	inner  order.Repository
	cache  *RedisRepository
	logger *zap.Logger
}

func NewCachedOrderRepository(inner order.Repository, cache *RedisRepository, logger *zap.Logger) *CachedOrderRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedOrderRepository{inner: inner, cache: cache, logger: logger.Named("order-cache")}
}

func (c *CachedOrderRepository) Create(ctx context.Context, o *models.Order) error {
	if err := c.inner.Create(ctx, o); err != nil {
		return err
	}
	c.store(ctx, o)
	return nil
}

func (c *CachedOrderRepository) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := c.cache.GetCachedOrder(ctx, id)
	if err != nil {
		c.logger.Warn("Cache read failed", zap.String("order_id", id), zap.Error(err))
	}
	if o != nil {
		return o, nil
	}
	o, err = c.inner.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(ctx, o)
	return o, nil
}

func (c *CachedOrderRepository) Query(ctx context.Context, f order.Filter) ([]*models.Order, error) {
	return c.inner.Query(ctx, f)
}

func (c *CachedOrderRepository) CompareAndSetStatus(ctx context.Context, id string, from, to models.OrderStatus, at time.Time) (*models.Order, error) {
	o, err := c.inner.CompareAndSetStatus(ctx, id, from, to, at)
	switch {
	case err == nil:
		c.store(ctx, o)
	case errors.Is(err, order.ErrStatusConflict):
		// The caller probably read a stale copy; cache what the store holds now.
		if current, getErr := c.inner.Get(ctx, id); getErr == nil {
			c.store(ctx, current)
		} else {
			c.evict(ctx, id)
		}
	default:
		c.evict(ctx, id)
	}
	return o, err
}

func (c *CachedOrderRepository) store(ctx context.Context, o *models.Order) {
	if err := c.cache.CacheOrderIfNewer(ctx, o); err != nil {
		c.logger.Warn("Failed to cache order", zap.String("order_id", o.ID), zap.Error(err))
		c.evict(ctx, o.ID)
	}
}

func (c *CachedOrderRepository) evict(ctx context.Context, id string) {
	if err := c.cache.Del(ctx, orderKey(id)); err != nil {
		c.logger.Error("Failed to evict cached order", zap.String("order_id", id), zap.Error(err))
	}
}

const notificationInboxSize = 50

func notificationsKey(userID string) string {
	return fmt.Sprintf("notifications:%s", userID)
}

// PushNotification prepends a notification to the user's inbox, keeping
// only the most recent ones.
func (r *RedisRepository) PushNotification(ctx context.Context, userID string, n interface{}) error {
	data, err := json.Marshal(n)
	if err != nil {
		return err
	}
	key := notificationsKey(userID)
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, notificationInboxSize-1)
	if r.config.CartTTL > 0 {
		pipe.Expire(ctx, key, r.config.CartTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

// Notifications returns the raw JSON of a user's most recent notifications.
func (r *RedisRepository) Notifications(ctx context.Context, userID string, limit int64) ([]json.RawMessage, error) {
	if limit <= 0 || limit > notificationInboxSize {
		limit = notificationInboxSize
	}
	items, err := r.client.LRange(ctx, notificationsKey(userID), 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, len(items))
	for i, item := range items {
		out[i] = json.RawMessage(item)
	}
	return out, nil
}
