package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/farmstore/internal/domain"
)

// Cache holds assembled order views. Failures are the cache's problem: a
// miss or a failed write only costs a trip to the database.
type Cache interface {
	Get(ctx context.Context, id int64) (*domain.Order, bool)
	Set(ctx context.Context, order *domain.Order)
	Invalidate(ctx context.Context, id int64)
}

type RedisCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisCache {
	return &RedisCache{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger,
	}
}

func orderKey(id int64) string {
	return "order:" + strconv.FormatInt(id, 10)
}

func (c *RedisCache) Get(ctx context.Context, id int64) (*domain.Order, bool) {
	data, err := c.rdb.Get(ctx, orderKey(id)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("order cache read failed", "error", err, "order_id", id)
		}
		return nil, false
	}

	var order domain.Order
	if err := json.Unmarshal(data, &order); err != nil {
		c.logger.Warn("order cache entry unreadable", "error", err, "order_id", id)
		return nil, false
	}
	return &order, true
}

func (c *RedisCache) Set(ctx context.Context, order *domain.Order) {
	data, err := json.Marshal(order)
	if err != nil {
		c.logger.Warn("failed to encode order for cache", "error", err, "order_id", order.ID)
		return
	}
	if err := c.rdb.Set(ctx, orderKey(order.ID), data, c.ttl).Err(); err != nil {
		c.logger.Warn("order cache write failed", "error", err, "order_id", order.ID)
	}
}

func (c *RedisCache) Invalidate(ctx context.Context, id int64) {
	if err := c.rdb.Del(ctx, orderKey(id)).Err(); err != nil {
		c.logger.Warn("order cache invalidation failed", "error", err, "order_id", id)
	}
}

// NopCache is used when no Redis address is configured.
type NopCache struct{}

func (NopCache) Get(context.Context, int64) (*domain.Order, bool) { return nil, false }
func (NopCache) Set(context.Context, *domain.Order) {}
func (NopCache) Invalidate(context.Context, int64) {}
