package rdx

import (
	"context"
	"time"

	"foodcart/metrics"
	"foodcart/state"
	"foodcart/store"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// MenuKey is the cache key of the serialized menu.
const MenuKey = "foodcart:menu"

// MenuCache keeps the serialized menu in Redis. Errors are logged and
// treated as misses; the cache never fails a request.
type MenuCache struct {
	conn redis.UniversalClient
	ttl  time.Duration
	log  logrus.FieldLogger
}

func NewMenuCache(conn redis.UniversalClient, ttl time.Duration, log logrus.FieldLogger) *MenuCache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &MenuCache{conn: conn, ttl: ttl, log: log.WithField("component", "menucache")}
}

// Get returns the cached menu JSON.
func (c *MenuCache) Get(ctx context.Context) ([]byte, bool) {
	data, err := c.conn.Get(ctx, MenuKey).Bytes()
	switch {
	case err == nil:
		metrics.MenuCache.WithLabelValues("hit").Inc()
		return data, true
	case !IsMiss(err):
		c.log.WithError(err).Warn("menu cache read failed")
	}
	metrics.MenuCache.WithLabelValues("miss").Inc()
	return nil, false
}

func (c *MenuCache) Set(ctx context.Context, data []byte) {
	if err := c.conn.Set(ctx, MenuKey, data, c.ttl).Err(); err != nil {
		c.log.WithError(err).Warn("menu cache write failed")
	}
}

func (c *MenuCache) Invalidate(ctx context.Context) {
	if err := c.conn.Del(ctx, MenuKey).Err(); err != nil {
		c.log.WithError(err).Warn("menu cache invalidation failed")
	}
}

// Publish drops the cached menu whenever an item is created, here or on
// another instance.
func (c *MenuCache) Publish(ctx context.Context, ch state.Change) {
	if ch.Kind == store.ItemCreated {
		c.Invalidate(context.WithoutCancel(ctx))
	}
}
