package redisx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Cache is the best-effort Redis layer in front of the orders table: status
// polling and intake idempotency. The database stays the source of truth, so
// every write here swallows its error.
type Cache struct{ R *redis.Client }

func (c *Cache) SetStatus(ctx context.Context, orderID int64, status string) {
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	_ = c.R.Set(ctx, key, status, TTLStatusCache).Err()
}

func (c *Cache) GetStatus(ctx context.Context, orderID int64) (string, bool) {
	key := fmt.Sprintf(KeyOrderStatus, orderID)
	s, err := c.R.Get(ctx, key).Result()
	if err != nil || s == "" {
		return "", false
	}
	return s, true
}

func (c *Cache) SetRef(ctx context.Context, ref string, orderID int64) {
	key := fmt.Sprintf(KeyIdemOrderCreate, ref)
	_ = c.R.Set(ctx, key, strconv.FormatInt(orderID, 10), TTLIdempotency).Err()
}

func (c *Cache) LookupRef(ctx context.Context, ref string) (int64, bool) {
	key := fmt.Sprintf(KeyIdemOrderCreate, ref)
	s, err := c.R.Get(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
