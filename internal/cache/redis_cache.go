package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func receiptKey(ownerID, logID int64) string {
	return fmt.Sprintf("receipt:%d:%d", ownerID, logID)
}

func (c *RedisCache) StoreReceipt(ctx context.Context, ownerID, logID int64, r Receipt) error {
	r.SentAt = r.SentAt.UTC()

	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, receiptKey(ownerID, logID), b, c.ttl).Err()
}

func (c *RedisCache) GetReceipt(ctx context.Context, ownerID, logID int64) (*Receipt, bool, error) {
	b, err := c.rdb.Get(ctx, receiptKey(ownerID, logID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var r Receipt
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, false, err
	}
	return &r, true, nil
}
