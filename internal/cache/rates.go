package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"scratch2x/internal/payment"
)

const ratesKey = "scratch:rates"

// RateCache holds the last crypto price snapshot. It satisfies payment.RateCache.
type RateCache struct {
	client redis.Cmdable
}

func NewRateCache(client redis.Cmdable) *RateCache {
	return &RateCache{client: client}
}

func (c *RateCache) GetPrices(ctx context.Context) (payment.Prices, bool, error) {
	raw, err := c.client.Get(ctx, ratesKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var p payment.Prices
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (c *RateCache) SetPrices(ctx context.Context, p payment.Prices, ttl time.Duration) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ratesKey, raw, ttl).Err()
}
