package pricefeed

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"updown/internal/cache"
)

// Cached serves recent samples from a cache.Store and falls through to
// Feed on a miss. Cache errors never fail a lookup.
type Cached struct {
	Feed   Feed
	Store  cache.Store
	TTL    time.Duration
	Logger *zap.Logger
}

func (c *Cached) CurrentPrice(ctx context.Context, symbol string) (Sample, error) {
	symbol = NormalizeSymbol(symbol)
	if c.Store == nil || c.TTL <= 0 {
		return c.Feed.CurrentPrice(ctx, symbol)
	}
	key := "price:" + symbol
	if raw, found, err := c.Store.Get(ctx, key); err == nil && found {
		var sample Sample
		if err := json.Unmarshal(raw, &sample); err == nil && sample.Price.IsPositive() {
			return sample, nil
		}
	} else if err != nil && c.Logger != nil {
		c.Logger.Warn("price cache get failed", zap.String("symbol", symbol), zap.Error(err))
	}

	sample, err := c.Feed.CurrentPrice(ctx, symbol)
	if err != nil {
		return Sample{}, err
	}
	if raw, err := json.Marshal(sample); err == nil {
		if err := c.Store.Set(ctx, key, raw, c.TTL); err != nil && c.Logger != nil {
			c.Logger.Warn("price cache set failed", zap.String("symbol", symbol), zap.Error(err))
		}
	}
	return sample, nil
}
