package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rustyeddy/backtester/backtest"
	"github.com/rustyeddy/backtester/market"
)

// Cache memoizes a provider's series by request. Concurrent requests for
// the same series share one fetch. Failed fetches are not cached.
// Callers must not modify the returned slices.
type Cache struct {
	source backtest.PriceSeriesProvider

	mu     sync.RWMutex
	series map[string][]market.Candle
	group  singleflight.Group
}

func NewCache(source backtest.PriceSeriesProvider) *Cache {
	return &Cache{source: source, series: make(map[string][]market.Candle)}
}

func cacheKey(instrument string, start, end time.Time, iv market.Interval) string {
	return fmt.Sprintf("%s|%s|%s|%s", instrument, iv, start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
}

func (c *Cache) Candles(ctx context.Context, instrument string, start, end time.Time, iv market.Interval) ([]market.Candle, error) {
	key := cacheKey(instrument, start, end, iv)

	c.mu.RLock()
	s, ok := c.series[key]
	c.mu.RUnlock()
	if ok {
		return s, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		s, err := c.source.Candles(ctx, instrument, start, end, iv)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.series[key] = s
		c.mu.Unlock()
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]market.Candle), nil
}

// Len returns the number of cached series.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.series)
}

// Purge drops every cached series.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.series = make(map[string][]market.Candle)
	c.mu.Unlock()
}
