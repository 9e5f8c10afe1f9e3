package loader

import (
	"context"
	"sync"
	"time"

	"github.com/alSheiye5h/Morocco-All-Shares-Index/internal/records"
)

// cacheKey identifies one load: same name, same requested range.
type cacheKey struct {
	name     string
	from, to int64
}

type cacheEntry struct {
	expiresAt time.Time
	series    records.PriceSeries
}

// Cache wraps a Loader and caches results per (name, range) for a TTL.
// A zero TTL disables caching. On upstream failure a still-valid cached
// series is preferred over the error.
type Cache struct {
	L        Loader
	TTL      time.Duration
	MaxItems int

	mu    sync.RWMutex
	items map[cacheKey]cacheEntry
}

func (c *Cache) Name() string { return c.L.Name() }

func (c *Cache) Load(ctx context.Context, name string, from, to time.Time) (records.PriceSeries, error) {
	if c.TTL <= 0 {
		return c.L.Load(ctx, name, from, to)
	}

	key := cacheKey{name: name, from: from.Unix(), to: to.Unix()}
	now := time.Now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Before(e.expiresAt) {
		return e.series, nil
	}

	series, err := c.L.Load(ctx, name, from, to)
	if err != nil {
		// stale-but-present beats an upstream outage
		if ok {
			return e.series, nil
		}
		return nil, err
	}

	c.mu.Lock()
	if c.items == nil {
		c.items = make(map[cacheKey]cacheEntry)
	}
	c.items[key] = cacheEntry{expiresAt: now.Add(c.TTL), series: series}
	if c.MaxItems > 0 && len(c.items) > c.MaxItems {
		for k, v := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			if now.After(v.expiresAt) {
				delete(c.items, k)
			}
		}
		for k := range c.items {
			if len(c.items) <= c.MaxItems {
				break
			}
			delete(c.items, k)
		}
	}
	c.mu.Unlock()

	return series, nil
}
