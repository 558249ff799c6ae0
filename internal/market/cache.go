package market

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Source labels describe where a market response came from.
const (
	SourceCache    = "cache"
	SourceUpstream = "upstream"
	SourceStale    = "stale"
	SourceFallback = "fallback"
	SourceError    = "error"
)

type entry struct {
	value     any
	fetchedAt time.Time
}

// Cache keeps the last good value per key. Within ttl the value is served
// directly; after that a single loader call refreshes it, and while the
// value is younger than ttl+stale it is returned if the refresh fails.
//
// A refresh is shared by every caller waiting on the key and is bounded by
// loadTimeout, not by any one caller's context.
type Cache struct {
	mu          sync.RWMutex
	items       map[string]entry
	ttl         time.Duration
	stale       time.Duration
	loadTimeout time.Duration
	sf          singleflight.Group
	now         func() time.Time
}

func NewCache(ttl, stale, loadTimeout time.Duration) *Cache {
	if loadTimeout <= 0 {
		loadTimeout = defaultTimeout
	}
	return &Cache{
		items:       make(map[string]entry),
		ttl:         ttl,
		stale:       stale,
		loadTimeout: loadTimeout,
		now:         time.Now,
	}
}

// Loader fetches a fresh value for key.
type Loader func(ctx context.Context) (any, error)

// Get returns the cached value for key or loads it. The returned source is
// one of SourceCache, SourceUpstream or SourceStale.
func (c *Cache) Get(ctx context.Context, key string, load Loader) (any, string, error) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.items[key]
	c.mu.RUnlock()
	if ok && now.Sub(e.fetchedAt) < c.ttl {
		return e.value, SourceCache, nil
	}

	ch := c.sf.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()
		val, err := load(lctx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.items[key] = entry{value: val, fetchedAt: c.now()}
		c.mu.Unlock()
		return val, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			return res.Val, SourceUpstream, nil
		}
		err = res.Err
	case <-ctx.Done():
		err = ctx.Err()
	}

	if ok && now.Sub(e.fetchedAt) < c.ttl+c.stale {
		return e.value, SourceStale, nil
	}
	return nil, SourceError, err
}
