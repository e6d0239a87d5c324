package tablebase

import (
	"sync"
	"time"

	"github.com/golang/groupcache/lru"

	"chess_analysis/internal/domain"
)

type cacheEntry struct {
	lookup  domain.ExactLookup
	expires time.Time // zero: never
}

// memoryCache is a bounded lookup cache. lru.Cache is not safe for concurrent
// use, so every access goes through mu.
type memoryCache struct {
	mu    sync.Mutex
	items *lru.Cache
	now   func() time.Time
}

func newMemoryCache(size int) *memoryCache {
	return &memoryCache{
		items: lru.New(size),
		now:   time.Now,
	}
}

func (c *memoryCache) get(key string) (domain.ExactLookup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.items.Get(key)
	if !ok {
		return domain.ExactLookup{}, false
	}
	e := v.(cacheEntry)
	if !e.expires.IsZero() && c.now().After(e.expires) {
		c.items.Remove(key)
		return domain.ExactLookup{}, false
	}
	return e.lookup, true
}

// add stores lookup; ttl <= 0 keeps it until evicted.
func (c *memoryCache) add(key string, lookup domain.ExactLookup, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := cacheEntry{lookup: lookup}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.items.Add(key, e)
}

func (c *memoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items.Len()
}
