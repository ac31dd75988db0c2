package strikes

import (
	"sync"
	"time"
)

type lruEntry struct {
	ladder []float64
	exp    time.Time
	access time.Time
}

// lruCache is the bounded strike-universe cache. It is the one structure
// shared across per-index tasks, so all access goes through a single mutex.
type lruCache struct {
	mu      sync.Mutex
	m       map[string]*lruEntry
	maxSize int
	ttl     time.Duration
}

func newLRUCache(maxSize int, ttl time.Duration) *lruCache {
	if maxSize <= 0 {
		maxSize = 128
	}
	return &lruCache{m: make(map[string]*lruEntry), maxSize: maxSize, ttl: ttl}
}

func (c *lruCache) get(key string) ([]float64, bool) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.m[key]
	if !ok {
		return nil, false
	}
	if !e.exp.IsZero() && now.After(e.exp) {
		delete(c.m, key)
		return nil, false
	}
	e.access = now
	return e.ladder, true
}

func (c *lruCache) put(key string, ladder []float64) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.m) >= c.maxSize {
		c.evictOldest()
	}
	var exp time.Time
	if c.ttl > 0 {
		exp = now.Add(c.ttl)
	}
	c.m[key] = &lruEntry{ladder: ladder, exp: exp, access: now}
}

// evictOldest removes the least recently accessed entry. Caller holds the lock.
func (c *lruCache) evictOldest() {
	var oldestKey string
	var oldest time.Time
	for k, e := range c.m {
		if oldestKey == "" || e.access.Before(oldest) {
			oldestKey = k
			oldest = e.access
		}
	}
	if oldestKey != "" {
		delete(c.m, oldestKey)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}
