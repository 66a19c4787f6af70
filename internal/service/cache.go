package service

import (
	"sync"
	"time"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
)

type cachedConfig struct {
	cfg       v1.FlagConfig
	fetchedAt time.Time
}

// FlagCache is the short-TTL read cache in front of the config table.
// The TTL doubles as the staleness bound callers must tolerate; the set
// path writes through and replaces entries immediately, so the writer
// always reads its own write.
type FlagCache struct {
	mu      sync.RWMutex
	entries map[string]cachedConfig
	ttl     time.Duration
}

func NewFlagCache(ttl time.Duration) *FlagCache {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &FlagCache{
		entries: make(map[string]cachedConfig),
		ttl:     ttl,
	}
}

func (c *FlagCache) TTL() time.Duration {
	return c.ttl
}

// Get returns the cached config if it is within the TTL.
func (c *FlagCache) Get(key string) (v1.FlagConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || time.Since(e.fetchedAt) > c.ttl {
		return v1.FlagConfig{}, false
	}
	return e.cfg, true
}

func (c *FlagCache) Put(cfg v1.FlagConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cfg.Key] = cachedConfig{cfg: cfg, fetchedAt: time.Now()}
}

// Invalidate drops one key so the next read goes to the database.
func (c *FlagCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
