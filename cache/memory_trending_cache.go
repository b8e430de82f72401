// Package cache holds the TrendingCache backends of the feed aggregator.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/plutoid/plutoid/model"
)

type memoryEntry struct {
	tags      []*model.TrendingHashtag
	expiresAt time.Time
}

// MemoryTrendingCache is a process local TTL cache, used when no redis is
// configured.
type MemoryTrendingCache struct {
	m       sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryTrendingCache() *MemoryTrendingCache {
	return &MemoryTrendingCache{entries: map[string]memoryEntry{}, now: time.Now}
}

func (c *MemoryTrendingCache) Get(ctx context.Context, key string) ([]*model.TrendingHashtag, bool, error) {
	c.m.Lock()
	defer c.m.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return e.tags, true, nil
}

func (c *MemoryTrendingCache) Set(ctx context.Context, key string, tags []*model.TrendingHashtag, ttl time.Duration) error {
	c.m.Lock()
	defer c.m.Unlock()
	c.entries[key] = memoryEntry{tags: tags, expiresAt: c.now().Add(ttl)}
	return nil
}
