package browse

import (
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
)

// depthModeAuto is the cache key sentinel for auto-selected depth.
const depthModeAuto = "auto"

// Key identifies one full result set in the cache.
type Key struct {
	ConnectionID string
	Target       string
	Filter       Filter
	DepthMode    string
}

// NewKey builds a cache key. A nil depth means auto-selected.
func NewKey(connectionID, target string, filter Filter, depth *int) Key {
	mode := depthModeAuto
	if depth != nil {
		mode = strconv.Itoa(*depth)
	}
	return Key{
		ConnectionID: connectionID,
		Target:       target,
		Filter:       filter,
		DepthMode:    mode,
	}
}

type cacheEntry struct {
	result    *Result
	size      int64
	createdAt time.Time
}

// Cache stores full unpaginated result sets. Entries expire lazily on lookup
// past the TTL; writes that would push the total size over the ceiling are
// skipped, preserving correctness by returning fresh results instead of
// inventing an eviction policy. Reads and writes are safe across
// connections; the cache is the only state that outlives a single browse.
type Cache struct {
	mu       sync.RWMutex
	entries  map[Key]*cacheEntry
	size     int64
	ttl      time.Duration
	maxBytes int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewCache creates a cache with the given entry TTL and byte ceiling.
func NewCache(ttl time.Duration, maxBytes int64, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries:  make(map[Key]*cacheEntry),
		ttl:      ttl,
		maxBytes: maxBytes,
		logger:   logger,
		now:      time.Now,
	}
}

// Get returns the cached full result for key, treating expired entries as
// misses and removing them.
func (c *Cache) Get(key Key) (*Result, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}

	if c.now().Sub(e.createdAt) > c.ttl {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur == e {
			delete(c.entries, key)
			c.size -= e.size
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.result, true
}

// Put stores a full result. The write is skipped when it would push the
// cache over the byte ceiling.
func (c *Cache) Put(key Key, res *Result) {
	if res == nil {
		return
	}
	est := estimateSize(res)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.size -= old.size
		delete(c.entries, key)
	}
	if c.size+est > c.maxBytes {
		c.logger.Debug("skipping cache write past size ceiling",
			zap.String("target", key.Target),
			zap.Int64("entry_bytes", est),
			zap.Int64("cache_bytes", c.size),
			zap.Int64("ceiling_bytes", c.maxBytes))
		return
	}
	c.entries[key] = &cacheEntry{result: res, size: est, createdAt: c.now()}
	c.size += est
}

// Invalidate drops every entry for a connection and reports how many were
// removed. The provisioning layer calls this when the connection's set of
// registered namespace sources changes structurally.
func (c *Cache) Invalidate(connectionID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if k.ConnectionID == connectionID {
			delete(c.entries, k)
			c.size -= e.size
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Size reports the estimated byte footprint.
func (c *Cache) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.size
}

// estimateSize approximates the serialized footprint of a full result.
func estimateSize(res *Result) int64 {
	const perNode = 48
	var n int64
	for _, node := range res.Nodes {
		n += int64(len(node.ID)+len(node.DisplayName)+len(node.Class)) + perNode
	}
	for _, b := range res.Expandable {
		n += int64(len(b.ID)+len(b.DisplayName)) + perNode
	}
	for _, id := range res.Explored {
		n += int64(len(id))
	}
	return n
}
