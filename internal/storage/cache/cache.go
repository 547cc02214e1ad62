// Package cache provides the bounded coordinate-keyed block cache.
package cache

import (
	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/iggydv12/voxelink/internal/world"
)

// DefaultMaxSize is the capacity used when none is configured.
const DefaultMaxSize = 8192

// Cache maps coordinates to blocks and holds at most MaxSize entries.
// When full, the entry put longest ago is evicted first. Re-putting a key
// refreshes it; reads do not.
//
// Cache is not safe for concurrent use.
type Cache struct {
	maxSize int
	lru     *simplelru.LRU[world.Coord, world.Block]
}

// New creates a Cache. A maxSize <= 0 yields a cache that retains nothing.
func New(maxSize int) *Cache {
	// NewLRU only fails for a non-positive size.
	lru, _ := simplelru.NewLRU[world.Coord, world.Block](max(maxSize, 1), nil)
	return &Cache{maxSize: max(maxSize, 0), lru: lru}
}

// Get returns the cached block for c.
func (c *Cache) Get(coord world.Coord) (world.Block, bool) {
	return c.lru.Peek(coord)
}

// Contains reports whether coord is cached.
func (c *Cache) Contains(coord world.Coord) bool {
	return c.lru.Contains(coord)
}

// Put stores block at coord and evicts the oldest entries beyond MaxSize.
func (c *Cache) Put(coord world.Coord, block world.Block) {
	if c.maxSize == 0 {
		return
	}
	c.lru.Add(coord, block)
}

// Clear empties the cache.
func (c *Cache) Clear() { c.lru.Purge() }

// SetMaxSize changes the capacity, evicting the oldest entries if needed.
func (c *Cache) SetMaxSize(n int) {
	c.maxSize = max(n, 0)
	if c.maxSize == 0 {
		c.lru.Purge()
		return
	}
	c.lru.Resize(c.maxSize)
}

// MaxSize returns the capacity.
func (c *Cache) MaxSize() int { return c.maxSize }

// Len returns the number of cached entries.
func (c *Cache) Len() int { return c.lru.Len() }

// Keys returns the cached coordinates, oldest first.
func (c *Cache) Keys() []world.Coord { return c.lru.Keys() }
