package store

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/arc/v2"
)

// arcCache is an entry-count bounded adaptive replacement cache.
//
// The ARC implementation has no eviction hook, so values it pushes out for
// capacity are left to the garbage collector and never reach onEvicted.
// Expiry, Delete, overwrite and Clear are still reported.
type arcCache struct {
	mutex         sync.Mutex
	arc           *arc.ARCCache[string, timedValue]
	onEvicted     EvictFunc
	cleanupTicker *time.Ticker
}

func newARCCache(opts Options) (*arcCache, error) {
	size := opts.MaxEntries
	if size <= 0 {
		size = defaultMaxEntries
	}

	inner, err := arc.NewARC[string, timedValue](size)
	if err != nil {
		return nil, err
	}

	c := &arcCache{arc: inner, onEvicted: opts.OnEvicted}
	if opts.CleanupInterval > 0 {
		c.cleanupTicker = time.NewTicker(opts.CleanupInterval)
		go c.cleanupLoop()
	}
	return c, nil
}

func (c *arcCache) Get(key string) (Value, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tv, ok := c.arc.Get(key)
	if !ok {
		return nil, false
	}
	if tv.expired(time.Now()) {
		c.remove(key)
		return nil, false
	}
	return tv.val, true
}

func (c *arcCache) Set(key string, val Value) {
	c.SetWithExpiration(key, val, 0)
}

func (c *arcCache) SetWithExpiration(key string, val Value, expiration time.Duration) {
	if val == nil {
		c.Delete(key)
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	old, replaced := c.arc.Peek(key)
	c.arc.Add(key, newTimedValue(val, expiration))
	if replaced {
		c.onEvicted.call(key, old.val)
	}
}

func (c *arcCache) Delete(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.remove(key)
}

// remove drops key and reports its value. Callers hold the lock.
func (c *arcCache) remove(key string) bool {
	tv, ok := c.arc.Peek(key)
	if !ok {
		return false
	}
	c.arc.Remove(key)
	c.onEvicted.call(key, tv.val)
	return true
}

func (c *arcCache) Len() int {
	return c.arc.Len()
}

func (c *arcCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, key := range c.arc.Keys() {
		if tv, ok := c.arc.Peek(key); ok {
			c.onEvicted.call(key, tv.val)
		}
	}
	c.arc.Purge()
}

func (c *arcCache) Close() {
	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
}

func (c *arcCache) cleanupLoop() {
	for range c.cleanupTicker.C {
		now := time.Now()

		c.mutex.Lock()
		for _, key := range c.arc.Keys() {
			if tv, ok := c.arc.Peek(key); ok && tv.expired(now) {
				c.remove(key)
			}
		}
		c.mutex.Unlock()
	}
}
