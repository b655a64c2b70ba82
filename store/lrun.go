package store

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// timedValue carries an optional deadline next to a value for the stores
// whose backing cache has no notion of expiry.
type timedValue struct {
	val      Value
	expireAt time.Time
}

func newTimedValue(val Value, expiration time.Duration) timedValue {
	tv := timedValue{val: val}
	if expiration > 0 {
		tv.expireAt = time.Now().Add(expiration)
	}
	return tv
}

func (tv timedValue) expired(now time.Time) bool {
	return !tv.expireAt.IsZero() && now.After(tv.expireAt)
}

// lrunCache bounds the number of entries rather than their size.
type lrunCache struct {
	mutex         sync.Mutex
	lru           *lru.Cache[string, timedValue]
	onEvicted     EvictFunc
	cleanupTicker *time.Ticker
}

func newLRUNCache(opts Options) (*lrunCache, error) {
	size := opts.MaxEntries
	if size <= 0 {
		size = defaultMaxEntries
	}

	c := &lrunCache{onEvicted: opts.OnEvicted}
	inner, err := lru.NewWithEvict(size, func(key string, tv timedValue) {
		c.onEvicted.call(key, tv.val)
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner

	if opts.CleanupInterval > 0 {
		c.cleanupTicker = time.NewTicker(opts.CleanupInterval)
		go c.cleanupLoop()
	}
	return c, nil
}

func (c *lrunCache) Get(key string) (Value, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	tv, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if tv.expired(time.Now()) {
		c.lru.Remove(key)
		return nil, false
	}
	return tv.val, true
}

func (c *lrunCache) Set(key string, val Value) {
	c.SetWithExpiration(key, val, 0)
}

func (c *lrunCache) SetWithExpiration(key string, val Value, expiration time.Duration) {
	if val == nil {
		c.Delete(key)
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// Add does not report the value it replaces.
	old, replaced := c.lru.Peek(key)
	c.lru.Add(key, newTimedValue(val, expiration))
	if replaced {
		c.onEvicted.call(key, old.val)
	}
}

func (c *lrunCache) Delete(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.lru.Remove(key)
}

func (c *lrunCache) Len() int {
	return c.lru.Len()
}

func (c *lrunCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.lru.Purge()
}

func (c *lrunCache) Close() {
	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
}

func (c *lrunCache) cleanupLoop() {
	for range c.cleanupTicker.C {
		now := time.Now()

		c.mutex.Lock()
		for _, key := range c.lru.Keys() {
			if tv, ok := c.lru.Peek(key); ok && tv.expired(now) {
				c.lru.Remove(key)
			}
		}
		c.mutex.Unlock()
	}
}
