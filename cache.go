package cowcache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"CowCache/store"

	"github.com/sirupsen/logrus"
)

// Cache keeps byte and text values past the lifetime of the caller's
// buffers. Values go in by ownership transfer, so a borrowed argument is
// copied once and an owned one is adopted as is; values come out as
// borrowed views of the stored buffer.
type Cache struct {
	mutex       sync.Mutex
	store       store.Store
	opts        CacheOptions
	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	initialized atomic.Bool
	closed      atomic.Bool
}

type CacheOptions struct {
	CacheType       store.CacheType
	MaxBytes        int64
	MaxEntries      int
	BucketCount     uint16
	CapPerBucket    int
	CleanupInterval time.Duration

	// Release, if set, receives the buffer of every value that leaves the
	// cache. Views handed out by Get must not be used after their entry is
	// gone when Release recycles buffers.
	Release func(buf []byte)
}

var DefaultCacheOptions = CacheOptions{
	CacheType:       store.LRU,
	MaxBytes:        8 * 1024 * 1024, // 8MB
	CleanupInterval: time.Minute,
}

func NewCache(opts CacheOptions) *Cache {
	return &Cache{
		opts: opts,
	}
}

// Get returns a borrowed view of the value under key.
func (c *Cache) Get(ctx context.Context, key string) (Cow[byte], bool) {
	value, ok := c.lookup(key)
	if !ok {
		return Cow[byte]{}, false
	}

	switch v := value.(type) {
	case Cow[byte]:
		c.hits.Add(1)
		return Borrow(v.Slice()), true
	case Text:
		c.hits.Add(1)
		return Borrow(v.Bytes()), true
	default:
		c.misses.Add(1)
		return Cow[byte]{}, false
	}
}

// GetText returns a borrowed view of a value stored with SetText.
func (c *Cache) GetText(ctx context.Context, key string) (Text, bool) {
	value, ok := c.lookup(key)
	if !ok {
		return Text{}, false
	}

	if t, ok := value.(Text); ok {
		c.hits.Add(1)
		return BorrowTextBytes(t.Bytes()), true
	}
	c.misses.Add(1)
	return Text{}, false
}

func (c *Cache) lookup(key string) (store.Value, bool) {
	if c.closed.Load() {
		return nil, false
	}

	if !c.initialized.Load() {
		c.misses.Add(1)
		return nil, false
	}

	value, ok := c.store.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	return value, true
}

func (c *Cache) ensureInitialized() {
	if c.initialized.Load() {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if !c.initialized.Load() {
		storeOpts := store.Options{
			MaxBytes:        c.opts.MaxBytes,
			MaxEntries:      c.opts.MaxEntries,
			BucketCount:     c.opts.BucketCount,
			CapPerBucket:    c.opts.CapPerBucket,
			CleanupInterval: c.opts.CleanupInterval,
			OnEvicted:       c.onEvicted,
		}
		c.store = store.NewStore(c.opts.CacheType, storeOpts)

		c.initialized.Store(true)
	}
}

func (c *Cache) onEvicted(key string, val store.Value) {
	c.evictions.Add(1)
	logrus.Debugf("cache: %s left the cache (%d bytes)", key, val.Len())
	c.drop(val)
}

func (c *Cache) drop(val store.Value) {
	switch v := val.(type) {
	case Cow[byte]:
		v.Drop(c.opts.Release)
	case Text:
		v.Drop(c.opts.Release)
	}
}

// Set stores val under key and ends val: an owned val is adopted, a
// borrowed one is copied. On a closed cache val is dropped instead.
func (c *Cache) Set(key string, val *Cow[byte]) {
	c.SetWithExpiration(key, val, time.Time{})
}

// SetWithExpiration is Set with an absolute deadline. A zero deadline never
// expires; a deadline already in the past stores nothing.
func (c *Cache) SetWithExpiration(key string, val *Cow[byte], expiration time.Time) {
	if c.closed.Load() {
		val.Drop(c.opts.Release)
		return
	}
	c.put(key, Own(val.IntoOwned()), expiration)
}

func (c *Cache) SetText(key string, val *Text) {
	c.SetTextWithExpiration(key, val, time.Time{})
}

func (c *Cache) SetTextWithExpiration(key string, val *Text, expiration time.Time) {
	if c.closed.Load() {
		val.Drop(c.opts.Release)
		return
	}
	c.put(key, OwnText(val.IntoOwned()), expiration)
}

func (c *Cache) put(key string, val store.Value, expiration time.Time) {
	c.ensureInitialized()

	if expiration.IsZero() {
		c.store.Set(key, val)
		return
	}

	duration := time.Until(expiration)
	if duration <= 0 {
		c.drop(val)
		return
	}
	c.store.SetWithExpiration(key, val, duration)
}

func (c *Cache) Delete(key string) bool {
	if c.closed.Load() || !c.initialized.Load() {
		return false
	}

	return c.store.Delete(key)
}

func (c *Cache) Clear() {
	if c.closed.Load() || !c.initialized.Load() {
		return
	}

	c.store.Clear()

	c.hits.Store(0)
	c.misses.Store(0)
}

func (c *Cache) Len() int {
	if c.closed.Load() || !c.initialized.Load() {
		return 0
	}

	return c.store.Len()
}

// Close stops the store's background work. The store is kept, so calls
// racing with Close never see a nil store.
func (c *Cache) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.store != nil {
		c.store.Close()
	}
}

func (c *Cache) Stats() map[string]any {
	stats := map[string]any{
		"initialized": c.initialized.Load(),
		"closed":      c.closed.Load(),
		"hits":        c.hits.Load(),
		"misses":      c.misses.Load(),
		"evictions":   c.evictions.Load(),
	}

	if c.initialized.Load() {
		stats["size"] = c.Len()

		totalRequests := stats["hits"].(int64) + stats["misses"].(int64)
		if totalRequests > 0 {
			stats["hit_rate"] = float64(stats["hits"].(int64)) / float64(totalRequests)
		} else {
			stats["hit_rate"] = 0.0
		}
	}

	return stats
}
