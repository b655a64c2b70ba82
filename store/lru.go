package store

import (
	"container/list"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// lruCache bounds the total size of keys plus values, dropping the least
// recently used entries first.
type lruCache struct {
	mutex         sync.RWMutex
	list          *list.List
	items         map[string]*list.Element
	expires       map[string]time.Time
	maxBytes      int64
	usedBytes     int64
	onEvicted     EvictFunc
	cleanupTicker *time.Ticker
}

type lruEntry struct {
	key   string
	value Value
}

func newLRUCache(opts Options) *lruCache {
	c := &lruCache{
		list:      list.New(),
		items:     make(map[string]*list.Element),
		expires:   make(map[string]time.Time),
		maxBytes:  opts.MaxBytes,
		onEvicted: opts.OnEvicted,
	}
	if opts.CleanupInterval > 0 {
		c.cleanupTicker = time.NewTicker(opts.CleanupInterval)
		go c.cleanupLoop()
	}
	return c
}

func (c *lruCache) Get(key string) (Value, bool) {
	c.mutex.RLock()
	_, ok := c.items[key]
	c.mutex.RUnlock()
	if !ok {
		return nil, false
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	// the entry may have been replaced since the read lock was dropped
	ele, ok := c.items[key]
	if !ok {
		return nil, false
	}

	if expiration, hasExp := c.expires[key]; hasExp && time.Now().After(expiration) {
		c.removeElement(ele)
		return nil, false
	}

	c.list.MoveToFront(ele)
	return ele.Value.(*lruEntry).value, true
}

func (c *lruCache) Set(key string, val Value) {
	c.SetWithExpiration(key, val, 0)
}

func (c *lruCache) SetWithExpiration(key string, val Value, expiration time.Duration) {
	if val == nil {
		c.Delete(key)
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if expiration > 0 {
		c.expires[key] = time.Now().Add(expiration)
	} else {
		delete(c.expires, key)
	}

	if ele, ok := c.items[key]; ok {
		entry := ele.Value.(*lruEntry)
		old := entry.value
		c.usedBytes += int64(val.Len() - old.Len())

		entry.value = val
		c.list.MoveToFront(ele)
		c.onEvicted.call(key, old)
		c.evict()
		return
	}

	ele := c.list.PushFront(&lruEntry{key, val})
	c.items[key] = ele
	c.usedBytes += int64(len(key) + val.Len())

	c.evict()
}

func (c *lruCache) Delete(key string) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if ele, ok := c.items[key]; ok {
		c.removeElement(ele)
		return true
	}
	return false
}

func (c *lruCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	return c.list.Len()
}

func (c *lruCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for ele := c.list.Front(); ele != nil; ele = ele.Next() {
		entry := ele.Value.(*lruEntry)
		c.onEvicted.call(entry.key, entry.value)
	}
	c.list.Init()
	c.items = make(map[string]*list.Element)
	c.expires = make(map[string]time.Time)
	c.usedBytes = 0
}

func (c *lruCache) Close() {
	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
}

// evict drops expired entries, then the oldest ones until the byte budget
// holds again. Callers hold the write lock.
func (c *lruCache) evict() {
	now := time.Now()
	for key, expTime := range c.expires {
		if now.After(expTime) {
			c.removeElement(c.items[key])
		}
	}

	for c.maxBytes > 0 && c.usedBytes > c.maxBytes && c.list.Len() > 0 {
		entry := c.list.Back().Value.(*lruEntry)
		logrus.Debugf("lru: evicting %s, %d/%d bytes used", entry.key, c.usedBytes, c.maxBytes)
		c.removeElement(c.list.Back())
	}
}

func (c *lruCache) cleanupLoop() {
	for range c.cleanupTicker.C {
		c.mutex.Lock()
		c.evict()
		c.mutex.Unlock()
	}
}

func (c *lruCache) removeElement(ele *list.Element) {
	entry := ele.Value.(*lruEntry)
	c.list.Remove(ele)
	delete(c.items, entry.key)
	delete(c.expires, entry.key)
	c.usedBytes -= int64(len(entry.key) + entry.value.Len())
	c.onEvicted.call(entry.key, entry.value)
}
