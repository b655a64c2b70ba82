package store

import (
	"container/list"
	"sync"
	"time"

	farm "github.com/dgryski/go-farm"
)

func bucketHash(key string) uint32 {
	return farm.Fingerprint32([]byte(key))
}

func maskOfNextPowOf2(cap uint16) uint32 {
	if cap > 0 && cap&(cap-1) == 0 {
		return uint32(cap - 1)
	}
	cap |= (cap >> 1)
	cap |= (cap >> 2)
	cap |= (cap >> 4)
	return uint32(cap | (cap >> 8))
}

// lru2Cache shards keys over buckets, each holding two LRU levels: a key
// lands in level 0 and is promoted to level 1 on its first hit, so one-off
// keys cannot push out keys that are read repeatedly.
type lru2Cache struct {
	locks         []sync.Mutex
	buckets       [][2]*cache
	expiration    time.Duration
	mask          uint32
	onEvicted     EvictFunc
	cleanupTicker *time.Ticker
}

func newLRU2Cache(opts Options) *lru2Cache {
	mask := maskOfNextPowOf2(opts.BucketCount)
	capPerBucket := opts.CapPerBucket
	if capPerBucket <= 0 {
		capPerBucket = defaultMaxEntries / int(mask+1)
		if capPerBucket == 0 {
			capPerBucket = 1
		}
	}
	c := &lru2Cache{
		locks:      make([]sync.Mutex, mask+1),
		buckets:    make([][2]*cache, mask+1),
		expiration: opts.Expiration,
		mask:       mask,
		onEvicted:  opts.OnEvicted,
	}
	for i := range c.buckets {
		c.buckets[i][0] = create(capPerBucket, opts.OnEvicted)
		c.buckets[i][1] = create(capPerBucket, opts.OnEvicted)
	}
	if opts.CleanupInterval > 0 {
		c.cleanupTicker = time.NewTicker(opts.CleanupInterval)
		go c.cleanupLoop()
	}
	return c
}

func (c *lru2Cache) Get(key string) (Value, bool) {
	idx := bucketHash(key) & c.mask
	c.locks[idx].Lock()
	defer c.locks[idx].Unlock()

	now := time.Now()
	if n, ok := c.buckets[idx][0].del(key); ok {
		if n.expired(now) {
			c.onEvicted.call(n.key, n.val)
			return nil, false
		}
		c.buckets[idx][1].set(key, n.val, n.expireAt)
		return n.val, true
	}

	n, ok := c.buckets[idx][1].get(key)
	if !ok {
		return nil, false
	}
	if n.expired(now) {
		c.buckets[idx][1].del(key)
		c.onEvicted.call(n.key, n.val)
		return nil, false
	}
	if n.expireAt != nil && c.expiration > 0 {
		refreshed := now.Add(c.expiration)
		n.expireAt = &refreshed
	}
	return n.val, true
}

func (c *lru2Cache) Set(key string, val Value) {
	c.SetWithExpiration(key, val, c.expiration)
}

func (c *lru2Cache) SetWithExpiration(key string, val Value, expiration time.Duration) {
	idx := bucketHash(key) & c.mask
	c.locks[idx].Lock()
	defer c.locks[idx].Unlock()

	// drop an older copy promoted to level 1
	if n, ok := c.buckets[idx][1].del(key); ok {
		c.onEvicted.call(n.key, n.val)
	}
	if expiration == 0 {
		c.buckets[idx][0].set(key, val, nil)
	} else {
		expireAt := time.Now().Add(expiration)
		c.buckets[idx][0].set(key, val, &expireAt)
	}
}

func (c *lru2Cache) Delete(key string) bool {
	idx := bucketHash(key) & c.mask
	c.locks[idx].Lock()
	defer c.locks[idx].Unlock()

	n1, ok1 := c.buckets[idx][0].del(key)
	if ok1 {
		c.onEvicted.call(n1.key, n1.val)
	}
	n2, ok2 := c.buckets[idx][1].del(key)
	if ok2 {
		c.onEvicted.call(n2.key, n2.val)
	}
	return ok1 || ok2
}

func (c *lru2Cache) Len() int {
	count := 0
	for i := range c.buckets {
		c.locks[i].Lock()
		count += c.buckets[i][0].list.Len()
		count += c.buckets[i][1].list.Len()
		c.locks[i].Unlock()
	}
	return count
}

func (c *lru2Cache) Clear() {
	for i := range c.buckets {
		c.locks[i].Lock()
		c.buckets[i][0].clear()
		c.buckets[i][1].clear()
		c.locks[i].Unlock()
	}
}

func (c *lru2Cache) Close() {
	if c.cleanupTicker != nil {
		c.cleanupTicker.Stop()
	}
}

func (c *lru2Cache) cleanupLoop() {
	for range c.cleanupTicker.C {
		currentTime := time.Now()

		for i := range c.buckets {
			c.locks[i].Lock()

			c.buckets[i][0].cleanup(currentTime)
			c.buckets[i][1].cleanup(currentTime)

			c.locks[i].Unlock()
		}
	}
}

type node struct {
	key      string
	val      Value
	expireAt *time.Time
}

func (n *node) expired(now time.Time) bool {
	return n.expireAt != nil && n.expireAt.Before(now)
}

// cache is one level of one bucket. Only capacity eviction, overwrite, clear
// and cleanup report to onEvicted; del hands the node back to the caller.
type cache struct {
	list      *list.List
	hashmap   map[string]*list.Element
	cap       int
	onEvicted EvictFunc
}

func create(cap int, onEvicted EvictFunc) *cache {
	return &cache{
		list:      list.New(),
		hashmap:   make(map[string]*list.Element),
		cap:       cap,
		onEvicted: onEvicted,
	}
}

// update return false, add return true
func (c *cache) set(key string, val Value, expireAt *time.Time) bool {
	if ele, exists := c.hashmap[key]; exists {
		n := ele.Value.(*node)
		old := n.val
		n.val, n.expireAt = val, expireAt
		c.list.MoveToFront(ele)
		c.onEvicted.call(key, old)
		return false
	}

	if c.list.Len() == c.cap {
		ele := c.list.Back()
		n := ele.Value.(*node)
		delete(c.hashmap, n.key)
		c.list.Remove(ele)
		c.onEvicted.call(n.key, n.val)
	}

	ele := c.list.PushFront(&node{key, val, expireAt})
	c.hashmap[key] = ele
	return true
}

func (c *cache) get(key string) (*node, bool) {
	if ele, exists := c.hashmap[key]; exists {
		n := ele.Value.(*node)
		c.list.MoveToFront(ele)
		return n, true
	}
	return nil, false
}

func (c *cache) del(key string) (*node, bool) {
	if ele, exists := c.hashmap[key]; exists {
		n := ele.Value.(*node)
		delete(c.hashmap, n.key)
		c.list.Remove(ele)
		return n, true
	}
	return nil, false
}

func (c *cache) clear() {
	for ele := c.list.Front(); ele != nil; ele = ele.Next() {
		n := ele.Value.(*node)
		c.onEvicted.call(n.key, n.val)
	}
	c.list.Init()
	clear(c.hashmap)
}

func (c *cache) cleanup(now time.Time) {
	var expired []*list.Element
	for ele := c.list.Front(); ele != nil; ele = ele.Next() {
		n := ele.Value.(*node)
		if n.expired(now) {
			delete(c.hashmap, n.key)
			expired = append(expired, ele)
		}
	}
	for _, ele := range expired {
		n := ele.Value.(*node)
		c.list.Remove(ele)
		c.onEvicted.call(n.key, n.val)
	}
}
