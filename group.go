package cowcache

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"CowCache/singleflight"

	"github.com/sirupsen/logrus"
)

var (
	groupsMutex sync.RWMutex
	groups      = make(map[string]*Group)
)

var (
	ErrKeyRequired   = errors.New("key is required")
	ErrValueRequired = errors.New("value is required")
	ErrGroupClosed   = errors.New("cache group is closed")
)

// Getter loads a value on a cache miss. The returned buffer is handed over:
// the group keeps it without copying, so the getter must not reuse it.
type Getter interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

type GetterFunc func(ctx context.Context, key string) ([]byte, error)

func (f GetterFunc) Get(ctx context.Context, key string) ([]byte, error) {
	return f(ctx, key)
}

type GroupOptions struct {
	// Cache.Release limits how long views returned by Get stay valid; see
	// Group.Get.
	Cache      CacheOptions
	Expiration time.Duration
}

var DefaultGroupOptions = GroupOptions{
	Cache: DefaultCacheOptions,
}

// Group is a named cache in front of a Getter. Concurrent misses on the
// same key share one load.
type Group struct {
	name       string
	source     Getter
	localCache *Cache
	loader     *singleflight.Group
	expiration time.Duration
	closed     atomic.Bool
	stats      GroupStats
}

type GroupStats struct {
	loads        atomic.Int64
	localHits    atomic.Int64
	localMisses  atomic.Int64
	loaderHits   atomic.Int64
	loaderErrors atomic.Int64
	loadDuration atomic.Int64
}

func NewGroup(name string, source Getter, opts GroupOptions) *Group {
	g := &Group{
		name:       name,
		source:     source,
		localCache: NewCache(opts.Cache),
		loader:     &singleflight.Group{},
		expiration: opts.Expiration,
	}

	groupsMutex.Lock()
	defer groupsMutex.Unlock()

	if old, exists := groups[name]; exists {
		logrus.Warnf("Group with name %s already exists, will be replaced", name)
		old.close()
	}

	groups[name] = g
	return g
}

func GetGroup(name string) *Group {
	groupsMutex.RLock()
	defer groupsMutex.RUnlock()
	return groups[name]
}

func (g *Group) Name() string {
	return g.name
}

// Get returns a borrowed view of the value under key, loading it from the
// source on a miss. Call IntoOwned on the result to keep or modify it.
//
// Without a Release hook the view stays valid for as long as it is held.
// With one, a view of a cached entry is valid only while the entry stays in
// the cache; a freshly loaded value is always served from a private copy.
func (g *Group) Get(ctx context.Context, key string) (Cow[byte], error) {
	if g.closed.Load() {
		return Cow[byte]{}, ErrGroupClosed
	}

	if key == "" {
		return Cow[byte]{}, ErrKeyRequired
	}

	view, ok := g.localCache.Get(ctx, key)
	if ok {
		g.stats.localHits.Add(1)
		return view, nil
	}
	g.stats.localMisses.Add(1)

	return g.load(ctx, key)
}

// GetText is Get for values that must be UTF-8. Bytes that are not fail
// with ErrInvalidText.
func (g *Group) GetText(ctx context.Context, key string) (Text, error) {
	view, err := g.Get(ctx, key)
	if err != nil {
		return Text{}, err
	}

	t, err := NewBorrowedText(view.Slice())
	if err != nil {
		return Text{}, fmt.Errorf("group %s key %s: %w", g.name, key, err)
	}
	return t, nil
}

// Set stores a copy of val; the caller keeps val.
func (g *Group) Set(ctx context.Context, key string, val []byte) error {
	view := Borrow(val)
	return g.set(key, &view)
}

// SetOwned stores buf without copying it. The caller gives buf up.
func (g *Group) SetOwned(ctx context.Context, key string, buf []byte) error {
	owned := Own(buf)
	return g.set(key, &owned)
}

func (g *Group) set(key string, val *Cow[byte]) error {
	if g.closed.Load() {
		return ErrGroupClosed
	}
	if key == "" {
		return ErrKeyRequired
	}
	if val.Len() == 0 {
		return ErrValueRequired
	}

	if g.expiration > 0 {
		g.localCache.SetWithExpiration(key, val, time.Now().Add(g.expiration))
	} else {
		g.localCache.Set(key, val)
	}
	return nil
}

func (g *Group) Delete(ctx context.Context, key string) error {
	if g.closed.Load() {
		return ErrGroupClosed
	}
	if key == "" {
		return ErrKeyRequired
	}

	g.localCache.Delete(key)
	return nil
}

func (g *Group) Clear() {
	if g.closed.Load() {
		return
	}

	g.localCache.Clear()
}

func (g *Group) Close() {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}

	if g.localCache != nil {
		g.localCache.Close()
	}

	groupsMutex.Lock()
	if groups[g.name] == g {
		delete(groups, g.name)
	}
	groupsMutex.Unlock()
}

func (g *Group) close() {
	if !g.closed.CompareAndSwap(false, true) {
		return
	}

	if g.localCache != nil {
		g.localCache.Close()
	}
}

func ListGroups() []string {
	groupsMutex.RLock()
	defer groupsMutex.RUnlock()

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}

	return names
}

func DestroyGroup(name string) bool {
	groupsMutex.Lock()
	defer groupsMutex.Unlock()

	if g, exists := groups[name]; exists {
		g.close()
		delete(groups, name)
		return true
	}

	return false
}

func DestroyAllGroups() {
	groupsMutex.Lock()
	defer groupsMutex.Unlock()

	for name, g := range groups {
		g.close()
		delete(groups, name)
	}
}

func (g *Group) load(ctx context.Context, key string) (Cow[byte], error) {
	startTime := time.Now()
	val, err := g.loader.Do(key, func() (any, error) {
		return g.loadData(ctx, key)
	})

	loadDuration := time.Since(startTime).Nanoseconds()
	g.stats.loadDuration.Add(loadDuration)
	g.stats.loads.Add(1)

	if err != nil {
		return Cow[byte]{}, err
	}

	return val.(Cow[byte]), nil
}

// loadData fetches key from the source, stores the buffer and returns a
// borrowed view of it. Every caller sharing the load gets the same view.
// When evicted buffers are recycled the store may release the buffer during
// Set, so the view is taken over a copy made beforehand.
func (g *Group) loadData(ctx context.Context, key string) (Cow[byte], error) {
	value, err := g.source.Get(ctx, key)
	if err != nil {
		g.stats.loaderErrors.Add(1)
		logrus.Warnf("group %s: failed to load %s: %v", g.name, key, err)
		return Cow[byte]{}, fmt.Errorf("load %s: %w", key, err)
	}
	g.stats.loaderHits.Add(1)

	owned := Own(value)
	view := Borrow(owned.Slice())
	if g.localCache.opts.Release != nil {
		view = Borrow(slices.Clone(value))
	}
	if g.expiration > 0 {
		g.localCache.SetWithExpiration(key, &owned, time.Now().Add(g.expiration))
	} else {
		g.localCache.Set(key, &owned)
	}
	return view, nil
}

func (g *Group) Stats() map[string]any {
	stats := map[string]any{
		"name":          g.name,
		"closed":        g.closed.Load(),
		"expiration":    g.expiration,
		"loads":         g.stats.loads.Load(),
		"local_hits":    g.stats.localHits.Load(),
		"local_misses":  g.stats.localMisses.Load(),
		"loader_hits":   g.stats.loaderHits.Load(),
		"loader_errors": g.stats.loaderErrors.Load(),
	}

	totalGets := stats["local_hits"].(int64) + stats["local_misses"].(int64)
	if totalGets > 0 {
		stats["hit_rate"] = float64(stats["local_hits"].(int64)) / float64(totalGets)
	}

	totalLoads := stats["loads"].(int64)
	if totalLoads > 0 {
		stats["avg_load_time_ms"] = float64(g.stats.loadDuration.Load()) / float64(totalLoads) / float64(time.Millisecond)
	}

	if g.localCache != nil {
		cacheStats := g.localCache.Stats()
		for k, v := range cacheStats {
			stats["cache_"+k] = v
		}
	}

	return stats
}
