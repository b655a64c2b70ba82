package store

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Value is anything a store can account for by size.
type Value interface {
	Len() int
}

type Store interface {
	Get(key string) (Value, bool)
	Set(key string, val Value)
	SetWithExpiration(key string, val Value, expiration time.Duration)
	Delete(key string) bool
	Len() int
	Clear()
	Close()
}

type CacheType string

const (
	LRU  CacheType = "lru"
	LRU2 CacheType = "lru2"
	LRUN CacheType = "lrun"
	ARC  CacheType = "arc"
)

// EvictFunc is told about every value that leaves a store: capacity
// eviction, expiry, Delete, overwrite by Set, and Clear. It runs with the
// store's lock held and must not call back into the store.
type EvictFunc func(key string, val Value)

type Options struct {
	MaxBytes        int64
	MaxEntries      int
	CleanupInterval time.Duration
	BucketCount     uint16
	CapPerBucket    int
	Expiration      time.Duration
	OnEvicted       EvictFunc
}

const defaultMaxEntries = 1024

func NewStore(cacheType CacheType, opts Options) Store {
	switch cacheType {
	case LRU:
		return newLRUCache(opts)
	case LRU2:
		return newLRU2Cache(opts)
	case LRUN:
		c, err := newLRUNCache(opts)
		if err != nil {
			logrus.Errorf("failed to create %s store, falling back to %s: %v", cacheType, LRU, err)
			return newLRUCache(opts)
		}
		return c
	case ARC:
		c, err := newARCCache(opts)
		if err != nil {
			logrus.Errorf("failed to create %s store, falling back to %s: %v", cacheType, LRU, err)
			return newLRUCache(opts)
		}
		return c
	default:
		return newLRUCache(opts)
	}
}

func (f EvictFunc) call(key string, val Value) {
	if f != nil {
		f(key, val)
	}
}
