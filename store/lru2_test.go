package store

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type intValue int

func (v intValue) Len() int {
	return 1
}

func TestLRU2Promotion(t *testing.T) {
	var evicted []string
	c := newLRU2Cache(Options{
		BucketCount:  1,
		CapPerBucket: 2,
		OnEvicted: func(key string, val Value) {
			evicted = append(evicted, key)
		},
	})
	defer c.Close()

	c.Set("hot", intValue(1))
	_, ok := c.Get("hot")
	require.True(t, ok, "first hit promotes to level 1")

	for i := range 4 {
		c.Set(strconv.Itoa(i), intValue(i))
	}

	_, ok = c.Get("hot")
	assert.True(t, ok, "one-off keys must not evict a promoted key")
	assert.Equal(t, []string{"0", "1"}, evicted)
}

func TestLRU2Expiration(t *testing.T) {
	var evicted []string
	c := newLRU2Cache(Options{
		BucketCount:  4,
		CapPerBucket: 8,
		OnEvicted: func(key string, val Value) {
			evicted = append(evicted, key)
		},
	})
	defer c.Close()

	c.SetWithExpiration("k", intValue(1), 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, []string{"k"}, evicted)
	assert.Zero(t, c.Len())
}

func TestLRU2DeleteAndClear(t *testing.T) {
	count := 0
	c := newLRU2Cache(Options{
		BucketCount:  4,
		CapPerBucket: 8,
		OnEvicted:    func(string, Value) { count++ },
	})
	defer c.Close()

	c.Set("a", intValue(1))
	c.Set("b", intValue(2))
	_, _ = c.Get("b")

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))
	assert.Equal(t, 1, count)

	c.Clear()
	assert.Equal(t, 2, count)
	assert.Zero(t, c.Len())
}

func TestMaskOfNextPowOf2(t *testing.T) {
	assert.Equal(t, uint32(0), maskOfNextPowOf2(1))
	assert.Equal(t, uint32(15), maskOfNextPowOf2(16))
	assert.Equal(t, uint32(31), maskOfNextPowOf2(17))
	assert.Equal(t, uint32(255), maskOfNextPowOf2(200))
}

func Benchmark_LRU2Cache_Set(b *testing.B) {
	c := newLRU2Cache(Options{
		CleanupInterval: time.Minute,
		BucketCount:     256,
		CapPerBucket:    32,
		Expiration:      10 * time.Second,
	})
	defer c.Close()

	for i := range b.N {
		c.Set(strconv.FormatInt(int64(i), 10), intValue(i))
	}
}

func Benchmark_LRU2Cache_Get(b *testing.B) {
	c := newLRU2Cache(Options{
		CleanupInterval: time.Minute,
		BucketCount:     256,
		CapPerBucket:    32,
		Expiration:      10 * time.Second,
	})
	defer c.Close()

	c.Set("0", intValue(0))
	for b.Loop() {
		c.Get("0")
	}
}
