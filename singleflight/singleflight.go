package singleflight

import (
	"sync"
)

type call struct {
	wg  sync.WaitGroup
	val any
	err error
}

// Group runs at most one fn per key at a time; callers arriving while it
// runs wait for it and share its result.
type Group struct {
	m sync.Map
}

func (g *Group) Do(key string, fn func() (any, error)) (any, error) {
	c := &call{}
	c.wg.Add(1)

	// Someone else is already loading this key
	if existing, loaded := g.m.LoadOrStore(key, c); loaded {
		other := existing.(*call)
		other.wg.Wait()
		return other.val, other.err
	}

	c.val, c.err = fn()
	c.wg.Done()

	g.m.Delete(key)

	return c.val, c.err
}
