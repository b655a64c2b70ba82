package cowcache

import (
	"cmp"
	"fmt"
	"slices"
)

// Mode tells whether a Cow owns the memory it reads from.
type Mode uint8

const (
	// Borrowed means the elements belong to someone else. The Cow never
	// writes to them and never hands them out as owned.
	Borrowed Mode = iota
	// Owned means the Cow is the only holder of its buffer.
	Owned
)

func (m Mode) String() string {
	switch m {
	case Borrowed:
		return "borrowed"
	case Owned:
		return "owned"
	default:
		return "unknown"
	}
}

// Cow is a copy-on-write sequence of T. It either borrows a slice owned by
// the caller or owns a buffer outright, and reads look the same in both
// cases. A copy is made only when ownership is actually asked for and the
// Cow does not have it yet.
//
// A Cow has a single owner. IntoOwned, a successful TryOwned, and Drop end
// its lifetime and leave the receiver as the zero value, an empty borrowed
// Cow, so the buffer can be released at most once. Copying a Cow struct by
// assignment copies the handle, not the ownership: use Clone instead.
type Cow[T any] struct {
	data []T
	mode Mode
}

// Borrow returns a Cow that reads from s without copying it. The caller keeps
// ownership of s and must not modify it while the Cow is in use.
func Borrow[T any](s []T) Cow[T] {
	return Cow[T]{data: s, mode: Borrowed}
}

// Own returns a Cow that takes over buf. The caller gives buf up and must
// not touch it afterwards. An empty or nil buf still yields an owned Cow.
func Own[T any](buf []T) Cow[T] {
	return Cow[T]{data: buf, mode: Owned}
}

// Slice returns the elements. The result is read-only and its capacity is
// clipped, so an append on it never writes into the underlying storage.
func (c Cow[T]) Slice() []T {
	return c.data[:len(c.data):len(c.data)]
}

func (c Cow[T]) Len() int {
	return len(c.data)
}

// At returns the i-th element. It panics if i is out of range.
func (c Cow[T]) At(i int) T {
	return c.data[i]
}

func (c Cow[T]) Mode() Mode {
	return c.mode
}

func (c Cow[T]) IsOwned() bool {
	return c.mode == Owned
}

func (c Cow[T]) IsBorrowed() bool {
	return c.mode == Borrowed
}

// release is the one place that decides between the owned buffer and the
// borrowed view. An owned c always ends up as the zero value. A borrowed c
// is reset only when consume is set.
func (c *Cow[T]) release(consume bool) (buf []T, owned bool) {
	if c.mode != Owned {
		if consume {
			*c = Cow[T]{}
		}
		return nil, false
	}
	buf = c.data
	*c = Cow[T]{}
	return buf, true
}

// IntoOwned ends c and returns a buffer the caller owns. An owned buffer is
// returned as is. A borrowed view is copied once.
func (c *Cow[T]) IntoOwned() []T {
	view := c.data
	if buf, ok := c.release(true); ok {
		return buf
	}
	return slices.Clone(view)
}

// IntoOwnedFunc is IntoOwned for element types that need a deep copy: dup is
// called once per element when c is borrowed and never when c is owned.
func (c *Cow[T]) IntoOwnedFunc(dup func(T) T) []T {
	view := c.data
	if buf, ok := c.release(true); ok {
		return buf
	}
	return dupAll(view, dup)
}

// TryOwned returns the owned buffer and ends c if c owns one. If c is
// borrowed it reports false and leaves c untouched. It never allocates.
func (c *Cow[T]) TryOwned() ([]T, bool) {
	return c.release(false)
}

// Drop ends c. If c owned its buffer, free receives it exactly once; a nil
// free simply leaves the buffer to the garbage collector. A borrowed source
// is never passed to free. Dropping an already ended Cow does nothing.
func (c *Cow[T]) Drop(free func([]T)) {
	if buf, ok := c.release(true); ok && free != nil {
		free(buf)
	}
}

// Mutable turns c into an owned Cow, copying a borrowed view first, and
// returns the buffer for in-place writes. The buffer stays owned by c.
func (c *Cow[T]) Mutable() []T {
	if c.mode != Owned {
		c.data = slices.Clone(c.data)
		c.mode = Owned
	}
	return c.data
}

// Clone returns an independent Cow. A borrowed c yields another view of the
// same source; an owned c is copied so that no two Cows share a buffer.
func (c Cow[T]) Clone() Cow[T] {
	if c.mode != Owned {
		return c
	}
	return Own(slices.Clone(c.data))
}

// CloneFunc is Clone with a deep copy of every element of an owned c.
func (c Cow[T]) CloneFunc(dup func(T) T) Cow[T] {
	if c.mode != Owned {
		return c
	}
	return Own(dupAll(c.data, dup))
}

func dupAll[T any](s []T, dup func(T) T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	for i, v := range s {
		out[i] = dup(v)
	}
	return out
}

// String formats the elements like the plain slice would be.
func (c Cow[T]) String() string {
	return fmt.Sprint(c.data)
}

// Format makes every verb print c as if it were the plain slice.
func (c Cow[T]) Format(f fmt.State, verb rune) {
	fmt.Fprintf(f, fmt.FormatString(f, verb), c.data)
}

// Equal reports whether a and b hold the same elements. The mode of either
// side does not matter.
func Equal[T comparable](a, b Cow[T]) bool {
	return slices.Equal(a.data, b.data)
}

// EqualSlice reports whether c holds exactly the elements of s.
func EqualSlice[T comparable](c Cow[T], s []T) bool {
	return slices.Equal(c.data, s)
}

// Compare orders a and b lexicographically by their elements.
func Compare[T cmp.Ordered](a, b Cow[T]) int {
	return slices.Compare(a.data, b.data)
}
