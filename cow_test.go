package cowcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sameArray reports whether a and b start at the same element.
func sameArray[T any](a, b []T) bool {
	return len(a) > 0 && len(b) > 0 && &a[0] == &b[0]
}

func TestBorrow(t *testing.T) {
	arr := []int{1, 2, 3, 4, 5}
	v := Borrow(arr)

	assert.Equal(t, arr, v.Slice())
	assert.Equal(t, 5, v.Len())
	assert.Equal(t, 3, v.At(2))
	assert.True(t, v.IsBorrowed())
	assert.Equal(t, Borrowed, v.Mode())
	assert.True(t, sameArray(arr, v.Slice()), "borrowing must not copy")
}

func TestOwn(t *testing.T) {
	arr := []int{1, 2, 3, 4, 5}
	v := Own(arr)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, v.Slice())
	assert.True(t, v.IsOwned())

	got, ok := v.TryOwned()
	require.True(t, ok)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
	assert.True(t, sameArray(arr, got), "TryOwned on an owned Cow must not copy")
	assert.Equal(t, Cow[int]{}, v, "TryOwned must end the Cow")
}

func TestIntoOwned(t *testing.T) {
	t.Run("Owned Is Returned As Is", func(t *testing.T) {
		arr := []int{1, 2, 3}
		v := Own(arr)

		got := v.IntoOwned()
		assert.Equal(t, arr, got)
		assert.True(t, sameArray(arr, got))
		assert.Zero(t, v.Len())
		assert.True(t, v.IsBorrowed())
	})

	t.Run("Borrowed Is Copied", func(t *testing.T) {
		arr := []int{1, 2, 3}
		v := Borrow(arr)

		got := v.IntoOwned()
		assert.Equal(t, arr, got)
		assert.False(t, sameArray(arr, got))

		got[0] = 42
		assert.Equal(t, 1, arr[0], "the borrowed source must stay untouched")
	})

	t.Run("Copy Count", func(t *testing.T) {
		dups := 0
		dup := func(s string) string {
			dups++
			return s
		}
		src := []string{"a", "b", "c", "d"}

		borrowed := Borrow(src)
		assert.Equal(t, src, borrowed.IntoOwnedFunc(dup))
		assert.Equal(t, len(src), dups, "one duplication pass over every element")

		dups = 0
		owned := Own([]string{"x", "y"})
		assert.Equal(t, []string{"x", "y"}, owned.IntoOwnedFunc(dup))
		assert.Zero(t, dups, "owned extraction must not duplicate")
	})

	t.Run("Nil Borrow", func(t *testing.T) {
		var v Cow[byte]
		assert.Empty(t, v.IntoOwned())
	})
}

func TestTryOwned(t *testing.T) {
	t.Run("Borrowed Reports Absent", func(t *testing.T) {
		arr := []int{1, 2, 3}
		v := Borrow(arr)

		got, ok := v.TryOwned()
		assert.False(t, ok)
		assert.Nil(t, got)
		assert.Equal(t, arr, v.Slice(), "a failed TryOwned leaves the Cow usable")
	})

	t.Run("No Allocation", func(t *testing.T) {
		arr := []int{1, 2, 3}

		allocs := testing.AllocsPerRun(100, func() {
			v := Borrow(arr)
			_, _ = v.TryOwned()
		})
		assert.Zero(t, allocs)

		allocs = testing.AllocsPerRun(100, func() {
			v := Own(arr)
			_, _ = v.TryOwned()
		})
		assert.Zero(t, allocs)
	})
}

func TestEmptyOwnedStaysOwned(t *testing.T) {
	for name, buf := range map[string][]int{
		"empty":          {},
		"nil":            nil,
		"spare capacity": make([]int, 0, 8),
	} {
		t.Run(name, func(t *testing.T) {
			v := Own(buf)
			assert.True(t, v.IsOwned())
			assert.Zero(t, v.Len())

			_, ok := v.TryOwned()
			assert.True(t, ok, "an empty owned buffer must not look borrowed")
		})
	}
}

func TestDrop(t *testing.T) {
	t.Run("Borrowed Source Survives", func(t *testing.T) {
		arr := []int{1, 2, 3, 4, 5}
		v := Borrow(arr)

		freed := 0
		v.Drop(func([]int) { freed++ })

		assert.Zero(t, freed, "a borrowed source must never be released")
		assert.Equal(t, []int{1, 2, 3, 4, 5}, arr)
	})

	t.Run("Owned Released Once", func(t *testing.T) {
		arr := []int{1, 2, 3, 4, 5}
		v := Own(arr)

		calls, elems := 0, 0
		free := func(buf []int) {
			calls++
			elems += len(buf)
			assert.True(t, sameArray(arr, buf))
		}
		v.Drop(free)
		v.Drop(free)

		assert.Equal(t, 1, calls)
		assert.Equal(t, len(arr), elems)
	})

	t.Run("Nil Free", func(t *testing.T) {
		v := Own([]int{1})
		assert.NotPanics(t, func() { v.Drop(nil) })
		assert.False(t, v.IsOwned())
	})

	t.Run("After IntoOwned", func(t *testing.T) {
		v := Own([]int{1, 2})
		_ = v.IntoOwned()

		freed := 0
		v.Drop(func([]int) { freed++ })
		assert.Zero(t, freed, "ownership already moved out")
	})
}

func TestClone(t *testing.T) {
	t.Run("Borrowed Shares Source", func(t *testing.T) {
		arr := []int{1, 2, 3}
		v := Borrow(arr)
		c := v.Clone()

		assert.True(t, c.IsBorrowed())
		assert.True(t, sameArray(arr, c.Slice()))
	})

	t.Run("Owned Copies", func(t *testing.T) {
		arr := []int{1, 2, 3}
		v := Own(arr)
		c := v.Clone()

		assert.True(t, c.IsOwned())
		assert.True(t, Equal(v, c))
		assert.False(t, sameArray(v.Slice(), c.Slice()), "owned storage must not be shared")
	})

	t.Run("Deep Copy", func(t *testing.T) {
		type box struct{ n *int }
		one := 1
		v := Own([]box{{&one}})

		c := v.CloneFunc(func(b box) box {
			n := *b.n
			return box{&n}
		})
		*c.At(0).n = 2
		assert.Equal(t, 1, one)
	})
}

func TestMutable(t *testing.T) {
	t.Run("Borrowed Copies First", func(t *testing.T) {
		arr := []byte("hello")
		v := Borrow(arr)

		buf := v.Mutable()
		buf[0] = 'j'

		assert.Equal(t, "hello", string(arr))
		assert.Equal(t, "jello", string(v.Slice()))
		assert.True(t, v.IsOwned())
	})

	t.Run("Owned Writes In Place", func(t *testing.T) {
		arr := []byte("hello")
		v := Own(arr)

		buf := v.Mutable()
		assert.True(t, sameArray(arr, buf))
	})
}

func TestSliceIsClipped(t *testing.T) {
	backing := []int{1, 2, 3, 4}
	v := Borrow(backing[:2])

	_ = append(v.Slice(), 99)
	assert.Equal(t, []int{1, 2, 3, 4}, backing, "append on a view must not write into the source")
}

func TestEqualIgnoresMode(t *testing.T) {
	borrowed := Borrow([]int{1, 2, 3})
	owned := Own([]int{1, 2, 3})

	assert.True(t, Equal(borrowed, owned))
	assert.True(t, EqualSlice(owned, []int{1, 2, 3}))
	assert.False(t, Equal(borrowed, Own([]int{1, 2})))

	assert.Zero(t, Compare(borrowed, owned))
	assert.Negative(t, Compare(Own([]int{1, 2}), borrowed))
	assert.Positive(t, Compare(Borrow([]int{2}), owned))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "[1 2 3]", fmt.Sprint(Own([]int{1, 2, 3})))
	assert.Equal(t, "[1 2 3]", Borrow([]int{1, 2, 3}).String())
	assert.Equal(t, "hi", fmt.Sprintf("%s", Borrow([]byte("hi"))))
	assert.Equal(t, "6869", fmt.Sprintf("%x", Own([]byte("hi"))))
	assert.Equal(t, "owned", Owned.String())
	assert.Equal(t, "borrowed", Borrowed.String())
}

func BenchmarkIntoOwnedBorrowed(b *testing.B) {
	src := make([]byte, 4096)
	for b.Loop() {
		v := Borrow(src)
		_ = v.IntoOwned()
	}
}

func BenchmarkIntoOwnedOwned(b *testing.B) {
	src := make([]byte, 4096)
	for b.Loop() {
		v := Own(src)
		_ = v.IntoOwned()
	}
}
