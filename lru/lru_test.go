package lru

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGetBasic(t *testing.T) {
	evictions := 0
	c := New[int, int](3, func(int, int) { evictions++ })

	c.Put(1, 10)
	assert.Equal(t, 1, c.Size())
	c.Put(2, 20)
	c.Put(3, 30)
	assert.Equal(t, 3, c.Size())
	assert.Equal(t, 0, evictions)

	v, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, 10, v)
	v, ok = c.Get(2)
	require.True(t, ok)
	assert.Equal(t, 20, v)
	v, ok = c.Get(3)
	require.True(t, ok)
	assert.Equal(t, 30, v)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	evictions := 0
	c := New[int, int](3, func(int, int) { evictions++ })
	c.Put(1, 10)
	c.Put(2, 20)
	c.Put(3, 30)

	// touching 1 makes 2 the least-recently-used entry
	_, _ = c.Get(1)
	c.Put(4, 40)

	assert.Equal(t, 1, evictions)
	_, ok := c.Get(2)
	assert.False(t, ok)
	v, ok := c.Get(4)
	require.True(t, ok)
	assert.Equal(t, 40, v)
	v, ok = c.Get(1)
	require.True(t, ok)
	assert.Equal(t, 10, v)
	v, ok = c.Get(3)
	require.True(t, ok)
	assert.Equal(t, 30, v)
}

func TestCacheRemoveDoesNotEvict(t *testing.T) {
	evictions := 0
	c := New[int, int](3, func(int, int) { evictions++ })
	c.Put(1, 10)
	c.Put(2, 20)
	c.Put(3, 30)

	c.Put(4, 40) // evicts key 1 -> evictions == 1
	c.Put(5, 50) // evicts key 2 -> evictions == 2
	require.True(t, c.Remove(3))
	c.Put(6, 60) // no eviction: only 2 entries (4,5) before insert

	assert.Equal(t, 2, evictions)
	assert.False(t, c.HasKey(3))
	assert.False(t, c.HasKey(1))
	assert.False(t, c.HasKey(2))
	v, ok := c.Get(4)
	require.True(t, ok)
	assert.Equal(t, 40, v)
	v, ok = c.Get(5)
	require.True(t, ok)
	assert.Equal(t, 50, v)
	v, ok = c.Get(6)
	require.True(t, ok)
	assert.Equal(t, 60, v)
}

func TestCacheUpdateExistingKeyNeverEvicts(t *testing.T) {
	evictions := 0
	c := New[int, int](2, func(int, int) { evictions++ })
	c.Put(1, 10)
	c.Put(2, 20)
	assert.Equal(t, 0, evictions)

	c.Put(3, 30) // evicts 1
	assert.Equal(t, 1, evictions)

	c.Put(2, 200) // update, never evicts
	assert.Equal(t, 1, evictions)
	assert.Equal(t, 2, c.Size())

	assert.False(t, c.HasKey(1))
	v, ok := c.Get(2)
	require.True(t, ok)
	assert.Equal(t, 200, v)
}

func TestCacheClearSkipsEvictionCallback(t *testing.T) {
	evictions := 0
	c := New[int, int](2, func(int, int) { evictions++ })
	c.Put(1, 10)
	c.Put(2, 20)
	c.Clear()
	assert.Equal(t, 0, evictions)
	assert.Equal(t, 0, c.Size())
	assert.False(t, c.HasKey(1))
}
