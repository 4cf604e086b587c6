package cache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	var evicted []string
	var c *LRU[string, int]
	c = NewLRU[string, int](3, func(k string, v int) {
		// The victim must still be resolvable while the callback runs.
		got, ok := c.Peek(k)
		require.True(t, ok, "victim %s unresolvable during callback", k)
		assert.Equal(t, v, got)
		evicted = append(evicted, k)
	})

	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	_, _ = c.Get("a")

	assert.True(t, c.Add("d", 4))
	assert.Equal(t, []string{"b"}, evicted)

	_, ok := c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"d", "a", "c"}, c.Keys())
}

func TestLRUCapacityPlusOne(t *testing.T) {
	const capacity = 10
	count := 0
	c := NewLRU[string, int](capacity, func(string, int) { count++ })
	for i := 0; i <= capacity; i++ {
		c.Add(fmt.Sprintf("k%d", i), i)
	}
	assert.Equal(t, 1, count)
	_, ok := c.Peek("k0")
	assert.False(t, ok)
	assert.Equal(t, capacity, c.Len())
}

func TestLRUEvictionCompletesWhenCallbackPanics(t *testing.T) {
	c := NewLRU[int, int](1, func(int, int) { panic("callback failure") })
	c.Add(1, 1)
	assert.True(t, c.Add(2, 2))
	_, ok := c.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
}

func TestLRUUpdateDoesNotEvict(t *testing.T) {
	c := NewLRU[string, int](2, nil)
	c.Add("a", 1)
	c.Add("b", 2)
	assert.False(t, c.Add("a", 10))
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 10, v)
	assert.True(t, c.Remove("a"))
	assert.False(t, c.Remove("a"))
	assert.Equal(t, 1, c.Len())
}
